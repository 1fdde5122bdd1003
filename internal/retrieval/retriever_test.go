package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/studybuddy/internal/embedding"
	"github.com/hyperjump/studybuddy/internal/vector"
)

// tableEmbedder maps known texts to fixed vectors.
type tableEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *tableEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	v, ok := e.vectors[text]
	if !ok {
		return []float32{0, 0, 1}, nil
	}
	return v, nil
}

func (e *tableEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *tableEmbedder) Dimensions() int { return 3 }
func (e *tableEmbedder) Close() error    { return nil }

func newIndex(t *testing.T, entries map[string][]float32, order []string) vector.VectorIndex {
	t.Helper()
	idx, err := vector.NewMemoryIndex(3)
	require.NoError(t, err)
	for _, text := range order {
		_, err := idx.Insert(context.Background(), entries[text], text)
		require.NoError(t, err)
	}
	return idx
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	idx, _ := vector.NewMemoryIndex(3)
	r := NewRetriever(&tableEmbedder{}, idx, nil)
	got := r.Retrieve(context.Background(), "anything", 5)
	assert.Equal(t, NoContext, got)
	assert.True(t, IsNoContext(got))
}

func TestRetrieve_RankOrderJoinedByNewline(t *testing.T) {
	entries := map[string][]float32{
		"photosynthesis happens in chloroplasts": {1, 0, 0},
		"the calvin cycle fixes carbon":          {0.8, 0.6, 0},
		"mitochondria make ATP":                  {0, 1, 0},
	}
	idx := newIndex(t, entries, []string{
		"mitochondria make ATP",
		"the calvin cycle fixes carbon",
		"photosynthesis happens in chloroplasts",
	})
	emb := &tableEmbedder{vectors: map[string][]float32{"how do plants make food": {1, 0, 0}}}
	r := NewRetriever(emb, idx, nil)

	got := r.Retrieve(context.Background(), "how do plants make food", 2)
	assert.Equal(t, "photosynthesis happens in chloroplasts\nthe calvin cycle fixes carbon", got)
}

func TestRetrieve_NormalizesQuery(t *testing.T) {
	entries := map[string][]float32{"a": {1, 0, 0}, "b": {0, 1, 0}}
	idx := newIndex(t, entries, []string{"a", "b"})
	emb := &tableEmbedder{vectors: map[string][]float32{"q": {10, 0, 0}}}
	r := NewRetriever(emb, idx, nil)

	passages, err := r.Passages(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, passages)
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	entries := map[string][]float32{}
	var order []string
	for _, s := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		entries[s] = []float32{1, 0, 0}
		order = append(order, s)
	}
	idx := newIndex(t, entries, order)
	r := NewRetriever(&tableEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}, idx, nil)

	passages, err := r.Passages(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, passages)
}

// staleIndex reports hits for ids it cannot resolve.
type staleIndex struct {
	vector.VectorIndex
}

func (s staleIndex) Search(ctx context.Context, q []float32, k int) ([]vector.Hit, error) {
	hits, err := s.VectorIndex.Search(ctx, q, k)
	all := append([]vector.Hit{{ID: 99, Distance: 0}}, hits...)
	if len(all) > k {
		all = all[:k]
	}
	return all, err
}

func TestRetrieve_SkipsStaleIDs(t *testing.T) {
	idx := newIndex(t, map[string][]float32{"kept": {1, 0, 0}}, []string{"kept"})
	r := NewRetriever(&tableEmbedder{}, staleIndex{idx}, nil)
	assert.Equal(t, "kept", r.Retrieve(context.Background(), "q", 5))
}

func TestRetrieve_AllStaleIsNoContext(t *testing.T) {
	idx := newIndex(t, map[string][]float32{"kept": {1, 0, 0}}, []string{"kept"})
	r := NewRetriever(&tableEmbedder{}, staleIndex{idx}, nil)
	passages, err := r.Passages(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Empty(t, passages)
	assert.Equal(t, NoContext, r.Retrieve(context.Background(), "q", 1))
}

func TestRetrieve_EmbedErrorDegrades(t *testing.T) {
	idx := newIndex(t, map[string][]float32{"x": {1, 0, 0}}, []string{"x"})
	r := NewRetriever(&tableEmbedder{err: errors.New("model offline")}, idx, nil)

	_, err := r.Passages(context.Background(), "q", 5)
	assert.Error(t, err)
	assert.Equal(t, NoContext, r.Retrieve(context.Background(), "q", 5))
}

func TestRetrieve_WithMockEmbedder(t *testing.T) {
	ctx := context.Background()
	emb := embedding.NewMockEmbedder(3)
	idx, _ := vector.NewMemoryIndex(3)
	for _, text := range []string{"newton's laws", "ohm's law"} {
		v, _ := emb.Embed(ctx, text)
		_, err := idx.Insert(ctx, v, text)
		require.NoError(t, err)
	}
	r := NewRetriever(emb, idx, nil)
	got := r.Retrieve(ctx, "ohm's law", 1)
	assert.Equal(t, "ohm's law", got)
}

func TestRetrieve_PythagoreanOutranksQuadratic(t *testing.T) {
	const (
		pythagoras = "Pythagorean theorem states a²+b²=c²"
		quadratic  = "Quadratic formula is (-b±√(b²-4ac))/2a"
	)
	entries := map[string][]float32{
		pythagoras: {0.9, 0.1, 0.2},
		quadratic:  {0.1, 0.9, 0.2},
	}
	idx := newIndex(t, entries, []string{pythagoras, quadratic})
	emb := &tableEmbedder{vectors: map[string][]float32{
		pythagoras:    entries[pythagoras],
		quadratic:     entries[quadratic],
		"pythagorean": {1, 0, 0},
	}}
	r := NewRetriever(emb, idx, nil)

	passages, err := r.Passages(context.Background(), "pythagorean", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{pythagoras, quadratic}, passages)
	assert.Equal(t, pythagoras+"\n"+quadratic, r.Retrieve(context.Background(), "pythagorean", 2))
	assert.Equal(t, pythagoras, r.Retrieve(context.Background(), "pythagorean", 1))
}
