package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperjump/studybuddy/internal/models"
)

func TestMemoryIndex_InsertSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	for i, v := range vecs {
		id, err := idx.Insert(ctx, v, string(rune('a'+i)))
		if err != nil {
			t.Fatal(err)
		}
		if id != i {
			t.Errorf("Insert #%d returned id %d", i, id)
		}
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != 0 || hits[0].Distance != 0 {
		t.Errorf("top hit = %+v, want id 0 at distance 0", hits[0])
	}
	if hits[1].ID != 1 {
		t.Errorf("second hit = %+v, want id 1", hits[1])
	}
	want := math.Sqrt(0.01 + 0.01)
	if math.Abs(hits[1].Distance-want) > 1e-6 {
		t.Errorf("second distance = %v, want %v", hits[1].Distance, want)
	}
	if text, ok := idx.Text(hits[1].ID); !ok || text != "b" {
		t.Errorf("Text(1) = %q, %v", text, ok)
	}
}

func TestMemoryIndex_TieBreakByLowerID(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	for _, v := range [][]float32{{0, 1}, {1, 0}, {0, 1}, {1, 0}} {
		if _, err := idx.Insert(ctx, v, "x"); err != nil {
			t.Fatal(err)
		}
	}
	hits, err := idx.Search(ctx, []float32{1, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	wantIDs := []int{1, 3, 0, 2}
	for i, h := range hits {
		if h.ID != wantIDs[i] {
			t.Errorf("hit %d id=%d, want %d", i, h.ID, wantIDs[i])
		}
	}
}

func TestMemoryIndex_SearchEmptyAndK(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	hits, err := idx.Search(ctx, []float32{1, 0}, 5)
	if err != nil || len(hits) != 0 {
		t.Fatalf("empty index: hits=%v err=%v", hits, err)
	}
	_, _ = idx.Insert(ctx, []float32{1, 0}, "only")
	hits, _ = idx.Search(ctx, []float32{1, 0}, 5)
	if len(hits) != 1 {
		t.Errorf("k larger than size should return all, got %d", len(hits))
	}
	hits, _ = idx.Search(ctx, []float32{1, 0}, 0)
	if len(hits) != 0 {
		t.Errorf("k=0 should return nothing, got %d", len(hits))
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	if _, err := idx.Insert(ctx, []float32{1, 0}, "short"); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("Insert err=%v, want ErrDimensionMismatch", err)
	}
	if idx.Size() != 0 {
		t.Errorf("failed insert changed size to %d", idx.Size())
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("Search err=%v, want ErrDimensionMismatch", err)
	}
	id, err := idx.Insert(ctx, []float32{1, 0, 0}, "ok")
	if err != nil || id != 0 {
		t.Errorf("insert after failure: id=%d err=%v, want id 0", id, err)
	}
}

func TestMemoryIndex_InsertCopiesVector(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	v := []float32{1, 0}
	_, _ = idx.Insert(ctx, v, "a")
	v[0] = 100
	hits, _ := idx.Search(ctx, []float32{1, 0}, 1)
	if hits[0].Distance != 0 {
		t.Errorf("caller mutation leaked into index, distance=%v", hits[0].Distance)
	}
}

func TestMemoryIndex_Reset(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_, _ = idx.Insert(ctx, []float32{1, 0}, "a")
	_, _ = idx.Insert(ctx, []float32{0, 1}, "b")
	if err := idx.Reset(); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 0 {
		t.Errorf("Size after reset=%d", idx.Size())
	}
	if _, ok := idx.Text(0); ok {
		t.Error("Text(0) should be gone after reset")
	}
	id, _ := idx.Insert(ctx, []float32{1, 1}, "c")
	if id != 0 {
		t.Errorf("first id after reset=%d, want 0", id)
	}
}

func TestMemoryIndex_TextOutOfRange(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	if _, ok := idx.Text(-1); ok {
		t.Error("negative id should be absent")
	}
	if _, ok := idx.Text(7); ok {
		t.Error("unassigned id should be absent")
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap", "index.bin")

	idx, _ := NewMemoryIndex(3)
	texts := []string{"photosynthesis", "mitosis 細胞", ""}
	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	for i := range texts {
		if _, err := idx.Insert(ctx, vecs[i], texts[i]); err != nil {
			t.Fatal(err)
		}
	}
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	idx2, _ := NewMemoryIndex(3)
	if err := idx2.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if idx2.Size() != 3 {
		t.Fatalf("loaded size=%d", idx2.Size())
	}
	for i, want := range texts {
		if got, ok := idx2.Text(i); !ok || got != want {
			t.Errorf("Text(%d)=%q, want %q", i, got, want)
		}
	}
	hits, _ := idx2.Search(ctx, []float32{0, 1, 0}, 1)
	if hits[0].ID != 1 {
		t.Errorf("loaded search top id=%d, want 1", hits[0].ID)
	}
	id, _ := idx2.Insert(ctx, []float32{1, 1, 1}, "next")
	if id != 3 {
		t.Errorf("next id after load=%d, want 3", id)
	}
}

func TestMemoryIndex_LoadMissingAndWrongDim(t *testing.T) {
	dir := t.TempDir()
	idx, _ := NewMemoryIndex(2)
	if err := idx.Load(filepath.Join(dir, "missing.bin")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}

	path := filepath.Join(dir, "three.bin")
	idx3, _ := NewMemoryIndex(3)
	_, _ = idx3.Insert(context.Background(), []float32{1, 2, 3}, "x")
	if err := idx3.Save(path); err != nil {
		t.Fatal(err)
	}
	if err := idx.Load(path); err == nil {
		t.Error("expected dimension error loading 3-d snapshot into 2-d index")
	}
}

func TestMemoryIndex_ConcurrentInsertSearch(t *testing.T) {
	const (
		writers   = 8
		perWriter = 64
		readers   = 4
		total     = writers * perWriter
	)
	idx, err := NewMemoryIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	var (
		mu    sync.Mutex
		texts = make(map[int]string, total)
		wg    sync.WaitGroup
		done  = make(chan struct{})
	)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				text := fmt.Sprintf("writer %d item %d", w, i)
				id, err := idx.Insert(ctx, []float32{float32(w), float32(i)}, text)
				if err != nil {
					t.Errorf("Insert: %v", err)
					return
				}
				mu.Lock()
				if prev, dup := texts[id]; dup {
					t.Errorf("id %d returned twice (%q and %q)", id, prev, text)
				}
				texts[id] = text
				mu.Unlock()
			}
		}(w)
	}

	var rg sync.WaitGroup
	for r := 0; r < readers; r++ {
		rg.Add(1)
		go func(r int) {
			defer rg.Done()
			lastSize := 0
			for {
				select {
				case <-done:
					return
				default:
				}
				size := idx.Size()
				if size < lastSize {
					t.Errorf("Size went from %d to %d", lastSize, size)
				}
				lastSize = size
				hits, err := idx.Search(ctx, []float32{float32(r), 3}, 5)
				if err != nil {
					t.Errorf("Search: %v", err)
					return
				}
				if len(hits) > 5 {
					t.Errorf("Search returned %d hits for k=5", len(hits))
				}
				for _, h := range hits {
					if _, ok := idx.Text(h.ID); !ok {
						t.Errorf("hit id %d does not resolve to a text", h.ID)
					}
				}
			}
		}(r)
	}

	wg.Wait()
	close(done)
	rg.Wait()

	if idx.Size() != total {
		t.Fatalf("Size=%d, want %d", idx.Size(), total)
	}
	if len(texts) != total {
		t.Fatalf("got %d distinct ids, want %d", len(texts), total)
	}
	for id := 0; id < total; id++ {
		want, ok := texts[id]
		if !ok {
			t.Errorf("id %d was never returned by Insert", id)
			continue
		}
		if got, _ := idx.Text(id); got != want {
			t.Errorf("Text(%d) = %q, want %q", id, got, want)
		}
	}
}
