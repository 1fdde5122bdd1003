package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/studybuddy/internal/models"
)

// MemoryIndex is an exact flat L2 index held in memory. Texts and vectors are parallel slices
// indexed by id, so both always have the same length.
type MemoryIndex struct {
	dimensions int
	texts      []string
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		texts:      make([]string, 0),
		vectors:    make([][]float32, 0),
	}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Dimensions returns the embedding width accepted by the index.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Insert appends the embedding and text and returns the new id.
func (m *MemoryIndex) Insert(ctx context.Context, embedding []float32, text string) (int, error) {
	if len(embedding) != m.dimensions {
		return 0, fmt.Errorf("insert: got %d, expected %d: %w", len(embedding), m.dimensions, models.ErrDimensionMismatch)
	}
	vec := make([]float32, m.dimensions)
	copy(vec, embedding)
	m.mu.Lock()
	defer m.mu.Unlock()
	id := len(m.texts)
	m.texts = append(m.texts, text)
	m.vectors = append(m.vectors, vec)
	return id, nil
}

// Search scans every vector and returns the k closest by L2 distance.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("search: got %d, expected %d: %w", len(query), m.dimensions, models.ErrDimensionMismatch)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.vectors) == 0 {
		return nil, nil
	}
	hits := make([]Hit, len(m.vectors))
	for i, vec := range m.vectors {
		hits[i] = Hit{ID: i, Distance: L2Distance(query, vec)}
	}
	sortHits(hits)
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Text returns the text stored under id.
func (m *MemoryIndex) Text(id int) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id < 0 || id >= len(m.texts) {
		return "", false
	}
	return m.texts[id], true
}

// Reset drops every entry.
func (m *MemoryIndex) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = make([]string, 0)
	m.vectors = make([][]float32, 0)
	return nil
}

// Save persists the index to path. Directory is created if needed.
func (m *MemoryIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return writeSnapshot(path, snapshot{dimensions: m.dimensions, texts: m.texts, vectors: m.vectors})
}

// Load reads the index from path and replaces the in-memory contents. Dimensions must match.
// If the file does not exist, no error is returned and the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	s, found, err := readSnapshot(path, m.dimensions)
	if err != nil || !found {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = s.texts
	m.vectors = s.vectors
	return nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.texts)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
