// Package vector provides vector index and nearest-neighbor search.
package vector

import (
	"context"
	"sort"
)

// VectorIndex is an append-only store of (embedding, text) pairs searched by L2 distance.
// Ids are assigned densely from 0 in insertion order and are never reused.
type VectorIndex interface {
	// Insert stores the embedding and its text and returns the assigned id. An embedding whose
	// length differs from Dimensions fails with models.ErrDimensionMismatch and changes nothing.
	Insert(ctx context.Context, embedding []float32, text string) (int, error)
	// Search returns up to k hits ordered by ascending distance, ties broken by lower id.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	// Text returns the text stored under id.
	Text(id int) (string, bool)
	Size() int
	Dimensions() int
	// Reset drops every entry; the next insert is assigned id 0.
	Reset() error
	Save(path string) error
	Load(path string) error
	Close() error
	Type() string
}

// Hit is a single search result.
type Hit struct {
	ID       int     `json:"id"`
	Distance float64 `json:"distance"`
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
}
