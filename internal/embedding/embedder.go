// Package embedding provides sentence embeddings via ONNX, a deterministic mock, and caching.
package embedding

import (
	"context"

	"github.com/hyperjump/studybuddy/pkg/utils"
)

// DefaultDimensions is the output width of all-MiniLM-L6-v2.
const DefaultDimensions = 384

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Normalized returns a unit-length copy of v. The zero vector is returned unchanged.
func Normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	utils.NormalizeL2(out)
	return out
}
