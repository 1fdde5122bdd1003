// Package retrieval turns a free-text query into a context blob of the most similar indexed chunks.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/embedding"
	"github.com/hyperjump/studybuddy/internal/vector"
	"github.com/hyperjump/studybuddy/pkg/utils"
)

// NoContext is returned by Retrieve when no indexed chunk matches the query.
const NoContext = "No relevant context found."

// DefaultTopK is the number of chunks joined into a context blob.
const DefaultTopK = 5

// IsNoContext reports whether s is the no-match sentinel.
func IsNoContext(s string) bool {
	return s == NoContext
}

// Retriever embeds queries and looks up their nearest chunks.
type Retriever struct {
	embedder embedding.Embedder
	index    vector.VectorIndex
	logger   *zap.Logger
}

// NewRetriever creates a retriever over index. logger may be nil.
func NewRetriever(embedder embedding.Embedder, index vector.VectorIndex, logger *zap.Logger) *Retriever {
	return &Retriever{embedder: embedder, index: index, logger: utils.OrNop(logger)}
}

// Passages returns the texts of the topK nearest chunks, closest first. Ids the index no longer
// resolves are skipped. topK <= 0 uses DefaultTopK.
func (r *Retriever) Passages(ctx context.Context, query string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if r.index.Size() == 0 {
		return nil, nil
	}
	q, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := r.index.Search(ctx, embedding.Normalized(q), topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	passages := make([]string, 0, len(hits))
	for _, h := range hits {
		text, ok := r.index.Text(h.ID)
		if !ok {
			continue
		}
		passages = append(passages, text)
	}
	return passages, nil
}

// Retrieve returns the nearest chunks joined by newline, or NoContext when nothing matches.
// Embedding and search failures are logged and also yield NoContext.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) string {
	passages, err := r.Passages(ctx, query, topK)
	if err != nil {
		r.logger.Warn("retrieval degraded to no context",
			zap.String("query", utils.Truncate(query, 80)), zap.Error(err))
		return NoContext
	}
	if len(passages) == 0 {
		return NoContext
	}
	return strings.Join(passages, "\n")
}
