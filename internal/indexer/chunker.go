// Package indexer provides document chunking and the ingestion pipeline.
package indexer

// DefaultChunkSize is the chunk width in characters.
const DefaultChunkSize = 500

// Chunker cuts text into fixed-width, contiguous, non-overlapping pieces.
type Chunker struct {
	size int
}

// NewChunker creates a chunker with the given width in characters. Non-positive sizes fall
// back to DefaultChunkSize.
func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Chunker{size: size}
}

// Size returns the chunk width.
func (c *Chunker) Size() int {
	return c.size
}

// Chunk splits text into pieces of the chunker's width.
func (c *Chunker) Chunk(text string) []string {
	return Chunk(text, c.size)
}

// Chunk splits text into pieces of exactly size characters, except the last, which holds the
// remainder. Concatenating the pieces yields text. Empty text yields no pieces.
func Chunk(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
