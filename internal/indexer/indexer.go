package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/embedding"
	"github.com/hyperjump/studybuddy/internal/extract"
	"github.com/hyperjump/studybuddy/internal/fileid"
	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/internal/storage"
	"github.com/hyperjump/studybuddy/internal/vector"
)

// Indexer turns uploaded documents into indexed chunks: extract, chunk, embed, insert, catalog.
// Ingestion is serialized so each document's chunks receive contiguous ids.
type Indexer struct {
	storage     storage.Storage
	embedder    embedding.Embedder
	vectorIndex vector.VectorIndex
	chunker     *Chunker
	extractor   *extract.Extractor
	logger      *zap.Logger
	now         func() time.Time
	mu          sync.Mutex
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for ingestion events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// WithClock sets the time source used for document creation timestamps.
func WithClock(now func() time.Time) IndexerOption {
	return func(idx *Indexer) { idx.now = now }
}

// NewIndexer creates an indexer with the given dependencies. chunkSize is in characters;
// non-positive values use DefaultChunkSize.
func NewIndexer(
	storage storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	chunkSize int,
	extractor *extract.Extractor,
	opts ...IndexerOption,
) *Indexer {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	idx := &Indexer{
		storage:     storage,
		embedder:    embedder,
		vectorIndex: vectorIndex,
		chunker:     NewChunker(chunkSize),
		extractor:   extractor,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Result describes one ingested document.
type Result struct {
	Document *models.Document `json:"document"`
	// Duplicate is true when identical bytes were already indexed and nothing was inserted.
	Duplicate bool `json:"duplicate"`
}

// IngestBytes indexes content uploaded under filename. The format is taken from the filename's
// extension; unsupported formats fail with models.ErrUnsupportedContent before anything is
// inserted. Re-uploading identical bytes returns the existing document.
func (idx *Indexer) IngestBytes(ctx context.Context, filename string, content []byte) (*Result, error) {
	format, err := extract.DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	docID := fileid.ContentID(content)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	existing, err := idx.storage.GetDocument(ctx, docID)
	switch {
	case err == nil:
		if idx.indexed(ctx, existing) {
			idx.logger.Debug("indexer skipping duplicate upload",
				zap.String("filename", filename), zap.String("doc_id", fileid.Short(docID)))
			return &Result{Document: existing, Duplicate: true}, nil
		}
		idx.logger.Warn("indexer re-indexing document missing from vector index",
			zap.String("doc_id", fileid.Short(docID)))
		if err := idx.storage.DeleteDocument(ctx, docID); err != nil {
			return nil, fmt.Errorf("drop stale document: %w", err)
		}
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("lookup document: %w", err)
	}

	text, err := idx.extractor.ExtractFormat(format, content)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}

	chunks, err := idx.insert(ctx, docID, idx.chunker.Chunk(text))
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:         docID,
		Filename:   filepath.Base(filename),
		Format:     string(format),
		SizeBytes:  int64(len(content)),
		ChunkCount: len(chunks),
		CreatedAt:  idx.now(),
	}
	if err := idx.storage.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	if len(chunks) > 0 {
		if err := idx.storage.BatchCreateChunks(ctx, chunks); err != nil {
			return nil, fmt.Errorf("failed to store chunks: %w", err)
		}
	}
	idx.logger.Info("indexer document ingested",
		zap.String("filename", doc.Filename),
		zap.String("doc_id", fileid.Short(docID)),
		zap.String("format", doc.Format),
		zap.Int("chunks", len(chunks)))
	return &Result{Document: doc}, nil
}

// insert embeds pieces and appends them to the vector index. Every embedding is checked
// before the first insert, so a dimension mismatch leaves the index untouched.
func (idx *Indexer) insert(ctx context.Context, docID string, pieces []string) ([]*models.Chunk, error) {
	if len(pieces) == 0 {
		return nil, nil
	}
	embeddings, err := idx.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(pieces) {
		return nil, fmt.Errorf("embedder returned %d embeddings for %d chunks", len(embeddings), len(pieces))
	}
	dim := idx.vectorIndex.Dimensions()
	for i, emb := range embeddings {
		if len(emb) != dim {
			return nil, fmt.Errorf("chunk %d: got %d, expected %d: %w", i, len(emb), dim, models.ErrDimensionMismatch)
		}
	}
	chunks := make([]*models.Chunk, len(pieces))
	for i, piece := range pieces {
		id, err := idx.vectorIndex.Insert(ctx, embedding.Normalized(embeddings[i]), piece)
		if err != nil {
			return nil, fmt.Errorf("failed to index chunk %d: %w", i, err)
		}
		chunks[i] = &models.Chunk{SequenceID: id, DocumentID: docID, Text: piece}
	}
	return chunks, nil
}

// indexed reports whether every catalogued chunk of doc is present in the vector index.
func (idx *Indexer) indexed(ctx context.Context, doc *models.Document) bool {
	chunks, err := idx.storage.GetChunksByDocumentID(ctx, doc.ID)
	if err != nil || len(chunks) != doc.ChunkCount {
		return false
	}
	for _, ch := range chunks {
		if text, ok := idx.vectorIndex.Text(ch.SequenceID); !ok || text != ch.Text {
			return false
		}
	}
	return true
}

// IngestFile reads the regular file at path and ingests it under its base name.
func (idx *Indexer) IngestFile(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if _, err := extract.DetectFormat(path); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return idx.IngestBytes(ctx, filepath.Base(path), content)
}

// IngestDirectory walks dir recursively and ingests each regular file whose extension is in
// allowedExts (if non-empty; otherwise every supported extension). Returns the number of files
// ingested and the first error encountered, if any.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string, allowedExts []string) (n int, err error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", dir)
	}
	if len(allowedExts) == 0 {
		allowedExts = extract.SupportedExtensions()
	}
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !ExtensionAllowed(filepath.Ext(path), allowedExts) {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if _, ingestErr := idx.IngestFile(ctx, path); ingestErr != nil {
			return ingestErr
		}
		n++
		return nil
	})
	return n, err
}

// ExtensionAllowed reports whether ext is in allowed, ignoring case and leading dots.
func ExtensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// Rebuild empties the vector index and re-embeds every catalogued chunk, oldest document
// first, rewriting chunk sequence ids to match. It restores the index when its snapshot is
// missing or older than the catalog.
func (idx *Indexer) Rebuild(ctx context.Context) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	type entry struct {
		doc    *models.Document
		chunks []*models.Chunk
	}
	var entries []entry
	const page = 100
	for offset := 0; ; offset += page {
		docs, err := idx.storage.ListDocuments(ctx, offset, page)
		if err != nil {
			return 0, fmt.Errorf("list documents: %w", err)
		}
		for _, doc := range docs {
			chunks, err := idx.storage.GetChunksByDocumentID(ctx, doc.ID)
			if err != nil {
				return 0, fmt.Errorf("load chunks for %s: %w", doc.ID, err)
			}
			entries = append(entries, entry{doc: doc, chunks: chunks})
		}
		if len(docs) < page {
			break
		}
	}

	if err := idx.vectorIndex.Reset(); err != nil {
		return 0, fmt.Errorf("reset vector index: %w", err)
	}
	total := 0
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		texts := make([]string, len(e.chunks))
		for j, ch := range e.chunks {
			texts[j] = ch.Text
		}
		chunks, err := idx.insert(ctx, e.doc.ID, texts)
		if err != nil {
			return total, fmt.Errorf("re-index %s: %w", e.doc.ID, err)
		}
		if err := idx.storage.DeleteDocument(ctx, e.doc.ID); err != nil {
			return total, err
		}
		e.doc.ChunkCount = len(chunks)
		if err := idx.storage.CreateDocument(ctx, e.doc); err != nil {
			return total, err
		}
		if len(chunks) > 0 {
			if err := idx.storage.BatchCreateChunks(ctx, chunks); err != nil {
				return total, err
			}
		}
		total += len(chunks)
	}
	idx.logger.Info("indexer rebuilt vector index",
		zap.Int("documents", len(entries)), zap.Int("chunks", total))
	return total, nil
}
