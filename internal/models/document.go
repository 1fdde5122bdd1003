// Package models defines core data structures for uploaded documents, indexed chunks and routed queries.
package models

import "time"

// Document is a catalog entry for an uploaded document.
type Document struct {
	ID         string    `json:"id" db:"id"`
	Filename   string    `json:"filename" db:"filename"`
	Format     string    `json:"format" db:"format"`
	SizeBytes  int64     `json:"size_bytes" db:"size_bytes"`
	ChunkCount int       `json:"chunk_count" db:"chunk_count"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Chunk is a bounded slice of extracted document text. SequenceID is the id assigned by the
// vector index on insertion; it is dense, starts at 0 and is never reused.
type Chunk struct {
	SequenceID int    `json:"sequence_id" db:"sequence_id"`
	DocumentID string `json:"document_id" db:"document_id"`
	Text       string `json:"text" db:"content"`
}
