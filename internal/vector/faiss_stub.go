//go:build !faiss || !cgo
// +build !faiss !cgo

package vector

import (
	"context"
	"fmt"
)

// FAISSIndex is a stub that returns an error when FAISS is not available.
// Build with -tags=faiss to enable FAISS support.
type FAISSIndex struct{}

var errFAISSUnavailable = fmt.Errorf("FAISS not available")

// NewFAISSIndex returns an error because FAISS is not available.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	return nil, fmt.Errorf("FAISS not available: build with -tags=faiss and install FAISS library")
}

func (f *FAISSIndex) Insert(ctx context.Context, embedding []float32, text string) (int, error) {
	return 0, errFAISSUnavailable
}

func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	return nil, errFAISSUnavailable
}

func (f *FAISSIndex) Text(id int) (string, bool) { return "", false }
func (f *FAISSIndex) Dimensions() int            { return 0 }
func (f *FAISSIndex) Reset() error               { return errFAISSUnavailable }
func (f *FAISSIndex) Save(path string) error     { return errFAISSUnavailable }
func (f *FAISSIndex) Load(path string) error     { return errFAISSUnavailable }
func (f *FAISSIndex) Size() int                  { return 0 }
func (f *FAISSIndex) Close() error               { return nil }

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
