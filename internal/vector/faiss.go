//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"github.com/hyperjump/studybuddy/internal/models"
)

// FAISSIndex is an exact L2 index backed by a FAISS IndexFlatL2. FAISS labels are the
// insertion ordinal, so they coincide with the ids handed out by Insert; texts are held
// in a parallel slice.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	texts      []string
	mu         sync.RWMutex
}

// NewFAISSIndex creates a FAISS flat L2 index with the given dimension.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	index, err := newFlatL2(dimensions)
	if err != nil {
		return nil, err
	}
	return &FAISSIndex{
		index:      index,
		dimensions: dimensions,
		texts:      make([]string, 0),
	}, nil
}

func newFlatL2(dimensions int) (*C.FaissIndex, error) {
	var index *C.FaissIndexFlatL2
	if ret := C.faiss_IndexFlatL2_new_with(&index, C.idx_t(dimensions)); ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	return (*C.FaissIndex)(unsafe.Pointer(index)), nil
}

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Insert adds one vector and returns its id.
func (f *FAISSIndex) Insert(ctx context.Context, embedding []float32, text string) (int, error) {
	if len(embedding) != f.dimensions {
		return 0, fmt.Errorf("insert: got %d, expected %d: %w", len(embedding), f.dimensions, models.ErrDimensionMismatch)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ret := C.faiss_Index_add(f.index, 1, (*C.float)(unsafe.Pointer(&embedding[0])))
	if ret != 0 {
		return 0, fmt.Errorf("failed to add vector to FAISS index: %s", faissLastError())
	}
	id := len(f.texts)
	f.texts = append(f.texts, text)
	return id, nil
}

// Search returns the top-k vectors by L2 distance. FAISS orders equal distances
// arbitrarily, so the fetch widens until every candidate tied with the k-th distance is
// in hand; sortHits then applies the lower-id rule before trimming to k.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("search: got %d, expected %d: %w", len(query), f.dimensions, models.ErrDimensionMismatch)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 {
		return nil, nil
	}
	ntotal := int(C.faiss_Index_ntotal(f.index))
	if ntotal == 0 {
		return nil, nil
	}
	if k > ntotal {
		k = ntotal
	}

	fetch := min(ntotal, 2*k)
	for {
		distances, labels, err := f.searchN(query, fetch)
		if err != nil {
			return nil, err
		}
		// The boundary tie may continue past what was fetched.
		if fetch < ntotal && distances[fetch-1] == distances[k-1] {
			fetch = min(ntotal, 2*fetch)
			continue
		}
		hits := make([]Hit, 0, fetch)
		for i := 0; i < fetch; i++ {
			if labels[i] < 0 {
				continue
			}
			// IndexFlatL2 reports squared distances.
			hits = append(hits, Hit{ID: int(labels[i]), Distance: math.Sqrt(float64(distances[i]))})
		}
		sortHits(hits)
		if len(hits) > k {
			hits = hits[:k]
		}
		return hits, nil
	}
}

// searchN runs a raw FAISS search for the n nearest vectors. Callers hold f.mu.
func (f *FAISSIndex) searchN(query []float32, n int) ([]float32, []int64, error) {
	distances := make([]float32, n)
	labels := make([]int64, n)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(n),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}
	return distances, labels, nil
}

// Text returns the text stored under id.
func (f *FAISSIndex) Text(id int) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if id < 0 || id >= len(f.texts) {
		return "", false
	}
	return f.texts[id], true
}

// Dimensions returns the embedding width accepted by the index.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Reset replaces the FAISS index with an empty one.
func (f *FAISSIndex) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := C.faiss_Index_reset(f.index); ret != 0 {
		return fmt.Errorf("failed to reset FAISS index: %s", faissLastError())
	}
	f.texts = make([]string, 0)
	return nil
}

// Save persists the index to path.faiss and the texts to path.texts.
func (f *FAISSIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	cPath := C.CString(path + ".faiss")
	defer C.free(unsafe.Pointer(cPath))
	if ret := C.faiss_write_index_fname(f.index, cPath); ret != 0 {
		return fmt.Errorf("failed to save FAISS index: %s", faissLastError())
	}

	textFile, err := os.Create(path + ".texts")
	if err != nil {
		return fmt.Errorf("create text file: %w", err)
	}
	defer textFile.Close()
	if err := gob.NewEncoder(textFile).Encode(f.texts); err != nil {
		return fmt.Errorf("encode texts: %w", err)
	}
	return nil
}

// Load reads the index and texts from path.
// If the files do not exist, no error is returned and the index is unchanged.
func (f *FAISSIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	faissPath := path + ".faiss"
	if _, err := os.Stat(faissPath); os.IsNotExist(err) {
		return nil
	}

	textFile, err := os.Open(path + ".texts")
	if err != nil {
		return fmt.Errorf("open text file: %w", err)
	}
	defer textFile.Close()
	var texts []string
	if err := gob.NewDecoder(textFile).Decode(&texts); err != nil {
		return fmt.Errorf("decode texts: %w", err)
	}

	cPath := C.CString(faissPath)
	defer C.free(unsafe.Pointer(cPath))
	var loaded *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &loaded); ret != 0 {
		return fmt.Errorf("failed to load FAISS index: %s", faissLastError())
	}
	if n := int(C.faiss_Index_ntotal(loaded)); n != len(texts) {
		C.faiss_Index_free(loaded)
		return fmt.Errorf("snapshot holds %d vectors but %d texts", n, len(texts))
	}
	if d := int(C.faiss_Index_d(loaded)); d != f.dimensions {
		C.faiss_Index_free(loaded)
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", d, f.dimensions)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
	}
	f.index = loaded
	f.texts = texts
	return nil
}

// Size returns the number of stored vectors.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.texts)
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
