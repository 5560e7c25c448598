// Package searchdb provides the process-wide embedded full-text and vector
// search handle that backs every index in the system: the library metadata
// index, each document's raw-page and chunk indexes, and the legacy
// aggregate indexes (rules, fiction, chat, documents).
package searchdb

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// ErrInit is returned when the embedded engine fails to open a database.
var ErrInit = errors.New("searchdb: init failed")

// EmbeddingDims is the fixed dimensionality declared for the vector field.
// This package does not check vector lengths; the ingestion pipeline
// drops a batch of vectors of any other length before writing chunks.
const EmbeddingDims = 1536

// DefaultMaxIndexSize is the default ceiling, in bytes, for a single index's
// on-disk footprint. It is advisory only: Handle records the configured
// value but does not track index size, enforce the ceiling, or log
// against it.
const DefaultMaxIndexSize = 10 * 1024 * 1024 * 1024 // 10 GiB

// Handle is the process-wide embedded search engine. It owns every open
// bleve.Index by name and is safe for concurrent use. Callers never mutate
// its configuration after Open; they borrow indexes via Index/Ensure.
type Handle struct {
	dbPath       string
	maxIndexSize int64

	mu      sync.RWMutex
	indexes map[string]bleve.Index
}

// Open creates (if missing) the database directory at dbPath and returns a
// Handle ready to open named indexes under it. maxIndexSize of 0 uses
// DefaultMaxIndexSize.
func Open(dbPath string, maxIndexSize int64) (*Handle, error) {
	if maxIndexSize <= 0 {
		maxIndexSize = DefaultMaxIndexSize
	}
	if err := os.MkdirAll(dbPath, 0o700); err != nil {
		return nil, fmt.Errorf("%w: cannot create data directory %q: %w", ErrInit, dbPath, err)
	}

	h := &Handle{
		dbPath:       dbPath,
		maxIndexSize: maxIndexSize,
		indexes:      make(map[string]bleve.Index),
	}
	slog.Debug("searchdb: handle opened", "path", dbPath, "max_index_size", maxIndexSize)
	return h, nil
}

// Ensure opens the named index if already present on disk, or creates it
// fresh with the standard mapping. Safe to call repeatedly; subsequent calls
// return the already-open handle.
func (h *Handle) Ensure(name string) (bleve.Index, error) {
	h.mu.RLock()
	if idx, ok := h.indexes[name]; ok {
		h.mu.RUnlock()
		return idx, nil
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	if idx, ok := h.indexes[name]; ok {
		return idx, nil
	}

	path := h.indexPath(name)
	var idx bleve.Index
	var err error

	if _, statErr := os.Stat(path); statErr == nil {
		idx, err = bleve.Open(path)
	} else {
		idx, err = bleve.New(path, buildMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: index %q: %w", ErrInit, name, err)
	}

	h.indexes[name] = idx
	slog.Debug("searchdb: index opened", "index", name, "path", path)
	return idx, nil
}

// Inner returns the shared bleve.Index handle for synchronous operations
// (raw Search/Index/Delete calls not covered by this package's helpers).
// The index must already exist; callers typically call Ensure first.
func (h *Handle) Inner(name string) (bleve.Index, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	idx, ok := h.indexes[name]
	if !ok {
		return nil, fmt.Errorf("searchdb: index %q not open", name)
	}
	return idx, nil
}

// Exists reports whether an index directory exists on disk, regardless of
// whether it is currently open in this process.
func (h *Handle) Exists(name string) bool {
	_, err := os.Stat(h.indexPath(name))
	return err == nil
}

// Delete closes (if open) and removes the named index's on-disk directory.
// Deleting a non-existent index is a no-op success, per the idempotency
// requirement on delete_with_content.
func (h *Handle) Delete(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if idx, ok := h.indexes[name]; ok {
		if err := idx.Close(); err != nil {
			slog.Warn("searchdb: error closing index before delete", "index", name, "error", err)
		}
		delete(h.indexes, name)
	}

	path := h.indexPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("searchdb: delete index %q: %w", name, err)
	}
	return nil
}

// Shutdown attempts a graceful close of every open index. It never returns
// an error for indexes that are already closed or missing; it aggregates
// and returns the first error encountered, after attempting every close.
func (h *Handle) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for name, idx := range h.indexes {
		if err := idx.Close(); err != nil {
			slog.Warn("searchdb: error closing index on shutdown", "index", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	h.indexes = make(map[string]bleve.Index)
	return firstErr
}

func (h *Handle) indexPath(name string) string {
	return filepath.Join(h.dbPath, name)
}

// buildMapping constructs the standard document mapping shared by every
// index: a dynamic top-level mapping (so library-metadata fields, raw-page
// fields, and chunk fields can all share one schema shape) with an English
// analyzer on the "text"/"content" fields and a fixed-dimension KNN vector
// field for embeddings.
func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = "en"

	doc := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = "en"
	doc.AddFieldMappingsAt("text", textField)
	doc.AddFieldMappingsAt("content", textField)
	doc.AddFieldMappingsAt("section_title", textField)

	vecField := mapping.NewVectorFieldMapping()
	vecField.Dims = EmbeddingDims
	vecField.Similarity = "dot_product"
	doc.AddFieldMappingsAt("embedding", vecField)

	im.AddDocumentMapping("_default", doc)
	return im
}
