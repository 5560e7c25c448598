// Package library implements CRUD and aggregate queries over library
// document metadata, persisted as documents in the
// process-wide "library_metadata" bleve index.
package library

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/tablecraft/ttrpg-core/pkg/searchdb"
	"github.com/tablecraft/ttrpg-core/pkg/slug"
)

// MetadataIndexName is the well-known index holding document rows.
const MetadataIndexName = "library_metadata"

// legacyIndexes are well-known aggregate indexes used during migration and
// by some callers.
var legacyIndexes = []string{"rules", "fiction", "chat", "documents"}

// rebuildScanCap bounds the number of documents rebuild_metadata will scan
// per legacy index, guarding against runaway scans.
const rebuildScanCap = 50_000

// ErrNotFound names the missing-document condition. No Repository method
// returns it: Get returns (nil, nil) for a missing row, and Delete and
// DeleteWithContent treat a missing row as success.
var ErrNotFound = errors.New("library: document not found")

// Status mirrors ingest.Status to avoid a package-layering cycle (ingest
// depends on library, not the reverse).
type Status string

const (
	StatusPending  Status = "pending"
	StatusIndexing Status = "indexing"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

// Document is one entry per ingested source.
type Document struct {
	ID           string // the slug
	DisplayName  string
	SourceType   string // rulebook | fiction | chat | documents
	OriginalPath string
	PageCount    int
	ChunkCount   int
	CharCount    int
	IndexName    string
	Status       Status
	ErrorMessage string
	IngestedAt   time.Time
	GameSystem   string
	Setting      string
	ContentType  string
	Publisher    string
}

// Repository provides CRUD and aggregate queries over Document rows.
type Repository struct {
	db *searchdb.Handle
}

// NewRepository wraps a searchdb.Handle.
func NewRepository(db *searchdb.Handle) *Repository {
	return &Repository{db: db}
}

func (r *Repository) index() (bleve.Index, error) {
	return r.db.Ensure(MetadataIndexName)
}

// Save upserts doc, keyed by its ID.
func (r *Repository) Save(doc Document) error {
	idx, err := r.index()
	if err != nil {
		return err
	}
	return searchdb.Put(idx, doc.ID, toFields(doc))
}

// Get returns (nil, nil) if doc_id is not found; all other errors propagate.
func (r *Repository) Get(docID string) (*Document, error) {
	idx, err := r.index()
	if err != nil {
		return nil, err
	}
	fields, err := searchdb.Get(idx, docID)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, nil
	}
	d := fromFields(docID, fields)
	return &d, nil
}

// List paginates by 1000, sorted ingested_at descending.
func (r *Repository) List() ([]Document, error) {
	idx, err := r.index()
	if err != nil {
		return nil, err
	}

	var all []Document
	from := 0
	const pageSize = 1000
	for {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), pageSize, from, false)
		req.Fields = []string{"*"}
		res, err := idx.Search(req)
		if err != nil {
			return nil, fmt.Errorf("library: list: %w", err)
		}
		if len(res.Hits) == 0 {
			break
		}
		for _, h := range res.Hits {
			all = append(all, fromFields(h.ID, h.Fields))
		}
		if len(res.Hits) < pageSize {
			break
		}
		from += pageSize
	}

	sort.Slice(all, func(i, j int) bool { return all[i].IngestedAt.After(all[j].IngestedAt) })
	return all, nil
}

// Delete removes only the metadata row.
func (r *Repository) Delete(docID string) error {
	idx, err := r.index()
	if err != nil {
		return err
	}
	return searchdb.DeleteDoc(idx, docID)
}

// DeleteWithContent removes <slug>, <slug>-raw, and the metadata row, in
// that order. Missing indexes/rows are treated as success.
func (r *Repository) DeleteWithContent(docID string) error {
	if err := r.db.Delete(docID); err != nil {
		return fmt.Errorf("library: delete content index %q: %w", docID, err)
	}
	if err := r.db.Delete(docID + "-raw"); err != nil {
		return fmt.Errorf("library: delete raw index %q: %w", docID, err)
	}
	return r.Delete(docID)
}

// Count returns the number of document rows.
func (r *Repository) Count() (uint64, error) {
	idx, err := r.index()
	if err != nil {
		return 0, err
	}
	return searchdb.Count(idx)
}

// RebuildMetadata scans legacy content indexes, groups documents by their
// "source" field, derives page count from max(page_number) (falling back
// to chunk_count/4), infers source type from the legacy index name alone
// (the source filename is not consulted), and inserts missing metadata
// rows. It never overwrites existing rows.
func (r *Repository) RebuildMetadata() (int, error) {
	inserted := 0
	for _, legacyName := range legacyIndexes {
		if !r.db.Exists(legacyName) {
			continue
		}
		idx, err := r.db.Ensure(legacyName)
		if err != nil {
			return inserted, err
		}

		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), rebuildScanCap, 0, false)
		req.Fields = []string{"*"}
		res, err := idx.Search(req)
		if err != nil {
			return inserted, fmt.Errorf("library: rebuild scan %q: %w", legacyName, err)
		}

		grouped := make(map[string]*rebuildAgg)
		for _, h := range res.Hits {
			source, _ := h.Fields["source"].(string)
			if source == "" {
				continue
			}
			agg, ok := grouped[source]
			if !ok {
				agg = &rebuildAgg{}
				grouped[source] = agg
			}
			agg.chunkCount++
			if pn, ok := h.Fields["page_number"].(float64); ok && int(pn) > agg.maxPage {
				agg.maxPage = int(pn)
			}
		}

		for source, agg := range grouped {
			docSlug := slug.Slugify(source)
			existing, err := r.Get(docSlug)
			if err != nil {
				return inserted, err
			}
			if existing != nil {
				continue
			}

			pageCount := agg.maxPage
			if pageCount == 0 {
				pageCount = agg.chunkCount / 4
				if pageCount == 0 {
					pageCount = 1
				}
			}

			doc := Document{
				ID:          docSlug,
				DisplayName: source,
				SourceType:  inferSourceType(legacyName, source),
				PageCount:   pageCount,
				ChunkCount:  agg.chunkCount,
				IndexName:   legacyName,
				Status:      StatusReady,
				IngestedAt:  time.Now(),
			}
			if err := r.Save(doc); err != nil {
				return inserted, err
			}
			inserted++
		}
	}

	slog.Info("library: rebuild_metadata complete", "inserted", inserted)
	return inserted, nil
}

type rebuildAgg struct {
	chunkCount int
	maxPage    int
}

func inferSourceType(indexName, filename string) string {
	switch indexName {
	case "rules":
		return "rulebook"
	case "fiction":
		return "fiction"
	case "chat":
		return "chat"
	default:
		return "documents"
	}
}

func toFields(d Document) map[string]any {
	return map[string]any{
		"display_name":  d.DisplayName,
		"source_type":   d.SourceType,
		"original_path": d.OriginalPath,
		"page_count":    d.PageCount,
		"chunk_count":   d.ChunkCount,
		"char_count":    d.CharCount,
		"index_name":    d.IndexName,
		"status":        string(d.Status),
		"error_message": d.ErrorMessage,
		"ingested_at":   d.IngestedAt,
		"game_system":   d.GameSystem,
		"setting":       d.Setting,
		"content_type":  d.ContentType,
		"publisher":     d.Publisher,
	}
}

func fromFields(id string, f map[string]any) Document {
	return Document{
		ID:           id,
		DisplayName:  str(f["display_name"]),
		SourceType:   str(f["source_type"]),
		OriginalPath: str(f["original_path"]),
		PageCount:    intOf(f["page_count"]),
		ChunkCount:   intOf(f["chunk_count"]),
		CharCount:    intOf(f["char_count"]),
		IndexName:    str(f["index_name"]),
		Status:       Status(str(f["status"])),
		ErrorMessage: str(f["error_message"]),
		IngestedAt:   timeOf(f["ingested_at"]),
		GameSystem:   str(f["game_system"]),
		Setting:      str(f["setting"]),
		ContentType:  str(f["content_type"]),
		Publisher:    str(f["publisher"]),
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func intOf(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func timeOf(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}
