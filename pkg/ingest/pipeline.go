package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tablecraft/ttrpg-core/pkg/embedding"
	"github.com/tablecraft/ttrpg-core/pkg/library"
	"github.com/tablecraft/ttrpg-core/pkg/searchdb"
)

// ErrExtraction wraps a phase-1 extraction failure.
var ErrExtraction = errors.New("ingest: extraction failed")

// ErrChunking wraps a phase-2 chunking failure.
var ErrChunking = errors.New("ingest: chunking failed")

// EmbeddingProvider is the external collaborator contract for embeddings.
// Best-effort: a failing or absent provider degrades chunks
// to keyword-search-only, never fails ingestion.
type EmbeddingProvider interface {
	ID() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline turns a file on disk into a queryable document in two phases,
// each of which is itself persisted and queryable.
type Pipeline struct {
	db        *searchdb.Handle
	repo      *library.Repository
	extractor Extractor
	embedder  EmbeddingProvider // optional
	batch     *embedding.Embedder
	chunker   *Chunker
}

// New constructs a Pipeline. embedder may be nil (keyword-only ingestion).
func New(db *searchdb.Handle, repo *library.Repository, extractor Extractor, embedder EmbeddingProvider, chunkCfg ChunkerConfig) *Pipeline {
	p := &Pipeline{
		db:        db,
		repo:      repo,
		extractor: extractor,
		embedder:  embedder,
		chunker:   NewChunker(chunkCfg),
	}
	if embedder != nil {
		p.batch = embedding.New(embedder)
	}
	return p
}

// ExtractionResult summarizes phase 1.
type ExtractionResult struct {
	DocID     string
	PageCount int
}

// ChunkingResult summarizes phase 2.
type ChunkingResult struct {
	DocID      string
	ChunkCount int
	CharCount  int
}

// IngestTwoPhase runs extraction then chunking end to end, returning both
// phase summaries. Re-ingestion of a previously failed slug is idempotent:
// its indexes are deleted and recreated.
func (p *Pipeline) IngestTwoPhase(ctx context.Context, displayName, sourcePath, sourceType string) (ExtractionResult, ChunkingResult, error) {
	ext, docID, err := p.Extract(ctx, displayName, sourcePath, sourceType)
	if err != nil {
		return ext, ChunkingResult{}, err
	}
	chunked, err := p.Chunk(ctx, docID)
	return ext, chunked, err
}

// Extract is phase 1: call the extractor, derive the document slug, write
// raw pages to "<slug>-raw", and create a library-metadata row in the
// "indexing" state.
func (p *Pipeline) Extract(ctx context.Context, displayName, sourcePath, sourceType string) (ExtractionResult, string, error) {
	if p.extractor == nil {
		return ExtractionResult{}, "", fmt.Errorf("%w: no extractor configured", ErrExtraction)
	}
	docID, err := DeriveUniqueSlug(displayName, func(candidate string) (bool, error) {
		doc, err := p.repo.Get(candidate)
		if err != nil {
			return false, err
		}
		// A failed ingestion leaves its slug free for re-ingestion.
		return doc != nil && doc.Status != library.StatusFailed, nil
	})
	if err != nil {
		return ExtractionResult{}, "", fmt.Errorf("ingest: derive slug for %q: %w", displayName, err)
	}
	// Drop any indexes an earlier failed ingestion of this slug left behind.
	_ = p.db.Delete(rawIndexName(docID))
	_ = p.db.Delete(docID)

	pages, err := p.extractor.Extract(ctx, sourcePath)
	if err != nil {
		slog.Warn("ingest: extraction failed", "doc_id", docID, "path", sourcePath, "error", err)
		_ = p.db.Delete(rawIndexName(docID))
		_ = p.repo.Save(library.Document{
			ID:           docID,
			DisplayName:  displayName,
			SourceType:   sourceType,
			OriginalPath: sourcePath,
			Status:       library.StatusFailed,
			ErrorMessage: err.Error(),
			IngestedAt:   time.Now(),
		})
		return ExtractionResult{}, docID, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	rawIdx, err := p.db.Ensure(rawIndexName(docID))
	if err != nil {
		return ExtractionResult{}, docID, fmt.Errorf("ingest: open raw index: %w", err)
	}

	for i := range pages {
		pages[i].SourceDocID = docID
		if pages[i].ID == "" {
			pages[i].ID = uuid.NewString()
		}
		if pages[i].ExtractedAt.IsZero() {
			pages[i].ExtractedAt = time.Now()
		}
		if err := searchdb.Put(rawIdx, pages[i].ID, rawPageFields(pages[i])); err != nil {
			return ExtractionResult{}, docID, fmt.Errorf("ingest: write raw page %d: %w", pages[i].Ordinal, err)
		}
	}

	if err := p.repo.Save(library.Document{
		ID:           docID,
		DisplayName:  displayName,
		SourceType:   sourceType,
		OriginalPath: sourcePath,
		PageCount:    len(pages),
		Status:       library.StatusIndexing,
		IngestedAt:   time.Now(),
	}); err != nil {
		return ExtractionResult{}, docID, fmt.Errorf("ingest: save metadata: %w", err)
	}

	slog.Info("ingest: extraction complete", "doc_id", docID, "pages", len(pages))
	return ExtractionResult{DocID: docID, PageCount: len(pages)}, docID, nil
}

// Chunk is phase 2: read back raw pages, split into content chunks,
// best-effort embed them, write them to "<slug>", and mark the metadata
// row ready.
func (p *Pipeline) Chunk(ctx context.Context, docID string) (ChunkingResult, error) {
	pages, err := p.readRawPages(docID)
	if err != nil {
		return ChunkingResult{}, p.fail(docID, fmt.Errorf("%w: %w", ErrChunking, err))
	}

	chunks := p.chunker.ChunkPages(docID, pages)
	if len(chunks) == 0 {
		return ChunkingResult{}, p.fail(docID, fmt.Errorf("%w: no chunks produced", ErrChunking))
	}

	if p.embedder != nil {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		vecs, err := p.batch.EmbedBatch(ctx, texts)
		if err != nil {
			// Best-effort: log and proceed without vectors.
			slog.Warn("ingest: embedding unavailable, continuing keyword-only",
				"doc_id", docID, "provider", p.embedder.ID(), "error", err)
		} else if len(vecs) == len(chunks) {
			dimsOK := true
			for _, v := range vecs {
				if len(v) != searchdb.EmbeddingDims {
					dimsOK = false
					break
				}
			}
			if !dimsOK {
				slog.Warn("ingest: embedding dimensionality mismatch, continuing keyword-only",
					"doc_id", docID, "provider", p.embedder.ID(), "want_dims", searchdb.EmbeddingDims)
			} else {
				for i := range chunks {
					chunks[i].Embedding = vecs[i]
				}
			}
		}
	}

	idx, err := p.db.Ensure(docID)
	if err != nil {
		return ChunkingResult{}, p.fail(docID, fmt.Errorf("%w: open chunk index: %w", ErrChunking, err))
	}

	charCount := 0
	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = uuid.NewString()
		}
		if chunks[i].ChunkType == "" {
			chunks[i].ChunkType = "text"
		}
		charCount += len(chunks[i].Content)
		if err := searchdb.Put(idx, chunks[i].ID, chunkFields(chunks[i])); err != nil {
			return ChunkingResult{}, p.fail(docID, fmt.Errorf("%w: write chunk: %w", ErrChunking, err))
		}
	}

	doc, err := p.repo.Get(docID)
	if err != nil {
		return ChunkingResult{}, fmt.Errorf("ingest: reload metadata: %w", err)
	}
	if doc == nil {
		return ChunkingResult{}, fmt.Errorf("ingest: metadata row for %q vanished mid-pipeline", docID)
	}
	doc.ChunkCount = len(chunks)
	doc.CharCount = charCount
	doc.Status = library.StatusReady
	doc.ErrorMessage = ""
	if err := p.repo.Save(*doc); err != nil {
		return ChunkingResult{}, fmt.Errorf("ingest: save ready metadata: %w", err)
	}

	slog.Info("ingest: chunking complete", "doc_id", docID, "chunks", len(chunks), "chars", charCount)
	return ChunkingResult{DocID: docID, ChunkCount: len(chunks), CharCount: charCount}, nil
}

// fail marks docID failed, deletes the partially-written chunk index while
// retaining the raw index so the failure stays diagnosable, and
// returns the original error.
func (p *Pipeline) fail(docID string, cause error) error {
	slog.Warn("ingest: chunking failed", "doc_id", docID, "error", cause)
	_ = p.db.Delete(docID)
	if doc, err := p.repo.Get(docID); err == nil && doc != nil {
		doc.Status = library.StatusFailed
		doc.ErrorMessage = cause.Error()
		_ = p.repo.Save(*doc)
	}
	return cause
}

func (p *Pipeline) readRawPages(docID string) ([]RawPage, error) {
	idx, err := p.db.Ensure(rawIndexName(docID))
	if err != nil {
		return nil, err
	}
	hits, err := searchdb.ScanAll(idx, 0)
	if err != nil {
		return nil, err
	}
	pages := make([]RawPage, 0, len(hits))
	for _, h := range hits {
		pages = append(pages, rawPageFromFields(docID, h.ID, h.Fields))
	}
	return pages, nil
}

func rawPageFromFields(docID, id string, f map[string]any) RawPage {
	p := RawPage{ID: id, SourceDocID: docID}
	if s, ok := f["text"].(string); ok {
		p.Text = s
	}
	if s, ok := f["section_title"].(string); ok {
		p.SectionTitle = s
	}
	if s, ok := f["provider_tag"].(string); ok {
		p.ProviderTag = s
	}
	switch n := f["page_number"].(type) {
	case float64:
		p.Ordinal = int(n)
	case int:
		p.Ordinal = n
	}
	if t, ok := f["extracted_at"].(time.Time); ok {
		p.ExtractedAt = t
	}
	return p
}

func rawIndexName(docID string) string { return docID + "-raw" }

func rawPageFields(p RawPage) map[string]any {
	return map[string]any{
		"source_doc_id": p.SourceDocID,
		"page_number":   p.Ordinal,
		"text":          p.Text,
		"section_title": p.SectionTitle,
		"provider_tag":  p.ProviderTag,
		"extracted_at":  p.ExtractedAt,
	}
}

func chunkFields(c ContentChunk) map[string]any {
	f := map[string]any{
		"source_doc_id": c.SourceDocID,
		"content":       c.Content,
		"page_start":    c.PageStart,
		"page_end":      c.PageEnd,
		"section_title": c.SectionTitle,
		"chunk_type":    c.ChunkType,
	}
	if len(c.Embedding) > 0 {
		f["embedding"] = c.Embedding
	}
	for k, v := range c.Metadata {
		f["meta_"+k] = v
	}
	return f
}
