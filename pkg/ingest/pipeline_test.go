package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablecraft/ttrpg-core/pkg/library"
	"github.com/tablecraft/ttrpg-core/pkg/searchdb"
)

type fakeExtractor struct {
	pages []RawPage
	err   error
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) ([]RawPage, error) {
	return f.pages, f.err
}

type fakeEmbedder struct {
	dims int
	err  error
}

func (f *fakeEmbedder) ID() string { return "fake" }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = make([]float32, f.dims)
	}
	return vecs, nil
}

func newTestPipeline(t *testing.T, extractor Extractor, embedder EmbeddingProvider) (*Pipeline, *library.Repository) {
	t.Helper()
	db, err := searchdb.Open(t.TempDir(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Shutdown() })

	repo := library.NewRepository(db)
	p := New(db, repo, extractor, embedder, DefaultChunkerConfig())
	return p, repo
}

func TestIngestTwoPhaseHappyPath(t *testing.T) {
	extractor := &fakeExtractor{pages: []RawPage{
		{Ordinal: 1, Text: "Dragons and treasure await the bold adventurer."},
	}}
	p, repo := newTestPipeline(t, extractor, nil)

	ext, chunked, err := p.IngestTwoPhase(context.Background(), "Dragons and treasure", "/tmp/dragons.txt", "fiction")
	require.NoError(t, err)
	assert.Equal(t, 1, ext.PageCount)
	assert.GreaterOrEqual(t, chunked.ChunkCount, 1)

	doc, err := repo.Get(ext.DocID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, library.StatusReady, doc.Status)
	assert.GreaterOrEqual(t, doc.PageCount, 1)
	assert.GreaterOrEqual(t, doc.ChunkCount, 1)
}

func TestIngestTwoPhaseSameNameTwiceGetsDisambiguatedSlug(t *testing.T) {
	extractor := &fakeExtractor{pages: []RawPage{{Ordinal: 1, Text: "Rulebook contents one."}}}
	p, repo := newTestPipeline(t, extractor, nil)

	ext1, _, err := p.IngestTwoPhase(context.Background(), "Rules", "/tmp/rules1.txt", "rulebook")
	require.NoError(t, err)
	assert.Equal(t, "rules", ext1.DocID)

	extractor.pages = []RawPage{{Ordinal: 1, Text: "Rulebook contents two, totally different."}}
	ext2, _, err := p.IngestTwoPhase(context.Background(), "Rules", "/tmp/rules2.txt", "rulebook")
	require.NoError(t, err)
	assert.Equal(t, "rules-2", ext2.DocID)

	docs, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestExtractionFailureMarksDocumentFailed(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New("corrupt pdf")}
	p, repo := newTestPipeline(t, extractor, nil)

	_, docID, err := p.Extract(context.Background(), "Broken Doc", "/tmp/broken.pdf", "rulebook")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtraction)

	doc, err := repo.Get(docID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, library.StatusFailed, doc.Status)
	assert.Contains(t, doc.ErrorMessage, "corrupt pdf")
}

func TestEmbeddingFailureDegradesToKeywordOnly(t *testing.T) {
	extractor := &fakeExtractor{pages: []RawPage{{Ordinal: 1, Text: "Fireball is a powerful evocation spell."}}}
	embedder := &fakeEmbedder{err: errors.New("embedding service unavailable")}
	p, repo := newTestPipeline(t, extractor, embedder)

	ext, chunked, err := p.IngestTwoPhase(context.Background(), "Spells", "/tmp/spells.txt", "rulebook")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, chunked.ChunkCount, 1)

	doc, err := repo.Get(ext.DocID)
	require.NoError(t, err)
	assert.Equal(t, library.StatusReady, doc.Status)
}

func TestSearchAfterIngestionFindsChunk(t *testing.T) {
	extractor := &fakeExtractor{pages: []RawPage{{Ordinal: 1, Text: "Dragons guard ancient treasure in the mountain."}}}
	p, _ := newTestPipeline(t, extractor, nil)

	ext, _, err := p.IngestTwoPhase(context.Background(), "Dragons and treasure", "/tmp/d.txt", "fiction")
	require.NoError(t, err)

	idx, err := p.db.Ensure(ext.DocID)
	require.NoError(t, err)
	hits, err := searchdb.KeywordSearch(idx, "dragons treasure", 10, "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}
