package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkPagesShortDocumentProducesOneChunk(t *testing.T) {
	c := NewChunker(DefaultChunkerConfig())
	pages := []RawPage{{Ordinal: 1, Text: "Dragons and treasure"}}

	chunks := c.ChunkPages("doc-1", pages)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Dragons and treasure", chunks[0].Content)
	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 1, chunks[0].PageEnd)
}

func TestChunkPagesEmptyDocumentProducesNoChunks(t *testing.T) {
	c := NewChunker(DefaultChunkerConfig())
	chunks := c.ChunkPages("doc-1", []RawPage{{Ordinal: 1, Text: ""}})
	assert.Empty(t, chunks)
}

func TestChunkPagesRespectsTargetSizeAndOverlap(t *testing.T) {
	cfg := ChunkerConfig{TargetSize: 200, MinSize: 50, Overlap: 30}
	c := NewChunker(cfg)

	var sb strings.Builder
	sentence := "The wizard cast a powerful spell upon the ancient dragon. "
	for i := 0; i < 30; i++ {
		sb.WriteString(sentence)
	}
	pages := []RawPage{{Ordinal: 1, Text: sb.String()}}

	chunks := c.ChunkPages("doc-1", pages)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks[:len(chunks)-1] {
		assert.GreaterOrEqual(t, len(ch.Content), cfg.MinSize)
	}
	for _, ch := range chunks {
		assert.NotEmpty(t, ch.Content)
	}
}

func TestChunkPagesTracksPageRangeAcrossBoundaries(t *testing.T) {
	cfg := ChunkerConfig{TargetSize: 5000, MinSize: 10, Overlap: 0}
	c := NewChunker(cfg)

	pages := []RawPage{
		{Ordinal: 1, Text: strings.Repeat("a", 100) + " "},
		{Ordinal: 2, Text: strings.Repeat("b", 100) + " "},
		{Ordinal: 3, Text: strings.Repeat("c", 100)},
	}

	chunks := c.ChunkPages("doc-1", pages)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 3, chunks[0].PageEnd)
}

func TestChunkPagesNeverSplitsMidUTF8Rune(t *testing.T) {
	cfg := ChunkerConfig{TargetSize: 20, MinSize: 5, Overlap: 2}
	c := NewChunker(cfg)
	text := strings.Repeat("dragön ", 20)
	chunks := c.ChunkPages("doc-1", []RawPage{{Ordinal: 1, Text: text}})
	for _, ch := range chunks {
		assert.True(t, strings.ToValidUTF8(ch.Content, "") == ch.Content)
	}
}

func TestChunkPagesOrdersPagesByOrdinal(t *testing.T) {
	cfg := DefaultChunkerConfig()
	c := NewChunker(cfg)
	pages := []RawPage{
		{Ordinal: 2, Text: "second page content here."},
		{Ordinal: 1, Text: "first page content here."},
	}
	chunks := c.ChunkPages("doc-1", pages)
	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasPrefix(chunks[0].Content, "first"))
}
