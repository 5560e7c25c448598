package ingest

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// ChunkerConfig controls the sliding-window chunking policy.
type ChunkerConfig struct {
	TargetSize int // default 1200 bytes
	MinSize    int // default 100 bytes, except the last chunk of a source
	Overlap    int // default 150 bytes
}

// DefaultChunkerConfig returns the standard chunking parameters.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{TargetSize: 1200, MinSize: 100, Overlap: 150}
}

// Chunker splits a document's raw pages into content chunks using a
// byte-based sliding window with an ordered four-tier preferred split
// point (double newline, newline, sentence, word) and page-range
// tracking.
type Chunker struct {
	cfg ChunkerConfig
}

// NewChunker constructs a Chunker, defaulting zero-valued fields.
func NewChunker(cfg ChunkerConfig) *Chunker {
	if cfg.TargetSize <= 0 {
		cfg.TargetSize = 1200
	}
	if cfg.MinSize <= 0 {
		cfg.MinSize = 100
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.TargetSize {
		cfg.Overlap = 150
	}
	return &Chunker{cfg: cfg}
}

// pageSpan records which source page a byte offset in the concatenated
// document text belongs to.
type pageSpan struct {
	start   int // inclusive byte offset into the concatenated text
	end     int // exclusive
	ordinal int
	title   string
}

// ChunkPages concatenates page text in ordinal order and splits the result
// into ContentChunks. A document shorter than MinSize still produces
// exactly one chunk.
func (c *Chunker) ChunkPages(sourceDocID string, pages []RawPage) []ContentChunk {
	sorted := make([]RawPage, len(pages))
	copy(sorted, pages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Ordinal < sorted[j].Ordinal })

	var sb strings.Builder
	spans := make([]pageSpan, 0, len(sorted))
	for _, p := range sorted {
		start := sb.Len()
		sb.WriteString(p.Text)
		spans = append(spans, pageSpan{start: start, end: sb.Len(), ordinal: p.Ordinal, title: p.SectionTitle})
	}
	text := sb.String()

	if len(text) == 0 {
		return nil
	}

	if len(text) <= c.cfg.MinSize {
		pStart, pEnd, title := pageRangeFor(spans, 0, len(text))
		return []ContentChunk{{
			SourceDocID:  sourceDocID,
			Content:      strings.TrimSpace(text),
			PageStart:    pStart,
			PageEnd:      pEnd,
			SectionTitle: title,
			ChunkType:    "text",
			Metadata:     map[string]string{},
		}}
	}

	var chunks []ContentChunk
	total := len(text)
	start := 0

	for start < total {
		end := min(start+c.cfg.TargetSize, total)

		if end < total {
			if split := c.findSplitPoint(text, start, end); split > start {
				end = split
			}
		}

		content := strings.TrimSpace(text[start:end])
		if content != "" {
			pStart, pEnd, title := pageRangeFor(spans, start, end)
			chunks = append(chunks, ContentChunk{
				SourceDocID:  sourceDocID,
				Content:      content,
				PageStart:    pStart,
				PageEnd:      pEnd,
				SectionTitle: title,
				ChunkType:    "text",
				Metadata:     map[string]string{},
			})
		}

		if end >= total {
			break
		}

		nextStart := end - c.cfg.Overlap
		if nextStart <= start {
			nextStart = start + 1 // forward-progress guarantee
		}
		for nextStart < end && !utf8.RuneStart(text[nextStart]) {
			nextStart++
		}
		start = nextStart
	}

	return chunks
}

// findSplitPoint searches backward from the target window end for the
// best available split point, in preference order: double newline, single
// newline, sentence boundary, word boundary. It never returns a position
// that would split a multi-byte UTF-8 rune: the boundary candidates are
// ASCII characters, and the fallback position is moved back to the start
// of a rune.
func (c *Chunker) findSplitPoint(text string, start, target int) int {
	window := text[start:target]
	maxBack := len(window) / 5
	if maxBack < 50 {
		maxBack = 50
	}
	if maxBack > 500 {
		maxBack = 500
	}
	lo := len(window) - maxBack
	if lo < 0 {
		lo = 0
	}
	search := window[lo:]

	if idx := strings.LastIndex(search, "\n\n"); idx >= 0 {
		return start + lo + idx + 2
	}
	if idx := strings.LastIndex(search, "\n"); idx >= 0 {
		return start + lo + idx + 1
	}
	if idx := lastSentenceBoundary(search); idx >= 0 {
		return start + lo + idx
	}
	if idx := strings.LastIndexAny(search, " \t"); idx >= 0 {
		return start + lo + idx + 1
	}
	for target > start && !utf8.RuneStart(text[target]) {
		target--
	}
	return target
}

// lastSentenceBoundary finds the last occurrence of a sentence terminator
// (". ", "! ", "? ") followed by an uppercase letter, returning the offset
// just past the terminator's whitespace.
func lastSentenceBoundary(s string) int {
	best := -1
	for _, term := range []string{". ", "! ", "? "} {
		idx := strings.LastIndex(s, term)
		for idx >= 0 {
			after := idx + len(term)
			if after < len(s) && s[after] >= 'A' && s[after] <= 'Z' {
				if after > best {
					best = after
				}
				break
			}
			rest := s[:idx]
			nextIdx := strings.LastIndex(rest, term)
			if nextIdx == idx {
				break
			}
			idx = nextIdx
		}
	}
	return best
}

// pageRangeFor returns the inclusive page-ordinal range [start,end)
// (byte offsets into the concatenated text) touches, plus the section
// title of the first touched page.
func pageRangeFor(spans []pageSpan, start, end int) (int, int, string) {
	pStart, pEnd := 0, 0
	title := ""
	first := true
	for _, sp := range spans {
		if sp.end <= start || sp.start >= end {
			continue
		}
		if first {
			pStart = sp.ordinal
			title = sp.title
			first = false
		}
		pEnd = sp.ordinal
	}
	if first && len(spans) > 0 {
		pStart = spans[len(spans)-1].ordinal
		pEnd = pStart
	}
	return pStart, pEnd, title
}
