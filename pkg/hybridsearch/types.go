// Package hybridsearch fuses keyword (BM25) and semantic (vector) search
// over a searchdb index via Reciprocal Rank Fusion, exposing the query
// surface upper layers call.
package hybridsearch

import "context"

// SearchDocument is the normalized, field-projected view of an index hit.
type SearchDocument struct {
	ID     string
	Fields map[string]any
}

// SearchResult is a single keyword- or semantic-only result.
type SearchResult struct {
	DocumentID string
	Score      float64
	Document   SearchDocument
}

// HybridResult is a fused result, additionally reporting each leg's
// contribution for observability.
type HybridResult struct {
	SearchResult
	RRFScore     float64
	KeywordRank  int // 0 if absent from the keyword result set
	SemanticRank int // 0 if absent from the semantic result set
}

// FusionStrategy selects how keyword and semantic result sets combine.
type FusionStrategy int

const (
	// Rrf fuses both legs via Reciprocal Rank Fusion (the default).
	Rrf FusionStrategy = iota
	// KeywordOnly forwards the query to the BM25 ranker only.
	KeywordOnly
	// SemanticOnly embeds the query and runs vector search only.
	SemanticOnly
	// Weighted linearly combines each leg's normalized scores.
	Weighted
)

// EmbeddingProvider is the external collaborator contract for embeddings.
// No endpoint is required for keyword search to function.
type EmbeddingProvider interface {
	ID() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Filter narrows a keyword search to documents whose field equals value.
type Filter struct {
	Field string
	Value string
}
