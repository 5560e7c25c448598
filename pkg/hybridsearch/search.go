package hybridsearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tablecraft/ttrpg-core/pkg/searchdb"
)

// ErrKeywordSearchFailed wraps a keyword-leg failure, which is always
// surfaced.
var ErrKeywordSearchFailed = errors.New("hybridsearch: keyword search failed")

// Engine runs keyword-only, semantic-only, and hybrid-RRF searches over
// a searchdb.Handle. Hybrid mode dispatches both legs concurrently via
// errgroup and fuses the ranked lists.
type Engine struct {
	db        *searchdb.Handle
	embedders map[string]EmbeddingProvider
}

// New constructs an Engine. Embedding providers are registered by id and
// selected per call (hybrid_search's embedding_provider_id? parameter).
func New(db *searchdb.Handle, embedders ...EmbeddingProvider) *Engine {
	m := make(map[string]EmbeddingProvider, len(embedders))
	for _, e := range embedders {
		m[e.ID()] = e
	}
	return &Engine{db: db, embedders: m}
}

// Search runs a keyword-only query.
func (e *Engine) Search(index, query string, limit int, filter *Filter) ([]SearchResult, error) {
	idx, err := e.db.Ensure(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeywordSearchFailed, err)
	}

	field, value := "", ""
	if filter != nil {
		field, value = filter.Field, filter.Value
	}

	hits, err := searchdb.KeywordSearch(idx, query, limit, field, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeywordSearchFailed, err)
	}
	return toResults(hits), nil
}

// HybridSearch runs a keyword+semantic search per semanticRatio and fuses
// the legs via RRF. semanticRatio in [0,1]:
// 0 behaves as keyword-only, 1 as semantic-only (both legs still run when
// in between, since RRF needs both ranked lists).
func (e *Engine) HybridSearch(ctx context.Context, index, query string, limit int, semanticRatio float64, embeddingProviderID string) ([]HybridResult, error) {
	switch {
	case semanticRatio <= 0:
		kw, err := e.Search(index, query, limit, nil)
		if err != nil {
			return nil, err
		}
		return toHybrid(kw), nil
	case semanticRatio >= 1:
		sem, err := e.semanticSearch(ctx, index, query, limit, embeddingProviderID)
		if err != nil {
			return nil, err
		}
		return toHybrid(sem), nil
	}
	// Map the ratio onto per-leg fusion weights so 0.5 keeps the
	// default 1.0/1.0 weighting.
	kwWeight := 2 * (1 - semanticRatio)
	semWeight := 2 * semanticRatio
	return e.fuse(ctx, index, query, limit, embeddingProviderID, Rrf, kwWeight, semWeight)
}

// HybridSearchWithStrategy runs a search with an explicitly selected
// fusion strategy. KeywordOnly and SemanticOnly skip the other leg
// entirely; Rrf and Weighted dispatch both legs and fuse with the given
// per-leg weights.
func (e *Engine) HybridSearchWithStrategy(ctx context.Context, index, query string, limit int, strategy FusionStrategy, kwWeight, semWeight float64, embeddingProviderID string) ([]HybridResult, error) {
	switch strategy {
	case KeywordOnly:
		kw, err := e.Search(index, query, limit, nil)
		if err != nil {
			return nil, err
		}
		return toHybrid(kw), nil
	case SemanticOnly:
		sem, err := e.semanticSearch(ctx, index, query, limit, embeddingProviderID)
		if err != nil {
			return nil, err
		}
		return toHybrid(sem), nil
	}
	return e.fuse(ctx, index, query, limit, embeddingProviderID, strategy, kwWeight, semWeight)
}

// fuse dispatches the keyword and semantic legs concurrently and combines
// them per strategy. Semantic-leg failure (no provider, timeout) degrades
// silently to keyword-only; keyword-leg failure is surfaced.
func (e *Engine) fuse(ctx context.Context, index, query string, limit int, embeddingProviderID string, strategy FusionStrategy, kwWeight, semWeight float64) ([]HybridResult, error) {
	var kwResults, semResults []SearchResult
	var semErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := e.Search(index, query, limit, nil)
		if err != nil {
			return err
		}
		kwResults = res
		return nil
	})
	g.Go(func() error {
		res, err := e.semanticSearch(gctx, index, query, limit, embeddingProviderID)
		if err != nil {
			semErr = err
			return nil // degrade silently, never fail the group for this leg
		}
		semResults = res
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeywordSearchFailed, err)
	}
	if semErr != nil {
		slog.Warn("hybridsearch: semantic leg degraded to keyword-only", "index", index, "error", semErr)
	}

	sets := map[string]resultSet{
		"keyword": {name: "keyword", weight: kwWeight, results: kwResults},
	}
	if semErr == nil {
		sets["semantic"] = resultSet{name: "semantic", weight: semWeight, results: semResults}
	}

	var fused []HybridResult
	switch strategy {
	case Weighted:
		// Scale each leg's scores into [0, 1] by its top score.
		for name, set := range sets {
			top := 0.0
			for _, r := range set.results {
				top = max(top, r.Score)
			}
			if top > 0 {
				norm := make([]SearchResult, len(set.results))
				for i, r := range set.results {
					r.Score /= top
					norm[i] = r
				}
				set.results = norm
				sets[name] = set
			}
		}
		fused = WeightedFusion(kwWeight, semWeight, sets)
	default:
		fused = ReciprocalRankFusion(DefaultRRFK, sets)
	}
	if len(fused) > limit && limit > 0 {
		fused = fused[:limit]
	}
	return fused, nil
}

// semanticSearch embeds query with the named provider (or, if
// embeddingProviderID is empty, one of the engine's registered providers;
// which one is not defined when several are registered) and runs a vector
// search.
func (e *Engine) semanticSearch(ctx context.Context, index, query string, limit int, embeddingProviderID string) ([]SearchResult, error) {
	provider, err := e.resolveEmbedder(embeddingProviderID)
	if err != nil {
		return nil, err
	}

	vecs, err := provider.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("hybridsearch: embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, errors.New("hybridsearch: provider returned no vector for query")
	}

	idx, err := e.db.Ensure(index)
	if err != nil {
		return nil, err
	}
	hits, err := searchdb.VectorSearch(idx, vecs[0], limit)
	if err != nil {
		return nil, fmt.Errorf("hybridsearch: vector search: %w", err)
	}
	return toResults(hits), nil
}

func (e *Engine) resolveEmbedder(id string) (EmbeddingProvider, error) {
	if id != "" {
		if p, ok := e.embedders[id]; ok {
			return p, nil
		}
		return nil, fmt.Errorf("hybridsearch: no embedding provider %q registered", id)
	}
	for _, p := range e.embedders {
		return p, nil
	}
	return nil, errors.New("hybridsearch: no embedding provider registered")
}

func toResults(hits []searchdb.Hit) []SearchResult {
	out := make([]SearchResult, len(hits))
	for i, h := range hits {
		out[i] = SearchResult{
			DocumentID: h.ID,
			Score:      h.Score,
			Document:   SearchDocument{ID: h.ID, Fields: h.Fields},
		}
	}
	return out
}

func toHybrid(results []SearchResult) []HybridResult {
	out := make([]HybridResult, len(results))
	for i, r := range results {
		out[i] = HybridResult{SearchResult: r, RRFScore: r.Score}
	}
	return out
}
