// Package embedding wraps an external, provider-agnostic embedding
// endpoint with batching and bounded concurrency. The contract the
// ingestion and query pipelines need is narrow: embed(text[]) -> f32[][].
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Provider is the external collaborator contract for embeddings.
// Implementations are opaque to this package; no endpoint is required
// for keyword search to function.
type Provider interface {
	ID() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder batches and parallelizes calls to a Provider.
type Embedder struct {
	provider       Provider
	batchSize      int
	maxConcurrency int
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithBatchSize sets the number of texts sent per provider call (default 50).
func WithBatchSize(n int) Option {
	return func(e *Embedder) { e.batchSize = n }
}

// WithMaxConcurrency sets the maximum number of in-flight batch calls (default 5).
func WithMaxConcurrency(n int) Option {
	return func(e *Embedder) { e.maxConcurrency = n }
}

// New wraps provider with the given options.
func New(provider Provider, opts ...Option) *Embedder {
	e := &Embedder{provider: provider, batchSize: 50, maxConcurrency: 5}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed embeds a single text. It is a thin convenience over EmbedBatch.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in parallel batches of e.batchSize, bounded to
// e.maxConcurrency concurrent provider calls. Best-effort callers (e.g. the
// ingestion pipeline) treat a non-nil error as "proceed without vectors";
// this function itself always reports errors rather than silently
// degrading, leaving that policy decision to the caller.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	total := len(texts)
	results := make([][]float32, total)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)

	for start := 0; start < total; start += e.batchSize {
		end := min(start+e.batchSize, total)
		g.Go(func() error {
			batch := texts[start:end]
			vecs, err := e.provider.Embed(ctx, batch)
			if err != nil {
				return fmt.Errorf("embedding: provider %s: %w", e.provider.ID(), err)
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("embedding: provider %s returned %d vectors for %d inputs", e.provider.ID(), len(vecs), len(batch))
			}

			mu.Lock()
			copy(results[start:end], vecs)
			mu.Unlock()

			slog.Debug("embedding: batch complete", "provider", e.provider.ID(), "start", start, "count", len(batch))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
