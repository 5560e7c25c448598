// Package ttsworker drains pkg/ttsqueue, consults pkg/audiocache, and
// dispatches synthesis to a provider. A single struct wraps the
// dependencies it needs, runs one job at a time, and logs each stage
// transition with slog rather than returning progress through the
// call stack.
package ttsworker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tablecraft/ttrpg-core/pkg/audiocache"
	"github.com/tablecraft/ttrpg-core/pkg/ttsqueue"
)

// DefaultPollInterval is how long the worker sleeps after finding the
// queue empty before asking again.
const DefaultPollInterval = 200 * time.Millisecond

// Provider synthesizes audio for a job. Providers are uniform: given a
// request they return raw audio bytes or a typed error.
type Provider interface {
	ID() string
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
}

// SynthesisRequest is the provider-facing view of a queued job.
type SynthesisRequest struct {
	Text          string
	VoiceID       string
	VoiceSettings *audiocache.VoiceSettings
	OutputFormat  ttsqueue.OutputFormat
}

// RetryableError wraps a provider error the worker should retry instead
// of failing the job outright: network refusals and rate-limit
// responses carrying a retry-after hint.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Worker is the single background goroutine draining the queue.
type Worker struct {
	queue        *ttsqueue.Queue
	cache        *audiocache.Cache
	providers    map[string]Provider
	pollInterval time.Duration
	maxRetries   int
}

// Option configures a Worker.
type Option func(*Worker)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) { w.pollInterval = d }
}

// WithMaxRetries bounds how many times a retryable provider error is
// retried before the job is marked failed (default 2).
func WithMaxRetries(n int) Option {
	return func(w *Worker) { w.maxRetries = n }
}

// New constructs a Worker over queue and cache, dispatching to providers
// keyed by their declared id.
func New(queue *ttsqueue.Queue, cache *audiocache.Cache, providers []Provider, opts ...Option) *Worker {
	byID := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byID[p.ID()] = p
	}
	w := &Worker{
		queue:        queue,
		cache:        cache,
		providers:    byID,
		pollInterval: DefaultPollInterval,
		maxRetries:   2,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the queue until ctx is canceled, sleeping pollInterval
// whenever the queue has no work.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := w.tick(ctx)
		if err != nil {
			slog.Error("ttsworker: tick failed", "error", err)
		}
		if !processed {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// tick processes at most one job. It returns processed=false when the
// queue was empty or paused, so Run knows to sleep.
func (w *Worker) tick(ctx context.Context) (processed bool, err error) {
	job, err := w.queue.NextJob()
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	w.process(ctx, job)
	return true, nil
}

func (w *Worker) process(ctx context.Context, job *ttsqueue.Job) {
	key := audiocache.DeriveKey(job.Text, string(job.Provider), job.VoiceID, toCacheSettings(job.VoiceSettings), string(job.OutputFormat))

	if data, err := w.cache.Get(ctx, key); err == nil {
		_ = w.queue.UpdateProgress(job.ID, 1.0, "cached")
		if werr := w.persistHit(ctx, job, data); werr != nil {
			slog.Error("ttsworker: failed to persist cache hit", "job_id", job.ID, "error", werr)
			_ = w.queue.MarkFailed(job.ID, werr.Error())
			return
		}
		_ = w.queue.MarkCompleted(job.ID, w.cache.Path(key))
		slog.Debug("ttsworker: served from cache", "job_id", job.ID, "key", key)
		return
	} else if !errors.Is(err, audiocache.ErrNotFound) {
		slog.Warn("ttsworker: cache lookup error, treating as miss", "job_id", job.ID, "error", err)
	}

	_ = w.queue.UpdateProgress(job.ID, 0.0, "synthesizing")

	if w.canceled(job.ID) {
		slog.Debug("ttsworker: job canceled before dispatch", "job_id", job.ID)
		return
	}

	provider, ok := w.providers[string(job.Provider)]
	if !ok {
		_ = w.queue.MarkFailed(job.ID, fmt.Sprintf("no provider registered for %q", job.Provider))
		return
	}

	audio, err := w.synthesizeWithRetry(ctx, provider, job)
	if err != nil {
		_ = w.queue.MarkFailed(job.ID, fmt.Sprintf("%s: %s", provider.ID(), err.Error()))
		return
	}

	if w.canceled(job.ID) {
		slog.Debug("ttsworker: job canceled after synthesis, discarding result", "job_id", job.ID)
		return
	}

	if err := w.cache.Put(ctx, key, audio, string(job.OutputFormat), []string{"voice:" + job.VoiceID}); err != nil {
		slog.Error("ttsworker: cache write failed", "job_id", job.ID, "error", err)
		_ = w.queue.MarkFailed(job.ID, err.Error())
		return
	}

	_ = w.queue.UpdateProgress(job.ID, 1.0, "done")
	_ = w.queue.MarkCompleted(job.ID, w.cache.Path(key))
}

// persistHit only rejects an empty cached blob; it does no bookkeeping of
// its own, since Get already bumped recency and access count as a side
// effect of the hit.
func (w *Worker) persistHit(_ context.Context, _ *ttsqueue.Job, data []byte) error {
	if len(data) == 0 {
		return errors.New("ttsworker: cached entry was empty")
	}
	return nil
}

func (w *Worker) synthesizeWithRetry(ctx context.Context, provider Provider, job *ttsqueue.Job) ([]byte, error) {
	req := SynthesisRequest{
		Text:          job.Text,
		VoiceID:       job.VoiceID,
		VoiceSettings: toCacheSettings(job.VoiceSettings),
		OutputFormat:  job.OutputFormat,
	}

	retries := 0
	for {
		audio, err := provider.Synthesize(ctx, req)
		if err == nil {
			return audio, nil
		}

		var retryable *RetryableError
		if !errors.As(err, &retryable) {
			return nil, err
		}

		if retries >= w.maxRetries {
			return nil, err
		}
		n, rerr := w.queue.RecordRetry(job.ID)
		if rerr != nil {
			// Job left the processing state (e.g. canceled) mid-retry.
			return nil, err
		}
		retries = n
		slog.Debug("ttsworker: retrying synthesis", "job_id", job.ID, "retry", retries, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryable.RetryAfter):
		}
	}
}

func (w *Worker) canceled(jobID string) bool {
	job, err := w.queue.GetJob(jobID)
	if err != nil {
		return false
	}
	return job.Status == ttsqueue.StatusCanceled
}

func toCacheSettings(s *ttsqueue.VoiceSettings) *audiocache.VoiceSettings {
	if s == nil {
		return nil
	}
	return &audiocache.VoiceSettings{
		Stability:    s.Stability,
		Similarity:   s.Similarity,
		Style:        s.Style,
		SpeakerBoost: s.SpeakerBoost,
	}
}
