package ttsqueue

import (
	"container/heap"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tablecraft/ttrpg-core/pkg/concurrent"
)

// DefaultMaxHistory bounds the retained terminal-job history.
const DefaultMaxHistory = 1000

// Stats is the queue's aggregate snapshot.
type Stats struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Canceled   int
}

// Queue is the priority-ordered multiset of pending jobs plus an index of
// all known jobs (active and historical) and aggregate statistics. All
// operations are safe to call concurrently, guarded by a single mutex
// since nearly every operation mutates the heap.
type Queue struct {
	mu      sync.Mutex
	heap    jobHeap
	index   *concurrent.Map[string, *Job]
	history []string // terminal job ids, most-recent-first
	paused  bool

	maxQueueSize int // 0 = unbounded
	maxHistory   int
	nextSeq      uint64
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxQueueSize bounds the number of pending jobs (default: unbounded).
func WithMaxQueueSize(n int) Option {
	return func(q *Queue) { q.maxQueueSize = n }
}

// WithMaxHistory overrides DefaultMaxHistory.
func WithMaxHistory(n int) Option {
	return func(q *Queue) { q.maxHistory = n }
}

// New constructs an empty Queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		index:      concurrent.NewMap[string, *Job](),
		maxHistory: DefaultMaxHistory,
	}
	heap.Init(&q.heap)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// SubmitRequest describes a job to enqueue.
type SubmitRequest struct {
	Text           string
	VoiceProfileID string
	Provider       Provider
	VoiceID        string
	VoiceSettings  *VoiceSettings
	OutputFormat   OutputFormat
	Priority       Priority
	Tags           []string
	CreatedBy      string
}

// Submit enqueues a new job in the pending state. Returns ErrQueueFull
// when max_queue_size is reached.
func (q *Queue) Submit(req SubmitRequest) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxQueueSize > 0 && q.heap.Len() >= q.maxQueueSize {
		return nil, ErrQueueFull
	}

	tags := make(map[string]struct{}, len(req.Tags))
	for _, t := range req.Tags {
		tags[t] = struct{}{}
	}

	job := &Job{
		ID:             uuid.NewString(),
		Text:           req.Text,
		VoiceProfileID: req.VoiceProfileID,
		Provider:       req.Provider,
		VoiceID:        req.VoiceID,
		VoiceSettings:  req.VoiceSettings,
		OutputFormat:   req.OutputFormat,
		Priority:       req.Priority,
		Status:         StatusPending,
		SubmittedAt:    time.Now(),
		Tags:           tags,
		CreatedBy:      req.CreatedBy,
		submitSeq:      q.nextSeq,
	}
	q.nextSeq++

	heap.Push(&q.heap, job)
	q.index.Store(job.ID, job)

	slog.Debug("ttsqueue: job submitted", "job_id", job.ID, "priority", job.Priority)
	return job, nil
}

// PregenSession submits a batch of jobs for a session, each tagged
// "session:<id>" plus the caller's extra tags.
func (q *Queue) PregenSession(sessionID string, items []SubmitRequest, defaultPriority Priority) ([]string, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		item.Priority = defaultPriority
		item.Tags = append(append([]string{}, item.Tags...), "session:"+sessionID)
		job, err := q.Submit(item)
		if err != nil {
			return ids, err
		}
		ids = append(ids, job.ID)
	}
	return ids, nil
}

// NextJob dequeues the highest-priority, earliest-submitted pending job
// and transitions it to processing. Returns (nil, nil) if the queue is
// empty or paused; it never blocks.
func (q *Queue) NextJob() (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.paused || q.heap.Len() == 0 {
		return nil, nil
	}

	job := heap.Pop(&q.heap).(*Job)
	job.Status = StatusProcessing
	job.StartedAt = time.Now()
	slog.Debug("ttsqueue: job dequeued", "job_id", job.ID)
	return job, nil
}

// Pause stops NextJob from returning work until Resume is called.
func (q *Queue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = true
}

// Resume re-enables dequeuing.
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = false
}

// UpdateProgress is allowed only in the processing state.
func (q *Queue) UpdateProgress(jobID string, fraction float64, stage string) error {
	job, ok := q.index.Load(jobID)
	if !ok {
		return ErrNotFound
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if job.Status != StatusProcessing {
		return fmt.Errorf("%w: job %s is %s, not processing", ErrInvalidState, jobID, job.Status)
	}
	job.Progress = Progress{Fraction: fraction, Stage: stage}
	return nil
}

// RecordRetry increments a processing job's retry counter, returning the
// new count. The worker calls this once per retried provider attempt so
// the count survives on the job for history and session listings.
func (q *Queue) RecordRetry(jobID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.index.Load(jobID)
	if !ok {
		return 0, ErrNotFound
	}
	if job.Status != StatusProcessing {
		return 0, fmt.Errorf("%w: job %s is %s, not processing", ErrInvalidState, jobID, job.Status)
	}
	job.RetryCount++
	return job.RetryCount, nil
}

// MarkCompleted transitions a processing job to completed, recording
// resultPath.
func (q *Queue) MarkCompleted(jobID, resultPath string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.index.Load(jobID)
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusProcessing {
		return fmt.Errorf("%w: job %s is %s, not processing", ErrInvalidState, jobID, job.Status)
	}

	stage := job.Progress.Stage
	if stage == "" {
		stage = "done"
	}
	job.Status = StatusCompleted
	job.ResultPath = resultPath
	job.Progress = Progress{Fraction: 1.0, Stage: stage}
	job.TerminalAt = time.Now()
	q.pushHistoryLocked(job.ID)
	slog.Info("ttsqueue: job completed", "job_id", jobID)
	return nil
}

// MarkFailed transitions a processing job to failed with msg.
func (q *Queue) MarkFailed(jobID, msg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.index.Load(jobID)
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusProcessing {
		return fmt.Errorf("%w: job %s is %s, not processing", ErrInvalidState, jobID, job.Status)
	}

	job.Status = StatusFailed
	job.FailureMessage = msg
	job.TerminalAt = time.Now()
	q.pushHistoryLocked(job.ID)
	slog.Warn("ttsqueue: job failed", "job_id", jobID, "error", msg)
	return nil
}

// Cancel transitions any non-terminal job to canceled. Cancel on an
// already-terminal job returns ErrInvalidState.
func (q *Queue) Cancel(jobID string) error {
	job, ok := q.index.Load(jobID)
	if !ok {
		return ErrNotFound
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if job.Status.Terminal() {
		return fmt.Errorf("%w: job %s is already %s", ErrInvalidState, jobID, job.Status)
	}

	if job.Status == StatusPending {
		q.removeFromHeapLocked(jobID)
	}

	job.Status = StatusCanceled
	job.TerminalAt = time.Now()
	q.pushHistoryLocked(job.ID)
	slog.Debug("ttsqueue: job canceled", "job_id", jobID)
	return nil
}

func (q *Queue) removeFromHeapLocked(jobID string) {
	for i, j := range q.heap {
		if j.ID == jobID {
			heap.Remove(&q.heap, i)
			return
		}
	}
}

func (q *Queue) pushHistoryLocked(jobID string) {
	q.history = append([]string{jobID}, q.history...)
	if len(q.history) > q.maxHistory {
		q.history = q.history[:q.maxHistory]
	}
}

// GetJob returns a job by id, or ErrNotFound.
func (q *Queue) GetJob(jobID string) (*Job, error) {
	job, ok := q.index.Load(jobID)
	if !ok {
		return nil, ErrNotFound
	}
	return job, nil
}

// ListHistory returns terminal jobs ordered by terminal time descending.
func (q *Queue) ListHistory() []*Job {
	q.mu.Lock()
	ids := append([]string(nil), q.history...)
	q.mu.Unlock()

	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		if job, ok := q.index.Load(id); ok {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// ClearHistory empties the retained history list (jobs remain in the
// index; only the ordered history view is cleared).
func (q *Queue) ClearHistory() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.history = nil
}

// ListBySession returns every job (active and historical) tagged
// "session:<sessionID>".
func (q *Queue) ListBySession(sessionID string) []*Job {
	tag := "session:" + sessionID
	var out []*Job
	q.index.Range(func(_ string, job *Job) bool {
		if job.HasTag(tag) {
			out = append(out, job)
		}
		return true
	})
	return out
}

// Stats reports the current aggregate counts across all known jobs.
func (q *Queue) Stats() Stats {
	var s Stats
	q.index.Range(func(_ string, job *Job) bool {
		switch job.Status {
		case StatusPending:
			s.Pending++
		case StatusProcessing:
			s.Processing++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		case StatusCanceled:
			s.Canceled++
		}
		return true
	})
	return s
}
