package ttsqueue

import "errors"

// ErrQueueFull is returned by Submit when max_queue_size is reached.
var ErrQueueFull = errors.New("ttsqueue: queue full")

// ErrInvalidState is returned for state-machine violations: cancel after
// completion, mark-completed on a non-processing job, and so on.
var ErrInvalidState = errors.New("ttsqueue: invalid state transition")

// ErrNotFound is returned by get_*/cancel/mark_* operations on unknown
// job ids.
var ErrNotFound = errors.New("ttsqueue: job not found")
