// Package ttsqueue implements the priority-based, cancellable TTS job
// scheduler: submission, dequeue ordering, the job state
// machine, session pre-generation batching, and bounded history.
package ttsqueue

import "time"

// Priority orders dequeue: immediate > high > normal > low > batch.
type Priority int

const (
	PriorityBatch Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityImmediate
)

// Provider enumerates the well-known TTS provider ids this system
// ships wiring for. Providers advertise a stable id string.
type Provider string

const (
	ProviderElevenLabs Provider = "elevenlabs"
	ProviderOpenAI     Provider = "openai"
	ProviderPiper      Provider = "piper"
)

// OutputFormat is the requested synthesized audio container.
type OutputFormat string

const (
	FormatMP3 OutputFormat = "mp3"
	FormatWAV OutputFormat = "wav"
	FormatOGG OutputFormat = "ogg"
	FormatPCM OutputFormat = "pcm"
)

// VoiceSettings carries provider-agnostic voice tuning knobs.
type VoiceSettings struct {
	Stability    float64
	Similarity   float64
	Style        float64
	SpeakerBoost bool
}

// Status is the job's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether status is one of the three terminal states.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Progress reports synthesis progress.
type Progress struct {
	Fraction float64
	Stage    string
}

// Job is a unit of TTS work. RetryCount and CreatedBy feed the
// worker's retry classification and auditing.
type Job struct {
	ID             string
	Text           string
	VoiceProfileID string
	Provider       Provider
	VoiceID        string
	VoiceSettings  *VoiceSettings
	OutputFormat   OutputFormat
	Priority       Priority
	Status         Status
	Progress       Progress
	FailureMessage string
	SubmittedAt    time.Time
	StartedAt      time.Time
	TerminalAt     time.Time
	ResultPath     string
	Tags           map[string]struct{}
	RetryCount     int
	CreatedBy      string

	submitSeq uint64 // internal: breaks submission-time ties deterministically
}

// HasTag reports whether tag is present on the job.
func (j *Job) HasTag(tag string) bool {
	_, ok := j.Tags[tag]
	return ok
}
