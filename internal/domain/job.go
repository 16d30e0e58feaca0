package domain

import "time"

// JobKind enumerates supported generation job categories.
type JobKind string

const (
	JobKindGenerate  JobKind = "generate"
	JobKindTransform JobKind = "transform"
)

// JobStatus enumerates persisted job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transition.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job is a persisted generation submission. The in-memory lifecycle of the
// remote job it maps to is owned by the job client; the worker copies terminal
// results back into this row.
type Job struct {
	ID           string
	UserID       string
	Kind         JobKind
	Status       JobStatus
	PromptJSON   []byte
	ResultJSON   []byte
	RemoteJobID  string
	QueueDelayMs *int64
	ExecutionMs  *int64
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
