// Package jobclient drives one remote generation job from submission to a
// terminal state. A Controller owns exactly one logical poll chain at a time;
// callers observe progress through State and are notified at transition points
// through the injected Notifier.
package jobclient

import "context"

// Status enumerates the lifecycle states of a tracked job.
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transition out of the status is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Artifact is one produced result, either inline bytes or a remote URL.
type Artifact struct {
	Filename string
	Data     []byte
	URL      string
}

// Output is the result payload of a completed job.
type Output struct {
	Artifacts []Artifact
	Warnings  []string
}

// Record is a snapshot of one submitted unit of generation work. Duration
// fields are in milliseconds and may only appear on the final poll.
type Record struct {
	JobID        string
	Status       Status
	QueueDelayMs *int64
	ExecutionMs  *int64
	Output       *Output
	ErrorMessage string
}

// Request is the opaque job payload forwarded to the backend. Its shape is
// owned by the backend collaborator, not by this package.
type Request struct {
	Prompt string
	Params map[string]any
}

// SubmitAck is the backend's acknowledgement of a submission.
type SubmitAck struct {
	JobID  string
	Status Status
}

// StatusUpdate is one poll response. JobID, when set, tags which job the
// response belongs to so stale responses can be discarded.
type StatusUpdate struct {
	JobID        string
	Status       Status
	QueueDelayMs *int64
	ExecutionMs  *int64
	Output       *Output
	ErrorMessage string
}

// Backend is the remote job API consumed by the controller. The controller
// owns no retry policy toward it beyond the fixed poll interval.
type Backend interface {
	Submit(ctx context.Context, req Request) (SubmitAck, error)
	GetStatus(ctx context.Context, jobID string) (StatusUpdate, error)
}

// Kind classifies a user notification.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Handle identifies a previously shown notification so it can be updated in
// place. An empty handle is valid and means "no earlier notification".
type Handle string

// Notifier surfaces ephemeral user feedback. Implementations must not block
// for long; the controller calls them inline at transition points.
type Notifier interface {
	Show(kind Kind, title, message string) Handle
	Update(h Handle, kind Kind, title, message string)
}
