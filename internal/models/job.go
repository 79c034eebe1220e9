package models

import "time"

// JobStatus represents the state of a generation job
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsActive reports whether the job still occupies its resource.
func (s JobStatus) IsActive() bool {
	return s == JobQueued || s == JobProcessing
}

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransitionTo enforces queued -> processing -> {completed|failed}.
// processing -> processing is allowed for progress updates.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobQueued:
		return next == JobProcessing || next == JobCompleted || next == JobFailed
	case JobProcessing:
		return next == JobProcessing || next == JobCompleted || next == JobFailed
	default:
		return false
	}
}

// Failure codes stored with failed jobs
const (
	FailureGeneration = "generation_failure"
	FailureInternal   = "internal"
)

// Job represents a generation job in the system
type Job struct {
	ID         string    `json:"jobId"`
	ResourceID string    `json:"resourceId"`
	Status     JobStatus `json:"status"`
	Progress   int       `json:"progress"`
	Message    string    `json:"message,omitempty"`
	ErrorCode  string    `json:"errorCode,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
