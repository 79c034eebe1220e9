package models

import (
	"encoding/json"
	"time"
)

// ResourceStatus is the lifecycle status of a generated assessment.
type ResourceStatus string

const (
	ResourceDraft     ResourceStatus = "draft"
	ResourcePublished ResourceStatus = "published"
	ResourceArchived  ResourceStatus = "archived"
)

// SchedulingMode decides whether the start time is fixed at creation.
type SchedulingMode string

const (
	ScheduleImmediate SchedulingMode = "immediate"
	ScheduleDeferred  SchedulingMode = "deferred"
)

// Resource is the assessment produced by a generation job.
type Resource struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Status             ResourceStatus  `json:"status"`
	SchedulingMode     SchedulingMode  `json:"schedulingMode"`
	ScheduledStartTime *time.Time      `json:"scheduledStartTime,omitempty"` // UTC
	Timezone           string          `json:"timezone,omitempty"`
	Content            json.RawMessage `json:"content,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Generated reports whether generation has stored content on the resource.
func (r *Resource) Generated() bool {
	return len(r.Content) > 0
}

// DeleteAction is the outcome of the guarded delete.
type DeleteAction string

const (
	ActionDeleted  DeleteAction = "deleted"
	ActionArchived DeleteAction = "archived"
)

// Dependents are counts owned by external collaborators.
type Dependents struct {
	AttemptCount    int `json:"attemptCount"`
	EnrollmentCount int `json:"enrollmentCount"`
}
