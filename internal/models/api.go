package models

// CreateJobRequest is the generation configuration posted to create-job.
type CreateJobRequest struct {
	Title          string         `json:"title"`
	DocumentIDs    []string       `json:"documentIds"`
	QuestionCount  int            `json:"questionCount,omitempty"`
	SchedulingMode SchedulingMode `json:"schedulingMode"`
	StartTime      string         `json:"startTime,omitempty"` // local wall time, e.g. 2026-03-01T09:30
	Timezone       string         `json:"timezone,omitempty"`  // IANA id, e.g. Europe/Berlin
	// ResourceID regenerates into an existing draft instead of creating one.
	ResourceID string `json:"resourceId,omitempty"`
}

// CreateJobResponse is returned by create-job.
type CreateJobResponse struct {
	JobID      string `json:"jobId"`
	ResourceID string `json:"resourceId"`
}

// JobError is the classified error of a failed job.
type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JobStatusResponse is returned by poll-status.
type JobStatusResponse struct {
	JobID      string    `json:"jobId"`
	ResourceID string    `json:"resourceId"`
	Status     JobStatus `json:"status"`
	Progress   int       `json:"progress"`
	Message    string    `json:"message,omitempty"`
	Error      *JobError `json:"error,omitempty"`
}

// NewJobStatusResponse builds the poll-status view of a job.
func NewJobStatusResponse(job *Job) *JobStatusResponse {
	resp := &JobStatusResponse{
		JobID:      job.ID,
		ResourceID: job.ResourceID,
		Status:     job.Status,
		Progress:   job.Progress,
		Message:    job.Message,
	}
	if job.Status == JobFailed {
		resp.Error = &JobError{Code: job.ErrorCode, Message: job.Error}
	}
	return resp
}

// ResourceResponse is returned by GET resource/:id.
type ResourceResponse struct {
	Resource
	Generated bool `json:"generated"`
	Dependents
	// LatestJob is the most recent job for this resource, if any.
	LatestJob *JobStatusResponse `json:"latestJob,omitempty"`
}

// DeleteResourceResponse is returned by DELETE resource/:id.
type DeleteResourceResponse struct {
	Action DeleteAction `json:"action"`
}

// Lifecycle actions accepted by PATCH resource/:id.
const (
	PatchActivate   = "activate"
	PatchDeactivate = "deactivate"
	PatchPublish    = "publish"
)

// PatchResourceRequest is the body of PATCH resource/:id.
type PatchResourceRequest struct {
	Action    string `json:"action"`
	StartTime string `json:"startTime,omitempty"` // publish only
	Timezone  string `json:"timezone,omitempty"`  // publish only
}

// PatchResourceResponse is returned by PATCH resource/:id.
type PatchResourceResponse struct {
	NewStatus ResourceStatus `json:"newStatus"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
