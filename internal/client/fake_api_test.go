package client

import (
	"context"
	"sync"

	"assessment-jobs/internal/errors"
	"assessment-jobs/internal/models"
)

// pollStep is one scripted PollStatus answer
type pollStep struct {
	status *models.JobStatusResponse
	err    error
}

func transient() pollStep {
	return pollStep{err: errors.Mark(errors.New("connection reset"), errors.ErrTransientNetwork)}
}

func notFoundStep() pollStep {
	return pollStep{err: errors.NotFoundf("job not found")}
}

func statusStep(status models.JobStatus, progress int) pollStep {
	return pollStep{status: &models.JobStatusResponse{Status: status, Progress: progress}}
}

func failedStep(message string) pollStep {
	return pollStep{status: &models.JobStatusResponse{
		Status: models.JobFailed,
		Error:  &models.JobError{Code: models.FailureGeneration, Message: message},
	}}
}

// fakeAPI replays scripted answers per job id
type fakeAPI struct {
	mu sync.Mutex

	steps map[string][]pollStep
	// repeat is returned once a job's script is exhausted
	repeat pollStep

	polls         map[string]int
	resourceCalls int
	resource      *models.ResourceResponse
	resourceErr   error

	created   []*models.CreateJobRequest
	jobIDs    []string
	createErr error
	// createHook runs inside CreateJob before it returns
	createHook func()
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		steps:  make(map[string][]pollStep),
		polls:  make(map[string]int),
		repeat: statusStep(models.JobProcessing, 50),
	}
}

func (f *fakeAPI) CreateJob(ctx context.Context, req *models.CreateJobRequest) (*models.CreateJobResponse, error) {
	f.mu.Lock()
	hook := f.createHook
	if f.createErr != nil {
		f.mu.Unlock()
		return nil, f.createErr
	}
	copied := *req
	f.created = append(f.created, &copied)
	idx := len(f.created) - 1
	jobID := "job-" + string(rune('a'+idx))
	if idx < len(f.jobIDs) {
		jobID = f.jobIDs[idx]
	}
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	resourceID := req.ResourceID
	if resourceID == "" {
		resourceID = "res-1"
	}
	return &models.CreateJobResponse{JobID: jobID, ResourceID: resourceID}, nil
}

func (f *fakeAPI) PollStatus(ctx context.Context, jobID string) (*models.JobStatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.polls[jobID]
	f.polls[jobID]++

	step := f.repeat
	if script := f.steps[jobID]; i < len(script) {
		step = script[i]
	}
	if step.err != nil {
		return nil, step.err
	}
	copied := *step.status
	copied.JobID = jobID
	return &copied, nil
}

func (f *fakeAPI) GetResource(ctx context.Context, id string) (*models.ResourceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resourceCalls++
	if f.resourceErr != nil {
		return nil, f.resourceErr
	}
	if f.resource == nil {
		return nil, errors.NotFoundf("resource %s not found", id)
	}
	return f.resource, nil
}

func (f *fakeAPI) pollCount(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[jobID]
}

func repeatStep(step pollStep, n int) []pollStep {
	out := make([]pollStep, n)
	for i := range out {
		out[i] = step
	}
	return out
}
