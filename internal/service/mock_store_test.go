package service

import (
	"context"
	"sync"
	"time"

	"assessment-jobs/internal/errors"
	"assessment-jobs/internal/models"
)

// mockStore is an in-memory repository.Store for service tests
type mockStore struct {
	mu sync.Mutex

	jobs      map[string]*models.Job
	jobOrder  []string
	resources map[string]*models.Resource
	deps      map[string]models.Dependents
	progress  map[string][]int
	touches   map[string]int

	// errs injects an error into the named method
	errs map[string]error
	// beforeTransition runs at the start of TransitionResource, unlocked
	beforeTransition func()
	now  func() time.Time
}

func newMockStore() *mockStore {
	return &mockStore{
		jobs:      make(map[string]*models.Job),
		resources: make(map[string]*models.Resource),
		deps:      make(map[string]models.Dependents),
		progress:  make(map[string][]int),
		touches:   make(map[string]int),
		errs:      make(map[string]error),
		now:       time.Now,
	}
}

func (m *mockStore) injected(method string) error {
	return m.errs[method]
}

func (m *mockStore) addResource(res *models.Resource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *res
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = m.now()
	}
	m.resources[res.ID] = &copied
}

func (m *mockStore) job(id string) *models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		copied := *job
		return &copied
	}
	return nil
}

func (m *mockStore) resource(id string) *models.Resource {
	m.mu.Lock()
	defer m.mu.Unlock()
	if res, ok := m.resources[id]; ok {
		copied := *res
		return &copied
	}
	return nil
}

func (m *mockStore) progressOf(id string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.progress[id]...)
}

func (m *mockStore) touchesOf(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.touches[id]
}

func (m *mockStore) insertJobLocked(job *models.Job) error {
	for _, existing := range m.jobs {
		if existing.ResourceID == job.ResourceID && existing.Status.IsActive() {
			return errors.Conflictf("resource %s already has an active generation job", job.ResourceID)
		}
	}
	now := m.now()
	job.CreatedAt, job.UpdatedAt = now, now
	if job.Status == "" {
		job.Status = models.JobQueued
	}
	copied := *job
	m.jobs[job.ID] = &copied
	m.jobOrder = append(m.jobOrder, job.ID)
	return nil
}

func (m *mockStore) CreateJob(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("CreateJob"); err != nil {
		return err
	}
	return m.insertJobLocked(job)
}

func (m *mockStore) GetJobByID(ctx context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("GetJobByID"); err != nil {
		return nil, err
	}
	job, ok := m.jobs[id]
	if !ok {
		return nil, errors.NotFoundf("job %s not found", id)
	}
	copied := *job
	return &copied, nil
}

func (m *mockStore) GetActiveJobForResource(ctx context.Context, resourceID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.jobs {
		if job.ResourceID == resourceID && job.Status.IsActive() {
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockStore) GetLatestJobForResource(ctx context.Context, resourceID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.jobOrder) - 1; i >= 0; i-- {
		if job := m.jobs[m.jobOrder[i]]; job != nil && job.ResourceID == resourceID {
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockStore) activeJobLocked(id string, target models.JobStatus) (*models.Job, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, errors.NotFoundf("job %s not found", id)
	}
	if !job.Status.CanTransitionTo(target) {
		return nil, errors.InvalidTransitionf("job %s is %s, cannot move to %s", id, job.Status, target)
	}
	return job, nil
}

func (m *mockStore) UpdateJobProgress(ctx context.Context, id string, progress int, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("UpdateJobProgress"); err != nil {
		return err
	}
	job, err := m.activeJobLocked(id, models.JobProcessing)
	if err != nil {
		return err
	}
	job.Status = models.JobProcessing
	job.Progress = max(job.Progress, progress)
	job.Message = message
	job.UpdatedAt = m.now()
	m.progress[id] = append(m.progress[id], job.Progress)
	return nil
}

func (m *mockStore) TouchJob(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, err := m.activeJobLocked(id, models.JobProcessing)
	if err != nil {
		return err
	}
	job.UpdatedAt = m.now()
	m.touches[id]++
	return nil
}

func (m *mockStore) CompleteJob(ctx context.Context, id string) error {
	// database/sql refuses work on a finished context
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job, err := m.activeJobLocked(id, models.JobCompleted)
	if err != nil {
		return err
	}
	job.Status = models.JobCompleted
	job.Progress = 100
	job.UpdatedAt = m.now()
	return nil
}

func (m *mockStore) FailJob(ctx context.Context, id, code, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("FailJob"); err != nil {
		return err
	}
	job, err := m.activeJobLocked(id, models.JobFailed)
	if err != nil {
		return err
	}
	job.Status = models.JobFailed
	job.ErrorCode = code
	job.Error = message
	job.UpdatedAt = m.now()
	return nil
}

func (m *mockStore) ListStaleJobs(ctx context.Context, updatedBefore time.Time) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Job
	for _, id := range m.jobOrder {
		job := m.jobs[id]
		if job.Status.IsActive() && job.UpdatedAt.Before(updatedBefore) {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockStore) CreateResourceWithJob(ctx context.Context, res *models.Resource, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("CreateResourceWithJob"); err != nil {
		return err
	}
	now := m.now()
	res.CreatedAt, res.UpdatedAt = now, now
	copied := *res
	m.resources[res.ID] = &copied
	if err := m.insertJobLocked(job); err != nil {
		delete(m.resources, res.ID)
		return err
	}
	return nil
}

func (m *mockStore) GetResourceByID(ctx context.Context, id string) (*models.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.resources[id]
	if !ok {
		return nil, errors.NotFoundf("resource %s not found", id)
	}
	copied := *res
	return &copied, nil
}

func (m *mockStore) SaveContent(ctx context.Context, id string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("SaveContent"); err != nil {
		return err
	}
	res, ok := m.resources[id]
	if !ok {
		return errors.NotFoundf("resource %s not found", id)
	}
	res.Content = append([]byte(nil), content...)
	return nil
}

func (m *mockStore) expectStatusLocked(id string, expected models.ResourceStatus) (*models.Resource, error) {
	res, ok := m.resources[id]
	if !ok {
		return nil, errors.NotFoundf("resource %s not found", id)
	}
	if res.Status != expected {
		return nil, errors.InvalidTransitionf("resource %s is %s, expected %s", id, res.Status, expected)
	}
	return res, nil
}

func (m *mockStore) TransitionResource(ctx context.Context, id string, from, to models.ResourceStatus) error {
	if m.beforeTransition != nil {
		m.beforeTransition()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	res, err := m.expectStatusLocked(id, from)
	if err != nil {
		return err
	}
	res.Status = to
	return nil
}

func (m *mockStore) PublishResource(ctx context.Context, id string, startTime time.Time, timezone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, err := m.expectStatusLocked(id, models.ResourceDraft)
	if err != nil {
		return err
	}
	res.Status = models.ResourcePublished
	res.ScheduledStartTime = &startTime
	res.Timezone = timezone
	return nil
}

func (m *mockStore) DeleteResource(ctx context.Context, id string, expected models.ResourceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.expectStatusLocked(id, expected); err != nil {
		return err
	}
	delete(m.resources, id)
	for _, job := range m.jobs {
		if job.ResourceID == id && job.Status.IsActive() {
			job.Status = models.JobFailed
			job.ErrorCode = models.FailureInternal
			job.Error = "resource deleted"
		}
	}
	return nil
}

func (m *mockStore) ListAbandonedDrafts(ctx context.Context, createdBefore time.Time) ([]*models.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Resource
	for _, res := range m.resources {
		if res.Status != models.ResourceDraft || res.Generated() || !res.CreatedAt.Before(createdBefore) {
			continue
		}
		active := false
		for _, job := range m.jobs {
			if job.ResourceID == res.ID && job.Status.IsActive() {
				active = true
			}
		}
		if !active {
			copied := *res
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockStore) CountDependents(ctx context.Context, resourceID string) (models.Dependents, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("CountDependents"); err != nil {
		return models.Dependents{}, err
	}
	return m.deps[resourceID], nil
}
