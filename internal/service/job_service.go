package service

import (
	"context"
	"strings"
	"time"

	"assessment-jobs/internal/errors"
	"assessment-jobs/internal/generator"
	"assessment-jobs/internal/logger"
	"assessment-jobs/internal/metrics"
	"assessment-jobs/internal/models"
	"assessment-jobs/internal/repository"

	"github.com/google/uuid"
)

const jobServiceClass = "JobService"

// Question count bounds for a single assessment.
const (
	DefaultQuestionCount = 10
	MaxQuestionCount     = 100
	MaxDocuments         = 20
)

// JobService handles job submission and status lookups
type JobService struct {
	store       repository.Store
	runner      Starter
	rateLimiter *RateLimiter
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewJobService creates a new job service
func NewJobService(store repository.Store, runner Starter, rateLimiter *RateLimiter, metrics *metrics.Metrics) *JobService {
	return &JobService{
		store:       store,
		runner:      runner,
		rateLimiter: rateLimiter,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Submit validates the request, creates the draft resource and its queued job,
// and hands the job to the runner. It never waits for generation.
func (s *JobService) Submit(ctx context.Context, clientKey string, req *models.CreateJobRequest) (*models.CreateJobResponse, error) {
	resp, err := s.submit(ctx, clientKey, req)
	if err != nil {
		s.metrics.JobRejected()
		return nil, err
	}
	return resp, nil
}

func (s *JobService) submit(ctx context.Context, clientKey string, req *models.CreateJobRequest) (*models.CreateJobResponse, error) {
	if err := s.rateLimiter.CheckSubmissionRate(ctx, clientKey); err != nil {
		return nil, err
	}

	if err := normalizeRequest(req); err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:     uuid.New().String(),
		Status: models.JobQueued,
	}

	var res *models.Resource
	if req.ResourceID != "" {
		existing, err := s.regenerateInto(ctx, req.ResourceID, job)
		if err != nil {
			return nil, err
		}
		res = existing
	} else {
		created, err := s.createWithJob(ctx, req, job)
		if err != nil {
			return nil, err
		}
		res = created
	}

	genReq := generator.Request{
		ResourceID:    res.ID,
		Title:         req.Title,
		DocumentIDs:   req.DocumentIDs,
		QuestionCount: req.QuestionCount,
	}
	if err := s.runner.Start(job, res, genReq); err != nil {
		if failErr := s.store.FailJob(context.WithoutCancel(ctx), job.ID, models.FailureInternal, err.Error()); failErr != nil {
			logger.Error(jobServiceClass, "Submit", errors.Wrapf(failErr, "job_id=%s: fail unstarted job", job.ID))
		}
		return nil, errors.Wrap(err, "failed to start job")
	}

	s.metrics.JobSubmitted()
	logger.Infof(jobServiceClass, "Submit", "job_id=%s: job submitted, resource_id=%s, client=%s, mode=%s, documents=%d",
		job.ID, res.ID, clientKey, res.SchedulingMode, len(req.DocumentIDs))

	return &models.CreateJobResponse{JobID: job.ID, ResourceID: res.ID}, nil
}

func (s *JobService) createWithJob(ctx context.Context, req *models.CreateJobRequest, job *models.Job) (*models.Resource, error) {
	sched, err := ResolveSchedule(req.SchedulingMode, req.StartTime, req.Timezone, s.now())
	if err != nil {
		return nil, err
	}

	start := sched.StartTime
	res := &models.Resource{
		ID:                 uuid.New().String(),
		Title:              req.Title,
		Status:             models.ResourceDraft,
		SchedulingMode:     sched.Mode,
		ScheduledStartTime: &start,
		Timezone:           sched.Timezone,
	}
	job.ResourceID = res.ID

	if err := s.store.CreateResourceWithJob(ctx, res, job); err != nil {
		return nil, err
	}
	return res, nil
}

// regenerateInto queues a fresh job against an existing draft. The stored
// schedule of the draft is kept.
func (s *JobService) regenerateInto(ctx context.Context, resourceID string, job *models.Job) (*models.Resource, error) {
	res, err := s.store.GetResourceByID(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if res.Status != models.ResourceDraft {
		return nil, errors.InvalidTransitionf("resource %s is %s; only drafts can be regenerated", resourceID, res.Status)
	}

	job.ResourceID = res.ID
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return res, nil
}

// GetJobStatus returns the poll-status view of a job
func (s *JobService) GetJobStatus(ctx context.Context, id string) (*models.JobStatusResponse, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.Validationf("jobId is required")
	}

	job, err := s.store.GetJobByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.NewJobStatusResponse(job), nil
}

// GetResource returns a resource with its generated flag and dependent counts
func (s *JobService) GetResource(ctx context.Context, id string) (*models.ResourceResponse, error) {
	res, err := s.store.GetResourceByID(ctx, id)
	if err != nil {
		return nil, err
	}

	deps, err := s.store.CountDependents(ctx, id)
	if err != nil {
		return nil, err
	}

	latest, err := s.store.GetLatestJobForResource(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &models.ResourceResponse{
		Resource:   *res,
		Generated:  res.Generated(),
		Dependents: deps,
	}
	if latest != nil {
		view.LatestJob = models.NewJobStatusResponse(latest)
	}
	return view, nil
}

func normalizeRequest(req *models.CreateJobRequest) error {
	if req == nil {
		return errors.Validationf("request body is required")
	}

	req.Title = strings.TrimSpace(req.Title)
	req.ResourceID = strings.TrimSpace(req.ResourceID)
	if req.Title == "" {
		return errors.Validationf("title is required")
	}

	docs := make([]string, 0, len(req.DocumentIDs))
	seen := make(map[string]bool, len(req.DocumentIDs))
	for _, id := range req.DocumentIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		docs = append(docs, id)
	}
	if len(docs) == 0 {
		return errors.Validationf("at least one document is required")
	}
	if len(docs) > MaxDocuments {
		return errors.Validationf("at most %d documents are allowed, got %d", MaxDocuments, len(docs))
	}
	req.DocumentIDs = docs

	if req.QuestionCount == 0 {
		req.QuestionCount = DefaultQuestionCount
	}
	if req.QuestionCount < 1 || req.QuestionCount > MaxQuestionCount {
		return errors.Validationf("questionCount must be between 1 and %d, got %d", MaxQuestionCount, req.QuestionCount)
	}
	return nil
}
