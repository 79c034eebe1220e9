package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"assessment-jobs/internal/errors"
	"assessment-jobs/internal/generator"
	"assessment-jobs/internal/logger"
	"assessment-jobs/internal/metrics"
	"assessment-jobs/internal/models"
	"assessment-jobs/internal/repository"
)

const runnerClass = "JobRunner"

// Progress milestones reported while a job runs. Generator steps are
// spread between progressGenerateLo and progressGenerateHi.
const (
	progressPreparing  = 5
	progressGenerateLo = 10
	progressGenerateHi = 85
	progressValidating = 90
	progressSaving     = 95
)

// settleTimeout bounds the final store writes of a job after its context ended.
const settleTimeout = 5 * time.Second

// ErrRunnerStopped is returned by Start after Shutdown.
var ErrRunnerStopped = errors.New("job runner is shut down")

// Starter hands queued jobs to background execution.
type Starter interface {
	Start(job *models.Job, res *models.Resource, req generator.Request) error
}

// Runner executes generation jobs in detached goroutines
type Runner struct {
	jobs       repository.JobRepository
	resources  repository.ResourceRepository
	lifecycle  *LifecycleService
	gen        generator.Generator
	metrics    *metrics.Metrics
	maxRuntime time.Duration
	heartbeat  time.Duration

	root   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewRunner creates a runner. Tasks outlive the request that started them
// and stop only on maxRuntime or Shutdown. While the generator runs, the job's
// updated_at is refreshed every heartbeat; heartbeat <= 0 disables it.
func NewRunner(store repository.Store, lifecycle *LifecycleService, gen generator.Generator, metrics *metrics.Metrics, maxRuntime, heartbeat time.Duration) *Runner {
	root, cancel := context.WithCancel(context.Background())
	return &Runner{
		jobs:       store,
		resources:  store,
		lifecycle:  lifecycle,
		gen:        gen,
		metrics:    metrics,
		maxRuntime: maxRuntime,
		heartbeat:  heartbeat,
		root:       root,
		cancel:     cancel,
	}
}

// Start launches the job and returns immediately
func (r *Runner) Start(job *models.Job, res *models.Resource, req generator.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrRunnerStopped
	}

	r.wg.Add(1)
	go r.run(job, res, req)
	return nil
}

// Shutdown cancels running jobs and waits for them to settle or ctx to end
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) run(job *models.Job, res *models.Resource, req generator.Request) {
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(r.root, r.maxRuntime)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			logger.Errorf(runnerClass, "run", "job_id=%s: panic: %v", job.ID, p)
			r.fail(ctx, job.ID, models.FailureInternal, fmt.Sprintf("internal error: %v", p))
		}
	}()

	logger.Infof(runnerClass, "run", "job_id=%s: started for resource_id=%s, documents=%d", job.ID, res.ID, len(req.DocumentIDs))

	if !r.progress(ctx, cancel, job.ID, progressPreparing, "Preparing documents") {
		return
	}

	stopHeartbeat := r.startHeartbeat(ctx, cancel, job.ID)
	content, err := r.gen.Generate(ctx, req, func(step, total int, message string) {
		if total < 1 {
			total = 1
		}
		pct := progressGenerateLo + step*(progressGenerateHi-progressGenerateLo)/total
		r.progress(ctx, cancel, job.ID, pct, message)
	})
	stopHeartbeat()
	if err != nil {
		r.fail(ctx, job.ID, failureCode(ctx, err), r.describeFailure(ctx, err))
		return
	}

	if !r.progress(ctx, cancel, job.ID, progressValidating, "Validating generated content") {
		return
	}
	if err := validateContent(content); err != nil {
		r.fail(ctx, job.ID, models.FailureGeneration, err.Error())
		return
	}

	body, err := json.Marshal(content)
	if err != nil {
		r.fail(ctx, job.ID, models.FailureInternal, "failed to encode generated content")
		return
	}

	if !r.progress(ctx, cancel, job.ID, progressSaving, "Saving assessment") {
		return
	}
	if err := r.resources.SaveContent(ctx, res.ID, body); err != nil {
		r.fail(ctx, job.ID, models.FailureInternal, r.describeFailure(ctx, err))
		return
	}

	status, err := r.lifecycle.PlaceGenerated(ctx, res)
	if err != nil {
		r.fail(ctx, job.ID, models.FailureInternal, r.describeFailure(ctx, err))
		return
	}

	// The resource is already placed; completion must land even if the
	// runtime ran out meanwhile.
	settleCtx, settleCancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer settleCancel()
	if err := r.jobs.CompleteJob(settleCtx, job.ID); err != nil {
		logger.Error(runnerClass, "run", errors.Wrapf(err, "job_id=%s: complete", job.ID))
		return
	}

	r.metrics.JobCompleted()
	logger.Infof(runnerClass, "run", "job_id=%s: completed, resource_id=%s is %s, questions=%d",
		job.ID, res.ID, status, len(content.Questions))
}

// progress records a milestone. It returns false and cancels the task once the
// job was settled elsewhere (deleted resource, sweeper).
func (r *Runner) progress(ctx context.Context, cancel context.CancelFunc, id string, pct int, message string) bool {
	err := r.jobs.UpdateJobProgress(ctx, id, pct, message)
	if err == nil {
		return true
	}
	if errors.IsAny(err, errors.ErrInvalidTransition, errors.ErrNotFound) {
		logger.Warnf(runnerClass, "progress", "job_id=%s: settled elsewhere, stopping: %v", id, err)
		cancel()
		return false
	}
	// Milestones are advisory; keep working through transient store errors.
	logger.Warnf(runnerClass, "progress", "job_id=%s: progress %d not recorded: %v", id, pct, err)
	return ctx.Err() == nil
}

// startHeartbeat refreshes updated_at until the returned stop func is called,
// so a long generator call is not mistaken for a stuck job.
func (r *Runner) startHeartbeat(ctx context.Context, cancel context.CancelFunc, id string) func() {
	if r.heartbeat <= 0 {
		return func() {}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := r.jobs.TouchJob(ctx, id)
				if err == nil {
					continue
				}
				if errors.IsAny(err, errors.ErrInvalidTransition, errors.ErrNotFound) {
					logger.Warnf(runnerClass, "heartbeat", "job_id=%s: settled elsewhere, stopping: %v", id, err)
					cancel()
					return
				}
				logger.Warnf(runnerClass, "heartbeat", "job_id=%s: heartbeat not recorded: %v", id, err)
			}
		}
	}()

	return func() {
		close(stop)
		<-done
	}
}

func (r *Runner) fail(ctx context.Context, id, code, message string) {
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if err := r.jobs.FailJob(settleCtx, id, code, message); err != nil {
		if errors.Is(err, errors.ErrInvalidTransition) {
			logger.Debugf(runnerClass, "fail", "job_id=%s: already settled", id)
			return
		}
		logger.Error(runnerClass, "fail", errors.Wrapf(err, "job_id=%s", id))
		return
	}

	r.metrics.JobFailed()
	logger.Warnf(runnerClass, "fail", "job_id=%s: failed (%s): %s", id, code, message)
}

func (r *Runner) describeFailure(ctx context.Context, err error) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Sprintf("generation exceeded the maximum runtime of %s", r.maxRuntime)
	case errors.Is(ctx.Err(), context.Canceled):
		return "generation was interrupted by server shutdown"
	default:
		return err.Error()
	}
}

// failureCode classifies a generator error. Shutdown is an internal failure;
// running out of time is a generation failure.
func failureCode(ctx context.Context, err error) string {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return models.FailureInternal
	case errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.Is(err, errors.ErrGenerationFailure),
		errors.Is(err, context.DeadlineExceeded):
		return models.FailureGeneration
	default:
		return models.FailureInternal
	}
}

// validateContent rejects generator output that cannot be published.
func validateContent(content *generator.Content) error {
	if content == nil || len(content.Questions) == 0 {
		return errors.GenerationFailuref("generator returned no questions")
	}
	for i, q := range content.Questions {
		if q.Prompt == "" {
			return errors.GenerationFailuref("question %d has an empty prompt", i+1)
		}
		if len(q.Choices) < 2 {
			return errors.GenerationFailuref("question %d has %d choices, need at least 2", i+1, len(q.Choices))
		}
		if q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Choices) {
			return errors.GenerationFailuref("question %d answer index %d out of range", i+1, q.AnswerIndex)
		}
	}
	return nil
}
