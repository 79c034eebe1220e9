package client

import (
	"context"
	"time"

	"assessment-jobs/internal/errors"
	"assessment-jobs/internal/logger"
	"assessment-jobs/internal/models"
)

const pollerClass = "StatusPoller"

// StatusAPI is what the poller reads from the server.
type StatusAPI interface {
	PollStatus(ctx context.Context, jobID string) (*models.JobStatusResponse, error)
	GetResource(ctx context.Context, id string) (*models.ResourceResponse, error)
}

// PollerConfig bounds a polling loop.
type PollerConfig struct {
	Interval             time.Duration
	MaxAttempts          int
	MaxConsecutiveErrors int
	// MaxNotFound is how many consecutive 404s are tolerated before the
	// server has committed the job. They do not count as errors.
	MaxNotFound int
}

// DefaultPollerConfig polls once a second for up to twenty minutes.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:             time.Second,
		MaxAttempts:          1200,
		MaxConsecutiveErrors: 10,
		MaxNotFound:          5,
	}
}

// Outcome is how a polling loop ended.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeFailed      Outcome = "failed"
	OutcomeTimedOut    Outcome = "timed_out"
	OutcomeUnreachable Outcome = "unreachable"
)

// Update is delivered for each observed non-terminal poll.
type Update struct {
	JobID    string
	Status   models.JobStatus
	Progress int
	// Estimated is set when Progress is the elapsed-time estimate.
	Estimated bool
	Message   string
	Advisory  string
	Elapsed   time.Duration
}

// Result describes a finished polling loop. JobID is always kept so a caller
// can check back after a timeout.
type Result struct {
	JobID      string
	ResourceID string
	Outcome    Outcome
	Error      *models.JobError
	Attempts   int
	// Recovered is set when completion was inferred by the fallback check.
	Recovered bool
	Elapsed   time.Duration
}

// Poller tracks a job until it settles.
type Poller struct {
	api StatusAPI
	cfg PollerConfig
	now func() time.Time
}

// NewPoller creates a poller. Non-positive attempt and error bounds take their
// defaults; a zero Interval polls back to back.
func NewPoller(api StatusAPI, cfg PollerConfig) *Poller {
	def := DefaultPollerConfig()
	if cfg.Interval < 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = def.MaxConsecutiveErrors
	}
	if cfg.MaxNotFound < 0 {
		cfg.MaxNotFound = def.MaxNotFound
	}
	return &Poller{api: api, cfg: cfg, now: time.Now}
}

// Poll polls jobID every interval until the job completes or fails, the
// error bound triggers the fallback check, or the attempt budget runs out.
// onUpdate may be nil.
func (p *Poller) Poll(parent context.Context, jobID, resourceID string, onUpdate func(Update)) (*Result, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	started := p.now()
	result := &Result{JobID: jobID, ResourceID: resourceID}

	var (
		consecutiveErrors int
		notFound          int
		shown             int
		observed          models.JobStatus
		lastErr           error
	)

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Attempts = attempt

		status, err := p.api.PollStatus(ctx, jobID)
		elapsed := p.now().Sub(started)
		result.Elapsed = elapsed

		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()

		case err != nil && errors.Is(err, errors.ErrNotFound) && notFound < p.cfg.MaxNotFound:
			notFound++
			logger.Debugf(pollerClass, "Poll", "job_id=%s: not found yet (%d/%d)", jobID, notFound, p.cfg.MaxNotFound)

		case err != nil && errors.Is(err, errors.ErrNotFound):
			return result, errors.Wrapf(err, "job %s still unknown after %d polls", jobID, notFound+1)

		case err != nil:
			consecutiveErrors++
			lastErr = err
			logger.Debugf(pollerClass, "Poll", "job_id=%s: poll failed (%d/%d): %v", jobID, consecutiveErrors, p.cfg.MaxConsecutiveErrors, err)
			if consecutiveErrors >= p.cfg.MaxConsecutiveErrors {
				// Stop polling before the existence check.
				cancel()
				return p.fallback(parent, resourceID, result, lastErr)
			}

		default:
			consecutiveErrors = 0
			notFound = 0

			if status.Status.IsTerminal() {
				cancel()
				return p.settle(result, status)
			}

			// A reply that moves the job backwards is stale; keep the last
			// status seen.
			if observed != "" && status.Status != observed && !observed.CanTransitionTo(status.Status) {
				logger.Debugf(pollerClass, "Poll", "job_id=%s: ignoring stale status %s after %s", jobID, status.Status, observed)
				status.Status = observed
			}
			observed = status.Status

			progress, estimated := status.Progress, false
			if progress == 0 {
				progress, estimated = EstimateProgress(elapsed), true
			}
			shown = max(shown, progress)

			if onUpdate != nil {
				onUpdate(Update{
					JobID:     jobID,
					Status:    status.Status,
					Progress:  shown,
					Estimated: estimated,
					Message:   status.Message,
					Advisory:  AdvisoryMessage(elapsed),
					Elapsed:   elapsed,
				})
			}
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}
		if err := wait(ctx, p.cfg.Interval); err != nil {
			return nil, err
		}
	}

	result.Outcome = OutcomeTimedOut
	logger.Warnf(pollerClass, "Poll", "job_id=%s: still running after %d polls", jobID, result.Attempts)
	return result, errors.Mark(
		errors.Newf("job %s is taking longer than expected; check back later", jobID),
		errors.ErrTimeout)
}

func (p *Poller) settle(result *Result, status *models.JobStatusResponse) (*Result, error) {
	if status.ResourceID != "" {
		result.ResourceID = status.ResourceID
	}
	if status.Status == models.JobCompleted {
		result.Outcome = OutcomeCompleted
		return result, nil
	}

	result.Outcome = OutcomeFailed
	result.Error = status.Error
	if result.Error == nil {
		result.Error = &models.JobError{Code: errors.CodeGenerationFailure, Message: "generation failed"}
	}
	return result, nil
}

// fallback runs exactly one resource lookup after the error bound is hit.
func (p *Poller) fallback(parent context.Context, resourceID string, result *Result, lastErr error) (*Result, error) {
	unreachable := errors.Mark(
		errors.Wrapf(lastErr, "job %s status unavailable after %d consecutive errors", result.JobID, p.cfg.MaxConsecutiveErrors),
		errors.ErrTransientNetwork)

	result.Outcome = OutcomeUnreachable
	if resourceID == "" {
		return result, unreachable
	}

	ctx, cancel := context.WithTimeout(parent, fallbackTimeout(p.cfg.Interval))
	defer cancel()

	res, err := p.api.GetResource(ctx, resourceID)
	if err != nil {
		logger.Warnf(pollerClass, "fallback", "job_id=%s: fallback check failed: %v", result.JobID, err)
		return result, unreachable
	}
	if !generatedBy(res, result.JobID) {
		return result, unreachable
	}

	logger.Infof(pollerClass, "fallback", "job_id=%s: resource_id=%s exists with content, treating job as completed", result.JobID, resourceID)
	result.Outcome = OutcomeCompleted
	result.Recovered = true
	return result, nil
}

// generatedBy reports whether the content on res came from jobID. Content left
// by an earlier job does not count while a regeneration is still running.
func generatedBy(res *models.ResourceResponse, jobID string) bool {
	if !res.Generated {
		return false
	}
	if res.LatestJob == nil {
		return true
	}
	return res.LatestJob.JobID == jobID && res.LatestJob.Status == models.JobCompleted
}

func fallbackTimeout(interval time.Duration) time.Duration {
	return max(10*interval, 10*time.Second)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
