package client

import (
	"context"
	"sync"

	"assessment-jobs/internal/errors"
	"assessment-jobs/internal/logger"
	"assessment-jobs/internal/models"
)

const sessionClass = "Session"

// ErrCancelled is returned by Run after Cancel.
var ErrCancelled = errors.New("generation cancelled")

// DefaultMaxRetries is how many fresh jobs are submitted after a failed one.
const DefaultMaxRetries = 3

// API is the subset of Client a session drives.
type API interface {
	JobCreator
	StatusAPI
}

// sessionRun is the state of one Run call. Cancel only touches the run it
// finds current, so a finished run cannot affect the next one.
type sessionRun struct {
	token     uint64
	cancel    context.CancelFunc
	cancelled bool
}

// Session runs one generation from submission to a settled result, retrying
// failed jobs into the same draft.
type Session struct {
	api        API
	submitter  *Submitter
	poller     *Poller
	maxRetries int

	mu      sync.Mutex
	current *sessionRun
	jobID   string
}

// NewSession creates a session. maxRetries < 0 uses DefaultMaxRetries.
func NewSession(api API, cfg PollerConfig, maxRetries int) *Session {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Session{
		api:        api,
		submitter:  NewSubmitter(api),
		poller:     NewPoller(api, cfg),
		maxRetries: maxRetries,
	}
}

// Run submits req and polls until the job settles. A failed job is retried
// as a fresh job against the same resource up to maxRetries times.
// On timeout the returned Result keeps the job id.
func (s *Session) Run(ctx context.Context, req *models.CreateJobRequest, onUpdate func(Update)) (*Result, error) {
	token, ok := s.submitter.Acquire()
	if !ok {
		return nil, errors.ErrSubmissionInFlight
	}

	ctx, cancel := context.WithCancel(ctx)
	run := &sessionRun{token: token, cancel: cancel}
	s.mu.Lock()
	s.current = run
	s.jobID = ""
	s.mu.Unlock()

	defer func() {
		cancel()
		s.submitter.Release(token)
		s.mu.Lock()
		if s.current == run {
			s.current = nil
		}
		s.mu.Unlock()
	}()

	resp, err := s.submitter.Create(ctx, token, req)
	if s.cancelled(run) {
		return nil, ErrCancelled
	}
	if err != nil {
		return nil, err
	}
	s.track(run, resp.JobID)

	jobID, resourceID := resp.JobID, resp.ResourceID
	for retry := 0; ; retry++ {
		logger.Infof(sessionClass, "Run", "job_id=%s: polling, resource_id=%s, attempt=%d", jobID, resourceID, retry+1)

		result, err := s.poller.Poll(ctx, jobID, resourceID, onUpdate)
		if s.cancelled(run) {
			return nil, ErrCancelled
		}
		if err != nil {
			return result, err
		}
		if result.Outcome != OutcomeFailed {
			return result, nil
		}

		if retry >= s.maxRetries {
			return result, errors.Mark(
				errors.Newf("generation failed after %d attempts: %s", retry+1, result.Error.Message),
				errors.ErrGenerationFailure)
		}

		logger.Warnf(sessionClass, "Run", "job_id=%s: failed (%s), retrying as a fresh job", jobID, result.Error.Message)
		retryReq := *req
		retryReq.ResourceID = result.ResourceID
		next, err := s.api.CreateJob(ctx, &retryReq)
		if s.cancelled(run) {
			return nil, ErrCancelled
		}
		if err != nil {
			return result, errors.Wrap(err, "resubmit after failure")
		}

		jobID, resourceID = next.JobID, next.ResourceID
		s.track(run, jobID)
	}
}

// Cancel stops the running session, releases the submission guard and
// discards the job id. The server-side job is left to finish or be swept.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobID = ""
	run := s.current
	if run == nil || run.cancelled {
		return
	}
	run.cancelled = true
	run.cancel()
	s.submitter.Release(run.token)
}

// JobID returns the job currently tracked, empty when idle or cancelled.
func (s *Session) JobID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobID
}

// InFlight reports whether a submission is outstanding.
func (s *Session) InFlight() bool {
	return s.submitter.InFlight()
}

func (s *Session) cancelled(run *sessionRun) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return run.cancelled
}

// track records jobID unless run was cancelled or replaced.
func (s *Session) track(run *sessionRun, jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == run && !run.cancelled {
		s.jobID = jobID
	}
}
