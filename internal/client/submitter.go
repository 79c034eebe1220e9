package client

import (
	"context"
	"sync/atomic"

	"assessment-jobs/internal/errors"
	"assessment-jobs/internal/models"
)

// JobCreator creates jobs on the server.
type JobCreator interface {
	CreateJob(ctx context.Context, req *models.CreateJobRequest) (*models.CreateJobResponse, error)
}

// ErrGuardReleased is returned by Create when the guard was released before
// the request went out.
var ErrGuardReleased = errors.New("submission guard was released")

// Submitter issues create-job and refuses a second submission while one is
// outstanding. The guard is advisory; the server enforces one active job per
// resource.
//
// Each claim gets its own token, so releasing a stale claim never frees a
// later one.
type Submitter struct {
	api    JobCreator
	holder atomic.Uint64 // token of the outstanding claim, 0 when free
	seq    atomic.Uint64
}

// NewSubmitter creates a submitter.
func NewSubmitter(api JobCreator) *Submitter {
	return &Submitter{api: api}
}

// Acquire claims the guard without sending anything.
func (s *Submitter) Acquire() (uint64, bool) {
	token := s.seq.Add(1)
	if !s.holder.CompareAndSwap(0, token) {
		return 0, false
	}
	return token, true
}

// Create sends the request under an acquired claim. The claim is released
// on error and kept on success.
func (s *Submitter) Create(ctx context.Context, token uint64, req *models.CreateJobRequest) (*models.CreateJobResponse, error) {
	if s.holder.Load() != token {
		return nil, ErrGuardReleased
	}
	resp, err := s.api.CreateJob(ctx, req)
	if err != nil {
		s.Release(token)
		return nil, err
	}
	return resp, nil
}

// Submit claims the guard and creates the job. On success the returned token
// stays held until Release.
func (s *Submitter) Submit(ctx context.Context, req *models.CreateJobRequest) (*models.CreateJobResponse, uint64, error) {
	token, ok := s.Acquire()
	if !ok {
		return nil, 0, errors.ErrSubmissionInFlight
	}
	resp, err := s.Create(ctx, token, req)
	if err != nil {
		return nil, 0, err
	}
	return resp, token, nil
}

// Release frees the guard if token still holds it.
func (s *Submitter) Release(token uint64) bool {
	return token != 0 && s.holder.CompareAndSwap(token, 0)
}

// InFlight reports whether a submission is outstanding.
func (s *Submitter) InFlight() bool {
	return s.holder.Load() != 0
}
