package service

import (
	"context"
	"time"

	"assessment-jobs/internal/errors"
	"assessment-jobs/internal/logger"
	"assessment-jobs/internal/metrics"
	"assessment-jobs/internal/models"
	"assessment-jobs/internal/repository"
)

const sweeperClass = "Sweeper"

// SweepResult counts what one sweep settled
type SweepResult struct {
	StaleJobs     int
	DeletedDrafts int
}

// Sweeper fails jobs that stopped reporting progress and removes abandoned drafts
type Sweeper struct {
	store         repository.Store
	metrics       *metrics.Metrics
	staleJobAfter time.Duration
	draftTTL      time.Duration
	now           func() time.Time
}

// NewSweeper creates a new sweeper
func NewSweeper(store repository.Store, metrics *metrics.Metrics, staleJobAfter, draftTTL time.Duration) *Sweeper {
	return &Sweeper{
		store:         store,
		metrics:       metrics,
		staleJobAfter: staleJobAfter,
		draftTTL:      draftTTL,
		now:           time.Now,
	}
}

// Run sweeps every interval until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Error(sweeperClass, "Run", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SweepOnce runs a single pass
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := s.now()

	stale, err := s.store.ListStaleJobs(ctx, now.Add(-s.staleJobAfter))
	if err != nil {
		return result, err
	}
	for _, job := range stale {
		msg := "job stopped reporting progress since " + job.UpdatedAt.UTC().Format(time.RFC3339)
		if err := s.store.FailJob(ctx, job.ID, models.FailureInternal, msg); err != nil {
			if errors.Is(err, errors.ErrInvalidTransition) {
				// Settled between list and update.
				continue
			}
			logger.Error(sweeperClass, "SweepOnce", errors.Wrapf(err, "job_id=%s", job.ID))
			continue
		}
		s.metrics.JobFailed()
		s.metrics.StaleJobFailed()
		result.StaleJobs++
		logger.Warnf(sweeperClass, "SweepOnce", "job_id=%s: stale job failed, resource_id=%s, progress=%d",
			job.ID, job.ResourceID, job.Progress)
	}

	if s.draftTTL <= 0 {
		return result, nil
	}

	drafts, err := s.store.ListAbandonedDrafts(ctx, now.Add(-s.draftTTL))
	if err != nil {
		return result, err
	}
	for _, res := range drafts {
		if err := s.store.DeleteResource(ctx, res.ID, models.ResourceDraft); err != nil {
			if errors.IsAny(err, errors.ErrInvalidTransition, errors.ErrNotFound) {
				continue
			}
			logger.Error(sweeperClass, "SweepOnce", errors.Wrapf(err, "resource_id=%s", res.ID))
			continue
		}
		s.metrics.DraftSwept()
		result.DeletedDrafts++
		logger.Infof(sweeperClass, "SweepOnce", "resource_id=%s: abandoned draft deleted, created %s",
			res.ID, res.CreatedAt.UTC().Format(time.RFC3339))
	}

	return result, nil
}
