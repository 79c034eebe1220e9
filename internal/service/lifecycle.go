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

const lifecycleClass = "LifecycleService"

// LifecycleStore is the persistence the lifecycle state machine needs.
type LifecycleStore interface {
	repository.ResourceRepository
	repository.DependentCounter
}

// LifecycleService governs resource status transitions and the guarded delete.
type LifecycleService struct {
	store   LifecycleStore
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewLifecycleService creates a new lifecycle service
func NewLifecycleService(store LifecycleStore, metrics *metrics.Metrics) *LifecycleService {
	return &LifecycleService{
		store:   store,
		metrics: metrics,
		now:     time.Now,
	}
}

// Delete hard-deletes a resource, or archives it when attempts or enrollments
// reference it. Drafts are always deleted.
func (s *LifecycleService) Delete(ctx context.Context, id string) (models.DeleteAction, error) {
	res, err := s.store.GetResourceByID(ctx, id)
	if err != nil {
		return "", err
	}

	if res.Status == models.ResourceDraft {
		if err := s.store.DeleteResource(ctx, id, models.ResourceDraft); err != nil {
			return "", err
		}
		s.metrics.ResourceDeleted()
		logger.Infof(lifecycleClass, "Delete", "resource_id=%s: draft deleted", id)
		return models.ActionDeleted, nil
	}

	deps, err := s.store.CountDependents(ctx, id)
	if err != nil {
		return "", err
	}

	reason := ""
	switch {
	case deps.AttemptCount > 0:
		reason = "attempts"
	case deps.EnrollmentCount > 0:
		reason = "enrollments"
	}

	if reason == "" {
		if err := s.store.DeleteResource(ctx, id, res.Status); err != nil {
			return "", err
		}
		s.metrics.ResourceDeleted()
		logger.Infof(lifecycleClass, "Delete", "resource_id=%s: %s resource deleted", id, res.Status)
		return models.ActionDeleted, nil
	}

	if res.Status == models.ResourceArchived {
		return "", errors.InvalidTransitionf("resource %s is already archived and still has %s", id, reason)
	}

	if err := s.store.TransitionResource(ctx, id, models.ResourcePublished, models.ResourceArchived); err != nil {
		return "", err
	}
	s.metrics.ResourceArchived()
	logger.Infof(lifecycleClass, "Delete", "resource_id=%s: archived instead of deleted (attempts=%d, enrollments=%d)",
		id, deps.AttemptCount, deps.EnrollmentCount)
	return models.ActionArchived, nil
}

// Activate moves an archived resource back to published
func (s *LifecycleService) Activate(ctx context.Context, id string) (models.ResourceStatus, error) {
	return s.transition(ctx, "Activate", id, models.ResourceArchived, models.ResourcePublished)
}

// Deactivate archives a published resource
func (s *LifecycleService) Deactivate(ctx context.Context, id string) (models.ResourceStatus, error) {
	return s.transition(ctx, "Deactivate", id, models.ResourcePublished, models.ResourceArchived)
}

func (s *LifecycleService) transition(ctx context.Context, method, id string, from, to models.ResourceStatus) (models.ResourceStatus, error) {
	res, err := s.store.GetResourceByID(ctx, id)
	if err != nil {
		return "", err
	}
	if res.Status != from {
		return "", errors.InvalidTransitionf("resource %s is %s; %s requires %s", id, res.Status, method, from)
	}

	if err := s.store.TransitionResource(ctx, id, from, to); err != nil {
		return "", err
	}
	logger.Infof(lifecycleClass, method, "resource_id=%s: %s -> %s", id, from, to)
	return to, nil
}

// Publish assigns a real start time to a generated deferred draft
func (s *LifecycleService) Publish(ctx context.Context, id, startTime, timezone string) (models.ResourceStatus, error) {
	res, err := s.store.GetResourceByID(ctx, id)
	if err != nil {
		return "", err
	}
	if res.Status != models.ResourceDraft {
		return "", errors.InvalidTransitionf("resource %s is %s; only drafts can be published", id, res.Status)
	}
	if !res.Generated() {
		return "", errors.InvalidTransitionf("resource %s has no generated content yet", id)
	}

	start, err := ResolveStartTime(startTime, timezone, s.now())
	if err != nil {
		return "", err
	}

	if err := s.store.PublishResource(ctx, id, start, timezone); err != nil {
		return "", err
	}
	logger.Infof(lifecycleClass, "Publish", "resource_id=%s: published, starts %s", id, start.Format(time.RFC3339))
	return models.ResourcePublished, nil
}

// PlaceGenerated puts a freshly generated resource into the status its
// scheduling mode calls for: immediate drafts are published, deferred drafts
// stay draft until Publish.
func (s *LifecycleService) PlaceGenerated(ctx context.Context, res *models.Resource) (models.ResourceStatus, error) {
	if res.SchedulingMode != models.ScheduleImmediate {
		return models.ResourceDraft, nil
	}
	if err := s.store.TransitionResource(ctx, res.ID, models.ResourceDraft, models.ResourcePublished); err != nil {
		return "", err
	}
	return models.ResourcePublished, nil
}
