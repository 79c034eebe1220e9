package repository

import (
	"context"
	"time"

	"assessment-jobs/internal/models"
)

// JobRepository defines the interface for job persistence
type JobRepository interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJobByID(ctx context.Context, id string) (*models.Job, error)
	GetActiveJobForResource(ctx context.Context, resourceID string) (*models.Job, error)
	GetLatestJobForResource(ctx context.Context, resourceID string) (*models.Job, error)
	UpdateJobProgress(ctx context.Context, id string, progress int, message string) error
	TouchJob(ctx context.Context, id string) error
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id, code, message string) error
	ListStaleJobs(ctx context.Context, updatedBefore time.Time) ([]*models.Job, error)
}

// ResourceRepository defines the interface for resource persistence
type ResourceRepository interface {
	CreateResourceWithJob(ctx context.Context, res *models.Resource, job *models.Job) error
	GetResourceByID(ctx context.Context, id string) (*models.Resource, error)
	SaveContent(ctx context.Context, id string, content []byte) error
	TransitionResource(ctx context.Context, id string, from, to models.ResourceStatus) error
	PublishResource(ctx context.Context, id string, startTime time.Time, timezone string) error
	DeleteResource(ctx context.Context, id string, expected models.ResourceStatus) error
	ListAbandonedDrafts(ctx context.Context, createdBefore time.Time) ([]*models.Resource, error)
}

// DependentCounter reads counts owned by the surrounding application.
type DependentCounter interface {
	CountDependents(ctx context.Context, resourceID string) (models.Dependents, error)
}

// Store is everything the server side needs from persistence.
type Store interface {
	JobRepository
	ResourceRepository
	DependentCounter
}
