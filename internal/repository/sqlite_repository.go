package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"assessment-jobs/internal/errors"
	"assessment-jobs/internal/models"

	"github.com/mattn/go-sqlite3"
)

// SQLiteRepository implements Store using SQLite
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite repository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// A single connection serialises writers; busy_timeout covers the worker
	// process sharing the same file.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	repo := NewWithDB(db)
	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	return repo, nil
}

// NewWithDB wraps an already opened database without touching the schema.
func NewWithDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// initSchema initializes the database schema
func (r *SQLiteRepository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		scheduling_mode TEXT NOT NULL,
		scheduled_start_time INTEGER,
		timezone TEXT,
		content TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resources_status ON resources(status, created_at);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'queued',
		progress INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
		message TEXT NOT NULL DEFAULT '',
		error_code TEXT,
		error TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	-- at most one queued/processing job per resource
	CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_active_resource
		ON jobs(resource_id) WHERE status IN ('queued', 'processing');
	CREATE INDEX IF NOT EXISTS idx_jobs_resource ON jobs(resource_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_jobs_status_updated ON jobs(status, updated_at);

	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_resource ON attempts(resource_id);

	CREATE TABLE IF NOT EXISTS enrollments (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_enrollments_resource ON enrollments(resource_id);
	`

	_, err := r.db.Exec(schema)
	return err
}

const jobColumns = `id, resource_id, status, progress, message, error_code, error, created_at, updated_at`

const resourceColumns = `id, title, status, scheduling_mode, scheduled_start_time, timezone, content, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var errorCode, errorMsg sql.NullString
	var createdAt, updatedAt int64

	if err := row.Scan(
		&job.ID,
		&job.ResourceID,
		&job.Status,
		&job.Progress,
		&job.Message,
		&errorCode,
		&errorMsg,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	job.ErrorCode = errorCode.String
	job.Error = errorMsg.String
	job.CreatedAt = time.UnixMilli(createdAt).UTC()
	job.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &job, nil
}

func scanResource(row rowScanner) (*models.Resource, error) {
	var res models.Resource
	var startTime sql.NullInt64
	var timezone, content sql.NullString
	var createdAt, updatedAt int64

	if err := row.Scan(
		&res.ID,
		&res.Title,
		&res.Status,
		&res.SchedulingMode,
		&startTime,
		&timezone,
		&content,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if startTime.Valid {
		t := time.UnixMilli(startTime.Int64).UTC()
		res.ScheduledStartTime = &t
	}
	res.Timezone = timezone.String
	if content.Valid && content.String != "" {
		res.Content = json.RawMessage(content.String)
	}
	res.CreatedAt = time.UnixMilli(createdAt).UTC()
	res.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &res, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *SQLiteRepository) insertJob(ctx context.Context, ex execer, job *models.Job) error {
	now := r.now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.JobQueued
	}

	query := `
		INSERT INTO jobs (id, resource_id, status, progress, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := ex.ExecContext(ctx, query,
		job.ID,
		job.ResourceID,
		job.Status,
		job.Progress,
		job.Message,
		now.UnixMilli(),
		now.UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Conflictf("resource %s already has an active generation job", job.ResourceID)
		}
		return errors.Wrap(err, "failed to create job")
	}
	return nil
}

// CreateJob creates a new queued job for an existing resource
func (r *SQLiteRepository) CreateJob(ctx context.Context, job *models.Job) error {
	return r.insertJob(ctx, r.db, job)
}

// CreateResourceWithJob inserts a draft resource and its first job atomically
func (r *SQLiteRepository) CreateResourceWithJob(ctx context.Context, res *models.Resource, job *models.Job) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	now := r.now().UTC()
	res.CreatedAt = now
	res.UpdatedAt = now

	query := `
		INSERT INTO resources (id, title, status, scheduling_mode, scheduled_start_time, timezone, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		res.ID,
		res.Title,
		res.Status,
		res.SchedulingMode,
		nullableTime(res.ScheduledStartTime),
		nullableString(res.Timezone),
		now.UnixMilli(),
		now.UnixMilli(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create resource")
	}

	if err := r.insertJob(ctx, tx, job); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// GetJobByID retrieves a job by ID
func (r *SQLiteRepository) GetJobByID(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("job %s not found", id)
		}
		return nil, errors.Wrap(err, "failed to get job")
	}
	return job, nil
}

// GetActiveJobForResource returns the queued/processing job of a resource, or nil
func (r *SQLiteRepository) GetActiveJobForResource(ctx context.Context, resourceID string) (*models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE resource_id = ? AND status IN ('queued', 'processing')
	`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, resourceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get active job")
	}
	return job, nil
}

// GetLatestJobForResource returns the most recently created job of a resource, or nil
func (r *SQLiteRepository) GetLatestJobForResource(ctx context.Context, resourceID string) (*models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE resource_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, resourceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get latest job")
	}
	return job, nil
}

// UpdateJobProgress records a progress milestone. The first update moves the
// job from queued to processing; progress never decreases.
func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int, message string) error {
	if progress < 0 || progress > 100 {
		return errors.Validationf("progress %d out of range 0-100", progress)
	}

	query := `
		UPDATE jobs
		SET status = 'processing',
		    progress = MAX(progress, ?),
		    message = ?,
		    updated_at = ?
		WHERE id = ? AND status IN ('queued', 'processing')
	`
	res, err := r.db.ExecContext(ctx, query, progress, message, r.now().UnixMilli(), id)
	if err != nil {
		return errors.Wrap(err, "failed to update job progress")
	}
	return r.checkJobTransition(ctx, res, id, models.JobProcessing)
}

// TouchJob refreshes updated_at of an active job without changing its
// progress or message.
func (r *SQLiteRepository) TouchJob(ctx context.Context, id string) error {
	query := `
		UPDATE jobs
		SET updated_at = ?
		WHERE id = ? AND status IN ('queued', 'processing')
	`
	res, err := r.db.ExecContext(ctx, query, r.now().UnixMilli(), id)
	if err != nil {
		return errors.Wrap(err, "failed to touch job")
	}
	return r.checkJobTransition(ctx, res, id, models.JobProcessing)
}

// CompleteJob marks a job completed
func (r *SQLiteRepository) CompleteJob(ctx context.Context, id string) error {
	query := `
		UPDATE jobs
		SET status = 'completed', progress = 100, updated_at = ?
		WHERE id = ? AND status IN ('queued', 'processing')
	`
	res, err := r.db.ExecContext(ctx, query, r.now().UnixMilli(), id)
	if err != nil {
		return errors.Wrap(err, "failed to complete job")
	}
	return r.checkJobTransition(ctx, res, id, models.JobCompleted)
}

// FailJob marks a job failed with a classified error
func (r *SQLiteRepository) FailJob(ctx context.Context, id, code, message string) error {
	query := `
		UPDATE jobs
		SET status = 'failed', error_code = ?, error = ?, updated_at = ?
		WHERE id = ? AND status IN ('queued', 'processing')
	`
	res, err := r.db.ExecContext(ctx, query, code, message, r.now().UnixMilli(), id)
	if err != nil {
		return errors.Wrap(err, "failed to fail job")
	}
	return r.checkJobTransition(ctx, res, id, models.JobFailed)
}

// checkJobTransition turns a guarded update that matched nothing into
// NotFound or InvalidTransition.
func (r *SQLiteRepository) checkJobTransition(ctx context.Context, res sql.Result, id string, target models.JobStatus) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n > 0 {
		return nil
	}

	job, err := r.GetJobByID(ctx, id)
	if err != nil {
		return err
	}
	return errors.InvalidTransitionf("job %s is %s, cannot move to %s", id, job.Status, target)
}

// ListStaleJobs returns active jobs whose updated_at is older than the cutoff
func (r *SQLiteRepository) ListStaleJobs(ctx context.Context, updatedBefore time.Time) ([]*models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status IN ('queued', 'processing') AND updated_at < ?
		ORDER BY updated_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, updatedBefore.UnixMilli())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query stale jobs")
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate jobs")
	}
	return jobs, nil
}

// GetResourceByID retrieves a resource by ID
func (r *SQLiteRepository) GetResourceByID(ctx context.Context, id string) (*models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = ?`

	res, err := scanResource(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("resource %s not found", id)
		}
		return nil, errors.Wrap(err, "failed to get resource")
	}
	return res, nil
}

// SaveContent stores generated content on a resource
func (r *SQLiteRepository) SaveContent(ctx context.Context, id string, content []byte) error {
	query := `UPDATE resources SET content = ?, updated_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, string(content), r.now().UnixMilli(), id)
	if err != nil {
		return errors.Wrap(err, "failed to save content")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return errors.NotFoundf("resource %s not found", id)
	}
	return nil
}

// TransitionResource moves a resource from one status to another if it is
// still in the expected status.
func (r *SQLiteRepository) TransitionResource(ctx context.Context, id string, from, to models.ResourceStatus) error {
	query := `UPDATE resources SET status = ?, updated_at = ? WHERE id = ? AND status = ?`

	res, err := r.db.ExecContext(ctx, query, to, r.now().UnixMilli(), id, from)
	if err != nil {
		return errors.Wrap(err, "failed to update resource status")
	}
	return r.checkResourceTransition(ctx, res, id, from)
}

// PublishResource publishes a draft with its real start time
func (r *SQLiteRepository) PublishResource(ctx context.Context, id string, startTime time.Time, timezone string) error {
	query := `
		UPDATE resources
		SET status = 'published', scheduled_start_time = ?, timezone = ?, updated_at = ?
		WHERE id = ? AND status = 'draft'
	`
	res, err := r.db.ExecContext(ctx, query, startTime.UnixMilli(), nullableString(timezone), r.now().UnixMilli(), id)
	if err != nil {
		return errors.Wrap(err, "failed to publish resource")
	}
	return r.checkResourceTransition(ctx, res, id, models.ResourceDraft)
}

// DeleteResource hard-deletes a resource still in the expected status.
// Active jobs for it are failed in the same transaction.
func (r *SQLiteRepository) DeleteResource(ctx context.Context, id string, expected models.ResourceStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM resources WHERE id = ? AND status = ?", id, expected)
	if err != nil {
		return errors.Wrap(err, "failed to delete resource")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		tx.Rollback()
		return r.checkResourceTransition(ctx, res, id, expected)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'failed', error_code = ?, error = ?, updated_at = ?
		WHERE resource_id = ? AND status IN ('queued', 'processing')
	`, models.FailureInternal, "resource deleted", r.now().UnixMilli(), id)
	if err != nil {
		return errors.Wrap(err, "failed to fail jobs of deleted resource")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func (r *SQLiteRepository) checkResourceTransition(ctx context.Context, res sql.Result, id string, expected models.ResourceStatus) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n > 0 {
		return nil
	}

	current, err := r.GetResourceByID(ctx, id)
	if err != nil {
		return err
	}
	return errors.InvalidTransitionf("resource %s is %s, expected %s", id, current.Status, expected)
}

// ListAbandonedDrafts returns drafts created before the cutoff that never
// received content and have no active job.
func (r *SQLiteRepository) ListAbandonedDrafts(ctx context.Context, createdBefore time.Time) ([]*models.Resource, error) {
	query := `
		SELECT ` + resourceColumns + `
		FROM resources r
		WHERE r.status = 'draft'
		  AND (r.content IS NULL OR r.content = '')
		  AND r.created_at < ?
		  AND NOT EXISTS (
			SELECT 1 FROM jobs j
			WHERE j.resource_id = r.id AND j.status IN ('queued', 'processing')
		  )
		ORDER BY r.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, createdBefore.UnixMilli())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query abandoned drafts")
	}
	defer rows.Close()

	var drafts []*models.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan resource")
		}
		drafts = append(drafts, res)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate resources")
	}
	return drafts, nil
}

// CountDependents counts attempts and enrollments recorded for a resource
func (r *SQLiteRepository) CountDependents(ctx context.Context, resourceID string) (models.Dependents, error) {
	var deps models.Dependents

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attempts WHERE resource_id = ?", resourceID).Scan(&deps.AttemptCount)
	if err != nil {
		return deps, errors.Wrap(err, "failed to count attempts")
	}

	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM enrollments WHERE resource_id = ?", resourceID).Scan(&deps.EnrollmentCount)
	if err != nil {
		return deps, errors.Wrap(err, "failed to count enrollments")
	}

	return deps, nil
}
