package metrics

import (
	"sync"
)

// Metrics tracks system metrics
type Metrics struct {
	mu sync.RWMutex

	submittedJobs     int64
	completedJobs     int64
	failedJobs        int64
	staleJobs         int64
	rejectedJobs      int64
	deletedResources  int64
	archivedResources int64
	sweptDrafts       int64
	activeJobs        int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// JobSubmitted counts an accepted submission and a newly active job
func (m *Metrics) JobSubmitted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submittedJobs++
	m.activeJobs++
}

// JobRejected counts a submission refused by validation, conflict or rate limit
func (m *Metrics) JobRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectedJobs++
}

// JobCompleted counts a completed job
func (m *Metrics) JobCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completedJobs++
	m.activeJobs--
}

// JobFailed counts a failed job
func (m *Metrics) JobFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedJobs++
	m.activeJobs--
}

// StaleJobFailed counts a job failed by the sweeper
func (m *Metrics) StaleJobFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleJobs++
}

// ResourceDeleted counts a hard delete
func (m *Metrics) ResourceDeleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedResources++
}

// ResourceArchived counts a delete request that archived instead
func (m *Metrics) ResourceArchived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archivedResources++
}

// DraftSwept counts a draft garbage-collected by the sweeper
func (m *Metrics) DraftSwept() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweptDrafts++
}

// GetSnapshot returns a snapshot of all metrics
func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int64{
		"submitted_jobs":     m.submittedJobs,
		"rejected_jobs":      m.rejectedJobs,
		"completed_jobs":     m.completedJobs,
		"failed_jobs":        m.failedJobs,
		"stale_jobs":         m.staleJobs,
		"active_jobs":        m.activeJobs,
		"deleted_resources":  m.deletedResources,
		"archived_resources": m.archivedResources,
		"swept_drafts":       m.sweptDrafts,
	}
}
