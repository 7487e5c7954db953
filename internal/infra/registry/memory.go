// Package registry provides the in-memory scan-job store. Job history does
// not survive process restarts; terminal jobs are kept only as long as the
// process runs.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/cloud-screener/internal/domain/scans"
)

// Memory is a mutex-guarded job table implementing domain.Registry. All
// returned jobs are copies, so readers never observe a half-applied record.
type Memory struct {
	// Now and NewID are swappable for tests.
	Now   func() time.Time
	NewID func() string

	mu    sync.RWMutex
	jobs  map[domain.JobID]*domain.ScanJob
	order []domain.JobID
}

func NewMemory() *Memory {
	return &Memory{
		Now:   time.Now,
		NewID: func() string { return uuid.New().String()[:8] },
		jobs:  make(map[domain.JobID]*domain.ScanJob),
	}
}

// Create stores a new Pending job for the request and returns a snapshot.
func (m *Memory) Create(req domain.ScanRequest) *domain.ScanJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &domain.ScanJob{
		ID:          domain.JobID(m.NewID()),
		Status:      domain.StatusPending,
		Progress:    0,
		CurrentTask: "Initializing...",
		CreatedAt:   m.Now(),
		Request:     req,
	}
	m.jobs[job.ID] = job
	m.order = append(m.order, job.ID)
	return job.Clone()
}

// Get returns a snapshot of the job or domain.ErrNotFound.
func (m *Memory) Get(id domain.JobID) (*domain.ScanJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

// Mutate applies fn to the job under the write lock and returns the updated
// snapshot. Once a job is terminal it is immutable: fn is not applied and
// the current snapshot is returned instead.
func (m *Memory) Mutate(id domain.JobID, fn func(*domain.ScanJob)) (*domain.ScanJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !job.Status.Terminal() {
		fn(job)
	}
	return job.Clone(), nil
}

// List returns snapshots of all jobs in creation order.
func (m *Memory) List() []*domain.ScanJob {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.ScanJob, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.jobs[id].Clone())
	}
	return out
}
