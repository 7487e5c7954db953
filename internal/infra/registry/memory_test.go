package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/cloud-screener/internal/domain/scans"
)

func testRequest() domain.ScanRequest {
	return domain.ScanRequest{
		Regions:    []string{"us-east-1"},
		Services:   []string{"s3"},
		AWSProfile: "default",
	}
}

func TestCreateInitialState(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.Now = func() time.Time { return created }
	m.NewID = func() string { return "abc12345" }

	job := m.Create(testRequest())

	assert.Equal(t, domain.JobID("abc12345"), job.ID)
	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Equal(t, "Initializing...", job.CurrentTask)
	assert.Equal(t, created, job.CreatedAt)
	assert.Nil(t, job.CompletedAt)
}

func TestGetUnknownJob(t *testing.T) {
	m := NewMemory()
	_, err := m.Get("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetReturnsSnapshot(t *testing.T) {
	m := NewMemory()
	job := m.Create(testRequest())

	snap, err := m.Get(job.ID)
	require.NoError(t, err)

	// mutating the snapshot must not leak into the store
	snap.Progress = 99
	again, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Progress)
}

func TestMutateUpdatesAndReturnsSnapshot(t *testing.T) {
	m := NewMemory()
	job := m.Create(testRequest())

	updated, err := m.Mutate(job.ID, func(j *domain.ScanJob) {
		j.Status = domain.StatusRunning
		j.Progress = 42
		j.CurrentTask = "Scanning..."
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, updated.Status)
	assert.Equal(t, 42, updated.Progress)

	stored, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, stored.Progress)
}

func TestMutateUnknownJob(t *testing.T) {
	m := NewMemory()
	_, err := m.Mutate("nope", func(j *domain.ScanJob) {})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTerminalJobsAreImmutable(t *testing.T) {
	for _, status := range []domain.Status{domain.StatusCompleted, domain.StatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			m := NewMemory()
			job := m.Create(testRequest())

			_, err := m.Mutate(job.ID, func(j *domain.ScanJob) {
				j.Status = status
				j.Progress = 100
			})
			require.NoError(t, err)

			after, err := m.Mutate(job.ID, func(j *domain.ScanJob) {
				j.Status = domain.StatusRunning
				j.Progress = 1
			})
			require.NoError(t, err)
			assert.Equal(t, status, after.Status)
			assert.Equal(t, 100, after.Progress)
		})
	}
}

func TestListCreationOrder(t *testing.T) {
	m := NewMemory()
	n := 0
	m.NewID = func() string { n++; return fmt.Sprintf("job-%d", n) }

	for i := 0; i < 3; i++ {
		m.Create(testRequest())
	}

	jobs := m.List()
	require.Len(t, jobs, 3)
	assert.Equal(t, domain.JobID("job-1"), jobs[0].ID)
	assert.Equal(t, domain.JobID("job-2"), jobs[1].ID)
	assert.Equal(t, domain.JobID("job-3"), jobs[2].ID)
}

func TestConcurrentAccess(t *testing.T) {
	m := NewMemory()
	job := m.Create(testRequest())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = m.Mutate(job.ID, func(job *domain.ScanJob) {
					job.Progress++
				})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = m.Get(job.ID)
				_ = m.List()
			}
		}()
	}
	wg.Wait()

	final, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 800, final.Progress)
}
