package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iago/reports-back/internal/domain"
)

var (
	ErrNotFound = errors.New("resource not found")
	// ErrSkipped is returned by a transition func to leave the job untouched.
	ErrSkipped = errors.New("transition skipped")
)

// JobsRepository owns export job records and the cancel handles of their
// executions.
type JobsRepository interface {
	CreateJob(ctx context.Context, job *domain.Job, cancel context.CancelFunc) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	Transition(ctx context.Context, jobID string, fn func(job *domain.Job) error) (*domain.Job, error)
	Release(ctx context.Context, jobID string)
	DeleteJob(ctx context.Context, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, limit int) ([]*domain.Job, error)
	Sweep(ctx context.Context, now time.Time, ttl time.Duration, capacity int) []*domain.Job
}

type jobEntry struct {
	job    *domain.Job
	cancel context.CancelFunc
	seq    uint64
}

// MemoryJobsRepository stores jobs in memory. A single mutex guards every
// record and cancel handle.
type MemoryJobsRepository struct {
	mu   sync.Mutex
	jobs map[string]*jobEntry
	seq  uint64
}

func NewMemoryJobsRepository() *MemoryJobsRepository {
	return &MemoryJobsRepository{
		jobs: make(map[string]*jobEntry),
	}
}

func (r *MemoryJobsRepository) CreateJob(_ context.Context, job *domain.Job, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; ok {
		return errors.New("job already exists")
	}
	r.seq++
	r.jobs[job.ID] = &jobEntry{job: cloneJob(job), cancel: cancel, seq: r.seq}
	return nil
}

func (r *MemoryJobsRepository) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(entry.job), nil
}

// Transition applies fn to a copy of the job under the lock and stores the
// copy only when fn returns nil. Any error from fn is returned unchanged.
func (r *MemoryJobsRepository) Transition(
	_ context.Context,
	jobID string,
	fn func(job *domain.Job) error,
) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	next := cloneJob(entry.job)
	if err := fn(next); err != nil {
		return nil, err
	}
	entry.job = next
	return cloneJob(next), nil
}

// Release stops the job's execution, if it still has one.
func (r *MemoryJobsRepository) Release(_ context.Context, jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.jobs[jobID]; ok && entry.cancel != nil {
		entry.cancel()
		entry.cancel = nil
	}
}

// DeleteJob removes the record and stops its execution regardless of status.
func (r *MemoryJobsRepository) DeleteJob(_ context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.jobs, jobID)
	if entry.cancel != nil {
		entry.cancel()
	}
	return entry.job, nil
}

// ListJobs returns jobs newest first. A non-positive limit returns all.
func (r *MemoryJobsRepository) ListJobs(_ context.Context, limit int) ([]*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.sortedLocked()
	jobs := make([]*domain.Job, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if limit > 0 && len(jobs) == limit {
			break
		}
		jobs = append(jobs, cloneJob(entries[i].job))
	}
	return jobs, nil
}

// Sweep drops terminal jobs completed more than ttl before now, then evicts
// the oldest terminal jobs until at most capacity remain. Jobs that are
// still queued or running are never evicted. It returns the evicted jobs.
func (r *MemoryJobsRepository) Sweep(
	_ context.Context,
	now time.Time,
	ttl time.Duration,
	capacity int,
) []*domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := make([]*domain.Job, 0)
	evict := func(id string, entry *jobEntry) {
		delete(r.jobs, id)
		if entry.cancel != nil {
			entry.cancel()
		}
		evicted = append(evicted, entry.job)
	}

	if ttl > 0 {
		for id, entry := range r.jobs {
			job := entry.job
			if job.Status.Terminal() && job.CompletedAt != nil && now.Sub(*job.CompletedAt) > ttl {
				evict(id, entry)
			}
		}
	}

	if capacity > 0 && len(r.jobs) > capacity {
		for _, entry := range r.sortedLocked() {
			if len(r.jobs) <= capacity {
				break
			}
			if entry.job.Status.Terminal() {
				evict(entry.job.ID, entry)
			}
		}
	}
	return evicted
}

func (r *MemoryJobsRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// sortedLocked orders entries oldest first by creation time, then by
// insertion order.
func (r *MemoryJobsRepository) sortedLocked() []*jobEntry {
	entries := make([]*jobEntry, 0, len(r.jobs))
	for _, entry := range r.jobs {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].job, entries[j].job
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return entries[i].seq < entries[j].seq
	})
	return entries
}

// cloneJob copies the record. Result data is shared: it is never written
// after the job completes.
func cloneJob(job *domain.Job) *domain.Job {
	if job == nil {
		return nil
	}
	clone := *job
	if job.Result != nil {
		result := *job.Result
		clone.Result = &result
	}
	if job.StartedAt != nil {
		startedAt := *job.StartedAt
		clone.StartedAt = &startedAt
	}
	if job.CompletedAt != nil {
		completedAt := *job.CompletedAt
		clone.CompletedAt = &completedAt
	}
	return &clone
}
