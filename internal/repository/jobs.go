package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/boxup/media-gate-bot/internal/domain"
)

// JobsRepository abstracts scheduled-publication job persistence. A job
// stays pending across failed attempts until it is marked sent or abandoned
// as failed.
type JobsRepository interface {
	Create(ctx context.Context, job *domain.ScheduledJob) error
	Get(ctx context.Context, jobID string) (*domain.ScheduledJob, error)
	Due(ctx context.Context, now time.Time) ([]*domain.ScheduledJob, error)
	List(ctx context.Context, page, pageSize int) ([]*domain.ScheduledJob, int, error)
	Delete(ctx context.Context, jobID string) error
	MarkSent(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, attempts int, lastError string, abandoned bool) error
}

// MemoryJobsRepository stores scheduled jobs in memory for local
// development and tests.
type MemoryJobsRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.ScheduledJob
}

func NewMemoryJobsRepository() *MemoryJobsRepository {
	return &MemoryJobsRepository{jobs: make(map[string]*domain.ScheduledJob)}
}

func (r *MemoryJobsRepository) Create(_ context.Context, job *domain.ScheduledJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryJobsRepository) Get(_ context.Context, jobID string) (*domain.ScheduledJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *MemoryJobsRepository) Due(_ context.Context, now time.Time) ([]*domain.ScheduledJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	due := make([]*domain.ScheduledJob, 0)
	for _, job := range r.jobs {
		if job.Status != domain.JobStatusPending {
			continue
		}
		if job.FireAt.After(now) {
			continue
		}
		due = append(due, cloneJob(job))
	}
	sort.Slice(due, func(i, j int) bool { return due[i].FireAt.Before(due[j].FireAt) })
	return due, nil
}

func (r *MemoryJobsRepository) List(_ context.Context, page, pageSize int) ([]*domain.ScheduledJob, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	jobs := make([]*domain.ScheduledJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, cloneJob(job))
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].FireAt.Before(jobs[j].FireAt) })

	total := len(jobs)
	start := (page - 1) * pageSize
	if start >= total {
		return []*domain.ScheduledJob{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return jobs[start:end], total, nil
}

func (r *MemoryJobsRepository) Delete(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[jobID]; !ok {
		return ErrNotFound
	}
	delete(r.jobs, jobID)
	return nil
}

func (r *MemoryJobsRepository) MarkSent(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Status = domain.JobStatusSent
	job.LastError = ""
	return nil
}

func (r *MemoryJobsRepository) MarkFailed(
	_ context.Context,
	jobID string,
	attempts int,
	lastError string,
	abandoned bool,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Attempts = attempts
	job.LastError = lastError
	if abandoned {
		job.Status = domain.JobStatusFailed
	}
	return nil
}

func cloneJob(job *domain.ScheduledJob) *domain.ScheduledJob {
	if job == nil {
		return nil
	}
	clone := *job
	return &clone
}
