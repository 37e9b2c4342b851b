package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boxup/media-gate-bot/internal/domain"
)

type PostgresJobsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresJobsRepository(pool *pgxpool.Pool) *PostgresJobsRepository {
	return &PostgresJobsRepository{pool: pool}
}

func (r *PostgresJobsRepository) Create(ctx context.Context, job *domain.ScheduledJob) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scheduled_jobs (id, content_id, title, channel_id, fire_at, status, attempts, last_error, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		job.ID,
		job.ContentID,
		job.Title,
		job.ChannelID,
		job.FireAt,
		string(job.Status),
		job.Attempts,
		job.LastError,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scheduled job: %w", err)
	}
	return nil
}

func (r *PostgresJobsRepository) Get(ctx context.Context, jobID string) (*domain.ScheduledJob, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, content_id, title, channel_id, fire_at, status, attempts, last_error, created_at
		FROM scheduled_jobs
		WHERE id = $1
	`, jobID)
	return scanJob(row)
}

func (r *PostgresJobsRepository) Due(ctx context.Context, now time.Time) ([]*domain.ScheduledJob, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, content_id, title, channel_id, fire_at, status, attempts, last_error, created_at
		FROM scheduled_jobs
		WHERE status = 'pending' AND fire_at <= $1
		ORDER BY fire_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("query due jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (r *PostgresJobsRepository) List(ctx context.Context, page, pageSize int) ([]*domain.ScheduledJob, int, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scheduled_jobs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scheduled jobs: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, content_id, title, channel_id, fire_at, status, attempts, last_error, created_at
		FROM scheduled_jobs
		ORDER BY fire_at
		LIMIT $1 OFFSET $2
	`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list scheduled jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func (r *PostgresJobsRepository) Delete(ctx context.Context, jobID string) error {
	command, err := r.pool.Exec(ctx, `DELETE FROM scheduled_jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("delete scheduled job: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresJobsRepository) MarkSent(ctx context.Context, jobID string) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE scheduled_jobs SET status = 'sent', last_error = '' WHERE id = $1
	`, jobID)
	if err != nil {
		return fmt.Errorf("mark job sent: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresJobsRepository) MarkFailed(
	ctx context.Context,
	jobID string,
	attempts int,
	lastError string,
	abandoned bool,
) error {
	status := string(domain.JobStatusPending)
	if abandoned {
		status = string(domain.JobStatusFailed)
	}
	command, err := r.pool.Exec(ctx, `
		UPDATE scheduled_jobs SET status = $2, attempts = $3, last_error = $4 WHERE id = $1
	`, jobID, status, attempts, lastError)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectJobs(rows pgx.Rows) ([]*domain.ScheduledJob, error) {
	jobs := make([]*domain.ScheduledJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row rowScanner) (*domain.ScheduledJob, error) {
	var (
		job    domain.ScheduledJob
		status string
	)
	err := row.Scan(&job.ID, &job.ContentID, &job.Title, &job.ChannelID,
		&job.FireAt, &status, &job.Attempts, &job.LastError, &job.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan scheduled job: %w", err)
	}
	job.Status = domain.JobStatus(status)
	job.FireAt = job.FireAt.UTC()
	job.CreatedAt = job.CreatedAt.UTC()
	return &job, nil
}
