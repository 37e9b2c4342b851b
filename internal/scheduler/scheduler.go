// Package scheduler converts operator-local publication times into
// absolute instants and fires due jobs on a periodic tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/boxup/media-gate-bot/internal/domain"
	"github.com/boxup/media-gate-bot/internal/repository"
)

// ErrInvalidTime reports an unparseable date or time; the caller
// re-prompts within the same conversation step, no job is created.
var ErrInvalidTime = errors.New("invalid date or time")

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Publisher is the publish entry point the scheduler fires on due jobs.
type Publisher interface {
	Publish(ctx context.Context, contentID string, channelID int64) (*domain.PostReference, error)
}

// Scheduler persists deferred publications and runs them at most once per
// tick, retrying failed attempts up to domain.MaxPublishAttempts.
type Scheduler struct {
	jobs      repository.JobsRepository
	content   repository.ContentRepository
	publisher Publisher
	location  *time.Location
	interval  time.Duration
	logger    *log.Logger

	now func() time.Time
}

func New(
	jobs repository.JobsRepository,
	content repository.ContentRepository,
	publisher Publisher,
	timezone string,
	interval time.Duration,
	logger *log.Logger,
) (*Scheduler, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		jobs:      jobs,
		content:   content,
		publisher: publisher,
		location:  location,
		interval:  interval,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Schedule validates the operator-local date and time against the
// configured zone, converts to UTC and persists a pending job.
func (s *Scheduler) Schedule(ctx context.Context, contentID string, channelID int64, dateStr, timeStr string) (*domain.ScheduledJob, error) {
	local, err := time.ParseInLocation(dateLayout+" "+timeLayout, dateStr+" "+timeStr, s.location)
	if err != nil {
		return nil, ErrInvalidTime
	}

	item, err := s.content.Get(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("load content %s: %w", contentID, err)
	}

	job := &domain.ScheduledJob{
		ID:        uuid.NewString(),
		ContentID: contentID,
		Title:     item.Title,
		ChannelID: channelID,
		FireAt:    local.UTC(),
		Status:    domain.JobStatusPending,
		CreatedAt: s.now(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create scheduled job: %w", err)
	}
	return job, nil
}

// List pages through all jobs for the admin schedule panel.
func (s *Scheduler) List(ctx context.Context, page, pageSize int) ([]*domain.ScheduledJob, int, error) {
	return s.jobs.List(ctx, page, pageSize)
}

func (s *Scheduler) Get(ctx context.Context, jobID string) (*domain.ScheduledJob, error) {
	return s.jobs.Get(ctx, jobID)
}

// Cancel removes a job from the queue.
func (s *Scheduler) Cancel(ctx context.Context, jobID string) error {
	return s.jobs.Delete(ctx, jobID)
}

// LocalTime renders an absolute instant in the configured operator zone.
func (s *Scheduler) LocalTime(t time.Time) string {
	return t.In(s.location).Format(dateLayout + " " + timeLayout)
}

// Run ticks until the context ends.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick publishes every due pending job in ascending fire order. Content
// that disappeared after scheduling drops its job silently; a failed
// publish keeps the job pending until the retry limit is reached.
func (s *Scheduler) Tick(ctx context.Context) {
	due, err := s.jobs.Due(ctx, s.now())
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("due jobs query failed: %v", err)
		}
		return
	}

	for _, job := range due {
		if ctx.Err() != nil {
			return
		}

		if _, err := s.content.Get(ctx, job.ContentID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				_ = s.jobs.Delete(ctx, job.ID)
				continue
			}
			if s.logger != nil {
				s.logger.Printf("content lookup failed job=%s: %v", job.ID, err)
			}
			continue
		}

		if _, err := s.publisher.Publish(ctx, job.ContentID, job.ChannelID); err != nil {
			attempts := job.Attempts + 1
			abandoned := attempts >= domain.MaxPublishAttempts
			if markErr := s.jobs.MarkFailed(ctx, job.ID, attempts, err.Error(), abandoned); markErr != nil && s.logger != nil {
				s.logger.Printf("mark failed errored job=%s: %v", job.ID, markErr)
			}
			if s.logger != nil {
				s.logger.Printf("scheduled publish failed job=%s attempt=%d abandoned=%v: %v",
					job.ID, attempts, abandoned, err)
			}
			continue
		}

		if err := s.jobs.MarkSent(ctx, job.ID); err != nil && s.logger != nil {
			s.logger.Printf("mark sent failed job=%s: %v", job.ID, err)
		}
		if s.logger != nil {
			s.logger.Printf("scheduled publish done job=%s content=%s channel=%d", job.ID, job.ContentID, job.ChannelID)
		}
	}
}
