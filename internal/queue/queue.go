// Package queue implements a persistent delayed job queue on top of the
// jobs table, with a polling worker pool that executes registered handlers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/promobot/internal/database"
)

// Queue names.
const (
	QueueAdvertisements = "advertisements"
	QueueDefault        = "default"
)

var (
	// ErrPermanent marks a job failure that must not be retried.
	ErrPermanent = errors.New("permanent job failure")
	// ErrUnknownKind is recorded for jobs whose kind has no handler.
	ErrUnknownKind = errors.New("no handler registered for job kind")
)

// Permanent wraps err so the worker moves the job to failed_jobs without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// Dispatch describes a job to enqueue.
type Dispatch struct {
	Queue string
	Kind  string
	// AdvertisementID links the job to an advertisement for dedupe and cancel; 0 means none.
	AdvertisementID int64
	Payload         any
	Delay           time.Duration
}

// Queue enqueues and inspects jobs.
type Queue struct {
	repo   database.Repository
	clock  clockwork.Clock
	logger *slog.Logger
}

// New creates a Queue. A nil clock uses the real clock.
func New(repo database.Repository, clock clockwork.Clock, logger *slog.Logger) *Queue {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Queue{
		repo:   repo,
		clock:  clock,
		logger: logger.With("component", "queue"),
	}
}

// Clock returns the clock the queue schedules against.
func (q *Queue) Clock() clockwork.Clock {
	return q.clock
}

// Dispatch inserts a job that becomes available after d.Delay.
func (q *Queue) Dispatch(ctx context.Context, d Dispatch) (*database.Job, error) {
	if d.Queue == "" {
		d.Queue = QueueDefault
	}
	if d.Kind == "" {
		return nil, fmt.Errorf("job kind is required")
	}
	if d.Delay < 0 {
		d.Delay = 0
	}

	payload := "{}"
	if d.Payload != nil {
		b, err := json.Marshal(d.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload for %s: %w", d.Kind, err)
		}
		payload = string(b)
	}

	now := q.clock.Now()
	job := &database.Job{
		Queue:       d.Queue,
		Kind:        d.Kind,
		Payload:     payload,
		AvailableAt: now.Add(d.Delay).Unix(),
		CreatedAt:   now.Unix(),
	}
	if d.AdvertisementID != 0 {
		adID := d.AdvertisementID
		job.AdvertisementID = &adID
	}

	if err := q.repo.InsertJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to dispatch %s: %w", d.Kind, err)
	}

	q.logger.InfoContext(ctx, "Job dispatched",
		"job_id", job.ID,
		"queue", job.Queue,
		"kind", job.Kind,
		"advertisement_id", d.AdvertisementID,
		"delay", d.Delay,
	)
	return job, nil
}

// HasPending reports whether an unreserved job of kind exists for the advertisement.
func (q *Queue) HasPending(ctx context.Context, advertisementID int64, kind string) (bool, error) {
	n, err := q.repo.CountPendingJobs(ctx, advertisementID, kind)
	if err != nil {
		return false, fmt.Errorf("failed to check pending %s jobs: %w", kind, err)
	}
	return n > 0, nil
}

// HasQueued reports whether a job of kind exists for the advertisement,
// including one a worker is running.
func (q *Queue) HasQueued(ctx context.Context, advertisementID int64, kind string) (bool, error) {
	n, err := q.repo.CountQueuedJobs(ctx, advertisementID, kind)
	if err != nil {
		return false, fmt.Errorf("failed to check queued %s jobs: %w", kind, err)
	}
	return n > 0, nil
}

// Cancel deletes every unreserved job of the advertisement.
func (q *Queue) Cancel(ctx context.Context, advertisementID int64) (int64, error) {
	deleted, err := q.repo.DeleteJobsForAdvertisement(ctx, advertisementID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel jobs of advertisement %d: %w", advertisementID, err)
	}
	if deleted > 0 {
		q.logger.InfoContext(ctx, "Cancelled pending jobs", "advertisement_id", advertisementID, "count", deleted)
	}
	return deleted, nil
}

// ReleaseStale clears reservations older than timeout so crashed work runs again.
func (q *Queue) ReleaseStale(ctx context.Context, timeout time.Duration) (int64, error) {
	released, err := q.repo.ReleaseStaleJobs(ctx, q.clock.Now().Add(-timeout).Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to release stale jobs: %w", err)
	}
	if released > 0 {
		q.logger.WarnContext(ctx, "Released stale job reservations", "count", released)
	}
	return released, nil
}

// PruneFailed deletes failed jobs older than retention.
func (q *Queue) PruneFailed(ctx context.Context, retention time.Duration) (int64, error) {
	pruned, err := q.repo.PruneFailedJobs(ctx, q.clock.Now().Add(-retention).Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune failed jobs: %w", err)
	}
	return pruned, nil
}

// Decode unmarshals a job payload into T.
func Decode[T any](job *database.Job) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(job.Payload), &v); err != nil {
		return v, Permanent(fmt.Errorf("invalid %s payload: %w", job.Kind, err))
	}
	return v, nil
}
