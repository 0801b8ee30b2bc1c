package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/promobot/internal/database"
	"github.com/edgard/promobot/internal/resilience"
)

// Handler executes one job. Returning nil deletes the job.
type Handler func(ctx context.Context, job *database.Job) error

// WorkerConfig controls polling and retry behaviour.
type WorkerConfig struct {
	Queues             []string
	Concurrency        int
	PollInterval       time.Duration
	BatchSize          int
	MaxAttempts        int
	RetryDelay         time.Duration
	ReservationTimeout time.Duration
}

// Worker polls the jobs table and runs due jobs through their handlers.
type Worker struct {
	q      *Queue
	cfg    WorkerConfig
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewWorker creates a worker over q.
func NewWorker(q *Queue, cfg WorkerConfig) *Worker {
	if len(cfg.Queues) == 0 {
		cfg.Queues = []string{QueueAdvertisements, QueueDefault}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Worker{
		q:        q,
		cfg:      cfg,
		logger:   q.logger.With("component", "queue_worker"),
		handlers: make(map[string]Handler),
	}
}

// Handle registers the handler for a job kind, replacing any previous one.
func (w *Worker) Handle(kind string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = h
}

func (w *Worker) handler(kind string) (Handler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[kind]
	return h, ok
}

// Run polls until ctx is cancelled. Stale reservations are released first.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Queue worker started",
		"queues", w.cfg.Queues,
		"concurrency", w.cfg.Concurrency,
		"poll_interval", w.cfg.PollInterval,
	)

	if w.cfg.ReservationTimeout > 0 {
		if _, err := w.q.ReleaseStale(ctx, w.cfg.ReservationTimeout); err != nil {
			w.logger.ErrorContext(ctx, "Failed to release stale jobs on start", "error", err)
		}
	}

	ticker := w.q.clock.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.drain(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "Queue poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Queue worker stopped")
			return nil
		case <-ticker.Chan():
		}
	}
}

// drain runs batches until a poll returns less than a full batch.
func (w *Worker) drain(ctx context.Context) error {
	for ctx.Err() == nil {
		n, err := w.RunOnce(ctx)
		if err != nil {
			return err
		}
		if n < w.cfg.BatchSize {
			return nil
		}
	}
	return nil
}

// RunOnce reserves one batch of due jobs, runs them with bounded concurrency
// and returns how many were processed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	jobs, err := w.q.repo.ReserveDueJobs(ctx, w.cfg.Queues, w.q.clock.Now().Unix(), w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve jobs: %w", err)
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	g := new(errgroup.Group)
	g.SetLimit(w.cfg.Concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			w.process(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	return len(jobs), nil
}

// process runs a reserved job and settles it: delete, release or fail.
func (w *Worker) process(ctx context.Context, job *database.Job) {
	log := w.logger.With("job_id", job.ID, "queue", job.Queue, "kind", job.Kind, "attempt", job.Attempts)
	start := time.Now()

	h, ok := w.handler(job.Kind)
	var err error
	if !ok {
		err = Permanent(fmt.Errorf("%w: %s", ErrUnknownKind, job.Kind))
	} else {
		err = w.invoke(ctx, h, job)
	}

	// Settle even when ctx was cancelled mid-run.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	now := w.q.clock.Now()
	switch {
	case err == nil:
		if delErr := w.q.repo.DeleteJob(settleCtx, job.ID); delErr != nil {
			log.ErrorContext(ctx, "Failed to delete completed job", "error", delErr)
		}
		log.DebugContext(ctx, "Job completed", "duration", time.Since(start))

	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// Shutdown interrupted the job; hand it back untouched.
		if relErr := w.q.repo.ReleaseJob(settleCtx, job.ID, now.Unix()); relErr != nil {
			log.ErrorContext(ctx, "Failed to release interrupted job", "error", relErr)
		}
		log.InfoContext(ctx, "Job interrupted by shutdown, released")

	case IsPermanent(err) || job.Attempts >= w.cfg.MaxAttempts:
		if failErr := w.q.repo.FailJob(settleCtx, job, err.Error(), now.Unix()); failErr != nil {
			log.ErrorContext(ctx, "Failed to move job to failed_jobs", "error", failErr)
		}
		log.ErrorContext(ctx, "Job failed", "error", err, "permanent", IsPermanent(err))

	default:
		delay := w.cfg.RetryDelay
		var ra resilience.RetryAfterError
		if errors.As(err, &ra) && ra.RetryAfter() > delay {
			delay = ra.RetryAfter()
		}
		if relErr := w.q.repo.ReleaseJob(settleCtx, job.ID, now.Add(delay).Unix()); relErr != nil {
			log.ErrorContext(ctx, "Failed to release job for retry", "error", relErr)
		}
		log.WarnContext(ctx, "Job failed, will retry", "error", err, "retry_in", delay)
	}
}

// invoke runs h, converting a panic into a permanent error.
func (w *Worker) invoke(ctx context.Context, h Handler, job *database.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.ErrorContext(ctx, "Job handler panicked",
				"job_id", job.ID, "kind", job.Kind, "panic", r, "stack", string(debug.Stack()))
			err = Permanent(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return h(ctx, job)
}
