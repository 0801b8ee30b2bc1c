// Package tasks implements the housekeeping jobs run by the cron scheduler.
// It includes task definitions, dependencies, and registration mechanisms.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/promobot/internal/config"
	"github.com/edgard/promobot/internal/database"
)

// AdvertisementSyncer reconciles advertisement scheduling with the database.
type AdvertisementSyncer interface {
	Sync(ctx context.Context) (scheduled, expired int, err error)
}

// QueueMaintainer cleans up the job queue.
type QueueMaintainer interface {
	ReleaseStale(ctx context.Context, timeout time.Duration) (int64, error)
	PruneFailed(ctx context.Context, retention time.Duration) (int64, error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger         *slog.Logger
	Repo           database.Repository
	Advertisements AdvertisementSyncer
	Queue          QueueMaintainer
	Config         *config.Config
}
