package tasks

import (
	"context"
	"fmt"
)

// newQueueCleanupTask releases abandoned job reservations and prunes old failed jobs.
func newQueueCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "queue_cleanup")

	return func(ctx context.Context) error {
		released, err := deps.Queue.ReleaseStale(ctx, deps.Config.Queue.ReservationTimeout)
		if err != nil {
			return fmt.Errorf("queue cleanup failed: %w", err)
		}
		pruned, err := deps.Queue.PruneFailed(ctx, deps.Config.Queue.FailedJobRetention)
		if err != nil {
			return fmt.Errorf("queue cleanup failed: %w", err)
		}

		log.InfoContext(ctx, "Queue cleanup completed", "released", released, "pruned", pruned)
		return nil
	}
}
