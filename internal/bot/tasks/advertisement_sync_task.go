package tasks

import (
	"context"
	"fmt"
)

// newAdvertisementSyncTask expires ended advertisements and schedules active
// ones that lost their delivery job.
func newAdvertisementSyncTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "advertisement_sync")

	return func(ctx context.Context) error {
		scheduled, expired, err := deps.Advertisements.Sync(ctx)
		if err != nil {
			return fmt.Errorf("advertisement sync failed: %w", err)
		}
		if scheduled > 0 || expired > 0 {
			log.InfoContext(ctx, "Advertisements reconciled", "scheduled", scheduled, "expired", expired)
		}
		return nil
	}
}
