package database

import (
	"context"
	"errors"
	"fmt"
)

// Stats returns the overview counters in a single query.
func (r *sqlxRepository) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			(SELECT COUNT(*) FROM chats) AS total_chats,
			(SELECT COUNT(*) FROM chats WHERE active = 1) AS active_chats,
			(SELECT COUNT(*) FROM advertisements) AS total_ads,
			(SELECT COUNT(*) FROM advertisements WHERE status = ?) AS active_ads,
			(SELECT COUNT(*) FROM jobs) AS pending_jobs,
			(SELECT COUNT(*) FROM failed_jobs) AS failed_jobs`, StatusActive)
	if err != nil {
		return nil, r.queryErr(ctx, err, "get stats")
	}
	return &stats, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (r *sqlxRepository) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		r.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	r.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite
	_, err := r.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		r.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		r.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		r.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
