package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const jobColumns = `id, queue, kind, advertisement_id, payload, attempts, reserved_at, available_at, created_at`

// InsertJob enqueues a job and sets its ID.
func (r *sqlxRepository) InsertJob(ctx context.Context, job *Job) error {
	if job == nil {
		return fmt.Errorf("cannot save nil job")
	}
	if job.Queue == "" || job.Kind == "" {
		return fmt.Errorf("job must have a queue and a kind")
	}
	if job.Payload == "" {
		job.Payload = "{}"
	}
	if job.CreatedAt == 0 {
		job.CreatedAt = r.now().Unix()
	}

	id, err := r.namedInsert(ctx, "insert job", `
		INSERT INTO jobs (queue, kind, advertisement_id, payload, attempts, reserved_at, available_at, created_at)
		VALUES (:queue, :kind, :advertisement_id, :payload, :attempts, :reserved_at, :available_at, :created_at)`, job)
	if err != nil {
		return err
	}
	job.ID = id

	r.logger.DebugContext(ctx, "Job enqueued",
		"job_id", job.ID, "queue", job.Queue, "kind", job.Kind, "available_at", job.AvailableAt)
	return nil
}

// ReserveDueJobs selects and reserves due jobs inside one transaction.
func (r *sqlxRepository) ReserveDueJobs(ctx context.Context, queues []string, now int64, limit int) ([]*Job, error) {
	if len(queues) == 0 || limit <= 0 {
		return nil, nil
	}

	var jobs []*Job
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := sqlx.In(`
			SELECT `+jobColumns+` FROM jobs
			WHERE queue IN (?) AND reserved_at IS NULL AND available_at <= ?
			ORDER BY available_at, id
			LIMIT ?`, queues, now, limit)
		if err != nil {
			return fmt.Errorf("failed to build reserve query: %w", err)
		}
		if err := tx.SelectContext(ctx, &jobs, tx.Rebind(query), args...); err != nil {
			return r.queryErr(ctx, err, "select due jobs")
		}
		if len(jobs) == 0 {
			return nil
		}

		ids := make([]int64, len(jobs))
		for i, job := range jobs {
			ids[i] = job.ID
		}
		query, args, err = sqlx.In(
			`UPDATE jobs SET reserved_at = ?, attempts = attempts + 1 WHERE id IN (?) AND reserved_at IS NULL`,
			now, ids)
		if err != nil {
			return fmt.Errorf("failed to build reserve update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return r.queryErr(ctx, err, "reserve jobs")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, job := range jobs {
		reservedAt := now
		job.ReservedAt = &reservedAt
		job.Attempts++
	}
	return jobs, nil
}

// DeleteJob removes a finished job. Deleting a job that is already gone is not an error.
func (r *sqlxRepository) DeleteJob(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return r.queryErr(ctx, err, "delete job", "job_id", id)
	}
	return nil
}

// ReleaseJob puts a reserved job back on its queue.
func (r *sqlxRepository) ReleaseJob(ctx context.Context, id int64, availableAt int64) error {
	return r.execAffecting(ctx, "release job",
		`UPDATE jobs SET reserved_at = NULL, available_at = ? WHERE id = ?`, availableAt, id)
}

// FailJob copies a job to failed_jobs and deletes it from jobs.
func (r *sqlxRepository) FailJob(ctx context.Context, job *Job, reason string, failedAt int64) error {
	if job == nil {
		return fmt.Errorf("cannot fail nil job")
	}

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO failed_jobs (queue, kind, advertisement_id, payload, error, failed_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			job.Queue, job.Kind, job.AdvertisementID, job.Payload, reason, failedAt)
		if err != nil {
			return r.queryErr(ctx, err, "insert failed job", "job_id", job.ID)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, job.ID); err != nil {
			return r.queryErr(ctx, err, "delete failed job", "job_id", job.ID)
		}
		return nil
	})
}

// CountPendingJobs counts unreserved jobs of kind for an advertisement.
func (r *sqlxRepository) CountPendingJobs(ctx context.Context, advertisementID int64, kind string) (int, error) {
	return r.count(ctx, "count pending jobs", `
		SELECT COUNT(*) FROM jobs
		WHERE advertisement_id = ? AND kind = ? AND reserved_at IS NULL`, advertisementID, kind)
}

// CountQueuedJobs counts jobs of kind for an advertisement, including reserved ones.
func (r *sqlxRepository) CountQueuedJobs(ctx context.Context, advertisementID int64, kind string) (int, error) {
	return r.count(ctx, "count queued jobs", `
		SELECT COUNT(*) FROM jobs
		WHERE advertisement_id = ? AND kind = ?`, advertisementID, kind)
}

// DeleteJobsForAdvertisement deletes every unreserved job of an advertisement.
func (r *sqlxRepository) DeleteJobsForAdvertisement(ctx context.Context, advertisementID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE advertisement_id = ? AND reserved_at IS NULL`, advertisementID)
	if err != nil {
		return 0, r.queryErr(ctx, err, "delete advertisement jobs", "advertisement_id", advertisementID)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// ReleaseStaleJobs clears reservations older than reservedBefore.
func (r *sqlxRepository) ReleaseStaleJobs(ctx context.Context, reservedBefore int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET reserved_at = NULL WHERE reserved_at IS NOT NULL AND reserved_at < ?`, reservedBefore)
	if err != nil {
		return 0, r.queryErr(ctx, err, "release stale jobs")
	}
	released, _ := result.RowsAffected()
	return released, nil
}

// ListJobs returns a page of queued jobs in execution order and the total count.
func (r *sqlxRepository) ListJobs(ctx context.Context, page Page) ([]*Job, int, error) {
	page = page.normalize()

	total, err := r.count(ctx, "count jobs", `SELECT COUNT(*) FROM jobs`)
	if err != nil {
		return nil, 0, err
	}

	var jobs []*Job
	err = r.db.SelectContext(ctx, &jobs,
		`SELECT `+jobColumns+` FROM jobs ORDER BY available_at, id LIMIT ? OFFSET ?`, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, r.queryErr(ctx, err, "list jobs")
	}
	return jobs, total, nil
}

// ListFailedJobs returns a page of failed jobs, newest first, and the total count.
func (r *sqlxRepository) ListFailedJobs(ctx context.Context, page Page) ([]*FailedJob, int, error) {
	page = page.normalize()

	total, err := r.count(ctx, "count failed jobs", `SELECT COUNT(*) FROM failed_jobs`)
	if err != nil {
		return nil, 0, err
	}

	var jobs []*FailedJob
	err = r.db.SelectContext(ctx, &jobs, `
		SELECT id, queue, kind, advertisement_id, payload, error, failed_at FROM failed_jobs
		ORDER BY failed_at DESC, id DESC LIMIT ? OFFSET ?`, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, r.queryErr(ctx, err, "list failed jobs")
	}
	return jobs, total, nil
}

// PruneFailedJobs deletes failed jobs recorded before failedBefore.
func (r *sqlxRepository) PruneFailedJobs(ctx context.Context, failedBefore int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM failed_jobs WHERE failed_at < ?`, failedBefore)
	if err != nil {
		return 0, r.queryErr(ctx, err, "prune failed jobs")
	}
	pruned, _ := result.RowsAffected()
	return pruned, nil
}
