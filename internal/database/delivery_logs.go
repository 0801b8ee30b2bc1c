package database

import (
	"context"
	"fmt"
)

// InsertDeliveryLog records the outcome of one batch.
func (r *sqlxRepository) InsertDeliveryLog(ctx context.Context, log *DeliveryLog) error {
	if log == nil {
		return fmt.Errorf("cannot save nil delivery log")
	}
	log.CreatedAt = r.now()

	id, err := r.namedInsert(ctx, "insert delivery log", `
		INSERT INTO delivery_logs (advertisement_id, job_id, sent, failed, blocked, created_at)
		VALUES (:advertisement_id, :job_id, :sent, :failed, :blocked, :created_at)`, log)
	if err != nil {
		return err
	}
	log.ID = id
	return nil
}

// ListDeliveryLogs returns a page of an advertisement's delivery logs, newest first.
func (r *sqlxRepository) ListDeliveryLogs(ctx context.Context, advertisementID int64, page Page) ([]*DeliveryLog, int, error) {
	page = page.normalize()

	total, err := r.count(ctx, "count delivery logs",
		`SELECT COUNT(*) FROM delivery_logs WHERE advertisement_id = ?`, advertisementID)
	if err != nil {
		return nil, 0, err
	}

	var logs []*DeliveryLog
	err = r.db.SelectContext(ctx, &logs, `
		SELECT id, advertisement_id, job_id, sent, failed, blocked, created_at FROM delivery_logs
		WHERE advertisement_id = ?
		ORDER BY id DESC LIMIT ? OFFSET ?`, advertisementID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, r.queryErr(ctx, err, "list delivery logs", "advertisement_id", advertisementID)
	}
	return logs, total, nil
}

// DeliveryStats sums the delivery logs of an advertisement.
func (r *sqlxRepository) DeliveryStats(ctx context.Context, advertisementID int64) (*DeliveryStats, error) {
	var stats DeliveryStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS batches,
			COALESCE(SUM(sent), 0) AS sent,
			COALESCE(SUM(failed), 0) AS failed,
			COALESCE(SUM(blocked), 0) AS blocked
		FROM delivery_logs WHERE advertisement_id = ?`, advertisementID)
	if err != nil {
		return nil, r.queryErr(ctx, err, "get delivery stats", "advertisement_id", advertisementID)
	}
	return &stats, nil
}
