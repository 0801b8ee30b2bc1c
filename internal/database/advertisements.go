package database

import (
	"context"
	"fmt"
	"time"
)

const advertisementColumns = `id, title, description, media_url, store_id, status, start_date, end_date,
	frequency_cap_minutes, last_delivered_at, created_at, updated_at`

// CreateAdvertisement inserts a new advertisement and sets its ID and timestamps.
func (r *sqlxRepository) CreateAdvertisement(ctx context.Context, ad *Advertisement) error {
	if ad == nil {
		return fmt.Errorf("cannot save nil advertisement")
	}
	if ad.FrequencyCapMinutes < 0 {
		return fmt.Errorf("%w: frequency cap must not be negative", ErrInvalid)
	}

	now := r.now()
	ad.CreatedAt = now
	ad.UpdatedAt = now

	id, err := r.namedInsert(ctx, "create advertisement", `
		INSERT INTO advertisements (title, description, media_url, store_id, status, start_date, end_date,
			frequency_cap_minutes, created_at, updated_at)
		VALUES (:title, :description, :media_url, :store_id, :status, :start_date, :end_date,
			:frequency_cap_minutes, :created_at, :updated_at)`, ad)
	if err != nil {
		return err
	}
	ad.ID = id

	r.logger.DebugContext(ctx, "Advertisement created", "advertisement_id", ad.ID)
	return nil
}

// GetAdvertisement returns an advertisement by ID or ErrNotFound.
func (r *sqlxRepository) GetAdvertisement(ctx context.Context, id int64) (*Advertisement, error) {
	var ad Advertisement
	err := r.db.GetContext(ctx, &ad, `SELECT `+advertisementColumns+` FROM advertisements WHERE id = ?`, id)
	if err != nil {
		return nil, r.queryErr(ctx, err, "get advertisement", "advertisement_id", id)
	}
	return &ad, nil
}

// ListAdvertisements returns a page of advertisements, newest first, and the total count.
func (r *sqlxRepository) ListAdvertisements(ctx context.Context, page Page) ([]*Advertisement, int, error) {
	page = page.normalize()

	total, err := r.count(ctx, "count advertisements", `SELECT COUNT(*) FROM advertisements`)
	if err != nil {
		return nil, 0, err
	}

	var ads []*Advertisement
	err = r.db.SelectContext(ctx, &ads,
		`SELECT `+advertisementColumns+` FROM advertisements ORDER BY id DESC LIMIT ? OFFSET ?`,
		page.Limit, page.Offset)
	if err != nil {
		return nil, 0, r.queryErr(ctx, err, "list advertisements")
	}
	return ads, total, nil
}

// ListActiveAdvertisements returns every active advertisement.
func (r *sqlxRepository) ListActiveAdvertisements(ctx context.Context) ([]*Advertisement, error) {
	var ads []*Advertisement
	err := r.db.SelectContext(ctx, &ads,
		`SELECT `+advertisementColumns+` FROM advertisements WHERE status = ? ORDER BY id`, StatusActive)
	if err != nil {
		return nil, r.queryErr(ctx, err, "list active advertisements")
	}
	return ads, nil
}

// UpdateAdvertisement overwrites every editable field of an advertisement.
func (r *sqlxRepository) UpdateAdvertisement(ctx context.Context, ad *Advertisement) error {
	if ad == nil {
		return fmt.Errorf("cannot save nil advertisement")
	}
	if ad.FrequencyCapMinutes < 0 {
		return fmt.Errorf("%w: frequency cap must not be negative", ErrInvalid)
	}
	ad.UpdatedAt = r.now()

	err := r.namedUpdate(ctx, "update advertisement", `
		UPDATE advertisements SET
			title = :title,
			description = :description,
			media_url = :media_url,
			store_id = :store_id,
			status = :status,
			start_date = :start_date,
			end_date = :end_date,
			frequency_cap_minutes = :frequency_cap_minutes,
			last_delivered_at = :last_delivered_at,
			updated_at = :updated_at
		WHERE id = :id`, ad)
	if err != nil {
		return err
	}

	r.logger.DebugContext(ctx, "Advertisement updated", "advertisement_id", ad.ID)
	return nil
}

// SetAdvertisementStatus changes only the status column.
func (r *sqlxRepository) SetAdvertisementStatus(ctx context.Context, id int64, status int) error {
	return r.execAffecting(ctx, "set advertisement status",
		`UPDATE advertisements SET status = ?, updated_at = ? WHERE id = ?`, status, r.now(), id)
}

// MarkAdvertisementDelivered records the time of the latest fan-out.
func (r *sqlxRepository) MarkAdvertisementDelivered(ctx context.Context, id int64, at time.Time) error {
	return r.execAffecting(ctx, "mark advertisement delivered",
		`UPDATE advertisements SET last_delivered_at = ? WHERE id = ?`, at.UTC(), id)
}

// DeleteAdvertisement deletes an advertisement; its delivery logs cascade.
func (r *sqlxRepository) DeleteAdvertisement(ctx context.Context, id int64) error {
	return r.execAffecting(ctx, "delete advertisement", `DELETE FROM advertisements WHERE id = ?`, id)
}
