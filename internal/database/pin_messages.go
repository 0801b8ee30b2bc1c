package database

import (
	"context"
	"fmt"
	"strings"
)

const pinMessageColumns = `id, content, media_url, status, created_at, updated_at`

// CreatePinMessage inserts a new pin message and sets its ID and timestamps.
func (r *sqlxRepository) CreatePinMessage(ctx context.Context, pin *PinMessage) error {
	if pin == nil {
		return fmt.Errorf("cannot save nil pin message")
	}
	if strings.TrimSpace(pin.Content) == "" {
		return fmt.Errorf("%w: pin message must have non-empty content", ErrInvalid)
	}

	now := r.now()
	pin.CreatedAt = now
	pin.UpdatedAt = now

	id, err := r.namedInsert(ctx, "create pin message", `
		INSERT INTO pin_messages (content, media_url, status, created_at, updated_at)
		VALUES (:content, :media_url, :status, :created_at, :updated_at)`, pin)
	if err != nil {
		return err
	}
	pin.ID = id
	return nil
}

// GetPinMessage returns a pin message by ID or ErrNotFound.
func (r *sqlxRepository) GetPinMessage(ctx context.Context, id int64) (*PinMessage, error) {
	var pin PinMessage
	err := r.db.GetContext(ctx, &pin, `SELECT `+pinMessageColumns+` FROM pin_messages WHERE id = ?`, id)
	if err != nil {
		return nil, r.queryErr(ctx, err, "get pin message", "pin_message_id", id)
	}
	return &pin, nil
}

// GetActivePinMessage returns the latest active pin message or ErrNotFound.
func (r *sqlxRepository) GetActivePinMessage(ctx context.Context) (*PinMessage, error) {
	var pin PinMessage
	err := r.db.GetContext(ctx, &pin, `
		SELECT `+pinMessageColumns+` FROM pin_messages
		WHERE status = ?
		ORDER BY updated_at DESC, id DESC
		LIMIT 1`, StatusActive)
	if err != nil {
		return nil, r.queryErr(ctx, err, "get active pin message")
	}
	return &pin, nil
}

// ListPinMessages returns a page of pin messages, newest first, and the total count.
func (r *sqlxRepository) ListPinMessages(ctx context.Context, page Page) ([]*PinMessage, int, error) {
	page = page.normalize()

	total, err := r.count(ctx, "count pin messages", `SELECT COUNT(*) FROM pin_messages`)
	if err != nil {
		return nil, 0, err
	}

	var pins []*PinMessage
	err = r.db.SelectContext(ctx, &pins,
		`SELECT `+pinMessageColumns+` FROM pin_messages ORDER BY id DESC LIMIT ? OFFSET ?`, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, r.queryErr(ctx, err, "list pin messages")
	}
	return pins, total, nil
}

// UpdatePinMessage overwrites the content, media and status of a pin message.
func (r *sqlxRepository) UpdatePinMessage(ctx context.Context, pin *PinMessage) error {
	if pin == nil {
		return fmt.Errorf("cannot save nil pin message")
	}
	if strings.TrimSpace(pin.Content) == "" {
		return fmt.Errorf("%w: pin message must have non-empty content", ErrInvalid)
	}
	pin.UpdatedAt = r.now()

	return r.namedUpdate(ctx, "update pin message", `
		UPDATE pin_messages SET
			content = :content,
			media_url = :media_url,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id`, pin)
}

// DeletePinMessage deletes a pin message.
func (r *sqlxRepository) DeletePinMessage(ctx context.Context, id int64) error {
	return r.execAffecting(ctx, "delete pin message", `DELETE FROM pin_messages WHERE id = ?`, id)
}
