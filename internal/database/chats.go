package database

import (
	"context"
	"fmt"
)

// UpsertChat registers a chat, or reactivates and renames an existing one.
func (r *sqlxRepository) UpsertChat(ctx context.Context, chatID int64, name string) error {
	if chatID == 0 {
		return fmt.Errorf("chat_id cannot be zero")
	}

	now := r.now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chats (chat_id, name, active, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			name = excluded.name,
			active = 1,
			updated_at = excluded.updated_at`, chatID, name, now, now)
	if err != nil {
		return r.queryErr(ctx, err, "upsert chat", "chat_id", chatID)
	}

	r.logger.DebugContext(ctx, "Chat registered", "chat_id", chatID)
	return nil
}

// DeactivateChat marks a chat inactive so broadcasts skip it.
func (r *sqlxRepository) DeactivateChat(ctx context.Context, chatID int64) error {
	err := r.execAffecting(ctx, "deactivate chat",
		`UPDATE chats SET active = 0, updated_at = ? WHERE chat_id = ?`, r.now(), chatID)
	if err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Chat deactivated", "chat_id", chatID)
	return nil
}

// ListActiveChatIDs returns the Telegram IDs of every active chat.
func (r *sqlxRepository) ListActiveChatIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `SELECT chat_id FROM chats WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, r.queryErr(ctx, err, "list active chat ids")
	}
	return ids, nil
}

// ListChats returns a page of chats, newest first, and the total count.
func (r *sqlxRepository) ListChats(ctx context.Context, page Page) ([]*Chat, int, error) {
	page = page.normalize()

	total, err := r.count(ctx, "count chats", `SELECT COUNT(*) FROM chats`)
	if err != nil {
		return nil, 0, err
	}

	var chats []*Chat
	err = r.db.SelectContext(ctx, &chats, `
		SELECT id, chat_id, name, active, created_at, updated_at FROM chats
		ORDER BY id DESC LIMIT ? OFFSET ?`, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, r.queryErr(ctx, err, "list chats")
	}
	return chats, total, nil
}
