package database

import (
	"context"
	"fmt"
)

const storeColumns = `id, name, address, hours, status, recommend, menu_button_id, sub_btns, menu_urls,
	sort_order, created_at, updated_at`

// CreateStore inserts a new store and sets its ID and timestamps.
func (r *sqlxRepository) CreateStore(ctx context.Context, store *Store) error {
	if store == nil {
		return fmt.Errorf("cannot save nil store")
	}

	now := r.now()
	store.CreatedAt = now
	store.UpdatedAt = now

	id, err := r.namedInsert(ctx, "create store", `
		INSERT INTO stores (name, address, hours, status, recommend, menu_button_id, sub_btns, menu_urls,
			sort_order, created_at, updated_at)
		VALUES (:name, :address, :hours, :status, :recommend, :menu_button_id, :sub_btns, :menu_urls,
			:sort_order, :created_at, :updated_at)`, store)
	if err != nil {
		return err
	}
	store.ID = id
	return nil
}

// GetStore returns a store by ID or ErrNotFound.
func (r *sqlxRepository) GetStore(ctx context.Context, id int64) (*Store, error) {
	var store Store
	err := r.db.GetContext(ctx, &store, `SELECT `+storeColumns+` FROM stores WHERE id = ?`, id)
	if err != nil {
		return nil, r.queryErr(ctx, err, "get store", "store_id", id)
	}
	return &store, nil
}

// ListStores returns a page of all stores and the total count.
func (r *sqlxRepository) ListStores(ctx context.Context, page Page) ([]*Store, int, error) {
	page = page.normalize()

	total, err := r.count(ctx, "count stores", `SELECT COUNT(*) FROM stores`)
	if err != nil {
		return nil, 0, err
	}

	var stores []*Store
	err = r.db.SelectContext(ctx, &stores,
		`SELECT `+storeColumns+` FROM stores ORDER BY sort_order, id LIMIT ? OFFSET ?`, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, r.queryErr(ctx, err, "list stores")
	}
	return stores, total, nil
}

// ListStoresByMenuButton returns active stores of a menu button.
func (r *sqlxRepository) ListStoresByMenuButton(ctx context.Context, menuButtonID int64, page Page) ([]*Store, int, error) {
	page = page.normalize()

	total, err := r.count(ctx, "count stores by menu button",
		`SELECT COUNT(*) FROM stores WHERE menu_button_id = ? AND status = ?`, menuButtonID, StatusActive)
	if err != nil {
		return nil, 0, err
	}

	var stores []*Store
	err = r.db.SelectContext(ctx, &stores, `
		SELECT `+storeColumns+` FROM stores
		WHERE menu_button_id = ? AND status = ?
		ORDER BY sort_order, id
		LIMIT ? OFFSET ?`, menuButtonID, StatusActive, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, r.queryErr(ctx, err, "list stores by menu button", "menu_button_id", menuButtonID)
	}
	return stores, total, nil
}

// ListRecommendedStores returns active recommended stores.
func (r *sqlxRepository) ListRecommendedStores(ctx context.Context, page Page) ([]*Store, int, error) {
	page = page.normalize()

	total, err := r.count(ctx, "count recommended stores",
		`SELECT COUNT(*) FROM stores WHERE recommend = 1 AND status = ?`, StatusActive)
	if err != nil {
		return nil, 0, err
	}

	var stores []*Store
	err = r.db.SelectContext(ctx, &stores, `
		SELECT `+storeColumns+` FROM stores
		WHERE recommend = 1 AND status = ?
		ORDER BY sort_order, id
		LIMIT ? OFFSET ?`, StatusActive, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, r.queryErr(ctx, err, "list recommended stores")
	}
	return stores, total, nil
}

// UpdateStore overwrites every editable field of a store.
func (r *sqlxRepository) UpdateStore(ctx context.Context, store *Store) error {
	if store == nil {
		return fmt.Errorf("cannot save nil store")
	}
	store.UpdatedAt = r.now()

	return r.namedUpdate(ctx, "update store", `
		UPDATE stores SET
			name = :name,
			address = :address,
			hours = :hours,
			status = :status,
			recommend = :recommend,
			menu_button_id = :menu_button_id,
			sub_btns = :sub_btns,
			menu_urls = :menu_urls,
			sort_order = :sort_order,
			updated_at = :updated_at
		WHERE id = :id`, store)
}

// DeleteStore deletes a store; advertisements pointing at it keep running without a store.
func (r *sqlxRepository) DeleteStore(ctx context.Context, id int64) error {
	return r.execAffecting(ctx, "delete store", `DELETE FROM stores WHERE id = ?`, id)
}
