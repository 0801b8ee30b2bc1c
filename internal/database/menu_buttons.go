package database

import (
	"context"
	"fmt"
)

const menuButtonColumns = `id, parent_id, name, type, action, sort_order, status, created_at, updated_at`

func validateMenuButton(button *MenuButton) error {
	if button == nil {
		return fmt.Errorf("cannot save nil menu button")
	}
	if button.Type != MenuButtonTypeStore && button.Type != MenuButtonTypeAction {
		return fmt.Errorf("%w: menu button type %q", ErrInvalid, button.Type)
	}
	if button.ParentID != nil && *button.ParentID == button.ID && button.ID != 0 {
		return fmt.Errorf("%w: menu button %d cannot be its own parent", ErrInvalid, button.ID)
	}
	return nil
}

// CreateMenuButton inserts a new menu button and sets its ID and timestamps.
func (r *sqlxRepository) CreateMenuButton(ctx context.Context, button *MenuButton) error {
	if err := validateMenuButton(button); err != nil {
		return err
	}

	now := r.now()
	button.CreatedAt = now
	button.UpdatedAt = now

	id, err := r.namedInsert(ctx, "create menu button", `
		INSERT INTO menu_buttons (parent_id, name, type, action, sort_order, status, created_at, updated_at)
		VALUES (:parent_id, :name, :type, :action, :sort_order, :status, :created_at, :updated_at)`, button)
	if err != nil {
		return err
	}
	button.ID = id
	return nil
}

// GetMenuButton returns a menu button by ID or ErrNotFound.
func (r *sqlxRepository) GetMenuButton(ctx context.Context, id int64) (*MenuButton, error) {
	var button MenuButton
	err := r.db.GetContext(ctx, &button, `SELECT `+menuButtonColumns+` FROM menu_buttons WHERE id = ?`, id)
	if err != nil {
		return nil, r.queryErr(ctx, err, "get menu button", "menu_button_id", id)
	}
	return &button, nil
}

// ListMenuButtons returns the active children of parentID, or the active roots when parentID is nil.
func (r *sqlxRepository) ListMenuButtons(ctx context.Context, parentID *int64) ([]*MenuButton, error) {
	var (
		buttons []*MenuButton
		err     error
	)
	if parentID == nil {
		err = r.db.SelectContext(ctx, &buttons, `
			SELECT `+menuButtonColumns+` FROM menu_buttons
			WHERE parent_id IS NULL AND status = ?
			ORDER BY sort_order, id`, StatusActive)
	} else {
		err = r.db.SelectContext(ctx, &buttons, `
			SELECT `+menuButtonColumns+` FROM menu_buttons
			WHERE parent_id = ? AND status = ?
			ORDER BY sort_order, id`, *parentID, StatusActive)
	}
	if err != nil {
		return nil, r.queryErr(ctx, err, "list menu buttons")
	}
	return buttons, nil
}

// ListAllMenuButtons returns every menu button ordered for tree building.
func (r *sqlxRepository) ListAllMenuButtons(ctx context.Context) ([]*MenuButton, error) {
	var buttons []*MenuButton
	err := r.db.SelectContext(ctx, &buttons,
		`SELECT `+menuButtonColumns+` FROM menu_buttons ORDER BY sort_order, id`)
	if err != nil {
		return nil, r.queryErr(ctx, err, "list all menu buttons")
	}
	return buttons, nil
}

// UpdateMenuButton overwrites every editable field of a menu button.
func (r *sqlxRepository) UpdateMenuButton(ctx context.Context, button *MenuButton) error {
	if err := validateMenuButton(button); err != nil {
		return err
	}
	if button.ParentID != nil {
		if err := r.checkMenuAncestry(ctx, button.ID, *button.ParentID); err != nil {
			return err
		}
	}
	button.UpdatedAt = r.now()

	return r.namedUpdate(ctx, "update menu button", `
		UPDATE menu_buttons SET
			parent_id = :parent_id,
			name = :name,
			type = :type,
			action = :action,
			sort_order = :sort_order,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id`, button)
}

// checkMenuAncestry rejects a parent that is the button itself or one of its descendants.
func (r *sqlxRepository) checkMenuAncestry(ctx context.Context, id, parentID int64) error {
	current := &parentID
	for depth := 0; current != nil; depth++ {
		if *current == id {
			return fmt.Errorf("%w: menu button %d cannot be nested under its own descendant", ErrInvalid, id)
		}
		if depth > 64 {
			return fmt.Errorf("%w: menu tree too deep above button %d", ErrInvalid, id)
		}
		var next *int64
		err := r.db.GetContext(ctx, &next, `SELECT parent_id FROM menu_buttons WHERE id = ?`, *current)
		if err != nil {
			return r.queryErr(ctx, err, "check menu ancestry", "menu_button_id", id)
		}
		current = next
	}
	return nil
}

// DeleteMenuButton deletes a menu button; children become roots and stores are detached.
func (r *sqlxRepository) DeleteMenuButton(ctx context.Context, id int64) error {
	return r.execAffecting(ctx, "delete menu button", `DELETE FROM menu_buttons WHERE id = ?`, id)
}

// BuildMenuTree nests a flat button list under its parents, keeping input order.
// Buttons whose parent is missing from the list are treated as roots.
func BuildMenuTree(buttons []*MenuButton) []*MenuButton {
	byID := make(map[int64]*MenuButton, len(buttons))
	for _, b := range buttons {
		b.Children = nil
		byID[b.ID] = b
	}

	roots := make([]*MenuButton, 0)
	for _, b := range buttons {
		if b.ParentID != nil {
			if parent, ok := byID[*b.ParentID]; ok && parent != b {
				parent.Children = append(parent.Children, b)
				continue
			}
		}
		roots = append(roots, b)
	}
	return roots
}
