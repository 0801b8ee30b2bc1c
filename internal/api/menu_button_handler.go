package api

import (
	"github.com/gin-gonic/gin"

	"github.com/edgard/promobot/internal/database"
)

type menuButtonRequest struct {
	ParentID  *int64 `json:"parent_id"  binding:"omitempty,gt=0"`
	Name      string `json:"name"       binding:"required,max=64"`
	Type      string `json:"type"       binding:"required,oneof=store action"`
	Action    string `json:"action"     binding:"max=4096"`
	SortOrder int    `json:"sort_order"`
	Status    *int   `json:"status"     binding:"omitempty,oneof=0 1"`
}

func (r menuButtonRequest) model(id int64, defaultStatus int) *database.MenuButton {
	return &database.MenuButton{
		ID:        id,
		ParentID:  r.ParentID,
		Name:      r.Name,
		Type:      r.Type,
		Action:    r.Action,
		SortOrder: r.SortOrder,
		Status:    statusOr(r.Status, defaultStatus),
	}
}

func (h *handler) bindMenuButton(c *gin.Context) (menuButtonRequest, bool) {
	var req menuButtonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid menu button", err)
		return req, false
	}
	if req.ParentID != nil {
		if _, err := h.deps.Repo.GetMenuButton(c.Request.Context(), *req.ParentID); err != nil {
			badRequest(c, "Unknown parent menu button", err)
			return req, false
		}
	}
	return req, true
}

func (h *handler) listMenuButtons(c *gin.Context) {
	buttons, err := h.deps.Repo.ListAllMenuButtons(c.Request.Context())
	if err != nil {
		serviceError(c, "Failed to list menu buttons", err)
		return
	}
	success(c, "Menu buttons retrieved successfully", buttons)
}

func (h *handler) menuTree(c *gin.Context) {
	buttons, err := h.deps.Repo.ListAllMenuButtons(c.Request.Context())
	if err != nil {
		serviceError(c, "Failed to list menu buttons", err)
		return
	}
	success(c, "Menu tree retrieved successfully", database.BuildMenuTree(buttons))
}

func (h *handler) getMenuButton(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	button, err := h.deps.Repo.GetMenuButton(c.Request.Context(), id)
	if err != nil {
		serviceError(c, "Failed to get menu button", err)
		return
	}
	success(c, "Menu button retrieved successfully", button)
}

func (h *handler) createMenuButton(c *gin.Context) {
	req, ok := h.bindMenuButton(c)
	if !ok {
		return
	}
	button := req.model(0, database.StatusActive)
	if err := h.deps.Repo.CreateMenuButton(c.Request.Context(), button); err != nil {
		serviceError(c, "Failed to create menu button", err)
		return
	}
	created(c, "Menu button created successfully", button)
}

func (h *handler) updateMenuButton(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	req, ok := h.bindMenuButton(c)
	if !ok {
		return
	}
	old, err := h.deps.Repo.GetMenuButton(c.Request.Context(), id)
	if err != nil {
		serviceError(c, "Failed to get menu button", err)
		return
	}
	button := req.model(id, old.Status)
	if err := h.deps.Repo.UpdateMenuButton(c.Request.Context(), button); err != nil {
		serviceError(c, "Failed to update menu button", err)
		return
	}
	saved, err := h.deps.Repo.GetMenuButton(c.Request.Context(), id)
	if err != nil {
		serviceError(c, "Failed to reload menu button", err)
		return
	}
	success(c, "Menu button updated successfully", saved)
}

func (h *handler) deleteMenuButton(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.deps.Repo.DeleteMenuButton(c.Request.Context(), id); err != nil {
		serviceError(c, "Failed to delete menu button", err)
		return
	}
	success(c, "Menu button deleted successfully", nil)
}
