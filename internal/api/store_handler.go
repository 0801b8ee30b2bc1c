package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edgard/promobot/internal/database"
)

type linkRequest struct {
	Text string `json:"text" binding:"required,max=64"`
	URL  string `json:"url"  binding:"required,url"`
}

type storeRequest struct {
	Name         string        `json:"name"           binding:"required,max=255"`
	Address      string        `json:"address"        binding:"max=512"`
	Hours        string        `json:"hours"          binding:"max=255"`
	Status       *int          `json:"status"         binding:"omitempty,oneof=0 1"`
	Recommend    bool          `json:"recommend"`
	MenuButtonID *int64        `json:"menu_button_id" binding:"omitempty,gt=0"`
	SubBtns      []linkRequest `json:"sub_btns"       binding:"omitempty,max=20,dive"`
	MenuURLs     []string      `json:"menu_urls"      binding:"omitempty,max=50,dive,url"`
	SortOrder    int           `json:"sort_order"`
}

func (r storeRequest) model(id int64, defaultStatus int) *database.Store {
	links := make(database.Links, 0, len(r.SubBtns))
	for _, l := range r.SubBtns {
		links = append(links, database.Link{Text: l.Text, URL: l.URL})
	}
	urls := database.StringList(r.MenuURLs)
	if urls == nil {
		urls = database.StringList{}
	}
	return &database.Store{
		ID:           id,
		Name:         r.Name,
		Address:      r.Address,
		Hours:        r.Hours,
		Status:       statusOr(r.Status, defaultStatus),
		Recommend:    r.Recommend,
		MenuButtonID: r.MenuButtonID,
		SubBtns:      links,
		MenuURLs:     urls,
		SortOrder:    r.SortOrder,
	}
}

// bindStore decodes the body and checks the store is placed under a store-type button.
func (h *handler) bindStore(c *gin.Context) (storeRequest, bool) {
	var req storeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid store", err)
		return req, false
	}
	if req.MenuButtonID != nil {
		button, err := h.deps.Repo.GetMenuButton(c.Request.Context(), *req.MenuButtonID)
		if err != nil {
			badRequest(c, "Unknown menu button", err)
			return req, false
		}
		if button.Type != database.MenuButtonTypeStore {
			fail(c, http.StatusBadRequest, "Stores can only be placed under store menu buttons")
			return req, false
		}
	}
	return req, true
}

func (h *handler) listStores(c *gin.Context) {
	page, q, ok := pageParams(c)
	if !ok {
		return
	}
	stores, total, err := h.deps.Repo.ListStores(c.Request.Context(), page)
	if err != nil {
		serviceError(c, "Failed to list stores", err)
		return
	}
	success(c, "Stores retrieved successfully", paged(stores, total, q))
}

func (h *handler) getStore(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	store, err := h.deps.Repo.GetStore(c.Request.Context(), id)
	if err != nil {
		serviceError(c, "Failed to get store", err)
		return
	}
	success(c, "Store retrieved successfully", store)
}

func (h *handler) createStore(c *gin.Context) {
	req, ok := h.bindStore(c)
	if !ok {
		return
	}
	store := req.model(0, database.StatusActive)
	if err := h.deps.Repo.CreateStore(c.Request.Context(), store); err != nil {
		serviceError(c, "Failed to create store", err)
		return
	}
	created(c, "Store created successfully", store)
}

func (h *handler) updateStore(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	req, ok := h.bindStore(c)
	if !ok {
		return
	}
	old, err := h.deps.Repo.GetStore(c.Request.Context(), id)
	if err != nil {
		serviceError(c, "Failed to get store", err)
		return
	}
	store := req.model(id, old.Status)
	if err := h.deps.Repo.UpdateStore(c.Request.Context(), store); err != nil {
		serviceError(c, "Failed to update store", err)
		return
	}
	saved, err := h.deps.Repo.GetStore(c.Request.Context(), id)
	if err != nil {
		serviceError(c, "Failed to reload store", err)
		return
	}
	success(c, "Store updated successfully", saved)
}

func (h *handler) deleteStore(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.deps.Repo.DeleteStore(c.Request.Context(), id); err != nil {
		serviceError(c, "Failed to delete store", err)
		return
	}
	success(c, "Store deleted successfully", nil)
}
