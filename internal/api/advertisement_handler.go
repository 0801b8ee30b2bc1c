package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgard/promobot/internal/database"
)

type advertisementRequest struct {
	Title               string     `json:"title"                 binding:"required,max=255"`
	Description         string     `json:"description"           binding:"max=4096"`
	MediaURL            string     `json:"media_url"             binding:"omitempty,url"`
	StoreID             *int64     `json:"store_id"              binding:"omitempty,gt=0"`
	Status              *int       `json:"status"                binding:"omitempty,oneof=0 1"`
	StartDate           *time.Time `json:"start_date"`
	EndDate             *time.Time `json:"end_date"`
	FrequencyCapMinutes int        `json:"frequency_cap_minutes" binding:"min=0"`
}

// model builds the record; an omitted status becomes defaultStatus.
func (r advertisementRequest) model(id int64, defaultStatus int) *database.Advertisement {
	return &database.Advertisement{
		ID:                  id,
		Title:               r.Title,
		Description:         r.Description,
		MediaURL:            r.MediaURL,
		StoreID:             r.StoreID,
		Status:              statusOr(r.Status, defaultStatus),
		StartDate:           r.StartDate,
		EndDate:             r.EndDate,
		FrequencyCapMinutes: r.FrequencyCapMinutes,
	}
}

type statusRequest struct {
	Status *int `json:"status" binding:"required,oneof=0 1"`
}

// bindAdvertisement decodes the body and checks the linked store exists.
func (h *handler) bindAdvertisement(c *gin.Context) (advertisementRequest, bool) {
	var req advertisementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid advertisement", err)
		return req, false
	}
	if req.StoreID != nil {
		if _, err := h.deps.Repo.GetStore(c.Request.Context(), *req.StoreID); err != nil {
			badRequest(c, "Unknown store", err)
			return req, false
		}
	}
	return req, true
}

func (h *handler) listAdvertisements(c *gin.Context) {
	page, q, ok := pageParams(c)
	if !ok {
		return
	}
	ads, total, err := h.deps.Repo.ListAdvertisements(c.Request.Context(), page)
	if err != nil {
		serviceError(c, "Failed to list advertisements", err)
		return
	}
	success(c, "Advertisements retrieved successfully", paged(ads, total, q))
}

func (h *handler) getAdvertisement(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ad, err := h.deps.Repo.GetAdvertisement(c.Request.Context(), id)
	if err != nil {
		serviceError(c, "Failed to get advertisement", err)
		return
	}
	success(c, "Advertisement retrieved successfully", ad)
}

func (h *handler) createAdvertisement(c *gin.Context) {
	req, ok := h.bindAdvertisement(c)
	if !ok {
		return
	}
	ad := req.model(0, database.StatusActive)
	if err := h.deps.Advertisements.Create(c.Request.Context(), ad); err != nil {
		serviceError(c, "Failed to create advertisement", err)
		return
	}
	h.logger.InfoContext(c.Request.Context(), "Advertisement created", "advertisement_id", ad.ID)
	created(c, "Advertisement created successfully", ad)
}

func (h *handler) updateAdvertisement(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	req, ok := h.bindAdvertisement(c)
	if !ok {
		return
	}
	old, err := h.deps.Repo.GetAdvertisement(c.Request.Context(), id)
	if err != nil {
		serviceError(c, "Failed to get advertisement", err)
		return
	}
	ad := req.model(id, old.Status)
	if err := h.deps.Advertisements.Update(c.Request.Context(), ad); err != nil {
		serviceError(c, "Failed to update advertisement", err)
		return
	}
	success(c, "Advertisement updated successfully", ad)
}

func (h *handler) setAdvertisementStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid status", err)
		return
	}
	ad, err := h.deps.Advertisements.SetStatus(c.Request.Context(), id, *req.Status)
	if err != nil {
		serviceError(c, "Failed to change advertisement status", err)
		return
	}
	success(c, "Advertisement status updated successfully", ad)
}

func (h *handler) deleteAdvertisement(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.deps.Advertisements.Delete(c.Request.Context(), id); err != nil {
		serviceError(c, "Failed to delete advertisement", err)
		return
	}
	success(c, "Advertisement deleted successfully", nil)
}

// listDeliveries returns the delivery logs of an advertisement with their totals.
func (h *handler) listDeliveries(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	page, q, ok := pageParams(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.deps.Repo.GetAdvertisement(ctx, id); err != nil {
		serviceError(c, "Failed to get advertisement", err)
		return
	}
	logs, total, err := h.deps.Repo.ListDeliveryLogs(ctx, id, page)
	if err != nil {
		serviceError(c, "Failed to list deliveries", err)
		return
	}
	stats, err := h.deps.Repo.DeliveryStats(ctx, id)
	if err != nil {
		serviceError(c, "Failed to get delivery stats", err)
		return
	}
	success(c, "Deliveries retrieved successfully", gin.H{
		"stats": stats,
		"logs":  paged(logs, total, q),
	})
}
