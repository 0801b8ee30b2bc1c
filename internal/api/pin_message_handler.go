package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edgard/promobot/internal/database"
)

type pinMessageRequest struct {
	Content  string `json:"content"   binding:"required,max=4096"`
	MediaURL string `json:"media_url" binding:"omitempty,url"`
	Status   *int   `json:"status"    binding:"omitempty,oneof=0 1"`
}

func (r pinMessageRequest) model(id int64, defaultStatus int) *database.PinMessage {
	return &database.PinMessage{
		ID:       id,
		Content:  r.Content,
		MediaURL: r.MediaURL,
		Status:   statusOr(r.Status, defaultStatus),
	}
}

func (h *handler) listPinMessages(c *gin.Context) {
	page, q, ok := pageParams(c)
	if !ok {
		return
	}
	pins, total, err := h.deps.Repo.ListPinMessages(c.Request.Context(), page)
	if err != nil {
		serviceError(c, "Failed to list pin messages", err)
		return
	}
	success(c, "Pin messages retrieved successfully", paged(pins, total, q))
}

func (h *handler) getPinMessage(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	pin, err := h.deps.Repo.GetPinMessage(c.Request.Context(), id)
	if err != nil {
		serviceError(c, "Failed to get pin message", err)
		return
	}
	success(c, "Pin message retrieved successfully", pin)
}

func (h *handler) createPinMessage(c *gin.Context) {
	var req pinMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid pin message", err)
		return
	}
	pin := req.model(0, database.StatusActive)
	if err := h.deps.Repo.CreatePinMessage(c.Request.Context(), pin); err != nil {
		serviceError(c, "Failed to create pin message", err)
		return
	}
	created(c, "Pin message created successfully", pin)
}

func (h *handler) updatePinMessage(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req pinMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid pin message", err)
		return
	}
	old, err := h.deps.Repo.GetPinMessage(c.Request.Context(), id)
	if err != nil {
		serviceError(c, "Failed to get pin message", err)
		return
	}
	pin := req.model(id, old.Status)
	if err := h.deps.Repo.UpdatePinMessage(c.Request.Context(), pin); err != nil {
		serviceError(c, "Failed to update pin message", err)
		return
	}
	saved, err := h.deps.Repo.GetPinMessage(c.Request.Context(), id)
	if err != nil {
		serviceError(c, "Failed to reload pin message", err)
		return
	}
	success(c, "Pin message updated successfully", saved)
}

func (h *handler) deletePinMessage(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.deps.Repo.DeletePinMessage(c.Request.Context(), id); err != nil {
		serviceError(c, "Failed to delete pin message", err)
		return
	}
	success(c, "Pin message deleted successfully", nil)
}

// broadcastPinMessage queues the pin message for every active chat.
func (h *handler) broadcastPinMessage(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	job, err := h.deps.Pins.Broadcast(c.Request.Context(), id)
	if err != nil {
		serviceError(c, "Failed to queue pin message broadcast", err)
		return
	}
	h.logger.InfoContext(c.Request.Context(), "Pin message broadcast queued", "pin_message_id", id, "job_id", job.ID)
	c.JSON(http.StatusAccepted, Response{Success: true, Message: "Pin message broadcast queued", Data: job})
}
