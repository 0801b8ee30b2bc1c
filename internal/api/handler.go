package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edgard/promobot/internal/database"
)

type handler struct {
	deps   Deps
	logger *slog.Logger
}

type pageQuery struct {
	Page    int `form:"page"     binding:"omitempty,min=1"`
	PerPage int `form:"per_page" binding:"omitempty,min=1,max=100"`
}

// pageParams reads ?page and ?per_page, defaulting to the first page of 20.
func pageParams(c *gin.Context) (database.Page, pageQuery, bool) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "Invalid pagination", err)
		return database.Page{}, q, false
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = 20
	}
	return database.Page{Limit: q.PerPage, Offset: (q.Page - 1) * q.PerPage}, q, true
}

func paged(items any, total int, q pageQuery) PageData {
	return PageData{Items: items, Total: total, Page: q.Page, PerPage: q.PerPage}
}

// idParam parses the :id path parameter.
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

// statusOr returns *s, or def when the field was omitted.
func statusOr(s *int, def int) int {
	if s == nil {
		return def
	}
	return *s
}

func (h *handler) health(c *gin.Context) {
	if err := h.deps.Repo.Ping(c.Request.Context()); err != nil {
		_ = c.Error(err)
		fail(c, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	success(c, "OK", gin.H{"status": "ok"})
}

func (h *handler) listChats(c *gin.Context) {
	page, q, ok := pageParams(c)
	if !ok {
		return
	}
	chats, total, err := h.deps.Repo.ListChats(c.Request.Context(), page)
	if err != nil {
		serviceError(c, "Failed to list chats", err)
		return
	}
	success(c, "Chats retrieved successfully", paged(chats, total, q))
}

func (h *handler) listJobs(c *gin.Context) {
	page, q, ok := pageParams(c)
	if !ok {
		return
	}
	jobs, total, err := h.deps.Repo.ListJobs(c.Request.Context(), page)
	if err != nil {
		serviceError(c, "Failed to list jobs", err)
		return
	}
	success(c, "Jobs retrieved successfully", paged(jobs, total, q))
}

func (h *handler) listFailedJobs(c *gin.Context) {
	page, q, ok := pageParams(c)
	if !ok {
		return
	}
	jobs, total, err := h.deps.Repo.ListFailedJobs(c.Request.Context(), page)
	if err != nil {
		serviceError(c, "Failed to list failed jobs", err)
		return
	}
	success(c, "Failed jobs retrieved successfully", paged(jobs, total, q))
}
