package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edgard/promobot/internal/advertising"
	"github.com/edgard/promobot/internal/database"
	"github.com/edgard/promobot/internal/pinning"
)

// Response is the envelope of every API reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// PageData wraps a paginated listing.
type PageData struct {
	Items   any `json:"items"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

func success(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message, Data: data})
}

func created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, Response{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Message: message})
}

func badRequest(c *gin.Context, message string, err error) {
	if err != nil {
		_ = c.Error(err)
		message += ": " + err.Error()
	}
	fail(c, http.StatusBadRequest, message)
}

// serviceError maps domain errors to HTTP statuses. Unknown errors are 500s
// and their text stays in the log.
func serviceError(c *gin.Context, message string, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, database.ErrNotFound):
		fail(c, http.StatusNotFound, "Record not found")
	case errors.Is(err, advertising.ErrInvalid), errors.Is(err, database.ErrInvalid):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, pinning.ErrInactive):
		fail(c, http.StatusConflict, err.Error())
	default:
		fail(c, http.StatusInternalServerError, message)
	}
}
