package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nextmessage/backend/internal/service"
)

// ErrorResponse sends a standardized error response and logs at caller if needed
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// ServiceError reports err with the status its kind maps to. Anything the
// service did not classify is logged and hidden behind a generic 500.
func ServiceError(c *gin.Context, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := http.StatusBadRequest
	switch svcErr.Kind {
	case service.KindForbidden:
		status = http.StatusForbidden
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindConflict:
		status = http.StatusConflict
	}
	ErrorResponse(c, status, svcErr.Message)
}

// list keeps empty results encoding as [] rather than null.
func list[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
