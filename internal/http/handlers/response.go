// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by every endpoint: the error
// envelope, the mapping from service errors to status codes, and thin
// wrappers for success responses.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "error": "Review not found"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-codereview-backend/internal/apperror"
	"github.com/tbourn/go-codereview-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Human-readable message, safe to show to users
	Message string `json:"error" example:"Review not found"`
}

// MessageResponse is the body of endpoints that only confirm an action.
type MessageResponse struct {
	Message string `json:"message" example:"Review deleted successfully"`
}

const msgInternal = "Internal server error"

// fail aborts with the error envelope. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// writeError maps a service error onto the envelope:
//
//	validation 400, unauthorized 401, not found 404, conflict 409,
//	upstream and store 500 (message passed through), anything else 500.
//
// Unclassified errors never leak their text to the client.
func writeError(c *gin.Context, err error) {
	msg, _ := apperror.Message(err)
	switch {
	case errors.Is(err, apperror.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msg)
	case errors.Is(err, apperror.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, msg)
	case errors.Is(err, apperror.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, msg)
	case errors.Is(err, apperror.ErrConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, msg)
	case errors.Is(err, apperror.ErrUpstream):
		middleware.LoggerFrom(c).Warn().Err(err).Msg("upstream failure")
		fail(c, http.StatusInternalServerError, ErrCodeUpstream, msg)
	case errors.Is(err, apperror.ErrStore):
		fail(c, http.StatusInternalServerError, ErrCodeStore, msg)
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, msgInternal)
	}
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
