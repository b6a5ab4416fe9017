// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response envelopes shared by all endpoints and the
// helpers that write them. Success bodies always carry `success: true`;
// failures always carry `error`, `code` and `request_id`.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "error": "lead not found",
//	  "code": "not_found",
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/leadops-backend/internal/http/middleware"
	"github.com/tbourn/leadops-backend/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Human-readable message (safe to show to users)
	Error string `json:"error" example:"lead not found"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Underlying error text; only outside production
	Details string `json:"details,omitempty"`
}

// fail aborts the request with a structured error. Server errors (>=500) are
// logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		Error:     msg,
		Code:      code,
		RequestID: c.Writer.Header().Get("X-Request-ID"),
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail(), used by the router for 404/405.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps a service error onto the HTTP taxonomy:
//
//	*services.ValidationError -> 400
//	services.ErrUnauthorized  -> 401
//	services.ErrNotFound      -> 404
//	services.ErrConflict      -> 409
//	anything else             -> 500, generic message
//
// For 500s the underlying error is logged, and echoed in Details only when
// production is false.
func failErr(c *gin.Context, err error, production bool) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ErrCodeValidation, ve.Error())
	case errors.Is(err, services.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		middleware.LoggerFrom(c).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		resp := ErrorResponse{
			Error:     "internal server error",
			Code:      ErrCodeInternal,
			RequestID: c.Writer.Header().Get("X-Request-ID"),
		}
		if !production {
			resp.Details = err.Error()
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
	}
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
