package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/samirrijal/mylocation/internal/core/domain"
	"github.com/samirrijal/mylocation/internal/core/overlay"
	"github.com/samirrijal/mylocation/internal/core/ports"
	"github.com/samirrijal/mylocation/internal/core/usecases"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, 409, "conflict", msg)
}

// errTooMany returns a 429 error.
func errTooMany(c *fiber.Ctx, msg string) error {
	return newError(c, 429, "too_many_requests", msg)
}

// errFromService maps service errors onto API errors.
func errFromService(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, usecases.ErrInvalidFix),
		errors.Is(err, usecases.ErrInvalidSession),
		errors.Is(err, overlay.ErrInvalidUsage):
		return errBadRequest(c, err.Error())
	case errors.Is(err, usecases.ErrSessionNotFound):
		return errNotFound(c, "session not found")
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, "no fix recorded for device")
	case errors.Is(err, overlay.ErrInvalidState):
		return errConflict(c, err.Error())
	case errors.Is(err, ports.ErrHostClosed):
		return errConflict(c, "session is closing")
	case errors.Is(err, usecases.ErrSessionLimit):
		return errTooMany(c, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return newError(c, 504, "timeout", "request timed out")
	}

	LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
	return errInternal(c, err.Error())
}
