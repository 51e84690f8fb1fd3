package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/pkg/logging"
)

// Client-facing error messages.
const (
	msgValidation  = "Validation error"
	msgNotFound    = "Trip Not Found"
	msgInternal    = "Internal server error"
	msgInvalidBody = "Invalid request body"
	msgInvalidID   = "Invalid trip id"
	msgCityLookup  = "City lookup failed"
)

// APIError is a structured error response.
type APIError struct {
	Message   string              `json:"error"`
	Details   []domain.FieldError `json:"details,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, message string, details []domain.FieldError) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Message:   message,
		Details:   details,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, msg, nil)
}

// errValidation returns a 400 error listing every field problem.
func errValidation(c *fiber.Ctx, details []domain.FieldError) error {
	return newError(c, fiber.StatusBadRequest, msgValidation, details)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx) error {
	return newError(c, fiber.StatusNotFound, msgNotFound, nil)
}

// errInternal logs err and returns a 500 without leaking it.
func errInternal(c *fiber.Ctx, err error) error {
	logging.FromContext(c.UserContext()).Error("request failed",
		"method", c.Method(), "path", c.Path(), "error", err)
	return newError(c, fiber.StatusInternalServerError, msgInternal, nil)
}

// errBadGateway logs err and returns a 502 for upstream failures.
func errBadGateway(c *fiber.Ctx, msg string, err error) error {
	logging.FromContext(c.UserContext()).Warn("upstream failed",
		"path", c.Path(), "error", err)
	return newError(c, fiber.StatusBadGateway, msg, nil)
}

// writeError maps service errors onto the HTTP error shapes.
func writeError(c *fiber.Ctx, err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return errValidation(c, verr.Details)
	case errors.Is(err, domain.ErrTripNotFound):
		return errNotFound(c)
	default:
		return errInternal(c, err)
	}
}

// ErrorHandler renders errors that escape handlers (unknown routes, timeouts,
// limiter, body limit) in the same JSON shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := msgInternal

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < fiber.StatusInternalServerError {
			msg = fe.Message
		}
	}
	if code >= fiber.StatusInternalServerError {
		logging.FromContext(c.UserContext()).Error("unhandled error", "path", c.Path(), "error", err)
	}
	return newError(c, code, msg, nil)
}
