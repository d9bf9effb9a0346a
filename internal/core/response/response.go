package response

import (
	"errors"
	"sync/atomic"

	"commerce-backend/internal/core/apperr"
	"commerce-backend/internal/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorResponse represents the structure of an error response.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// Kind is the machine-readable failure kind (e.g. invalid_state).
	Kind string `json:"kind"`
	// RayID is the unique request identifier for debugging.
	RayID string `json:"ray_id"`
	// Detail carries the raw error outside production.
	Detail string `json:"detail,omitempty"`
}

var diagnostics atomic.Bool

// EnableDiagnostics controls whether internal errors expose their detail.
func EnableDiagnostics(enabled bool) {
	diagnostics.Store(enabled)
}

// RayID returns the request id set by the requestid middleware.
func RayID(c *fiber.Ctx) string {
	rayID, ok := c.Locals("requestid").(string)
	if !ok {
		return "unknown"
	}
	return rayID
}

// Error renders err as an ErrorResponse with the status code matching its kind.
func Error(c *fiber.Ctx, err error) error {
	rayID := RayID(c)

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(ErrorResponse{
			Message: fiberErr.Message,
			Kind:    "http_error",
			RayID:   rayID,
		})
	}

	status := apperr.Status(err)
	body := ErrorResponse{
		Message: err.Error(),
		Kind:    apperr.Kind(err),
		RayID:   rayID,
	}

	if !apperr.IsKnown(err) {
		logger.Get().Error("Unhandled request error",
			zap.String("path", c.Path()),
			zap.String("ray_id", rayID),
			zap.Error(err),
		)
		body.Message = "Internal Server Error"
		if diagnostics.Load() {
			body.Detail = err.Error()
		}
	}

	return c.Status(status).JSON(body)
}
