package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/scoutlink/backend/internal/http/dto"
	"github.com/scoutlink/backend/internal/payments"
	"github.com/scoutlink/backend/internal/repositories"
	"github.com/scoutlink/backend/internal/services"
)

// respondError maps service errors to HTTP statuses. Conflicts surface as 409
// so clients know to reload and retry rather than blindly repeat.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, repositories.ErrNotFound),
		errors.Is(err, repositories.ErrUserNotFound),
		errors.Is(err, repositories.ErrReferralNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, repositories.ErrStatusConflict):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, payments.ErrDestinationNotOnboarded):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, payments.ErrGatewayFailure):
		status = fiber.StatusBadGateway
	}

	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		msg = "internal error"
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: msg})
}
