package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/scoutlink/backend/internal/http/dto"
	"github.com/scoutlink/backend/internal/middleware"
	"github.com/scoutlink/backend/internal/services"
	"go.uber.org/zap"
)

type ReferralHandler struct {
	referralService *services.ReferralService
	log             *zap.Logger
}

func NewReferralHandler(referralService *services.ReferralService, log *zap.Logger) *ReferralHandler {
	return &ReferralHandler{referralService: referralService, log: log}
}

func (h *ReferralHandler) ProcessPayout(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid referral id"})
	}

	var req dto.ProcessReferralPayoutRequest
	if err := c.BodyParser(&req); err != nil || req.AmountCents <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "amount_cents is required"})
	}

	referral, err := h.referralService.ProcessPayout(c.Context(), id, middleware.GetUserID(c), req.AmountCents)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: referral})
}
