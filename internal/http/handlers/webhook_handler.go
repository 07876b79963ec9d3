package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/scoutlink/backend/internal/http/dto"
	"github.com/scoutlink/backend/internal/payments"
	"github.com/scoutlink/backend/internal/services"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	webhookService *services.WebhookService
	log            *zap.Logger
}

func NewWebhookHandler(webhookService *services.WebhookService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService, log: log}
}

// HandlePayment receives processor deliveries. The raw body is passed through
// untouched: the signature covers the exact bytes on the wire. A non-2xx
// response makes the processor retry, so only transient failures return 500.
func (h *WebhookHandler) HandlePayment(c *fiber.Ctx) error {
	payload := c.Body()
	sig := c.Get(payments.SignatureHeader)

	err := h.webhookService.HandleEvent(c.Context(), payload, sig)
	if err == nil {
		return c.JSON(dto.SuccessResponse{OK: true})
	}

	if errors.Is(err, payments.ErrInvalidSignature) || errors.Is(err, payments.ErrStaleTimestamp) {
		h.log.Warn("webhook rejected", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid signature"})
	}

	h.log.Error("webhook processing failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "processing failed"})
}
