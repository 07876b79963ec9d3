package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/scoutlink/backend/internal/http/dto"
	"github.com/scoutlink/backend/internal/middleware"
	"github.com/scoutlink/backend/internal/services"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	center *services.NotificationCenter
	log    *zap.Logger
}

func NewNotificationHandler(center *services.NotificationCenter, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{center: center, log: log}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	limit, offset := 20, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	notifs, err := h.center.List(c.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		h.log.Error("list notifications failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: notifs})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid notification id"})
	}

	if err := h.center.MarkRead(c.Context(), id, middleware.GetUserID(c)); err != nil {
		h.log.Error("mark notification read failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}
