package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/scoutlink/backend/internal/http/dto"
	"github.com/scoutlink/backend/internal/middleware"
	"github.com/scoutlink/backend/internal/models"
	"github.com/scoutlink/backend/internal/repositories"
	"github.com/scoutlink/backend/internal/services"
	"go.uber.org/zap"
)

type EvaluationHandler struct {
	evalService *services.EvaluationService
	log         *zap.Logger
}

func NewEvaluationHandler(evalService *services.EvaluationService, log *zap.Logger) *EvaluationHandler {
	return &EvaluationHandler{evalService: evalService, log: log}
}

func (h *EvaluationHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateEvaluationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	payeeID, err := uuid.Parse(req.PayeeID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid payee_id"})
	}

	actorID := middleware.GetUserID(c)
	eval, checkoutURL, err := h.evalService.CreateRequest(c.Context(), actorID, payeeID, req.PriceCents)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.EvaluationCreatedResponse{
		Evaluation:  eval,
		CheckoutURL: checkoutURL,
	}})
}

func (h *EvaluationHandler) Gift(c *fiber.Ctx) error {
	var req dto.GiftEvaluationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid player_id"})
	}

	actorID := middleware.GetUserID(c)
	eval, err := h.evalService.CreateGifted(c.Context(), actorID, playerID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: eval})
}

func (h *EvaluationHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid evaluation id"})
	}

	eval, err := h.evalService.Get(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: eval})
}

func (h *EvaluationHandler) List(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	filter := repositories.EvaluationFilter{
		Limit:  20,
		Offset: 0,
	}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}

	switch middleware.GetRole(c) {
	case models.RoleScout:
		filter.PayeeID = &userID
	default:
		filter.RequesterID = &userID
	}

	evals, err := h.evalService.List(c.Context(), filter)
	if err != nil {
		h.log.Error("list evaluations failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: evals})
}

func (h *EvaluationHandler) Cancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid evaluation id"})
	}

	var req dto.CancelEvaluationRequest
	_ = c.BodyParser(&req)

	eval, err := h.evalService.Cancel(c.Context(), id, middleware.GetUserID(c), req.Reason)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: eval})
}

func (h *EvaluationHandler) Deny(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid evaluation id"})
	}

	var req dto.DenyEvaluationRequest
	_ = c.BodyParser(&req)

	eval, err := h.evalService.Deny(c.Context(), id, middleware.GetUserID(c), req.Reason)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: eval})
}

func (h *EvaluationHandler) Accept(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid evaluation id"})
	}

	eval, err := h.evalService.Accept(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: eval})
}

func (h *EvaluationHandler) Complete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid evaluation id"})
	}

	eval, err := h.evalService.Complete(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: eval})
}

func (h *EvaluationHandler) GetEvents(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid evaluation id"})
	}

	// Party check rides on Get.
	if _, err := h.evalService.Get(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return respondError(c, err)
	}

	events, err := h.evalService.GetEvents(c.Context(), id)
	if err != nil {
		h.log.Error("get evaluation events failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: events})
}
