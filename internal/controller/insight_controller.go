package controller

import (
	"context"
	"errors"

	"live-insights-be/internal/dto"
	"live-insights-be/internal/entity"
	"live-insights-be/internal/pkg/serverutils"
	"live-insights-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IInsightController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Accept(ctx *fiber.Ctx) error
	Dismiss(ctx *fiber.Ctx) error
}

type insightController struct {
	insightService service.IInsightService
}

func NewInsightController(insightService service.IInsightService) IInsightController {
	return &insightController{
		insightService: insightService,
	}
}

func (c *insightController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/insight/v1")
	h.Get("", c.List)
	h.Get(":id", c.Show)
	h.Post(":id/accept", c.Accept)
	h.Post(":id/dismiss", c.Dismiss)
}

func (c *insightController) List(ctx *fiber.Ctx) error {
	sessionIdParam := ctx.Query("session_id")
	sessionId, err := uuid.Parse(sessionIdParam)
	if err != nil {
		return serverutils.NewApiError(fiber.StatusBadRequest, "invalid or missing session_id")
	}

	insights, err := c.insightService.ListBySession(ctx.Context(), sessionId)
	if err != nil {
		return err
	}

	out := make([]*dto.InsightDTO, 0, len(insights))
	for _, insight := range insights {
		out = append(out, dto.ToInsightDTO(insight))
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list insights", out))
}

func (c *insightController) Show(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return serverutils.NewApiError(fiber.StatusBadRequest, "invalid insight id")
	}

	insight, err := c.insightService.FindOne(ctx.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrInsightNotFound) {
			return serverutils.NewApiError(fiber.StatusNotFound, "insight not found")
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show insight", dto.ToInsightDTO(insight)))
}

func (c *insightController) Accept(ctx *fiber.Ctx) error {
	return c.feedback(ctx, c.insightService.Accept)
}

func (c *insightController) Dismiss(ctx *fiber.Ctx) error {
	return c.feedback(ctx, c.insightService.Dismiss)
}

func (c *insightController) feedback(ctx *fiber.Ctx, apply func(context.Context, uuid.UUID) (*entity.Insight, error)) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return serverutils.NewApiError(fiber.StatusBadRequest, "invalid insight id")
	}

	insight, err := apply(ctx.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrInsightNotFound) {
			return serverutils.NewApiError(fiber.StatusNotFound, "insight not found")
		}
		if errors.Is(err, service.ErrInvalidTransition) {
			return serverutils.NewApiError(fiber.StatusConflict, "insight cannot take feedback in its current status")
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success record feedback", dto.FeedbackResponse{
		Id:     insight.Id,
		Status: string(insight.Status),
	}))
}
