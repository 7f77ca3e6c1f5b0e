package controller

import (
	"errors"

	"live-insights-be/internal/dto"
	"live-insights-be/internal/pkg/serverutils"
	"live-insights-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	End(ctx *fiber.Ctx) error
	ContextStats(ctx *fiber.Ctx) error
}

type sessionController struct {
	sessionService    service.ISessionService
	transcriptService service.ITranscriptService
}

func NewSessionController(sessionService service.ISessionService, transcriptService service.ITranscriptService) ISessionController {
	return &sessionController{
		sessionService:    sessionService,
		transcriptService: transcriptService,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session/v1")
	h.Post("", c.Create)
	h.Delete(":id", c.End)
	h.Get(":id/context/stats", c.ContextStats)
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.sessionService.Create(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *sessionController) End(ctx *fiber.Ctx) error {
	idParam := ctx.Params("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		return serverutils.NewApiError(fiber.StatusBadRequest, "invalid session id")
	}

	res, err := c.sessionService.End(ctx.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return serverutils.NewApiError(fiber.StatusNotFound, "session not found")
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success end session", res))
}

func (c *sessionController) ContextStats(ctx *fiber.Ctx) error {
	idParam := ctx.Params("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		return serverutils.NewApiError(fiber.StatusBadRequest, "invalid session id")
	}

	res, err := c.transcriptService.BufferStats(ctx.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return serverutils.NewApiError(fiber.StatusNotFound, "session not found")
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show context stats", res))
}
