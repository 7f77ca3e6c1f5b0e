package controller

import (
	"errors"

	"live-insights-be/internal/dto"
	"live-insights-be/internal/pkg/serverutils"
	"live-insights-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ITranscriptController interface {
	RegisterRoutes(r fiber.Router)
	ProcessChunk(ctx *fiber.Ctx) error
}

type transcriptController struct {
	transcriptService service.ITranscriptService
}

func NewTranscriptController(transcriptService service.ITranscriptService) ITranscriptController {
	return &transcriptController{
		transcriptService: transcriptService,
	}
}

func (c *transcriptController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/transcript/v1")
	h.Post("chunk", c.ProcessChunk)
}

func (c *transcriptController) ProcessChunk(ctx *fiber.Ctx) error {
	var req dto.ProcessChunkRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.transcriptService.ProcessChunk(ctx.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return serverutils.NewApiError(fiber.StatusNotFound, "session not found")
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success process chunk", res))
}
