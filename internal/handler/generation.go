package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/songhatch/api/internal/middleware"
	"github.com/songhatch/api/internal/model"
	"github.com/songhatch/api/internal/service"
	"github.com/songhatch/api/internal/store"
	"github.com/songhatch/api/pkg/response"
)

type GenerationHandler struct {
	service   *service.GenerationService
	validator *validator.Validate
}

func NewGenerationHandler(svc *service.GenerationService, v *validator.Validate) *GenerationHandler {
	return &GenerationHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/songs/:songId/generate
func (h *GenerationHandler) Start(c *fiber.Ctx) error {
	songID := c.Params("songId")
	if songID == "" {
		return response.ValidationError(c, "Song ID is required", nil)
	}

	var req model.StartGenerationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	g, err := h.service.StartGeneration(c.Context(), middleware.GetUserID(c), songID, &req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Song not found")
		}
		return response.ProviderError(c, err.Error())
	}

	return response.Accepted(c, g)
}

// Get handles GET /api/generations/:generationId
func (h *GenerationHandler) Get(c *fiber.Ctx) error {
	generationID := c.Params("generationId")
	if generationID == "" {
		return response.ValidationError(c, "Generation ID is required", nil)
	}

	g, err := h.service.GetGeneration(c.Context(), generationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Generation not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, g)
}
