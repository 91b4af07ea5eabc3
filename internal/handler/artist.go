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

type ArtistHandler struct {
	service   *service.SongService
	validator *validator.Validate
}

func NewArtistHandler(svc *service.SongService, v *validator.Validate) *ArtistHandler {
	return &ArtistHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/artists
func (h *ArtistHandler) Create(c *fiber.Ctx) error {
	var req model.CreateArtistRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	artist, err := h.service.CreateArtist(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, artist)
}

// Get handles GET /api/artists/:artistId
func (h *ArtistHandler) Get(c *fiber.Ctx) error {
	artistID := c.Params("artistId")
	if artistID == "" {
		return response.ValidationError(c, "Artist ID is required", nil)
	}

	artist, err := h.service.GetArtist(c.Context(), artistID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Artist not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, artist)
}

// Follow handles POST /api/artists/:artistId/follow
func (h *ArtistHandler) Follow(c *fiber.Ctx) error {
	artistID := c.Params("artistId")
	if artistID == "" {
		return response.ValidationError(c, "Artist ID is required", nil)
	}

	if err := h.service.Follow(c.Context(), artistID, middleware.GetUserID(c)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Artist not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{"ok": true})
}

// Unfollow handles DELETE /api/artists/:artistId/follow
func (h *ArtistHandler) Unfollow(c *fiber.Ctx) error {
	artistID := c.Params("artistId")
	if artistID == "" {
		return response.ValidationError(c, "Artist ID is required", nil)
	}

	if err := h.service.Unfollow(c.Context(), artistID, middleware.GetUserID(c)); err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{"ok": true})
}
