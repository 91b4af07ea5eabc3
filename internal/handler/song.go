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

type SongHandler struct {
	service   *service.SongService
	validator *validator.Validate
}

func NewSongHandler(svc *service.SongService, v *validator.Validate) *SongHandler {
	return &SongHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/songs
func (h *SongHandler) Create(c *fiber.Ctx) error {
	var req model.CreateSongRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	song, err := h.service.CreateSong(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Artist not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, song)
}

// Get handles GET /api/songs/:songId
func (h *SongHandler) Get(c *fiber.Ctx) error {
	songID := c.Params("songId")
	if songID == "" {
		return response.ValidationError(c, "Song ID is required", nil)
	}

	song, err := h.service.GetSong(c.Context(), songID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Song not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, song)
}

// Versions handles GET /api/songs/:songId/versions
func (h *SongHandler) Versions(c *fiber.Ctx) error {
	songID := c.Params("songId")
	if songID == "" {
		return response.ValidationError(c, "Song ID is required", nil)
	}

	versions, err := h.service.GetSongVersions(c.Context(), songID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Song not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{"versions": versions})
}

// SetPrimary handles POST /api/songs/:songId/versions/:versionId/primary
func (h *SongHandler) SetPrimary(c *fiber.Ctx) error {
	songID := c.Params("songId")
	versionID := c.Params("versionId")
	if songID == "" || versionID == "" {
		return response.ValidationError(c, "Song ID and version ID are required", nil)
	}

	if err := h.service.SetPrimaryVersion(c.Context(), songID, versionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Song or version not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{"ok": true})
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return err.Error()
}
