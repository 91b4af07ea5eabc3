package handler

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/songhatch/api/internal/model"
	"github.com/songhatch/api/internal/service"
	"github.com/songhatch/api/pkg/response"
)

// WebhookHandler receives provider generation callbacks.
type WebhookHandler struct {
	reconciler *service.ReconcileService
}

func NewWebhookHandler(reconciler *service.ReconcileService) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// Receive handles POST /webhooks/suno. Well-formed events always get a
// 200 — including unmatched and duplicate deliveries — so the provider
// stops retrying; only malformed payloads and integrity problems are
// client errors.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	var ev model.WebhookEvent
	if err := c.BodyParser(&ev); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := ev.Validate(); err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	var (
		outcome *service.ReconcileOutcome
		err     error
	)
	if ev.IsLyricsUpdate() {
		outcome, err = h.reconciler.HandleLyricsUpdate(c.Context(), &ev)
	} else {
		outcome, err = h.reconciler.HandleConversionComplete(c.Context(), &ev)
	}
	if err != nil {
		if errors.Is(err, service.ErrSongMissing) {
			return response.ValidationError(c, "Song not found for generation", nil)
		}
		log.Printf("[Webhook] processing failed (task=%s conversion=%s subtype=%s): %v",
			ev.TaskID, ev.ConversionID, ev.Subtype, err)
		return response.ServiceError(c, "Failed to process webhook")
	}

	if !outcome.Matched {
		return response.OK(c, fiber.Map{"ok": true})
	}
	if outcome.Duplicate {
		log.Printf("[Webhook] duplicate delivery for generation %s, conversion %s", outcome.GenerationID, ev.ConversionID)
	}
	return response.OK(c, fiber.Map{"ok": true})
}
