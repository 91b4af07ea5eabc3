package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/songhatch/api/internal/middleware"
	"github.com/songhatch/api/internal/service"
	"github.com/songhatch/api/pkg/response"
)

type NotificationHandler struct {
	service *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// List handles GET /api/notifications
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	notifications, err := h.service.List(c.Context(), middleware.GetUserID(c), limit)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{"notifications": notifications})
}
