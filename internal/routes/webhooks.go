package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/horizon-treasury/horizon/internal/webhook"
)

// RegisterWebhookRoutes wires webhook inspection and the dev simulator. The
// public receive endpoint is registered separately, outside the auth group.
func RegisterWebhookRoutes(r fiber.Router, h *webhook.Handler) {
	r.Get("/webhooks", h.List)
	r.Post("/webhooks/simulate", h.Simulate)
}
