package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/horizon-treasury/horizon/internal/audit"
)

// RegisterAuditRoutes wires the audit trail listing.
func RegisterAuditRoutes(r fiber.Router, h *audit.Handler) {
	r.Get("/audit-events", h.List)
}
