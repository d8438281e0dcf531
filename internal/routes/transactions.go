package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/horizon-treasury/horizon/internal/ledger"
)

// RegisterTransactionRoutes wires movement commands, approval, and queries.
// The pending listing registers before the id route so "pending" is never
// captured as a transaction id.
func RegisterTransactionRoutes(r fiber.Router, h *ledger.Handler) {
	r.Post("/transactions/fund", h.Fund)
	r.Post("/transactions/send", h.Send)
	r.Post("/transactions/withdraw", h.Withdraw)
	r.Post("/transactions/:id/approve", h.Approve)
	r.Get("/transactions", h.List)
	r.Get("/transactions/pending", h.ListPending)
	r.Get("/transactions/:id", h.Get)
}
