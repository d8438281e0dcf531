package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/horizon-treasury/horizon/internal/wallet"
)

// RegisterWalletRoutes wires wallet queries.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallets", h.List)
	r.Get("/wallets/:id/balance", h.Balance)
}
