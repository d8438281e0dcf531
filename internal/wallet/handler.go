package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/horizon-treasury/horizon/internal/envelope"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type walletResponse struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Name         string    `json:"name"`
	Kind         Kind      `json:"kind"`
	BalanceCents int64     `json:"balance_cents"`
	CreatedAt    time.Time `json:"created_at"`
}

// List returns all wallets with their current balances.
func (h *Handler) List(c *fiber.Ctx) error {
	wallets, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]walletResponse, 0, len(wallets))
	for _, w := range wallets {
		bal, err := h.service.Balance(c.UserContext(), w.ID)
		if err != nil {
			return err
		}
		out = append(out, walletResponse{
			ID:           w.ID,
			OwnerID:      w.OwnerID,
			Name:         w.Name,
			Kind:         w.Kind,
			BalanceCents: bal.AmountCents,
			CreatedAt:    w.CreatedAt,
		})
	}
	return envelope.JSON(c, http.StatusOK, out)
}

// Balance returns the balance for a single wallet.
func (h *Handler) Balance(c *fiber.Ctx) error {
	walletID := c.Params("id")
	bal, err := h.service.Balance(c.UserContext(), walletID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return envelope.NewError(envelope.CodeNotFound, "wallet not found")
		}
		return err
	}
	return envelope.JSON(c, http.StatusOK, fiber.Map{
		"wallet_id":     bal.WalletID,
		"currency":      bal.Currency,
		"balance_cents": bal.AmountCents,
		"as_of":         bal.AsOf,
	})
}
