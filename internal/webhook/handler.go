package webhook

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/horizon-treasury/horizon/internal/actor"
	"github.com/horizon-treasury/horizon/internal/envelope"
	"github.com/horizon-treasury/horizon/internal/ledger"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "x-signature"

const ingestTimeout = 10 * time.Second

// Handler exposes the webhook receive endpoint plus inspection and
// simulation routes.
type Handler struct {
	ingestor  *Ingestor
	simulator *Simulator
	store     Store
	ledger    *ledger.Service
}

// NewHandler builds the webhook HTTP handler.
func NewHandler(ingestor *Ingestor, simulator *Simulator, store Store, ledgerSvc *ledger.Service) *Handler {
	return &Handler{ingestor: ingestor, simulator: simulator, store: store, ledger: ledgerSvc}
}

// Receive ingests a signed issuer delivery. Replays return 200 with status
// "deduped" so the issuer does not retry them forever.
func (h *Handler) Receive(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), ingestTimeout)
	defer cancel()

	res, err := h.ingestor.Ingest(ctx, c.Body(), c.Get(SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, ErrBadSignature):
			return envelope.NewError(envelope.CodeWebhookSignatureInvalid, "signature verification failed")
		case errors.Is(err, ErrBadPayload):
			return envelope.NewError(envelope.CodeValidation, err.Error())
		default:
			return err
		}
	}
	// The issuer contract is a bare {status, id} body, not the envelope;
	// this route sits outside /api/v1.
	return c.Status(http.StatusOK).JSON(fiber.Map{"id": res.EventID, "status": res.Status})
}

type eventResponse struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	EventType   string    `json:"event_type"`
	Status      Status    `json:"status"`
	PayloadHash string    `json:"payload_hash"`
	ReceivedAt  time.Time `json:"received_at"`
}

// List returns ingested events, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	events, err := h.store.List(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]eventResponse, len(events))
	for i, ev := range events {
		out[i] = eventResponse{
			ID:          ev.ID,
			Provider:    ev.Provider,
			EventType:   ev.EventType,
			Status:      ev.Status,
			PayloadHash: ev.PayloadHash,
			ReceivedAt:  ev.ReceivedAt,
		}
	}
	return envelope.JSON(c, http.StatusOK, out)
}

type simulateRequest struct {
	TransactionID string `json:"transaction_id"`
	EventType     string `json:"event_type"`
}

// Simulate builds, signs, and ingests a settlement event for a transaction.
// Admin only; meant for dev environments without a real issuer.
func (h *Handler) Simulate(c *fiber.Ctx) error {
	who, _ := c.Locals("actor").(actor.Actor)
	if who.ID == "" {
		return envelope.NewError(envelope.CodeUnauthorized, "not signed in")
	}
	if !who.CanApprove() {
		return envelope.NewError(envelope.CodeForbidden, "simulation requires the admin role")
	}

	var req simulateRequest
	if err := c.BodyParser(&req); err != nil {
		return envelope.NewError(envelope.CodeValidation, err.Error())
	}
	if req.TransactionID == "" {
		return envelope.NewError(envelope.CodeValidation, "transaction_id is required")
	}

	eventType := req.EventType
	if eventType == "" {
		tx, err := h.ledger.Get(c.UserContext(), req.TransactionID)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return envelope.NewError(envelope.CodeNotFound, "transaction not found")
			}
			return err
		}
		eventType = eventTypeFor(tx.Type)
	}

	body, signature, err := h.simulator.Build(req.TransactionID, eventType)
	if err != nil {
		return err
	}
	res, err := h.ingestor.Ingest(c.UserContext(), body, signature)
	if err != nil {
		return err
	}
	return envelope.JSON(c, http.StatusOK, fiber.Map{"id": res.EventID, "status": res.Status, "event_type": eventType})
}
