package audit

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/horizon-treasury/horizon/internal/envelope"
	"github.com/horizon-treasury/horizon/internal/policy"
)

// Handler exposes the audit trail read endpoint.
type Handler struct {
	log Log
}

// NewHandler builds an audit HTTP handler.
func NewHandler(log Log) *Handler {
	return &Handler{log: log}
}

type eventResponse struct {
	ID            string              `json:"id"`
	ActorID       string              `json:"actor_id,omitempty"`
	ActorEmail    string              `json:"actor_email,omitempty"`
	Action        Action              `json:"action"`
	Resource      Resource            `json:"resource"`
	ResourceID    string              `json:"resource_id"`
	PolicyVersion int                 `json:"policy_version,omitempty"`
	ReasonCodes   []policy.ReasonCode `json:"reason_codes"`
	Payload       map[string]any      `json:"payload,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// List returns the full audit trail, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	events, err := h.log.List(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]eventResponse, len(events))
	for i, ev := range events {
		codes := ev.ReasonCodes
		if codes == nil {
			codes = []policy.ReasonCode{}
		}
		out[i] = eventResponse{
			ID:            ev.ID,
			ActorID:       ev.ActorID,
			ActorEmail:    ev.ActorEmail,
			Action:        ev.Action,
			Resource:      ev.Resource,
			ResourceID:    ev.ResourceID,
			PolicyVersion: ev.PolicyVersion,
			ReasonCodes:   codes,
			Payload:       ev.Payload,
			CreatedAt:     ev.CreatedAt,
		}
	}
	return envelope.JSON(c, http.StatusOK, out)
}
