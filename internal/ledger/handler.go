package ledger

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/horizon-treasury/horizon/internal/actor"
	"github.com/horizon-treasury/horizon/internal/envelope"
	"github.com/horizon-treasury/horizon/internal/policy"
	"github.com/horizon-treasury/horizon/internal/wallet"
)

// Handler exposes transaction command and query endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds the transactions HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type fundRequest struct {
	WalletID    string `json:"wallet_id"`
	AmountCents int64  `json:"amount_cents"`
}

type sendRequest struct {
	FromWalletID string `json:"from_wallet_id"`
	ToWalletID   string `json:"to_wallet_id"`
	AmountCents  int64  `json:"amount_cents"`
}

type withdrawRequest struct {
	WalletID      string `json:"wallet_id"`
	AmountCents   int64  `json:"amount_cents"`
	BankReference string `json:"bank_reference"`
}

type approveRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

type movementResponse struct {
	ID          string              `json:"id"`
	Status      Status              `json:"status"`
	Decision    policy.Decision     `json:"policy_decision"`
	ReasonCodes []policy.ReasonCode `json:"reason_codes"`
	Explain     string              `json:"explain"`
}

// Fund credits an external deposit into a wallet.
func (h *Handler) Fund(c *fiber.Ctx) error {
	var req fundRequest
	if err := c.BodyParser(&req); err != nil {
		return envelope.NewError(envelope.CodeValidation, err.Error())
	}
	return h.create(c, MovementInput{Type: TypeFund, ToWalletID: req.WalletID, AmountCents: req.AmountCents})
}

// Send moves funds between two wallets.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return envelope.NewError(envelope.CodeValidation, err.Error())
	}
	return h.create(c, MovementInput{
		Type:         TypeSend,
		FromWalletID: req.FromWalletID,
		ToWalletID:   req.ToWalletID,
		AmountCents:  req.AmountCents,
	})
}

// Withdraw debits a wallet toward an external destination.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return envelope.NewError(envelope.CodeValidation, err.Error())
	}
	return h.create(c, MovementInput{
		Type:         TypeWithdraw,
		FromWalletID: req.WalletID,
		AmountCents:  req.AmountCents,
		Notes:        req.BankReference,
	})
}

func (h *Handler) create(c *fiber.Ctx, input MovementInput) error {
	who, _ := c.Locals("actor").(actor.Actor)
	if who.ID == "" {
		return envelope.NewError(envelope.CodeUnauthorized, "not signed in")
	}
	if !who.CanCommand() {
		return envelope.NewError(envelope.CodeForbidden, "read-only actors cannot perform movements")
	}

	res, err := h.service.CreateMovement(c.UserContext(), who, input)
	if err != nil {
		return mapMovementError(err)
	}

	codes := res.Transaction.ReasonCodes
	if codes == nil {
		codes = []policy.ReasonCode{}
	}
	return envelope.JSON(c, http.StatusCreated, movementResponse{
		ID:          res.Transaction.ID,
		Status:      res.Transaction.Status,
		Decision:    res.Decision,
		ReasonCodes: codes,
		Explain:     res.Explain,
	})
}

// Approve applies a human APPROVE/REJECT decision to a pending transaction.
func (h *Handler) Approve(c *fiber.Ctx) error {
	who, _ := c.Locals("actor").(actor.Actor)
	if who.ID == "" {
		return envelope.NewError(envelope.CodeUnauthorized, "not signed in")
	}
	if !who.CanApprove() {
		return envelope.NewError(envelope.CodeForbidden, "approval requires the admin role")
	}

	var req approveRequest
	if err := c.BodyParser(&req); err != nil {
		return envelope.NewError(envelope.CodeValidation, err.Error())
	}

	tx, err := h.service.Approve(c.UserContext(), who, c.Params("id"), ApprovalDecision(req.Decision), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return envelope.NewError(envelope.CodeNotFound, "transaction not found")
		case errors.Is(err, ErrNotPending):
			return envelope.NewError(envelope.CodeConflict, "transaction is not awaiting approval")
		case errors.Is(err, ErrInvalidMovement):
			return envelope.NewError(envelope.CodeValidation, err.Error())
		default:
			return err
		}
	}
	return envelope.JSON(c, http.StatusOK, fiber.Map{"id": tx.ID, "status": tx.Status})
}

// List returns all transactions, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	txs, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	return envelope.JSON(c, http.StatusOK, toResponses(txs))
}

// ListPending returns transactions awaiting approval.
func (h *Handler) ListPending(c *fiber.Ctx) error {
	txs, err := h.service.ListPending(c.UserContext())
	if err != nil {
		return err
	}
	return envelope.JSON(c, http.StatusOK, toResponses(txs))
}

// Get returns one transaction by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	tx, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return envelope.NewError(envelope.CodeNotFound, "transaction not found")
		}
		return err
	}
	return envelope.JSON(c, http.StatusOK, toResponse(tx))
}

type transactionResponse struct {
	ID               string                `json:"id"`
	Type             Type                  `json:"type"`
	Status           Status                `json:"status"`
	AmountCents      int64                 `json:"amount_cents"`
	Currency         string                `json:"currency"`
	FromWalletID     string                `json:"from_wallet_id,omitempty"`
	ToWalletID       string                `json:"to_wallet_id,omitempty"`
	ActorID          string                `json:"actor_id"`
	RequiresApproval bool                  `json:"requires_approval"`
	ApprovedBy       string                `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time            `json:"approved_at,omitempty"`
	ApprovalReason   string                `json:"approval_reason,omitempty"`
	RejectionReason  string                `json:"rejection_reason,omitempty"`
	ReasonCodes      []policy.ReasonCode   `json:"reason_codes"`
	PolicyVersion    int                   `json:"policy_version"`
	PolicySnapshot   []policy.SnapshotRule `json:"policy_snapshot"`
	Notes            string                `json:"notes,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func toResponse(tx Transaction) transactionResponse {
	codes := tx.ReasonCodes
	if codes == nil {
		codes = []policy.ReasonCode{}
	}
	return transactionResponse{
		ID:               tx.ID,
		Type:             tx.Type,
		Status:           tx.Status,
		AmountCents:      tx.AmountCents,
		Currency:         tx.Currency,
		FromWalletID:     tx.FromWalletID,
		ToWalletID:       tx.ToWalletID,
		ActorID:          tx.ActorID,
		RequiresApproval: tx.RequiresApproval,
		ApprovedBy:       tx.ApprovedBy,
		ApprovedAt:       tx.ApprovedAt,
		ApprovalReason:   tx.ApprovalReason,
		RejectionReason:  tx.RejectionReason,
		ReasonCodes:      codes,
		PolicyVersion:    tx.PolicyVersion,
		PolicySnapshot:   tx.PolicySnapshot,
		Notes:            tx.Notes,
		CreatedAt:        tx.CreatedAt,
		UpdatedAt:        tx.UpdatedAt,
	}
}

func toResponses(txs []Transaction) []transactionResponse {
	out := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = toResponse(tx)
	}
	return out
}

func mapMovementError(err error) error {
	var blocked *BlockedError
	switch {
	case errors.As(err, &blocked):
		return envelope.NewError(envelope.CodePolicyBlocked, "policy blocked the movement").
			WithDetails(fiber.Map{"reason_codes": blocked.ReasonCodes, "explain": blocked.Explain})
	case errors.Is(err, ErrInvalidMovement):
		return envelope.NewError(envelope.CodeValidation, err.Error())
	case errors.Is(err, wallet.ErrNotFound):
		return envelope.NewError(envelope.CodeNotFound, "wallet not found")
	default:
		return err
	}
}
