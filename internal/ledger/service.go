package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/horizon-treasury/horizon/internal/actor"
	"github.com/horizon-treasury/horizon/internal/audit"
	"github.com/horizon-treasury/horizon/internal/notification"
	"github.com/horizon-treasury/horizon/internal/policy"
	"github.com/horizon-treasury/horizon/internal/wallet"
)

const currencyUSD = "USD"

// PolicySource supplies the live policy configuration. The service treats it
// as a value object fetched per call; it fills in the daily total itself.
type PolicySource interface {
	Current() policy.Config
}

// Settler submits a synthetic settlement event for an approved transaction
// so completion always flows through the one idempotent finalize path.
type Settler interface {
	Settle(ctx context.Context, tx Transaction) error
}

// BlockedError reports a policy BLOCK verdict. It is a normal business
// outcome, not an internal failure; no transaction is persisted.
type BlockedError struct {
	ReasonCodes []policy.ReasonCode
	Explain     string
}

func (e *BlockedError) Error() string {
	return "policy blocked the movement: " + e.Explain
}

// ErrInvalidMovement indicates malformed command input (non-positive amount,
// missing wallet reference).
var ErrInvalidMovement = errors.New("invalid movement")

// Service drives the transaction state machine. All completions, whether
// immediate or settled later, funnel through the store's atomic operations.
type Service struct {
	store    Store
	wallets  *wallet.Service
	auditLog audit.Log
	notifier notification.Notifier
	policies PolicySource
	settler  Settler
	now      func() time.Time
}

// NewService constructs the ledger service.
func NewService(store Store, wallets *wallet.Service, auditLog audit.Log, notifier notification.Notifier, policies PolicySource) *Service {
	return &Service{
		store:    store,
		wallets:  wallets,
		auditLog: auditLog,
		notifier: notifier,
		policies: policies,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AttachSettler wires the settlement trigger for the approval path. The
// settler is built after the service, so it cannot be a constructor argument.
func (s *Service) AttachSettler(settler Settler) {
	s.settler = settler
}

// MovementInput captures a proposed fund movement.
type MovementInput struct {
	Type         Type
	FromWalletID string
	ToWalletID   string
	AmountCents  int64
	Notes        string
}

// MovementResult reports the created transaction and the policy verdict.
type MovementResult struct {
	Transaction Transaction
	Decision    policy.Decision
	Explain     string
}

// CreateMovement evaluates policy and creates a transaction in
// PENDING_APPROVAL or COMPLETED. A BLOCK verdict creates nothing but is still
// audited against a synthetic resource id.
func (s *Service) CreateMovement(ctx context.Context, who actor.Actor, input MovementInput) (MovementResult, error) {
	if input.AmountCents <= 0 {
		return MovementResult{}, fmt.Errorf("%w: amount must be positive", ErrInvalidMovement)
	}
	if err := s.checkWallets(ctx, input); err != nil {
		return MovementResult{}, err
	}

	now := s.now()
	charged := chargedWallet(input)

	dailyTotal, err := s.store.DailyTotal(ctx, charged, now)
	if err != nil {
		return MovementResult{}, err
	}

	cfg := s.policies.Current()
	cfg.DailyTotalCents = dailyTotal

	req := policy.Request{
		Type:         policy.MovementType(input.Type),
		ActorID:      who.ID,
		FromWalletID: input.FromWalletID,
		ToWalletID:   input.ToWalletID,
		AmountCents:  input.AmountCents,
		Now:          now,
	}
	verdict := policy.Evaluate(cfg, req)

	if verdict.Decision == policy.DecisionBlock {
		// A blocked attempt is still an auditable fact; with no transaction
		// persisted it is logged against a synthetic resource id.
		syntheticID := uuid.NewString()
		if err := s.auditCreated(ctx, who, syntheticID, input, verdict, true); err != nil {
			return MovementResult{}, err
		}
		if err := s.auditEvaluated(ctx, who, syntheticID, verdict); err != nil {
			return MovementResult{}, err
		}
		return MovementResult{}, &BlockedError{ReasonCodes: verdict.ReasonCodes, Explain: verdict.Explain}
	}

	requires := verdict.Decision == policy.DecisionRequireApproval

	tx := Transaction{
		ID:               uuid.NewString(),
		Type:             input.Type,
		AmountCents:      input.AmountCents,
		Currency:         currencyUSD,
		FromWalletID:     input.FromWalletID,
		ToWalletID:       input.ToWalletID,
		ActorID:          who.ID,
		RequiresApproval: requires,
		ReasonCodes:      verdict.ReasonCodes,
		PolicyVersion:    verdict.Version,
		PolicySnapshot:   verdict.Snapshot,
		Notes:            input.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if requires {
		tx.Status = StatusPendingApproval
		if err := s.store.InsertPending(ctx, tx); err != nil {
			return MovementResult{}, err
		}
	} else {
		tx.Status = StatusCompleted
		// The daily total read above may be stale by commit time when another
		// movement for the same wallet completes in between. The guard runs
		// inside the store's critical section with the fresh total and
		// re-evaluates, so two concurrent movements cannot jointly exceed the
		// daily limit.
		guard := func(freshTotal int64) error {
			if freshTotal == dailyTotal {
				return nil
			}
			cfg.DailyTotalCents = freshTotal
			rev := policy.Evaluate(cfg, req)
			if rev.Decision == policy.DecisionBlock {
				verdict = rev
				return &BlockedError{ReasonCodes: rev.ReasonCodes, Explain: rev.Explain}
			}
			return nil
		}
		if err := s.store.InsertCompleted(ctx, tx, guard); err != nil {
			var blocked *BlockedError
			if errors.As(err, &blocked) {
				// Lost the race. Nothing was persisted, so the attempt is
				// audited against the never-stored transaction id.
				if aerr := s.auditCreated(ctx, who, tx.ID, input, verdict, true); aerr != nil {
					return MovementResult{}, aerr
				}
				if aerr := s.auditEvaluated(ctx, who, tx.ID, verdict); aerr != nil {
					return MovementResult{}, aerr
				}
			}
			return MovementResult{}, err
		}
	}

	if err := s.auditCreated(ctx, who, tx.ID, input, verdict, false); err != nil {
		return MovementResult{}, err
	}
	if err := s.auditEvaluated(ctx, who, tx.ID, verdict); err != nil {
		return MovementResult{}, err
	}

	if requires {
		s.notify(ctx, notification.KindApprovalRequested, tx)
	} else {
		if err := s.auditBalanceUpdated(ctx, tx); err != nil {
			return MovementResult{}, err
		}
		s.notify(ctx, notification.KindMovementCompleted, tx)
	}

	return MovementResult{Transaction: tx, Decision: verdict.Decision, Explain: verdict.Explain}, nil
}

// ApprovalDecision is a human sign-off outcome.
type ApprovalDecision string

const (
	DecisionApprove ApprovalDecision = "APPROVE"
	DecisionReject  ApprovalDecision = "REJECT"
)

// Approve applies a human decision to a pending transaction. APPROVE does not
// mutate balances; it triggers a synthetic settlement through the settler so
// completion runs through the idempotent finalize path.
func (s *Service) Approve(ctx context.Context, who actor.Actor, transactionID string, decision ApprovalDecision, reason string) (Transaction, error) {
	now := s.now()

	switch decision {
	case DecisionReject:
		tx, err := s.store.Reject(ctx, transactionID, reason, now)
		if err != nil {
			return Transaction{}, err
		}
		if err := s.record(ctx, audit.Event{
			ActorID:       who.ID,
			ActorEmail:    who.Email,
			Action:        audit.ActionTxRejected,
			Resource:      audit.ResourceTransaction,
			ResourceID:    tx.ID,
			PolicyVersion: tx.PolicyVersion,
			ReasonCodes:   tx.ReasonCodes,
			Payload:       map[string]any{"reason": reason},
		}); err != nil {
			return Transaction{}, err
		}
		return tx, nil

	case DecisionApprove:
		tx, err := s.store.Approve(ctx, transactionID, who.ID, reason, now)
		if err != nil {
			return Transaction{}, err
		}
		if err := s.record(ctx, audit.Event{
			ActorID:       who.ID,
			ActorEmail:    who.Email,
			Action:        audit.ActionTxApproved,
			Resource:      audit.ResourceTransaction,
			ResourceID:    tx.ID,
			PolicyVersion: tx.PolicyVersion,
			ReasonCodes:   tx.ReasonCodes,
			Payload:       map[string]any{"reason": reason},
		}); err != nil {
			return Transaction{}, err
		}
		if s.settler != nil {
			if err := s.settler.Settle(ctx, tx); err != nil {
				return Transaction{}, err
			}
			// Re-read: settlement may already have finalized it.
			if updated, err := s.store.Get(ctx, tx.ID); err == nil {
				tx = updated
			}
		}
		return tx, nil

	default:
		return Transaction{}, fmt.Errorf("%w: unknown decision %q", ErrInvalidMovement, decision)
	}
}

// Outcome is the terminal settlement result reported by the issuer.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Finalize moves a transaction to its terminal state. The COMPLETED path
// applies the balance mutation atomically with the flip; FAILED has no
// balance effect. ErrNotFound and ErrAlreadyFinal are sentinel results the
// webhook path treats as idempotent no-ops.
func (s *Service) Finalize(ctx context.Context, transactionID string, outcome Outcome) (Transaction, error) {
	now := s.now()

	switch outcome {
	case OutcomeCompleted:
		tx, err := s.store.Complete(ctx, transactionID, now)
		if err != nil {
			return tx, err
		}
		if err := s.auditBalanceUpdated(ctx, tx); err != nil {
			return tx, err
		}
		s.notify(ctx, notification.KindMovementCompleted, tx)
		return tx, nil

	case OutcomeFailed:
		tx, err := s.store.Fail(ctx, transactionID, now)
		if err != nil {
			return tx, err
		}
		s.notify(ctx, notification.KindMovementFailed, tx)
		return tx, nil

	default:
		return Transaction{}, fmt.Errorf("unknown settlement outcome %q", outcome)
	}
}

// Get retrieves a single transaction.
func (s *Service) Get(ctx context.Context, id string) (Transaction, error) {
	return s.store.Get(ctx, id)
}

// List returns all transactions, newest first.
func (s *Service) List(ctx context.Context) ([]Transaction, error) {
	return s.store.List(ctx)
}

// ListPending returns transactions awaiting approval.
func (s *Service) ListPending(ctx context.Context) ([]Transaction, error) {
	return s.store.ListPending(ctx)
}

func (s *Service) checkWallets(ctx context.Context, input MovementInput) error {
	switch input.Type {
	case TypeFund:
		if input.ToWalletID == "" {
			return fmt.Errorf("%w: destination wallet is required", ErrInvalidMovement)
		}
		_, err := s.wallets.Get(ctx, input.ToWalletID)
		return err
	case TypeSend:
		if input.FromWalletID == "" || input.ToWalletID == "" {
			return fmt.Errorf("%w: source and destination wallets are required", ErrInvalidMovement)
		}
		if input.FromWalletID == input.ToWalletID {
			return fmt.Errorf("%w: source and destination must differ", ErrInvalidMovement)
		}
		if _, err := s.wallets.Get(ctx, input.FromWalletID); err != nil {
			return err
		}
		_, err := s.wallets.Get(ctx, input.ToWalletID)
		return err
	case TypeWithdraw:
		if input.FromWalletID == "" {
			return fmt.Errorf("%w: source wallet is required", ErrInvalidMovement)
		}
		_, err := s.wallets.Get(ctx, input.FromWalletID)
		return err
	default:
		return fmt.Errorf("%w: unknown movement type %q", ErrInvalidMovement, input.Type)
	}
}

func chargedWallet(input MovementInput) string {
	if input.Type == TypeFund {
		return input.ToWalletID
	}
	return input.FromWalletID
}

func (s *Service) auditCreated(ctx context.Context, who actor.Actor, resourceID string, input MovementInput, verdict policy.Result, blocked bool) error {
	payload := map[string]any{"type": string(input.Type), "amount_cents": input.AmountCents}
	if blocked {
		payload["blocked"] = true
	}
	return s.record(ctx, audit.Event{
		ActorID:       who.ID,
		ActorEmail:    who.Email,
		Action:        audit.ActionTxCreated,
		Resource:      audit.ResourceTransaction,
		ResourceID:    resourceID,
		PolicyVersion: verdict.Version,
		ReasonCodes:   verdict.ReasonCodes,
		Payload:       payload,
	})
}

func (s *Service) auditEvaluated(ctx context.Context, who actor.Actor, resourceID string, verdict policy.Result) error {
	return s.record(ctx, audit.Event{
		ActorID:       who.ID,
		ActorEmail:    who.Email,
		Action:        audit.ActionPolicyEvaluated,
		Resource:      audit.ResourceTransaction,
		ResourceID:    resourceID,
		PolicyVersion: verdict.Version,
		ReasonCodes:   verdict.ReasonCodes,
		Payload:       map[string]any{"decision": string(verdict.Decision), "explain": verdict.Explain},
	})
}

func (s *Service) auditBalanceUpdated(ctx context.Context, tx Transaction) error {
	return s.record(ctx, audit.Event{
		ActorID:       tx.ActorID,
		Action:        audit.ActionBalanceUpdated,
		Resource:      audit.ResourceTransaction,
		ResourceID:    tx.ID,
		PolicyVersion: tx.PolicyVersion,
		ReasonCodes:   tx.ReasonCodes,
		Payload:       map[string]any{"type": string(tx.Type), "amount_cents": tx.AmountCents},
	})
}

func (s *Service) record(ctx context.Context, event audit.Event) error {
	return s.auditLog.Record(ctx, event)
}

func (s *Service) notify(ctx context.Context, kind string, tx Transaction) {
	if s.notifier == nil {
		return
	}
	dest := tx.ToWalletID
	if dest == "" {
		dest = tx.FromWalletID
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        kind,
		Destination: dest,
		Body:        fmt.Sprintf("%s of %d cents is %s", tx.Type, tx.AmountCents, tx.Status),
	})
}
