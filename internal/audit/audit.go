package audit

import (
	"context"
	"time"

	"github.com/horizon-treasury/horizon/internal/policy"
)

// Action identifies what happened.
type Action string

const (
	ActionTxCreated       Action = "TX_CREATED"
	ActionPolicyEvaluated Action = "POLICY_EVALUATED"
	ActionTxApproved      Action = "TX_APPROVED"
	ActionTxRejected      Action = "TX_REJECTED"
	ActionWebhookIngested Action = "WEBHOOK_INGESTED"
	ActionBalanceUpdated  Action = "BALANCE_UPDATED"
)

// Resource names the entity an event is recorded against.
type Resource string

const (
	ResourceTransaction  Resource = "transaction"
	ResourceWebhookEvent Resource = "webhook_event"
	ResourceWallet       Resource = "wallet"
	ResourceBalance      Resource = "balance"
)

// Event is one immutable audit record. Events are appended in causal order
// and never edited or deleted; corrections are new events.
type Event struct {
	ID            string
	ActorID       string
	ActorEmail    string
	Action        Action
	Resource      Resource
	ResourceID    string
	PolicyVersion int
	ReasonCodes   []policy.ReasonCode
	Payload       map[string]any
	CreatedAt     time.Time
}

// Log is the append-only audit sink. Record fails only on storage errors,
// which are fatal to the call producing the event.
type Log interface {
	Record(ctx context.Context, event Event) error
	List(ctx context.Context) ([]Event, error)
}
