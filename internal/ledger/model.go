package ledger

import (
	"time"

	"github.com/horizon-treasury/horizon/internal/policy"
)

// Type enumerates fund movements.
type Type string

const (
	TypeFund     Type = "FUND"
	TypeSend     Type = "SEND"
	TypeWithdraw Type = "WITHDRAW"
)

// Status is the transaction lifecycle state. A transaction is born directly
// into PENDING_APPROVAL or COMPLETED depending on the policy verdict.
type Status string

const (
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusCompleted       Status = "COMPLETED"
	StatusFailed          Status = "FAILED"
)

// Transaction records one fund movement. Created once, mutated only through
// the state machine, never deleted.
type Transaction struct {
	ID               string
	Type             Type
	Status           Status
	AmountCents      int64
	Currency         string
	FromWalletID     string
	ToWalletID       string
	ActorID          string
	RequiresApproval bool
	ApprovedBy       string
	ApprovedAt       *time.Time
	ApprovalReason   string
	RejectionReason  string
	ReasonCodes      []policy.ReasonCode
	PolicyVersion    int
	PolicySnapshot   []policy.SnapshotRule
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Terminal reports whether the transaction has reached a final state.
func (t Transaction) Terminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusRejected:
		return true
	}
	return false
}

// ChargedWalletID is the wallet whose daily running total the movement
// counts against: the source for SEND and WITHDRAW, the destination for FUND.
func (t Transaction) ChargedWalletID() string {
	if t.Type == TypeFund {
		return t.ToWalletID
	}
	return t.FromWalletID
}
