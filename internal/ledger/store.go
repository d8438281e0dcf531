package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the transaction id is unknown.
	ErrNotFound = errors.New("transaction not found")

	// ErrNotPending indicates an approval decision was attempted on a
	// transaction that is not awaiting approval. Approval is not idempotent;
	// a second call must fail loudly.
	ErrNotPending = errors.New("transaction is not awaiting approval")

	// ErrAlreadyFinal indicates a finalize hit a transaction already in a
	// terminal state. The webhook path treats this as an expected no-op.
	ErrAlreadyFinal = errors.New("transaction already finalized")
)

// Store owns transactions, balances, and daily running totals. Implementations
// must serialize mutations per transaction and per wallet, and must make the
// status flip and the balance mutation of a completion a single atomic step.
type Store interface {
	// Balance returns the current amount in USD cents; unknown wallets read
	// as zero. Satisfies wallet.BalanceReader.
	Balance(ctx context.Context, walletID string) (int64, error)

	// EnsureBalance creates the balance row with an opening amount if the
	// wallet has none. Idempotent; used by startup seeding.
	EnsureBalance(ctx context.Context, walletID string, openingCents int64) error

	// InsertPending stores a transaction born into PENDING_APPROVAL.
	InsertPending(ctx context.Context, tx Transaction) error

	// InsertCompleted stores a transaction born directly into COMPLETED,
	// applying the balance mutation and committing the daily running total
	// atomically with the insert. A non-nil guard runs inside the charged
	// wallet's critical section with the freshly read same-day total, before
	// anything is written; a guard error aborts the insert and is returned
	// unchanged. This closes the race between two movements that both read
	// the daily total before either commits.
	InsertCompleted(ctx context.Context, tx Transaction, guard func(dailyTotalCents int64) error) error

	Get(ctx context.Context, id string) (Transaction, error)
	List(ctx context.Context) ([]Transaction, error)
	ListPending(ctx context.Context) ([]Transaction, error)

	// Approve flips PENDING_APPROVAL to APPROVED. No balance effect.
	Approve(ctx context.Context, id, approverID, reason string, at time.Time) (Transaction, error)

	// Reject flips PENDING_APPROVAL to REJECTED. No balance effect.
	Reject(ctx context.Context, id, reason string, at time.Time) (Transaction, error)

	// Complete flips a non-terminal transaction to COMPLETED and applies the
	// balance mutation in the same atomic step.
	Complete(ctx context.Context, id string, at time.Time) (Transaction, error)

	// Fail flips a non-terminal transaction to FAILED. No balance effect.
	Fail(ctx context.Context, id string, at time.Time) (Transaction, error)

	// DailyTotal returns the committed same-day total for the wallet on the
	// UTC day containing the given instant.
	DailyTotal(ctx context.Context, walletID string, day time.Time) (int64, error)
}

// dayKey buckets an instant into its UTC calendar day.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
