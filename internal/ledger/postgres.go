package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/horizon-treasury/horizon/internal/policy"
)

// PostgresStore persists transactions, balances, and daily totals in
// PostgreSQL. Completion wraps the status flip and the balance mutation in a
// single database transaction; wallet rows are locked in ascending id order
// so concurrent cross-wallet movements cannot deadlock.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Balance(ctx context.Context, walletID string) (int64, error) {
	var amount int64
	err := s.db.QueryRow(ctx, `SELECT amount_cents FROM wallet_balances WHERE wallet_id = $1`, walletID).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return amount, err
}

func (s *PostgresStore) EnsureBalance(ctx context.Context, walletID string, openingCents int64) error {
	_, err := s.db.Exec(ctx, `INSERT INTO wallet_balances (wallet_id, currency, amount_cents, updated_at)
        VALUES ($1, 'USD', $2, now())
        ON CONFLICT (wallet_id) DO NOTHING`, walletID, openingCents)
	return err
}

func (s *PostgresStore) InsertPending(ctx context.Context, tx Transaction) error {
	tx.Status = StatusPendingApproval
	return s.insert(ctx, s.db, tx)
}

func (s *PostgresStore) InsertCompleted(ctx context.Context, tx Transaction, guard func(int64) error) error {
	tx.Status = StatusCompleted

	dbTx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer dbTx.Rollback(ctx) // nolint:errcheck

	// Lock the daily-total row up front (creating it if absent) so concurrent
	// completions for the same wallet serialize here, then hand the fresh
	// total to the guard before anything is written.
	var dailyTotal int64
	if err := dbTx.QueryRow(ctx, `INSERT INTO daily_totals (wallet_id, day, total_cents)
        VALUES ($1, $2, 0)
        ON CONFLICT (wallet_id, day) DO UPDATE SET total_cents = daily_totals.total_cents
        RETURNING total_cents`,
		tx.ChargedWalletID(), dayKey(tx.CreatedAt)).Scan(&dailyTotal); err != nil {
		return err
	}
	if guard != nil {
		if err := guard(dailyTotal); err != nil {
			return err
		}
	}

	if err := s.insert(ctx, dbTx, tx); err != nil {
		return err
	}
	if err := applyCompletion(ctx, dbTx, tx); err != nil {
		return err
	}
	if _, err := dbTx.Exec(ctx, `UPDATE daily_totals SET total_cents = total_cents + $3
        WHERE wallet_id = $1 AND day = $2`,
		tx.ChargedWalletID(), dayKey(tx.CreatedAt), tx.AmountCents); err != nil {
		return err
	}

	return dbTx.Commit(ctx)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Transaction, error) {
	row := s.db.QueryRow(ctx, selectColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]Transaction, error) {
	return s.query(ctx, selectColumns+` FROM transactions ORDER BY created_at DESC, id DESC`)
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]Transaction, error) {
	return s.query(ctx, selectColumns+` FROM transactions WHERE status = 'PENDING_APPROVAL' ORDER BY created_at DESC, id DESC`)
}

func (s *PostgresStore) Approve(ctx context.Context, id, approverID, reason string, at time.Time) (Transaction, error) {
	return s.decide(ctx, id, at, `UPDATE transactions
        SET status = 'APPROVED', approved_by = $2, approved_at = $3, approval_reason = $4, updated_at = $3
        WHERE id = $1 AND status = 'PENDING_APPROVAL'`, approverID, at.UTC(), reason)
}

func (s *PostgresStore) Reject(ctx context.Context, id, reason string, at time.Time) (Transaction, error) {
	return s.decide(ctx, id, at, `UPDATE transactions
        SET status = 'REJECTED', rejection_reason = $2, updated_at = $3
        WHERE id = $1 AND status = 'PENDING_APPROVAL'`, reason, at.UTC())
}

func (s *PostgresStore) Complete(ctx context.Context, id string, at time.Time) (Transaction, error) {
	dbTx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer dbTx.Rollback(ctx) // nolint:errcheck

	tx, err := lockTransaction(ctx, dbTx, id)
	if err != nil {
		return Transaction{}, err
	}
	if tx.Terminal() {
		return tx, ErrAlreadyFinal
	}

	tx.Status = StatusCompleted
	tx.UpdatedAt = at.UTC()
	if _, err := dbTx.Exec(ctx, `UPDATE transactions SET status = 'COMPLETED', updated_at = $2 WHERE id = $1`, id, tx.UpdatedAt); err != nil {
		return Transaction{}, err
	}
	if err := applyCompletion(ctx, dbTx, tx); err != nil {
		return Transaction{}, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

func (s *PostgresStore) Fail(ctx context.Context, id string, at time.Time) (Transaction, error) {
	dbTx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer dbTx.Rollback(ctx) // nolint:errcheck

	tx, err := lockTransaction(ctx, dbTx, id)
	if err != nil {
		return Transaction{}, err
	}
	if tx.Terminal() {
		return tx, ErrAlreadyFinal
	}

	tx.Status = StatusFailed
	tx.UpdatedAt = at.UTC()
	if _, err := dbTx.Exec(ctx, `UPDATE transactions SET status = 'FAILED', updated_at = $2 WHERE id = $1`, id, tx.UpdatedAt); err != nil {
		return Transaction{}, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

func (s *PostgresStore) DailyTotal(ctx context.Context, walletID string, day time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRow(ctx, `SELECT total_cents FROM daily_totals WHERE wallet_id = $1 AND day = $2`,
		walletID, dayKey(day)).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return total, err
}

// dbtx abstracts over the pool and an open pgx transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectColumns = `SELECT id, type, status, amount_cents, currency, from_wallet_id, to_wallet_id,
    actor_id, requires_approval, approved_by, approved_at, approval_reason, rejection_reason,
    reason_codes, policy_version, policy_snapshot, notes, created_at, updated_at`

func (s *PostgresStore) insert(ctx context.Context, db dbtx, tx Transaction) error {
	codes := make([]string, len(tx.ReasonCodes))
	for i, c := range tx.ReasonCodes {
		codes[i] = string(c)
	}
	snapshot, err := json.Marshal(tx.PolicySnapshot)
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx, `INSERT INTO transactions
        (id, type, status, amount_cents, currency, from_wallet_id, to_wallet_id, actor_id,
         requires_approval, reason_codes, policy_version, policy_snapshot, notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		tx.ID, string(tx.Type), string(tx.Status), tx.AmountCents, tx.Currency,
		nullable(tx.FromWalletID), nullable(tx.ToWalletID), tx.ActorID,
		tx.RequiresApproval, codes, tx.PolicyVersion, snapshot, nullable(tx.Notes),
		tx.CreatedAt.UTC(), tx.UpdatedAt.UTC())
	return err
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// decide runs an approval-gated UPDATE and distinguishes a missing
// transaction from one that is no longer pending.
func (s *PostgresStore) decide(ctx context.Context, id string, at time.Time, sql string, args ...any) (Transaction, error) {
	tag, err := s.db.Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return Transaction{}, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return Transaction{}, err
		}
		return Transaction{}, ErrNotPending
	}
	return s.Get(ctx, id)
}

func lockTransaction(ctx context.Context, db dbtx, id string) (Transaction, error) {
	row := db.QueryRow(ctx, selectColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
	return scanTransaction(row)
}

// applyCompletion mutates wallet balances for a completed movement. Rows are
// locked in ascending wallet id order.
func applyCompletion(ctx context.Context, db dbtx, tx Transaction) error {
	deltas := make(map[string]int64)
	switch tx.Type {
	case TypeFund:
		deltas[tx.ToWalletID] += tx.AmountCents
	case TypeSend:
		deltas[tx.FromWalletID] -= tx.AmountCents
		deltas[tx.ToWalletID] += tx.AmountCents
	case TypeWithdraw:
		deltas[tx.FromWalletID] -= tx.AmountCents
	}

	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		var current int64
		err := db.QueryRow(ctx, `SELECT amount_cents FROM wallet_balances WHERE wallet_id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			if _, err := db.Exec(ctx, `INSERT INTO wallet_balances (wallet_id, currency, amount_cents, updated_at)
                VALUES ($1, 'USD', $2, now())`, id, deltas[id]); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if _, err := db.Exec(ctx, `UPDATE wallet_balances SET amount_cents = amount_cents + $2, updated_at = now()
            WHERE wallet_id = $1`, id, deltas[id]); err != nil {
			return err
		}
	}
	return nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		tx              Transaction
		typ             string
		status          string
		fromWallet      *string
		toWallet        *string
		approvedBy      *string
		approvedAt      *time.Time
		approvalReason  *string
		rejectionReason *string
		codes           []string
		snapshot        []byte
		notes           *string
	)
	err := row.Scan(&tx.ID, &typ, &status, &tx.AmountCents, &tx.Currency, &fromWallet, &toWallet,
		&tx.ActorID, &tx.RequiresApproval, &approvedBy, &approvedAt, &approvalReason, &rejectionReason,
		&codes, &tx.PolicyVersion, &snapshot, &notes, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}

	tx.Type = Type(typ)
	tx.Status = Status(status)
	tx.FromWalletID = deref(fromWallet)
	tx.ToWalletID = deref(toWallet)
	tx.ApprovedBy = deref(approvedBy)
	tx.ApprovalReason = deref(approvalReason)
	tx.RejectionReason = deref(rejectionReason)
	tx.Notes = deref(notes)
	if approvedAt != nil {
		at := approvedAt.UTC()
		tx.ApprovedAt = &at
	}
	tx.ReasonCodes = make([]policy.ReasonCode, len(codes))
	for i, c := range codes {
		tx.ReasonCodes[i] = policy.ReasonCode(c)
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &tx.PolicySnapshot); err != nil {
			return Transaction{}, err
		}
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	return tx, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
