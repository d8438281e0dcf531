package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the wallet id is unknown.
var ErrNotFound = errors.New("wallet not found")

// Repository persists wallet metadata.
type Repository interface {
	Create(ctx context.Context, w Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	List(ctx context.Context) ([]Wallet, error)
	FindByName(ctx context.Context, name string) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, name, kind, created_at)
        VALUES ($1, $2, $3, $4, $5)`, walletID, w.OwnerID, w.Name, string(w.Kind), w.CreatedAt.UTC())
	return err
}

// Get fetches wallet metadata by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, owner_id, name, kind, created_at
        FROM wallets WHERE id = $1`, walletID)
	return scanWallet(row)
}

// List returns all wallets, oldest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Wallet, error) {
	rows, err := r.db.Query(ctx, `SELECT id, owner_id, name, kind, created_at
        FROM wallets ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// FindByName fetches a wallet by its display name. Used by the seeder to
// keep startup idempotent.
func (r *PostgresRepository) FindByName(ctx context.Context, name string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT id, owner_id, name, kind, created_at
        FROM wallets WHERE name = $1`, name)
	return scanWallet(row)
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w         Wallet
		id        uuid.UUID
		kind      string
		createdAt time.Time
	)
	if err := row.Scan(&id, &w.OwnerID, &w.Name, &kind, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.Kind = Kind(kind)
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
