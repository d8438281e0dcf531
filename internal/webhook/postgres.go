package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists webhook events in PostgreSQL. A unique index on
// (provider, payload_hash) makes dedup safe under concurrent replays.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectColumns = `SELECT id, provider, event_type, status, payload, payload_hash, received_at`

func (s *PostgresStore) Insert(ctx context.Context, ev Event) error {
	tag, err := s.db.Exec(ctx, `INSERT INTO webhook_events
        (id, provider, event_type, status, payload, payload_hash, received_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (provider, payload_hash) DO NOTHING`,
		ev.ID, ev.Provider, ev.EventType, string(ev.Status), ev.Payload, ev.PayloadHash, ev.ReceivedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Event, error) {
	row := s.db.QueryRow(ctx, selectColumns+` FROM webhook_events WHERE id = $1`, id)
	return scanEvent(row)
}

func (s *PostgresStore) FindByHash(ctx context.Context, provider, payloadHash string) (Event, error) {
	row := s.db.QueryRow(ctx, selectColumns+` FROM webhook_events WHERE provider = $1 AND payload_hash = $2`,
		provider, payloadHash)
	return scanEvent(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]Event, error) {
	rows, err := s.db.Query(ctx, selectColumns+` FROM webhook_events ORDER BY received_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanEvent(row pgx.Row) (Event, error) {
	var (
		ev         Event
		status     string
		receivedAt time.Time
	)
	err := row.Scan(&ev.ID, &ev.Provider, &ev.EventType, &status, &ev.Payload, &ev.PayloadHash, &receivedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, err
	}
	ev.Status = Status(status)
	ev.ReceivedAt = receivedAt.UTC()
	return ev, nil
}
