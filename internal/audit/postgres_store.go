package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/horizon-treasury/horizon/internal/policy"
)

// PostgresLog appends audit events to PostgreSQL. The table carries no
// update or delete path by design.
type PostgresLog struct {
	db *pgxpool.Pool
}

// NewPostgresLog builds a log backed by PostgreSQL.
func NewPostgresLog(db *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{db: db}
}

func (l *PostgresLog) Record(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	codes := make([]string, len(event.ReasonCodes))
	for i, c := range event.ReasonCodes {
		codes[i] = string(c)
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	_, err = l.db.Exec(ctx, `INSERT INTO audit_events
        (id, actor_id, actor_email, action, resource, resource_id, policy_version, reason_codes, payload, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		event.ID, nullable(event.ActorID), nullable(event.ActorEmail), string(event.Action),
		string(event.Resource), event.ResourceID, event.PolicyVersion, codes, payload, event.CreatedAt)
	return err
}

// List returns events newest first.
func (l *PostgresLog) List(ctx context.Context) ([]Event, error) {
	rows, err := l.db.Query(ctx, `SELECT id, actor_id, actor_email, action, resource, resource_id,
        policy_version, reason_codes, payload, created_at
        FROM audit_events ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev         Event
			actorID    *string
			actorEmail *string
			action     string
			resource   string
			codes      []string
			payload    []byte
		)
		if err := rows.Scan(&ev.ID, &actorID, &actorEmail, &action, &resource, &ev.ResourceID,
			&ev.PolicyVersion, &codes, &payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if actorID != nil {
			ev.ActorID = *actorID
		}
		if actorEmail != nil {
			ev.ActorEmail = *actorEmail
		}
		ev.Action = Action(action)
		ev.Resource = Resource(resource)
		ev.ReasonCodes = make([]policy.ReasonCode, len(codes))
		for i, c := range codes {
			ev.ReasonCodes[i] = policy.ReasonCode(c)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &ev.Payload); err != nil {
				return nil, err
			}
		}
		ev.CreatedAt = ev.CreatedAt.UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
