package webhook

import (
	"context"
	"errors"
)

var (
	// ErrDuplicate indicates an event with the same provider and payload hash
	// was already ingested. Uniqueness is enforced at the storage layer so
	// concurrent replays cannot race past an application-level check.
	ErrDuplicate = errors.New("webhook event already ingested")

	// ErrNotFound indicates the event id is unknown.
	ErrNotFound = errors.New("webhook event not found")
)

// Store persists ingested webhook events.
type Store interface {
	// Insert stores a new event. Returns ErrDuplicate when (provider,
	// payload hash) already exists.
	Insert(ctx context.Context, ev Event) error

	Get(ctx context.Context, id string) (Event, error)

	// FindByHash returns the event previously ingested for the given
	// provider and payload hash.
	FindByHash(ctx context.Context, provider, payloadHash string) (Event, error)

	// List returns events newest first.
	List(ctx context.Context) ([]Event, error)
}
