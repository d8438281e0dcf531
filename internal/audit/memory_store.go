package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryLog struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryLog constructs an in-memory append-only log for tests and dev mode.
func NewMemoryLog() Log {
	return &memoryLog{}
}

func (l *memoryLog) Record(_ context.Context, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	l.events = append(l.events, event)
	return nil
}

// List returns events newest first.
func (l *memoryLog) List(_ context.Context) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	for i, ev := range l.events {
		out[len(l.events)-1-i] = ev
	}
	return out, nil
}
