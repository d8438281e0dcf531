package webhook

import (
	"context"
	"sort"
	"sync"
)

type inMemoryStore struct {
	mu     sync.RWMutex
	events map[string]Event
	byHash map[string]string // provider + "|" + payloadHash -> event id
}

// NewInMemoryStore creates a concurrency-safe in-memory store for tests and
// dev mode.
func NewInMemoryStore() Store {
	return &inMemoryStore{
		events: make(map[string]Event),
		byHash: make(map[string]string),
	}
}

func hashKey(provider, payloadHash string) string {
	return provider + "|" + payloadHash
}

func (s *inMemoryStore) Insert(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := hashKey(ev.Provider, ev.PayloadHash)
	if _, exists := s.byHash[key]; exists {
		return ErrDuplicate
	}
	s.events[ev.ID] = ev
	s.byHash[key] = ev.ID
	return nil
}

func (s *inMemoryStore) Get(_ context.Context, id string) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return ev, nil
}

func (s *inMemoryStore) FindByHash(_ context.Context, provider, payloadHash string) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHash[hashKey(provider, payloadHash)]
	if !ok {
		return Event{}, ErrNotFound
	}
	return s.events[id], nil
}

func (s *inMemoryStore) List(_ context.Context) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].ReceivedAt.Equal(events[j].ReceivedAt) {
			return events[i].ID > events[j].ID
		}
		return events[i].ReceivedAt.After(events[j].ReceivedAt)
	})
	return events, nil
}
