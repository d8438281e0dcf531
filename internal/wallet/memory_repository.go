package wallet

import (
	"context"
	"errors"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
}

// NewMemoryRepository constructs an in-memory repository for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Wallet)}
}

func (r *memoryRepository) Create(_ context.Context, w Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[w.ID]; exists {
		return errors.New("wallet exists")
	}
	r.storage[w.ID] = w
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.storage[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (r *memoryRepository) List(_ context.Context) ([]Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallets := make([]Wallet, 0, len(r.storage))
	for _, w := range r.storage {
		wallets = append(wallets, w)
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].CreatedAt.Before(wallets[j].CreatedAt) })
	return wallets, nil
}

func (r *memoryRepository) FindByName(_ context.Context, name string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.storage {
		if w.Name == name {
			return w, nil
		}
	}
	return Wallet{}, ErrNotFound
}
