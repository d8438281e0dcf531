package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

type inMemoryStore struct {
	mu           sync.RWMutex
	balances     map[string]int64
	transactions map[string]Transaction
	dailyTotals  map[string]int64 // walletID + "|" + UTC day
}

// NewInMemoryStore creates a concurrency-safe in-memory store for tests and
// dev mode. A single lock serializes all mutations, which trivially satisfies
// the per-entity ordering guarantee.
func NewInMemoryStore() Store {
	return &inMemoryStore{
		balances:     make(map[string]int64),
		transactions: make(map[string]Transaction),
		dailyTotals:  make(map[string]int64),
	}
}

func (s *inMemoryStore) Balance(_ context.Context, walletID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[walletID], nil
}

func (s *inMemoryStore) EnsureBalance(_ context.Context, walletID string, openingCents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.balances[walletID]; !exists {
		s.balances[walletID] = openingCents
	}
	return nil
}

func (s *inMemoryStore) InsertPending(_ context.Context, tx Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.Status = StatusPendingApproval
	s.transactions[tx.ID] = tx
	return nil
}

func (s *inMemoryStore) InsertCompleted(_ context.Context, tx Transaction, guard func(int64) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tx.ChargedWalletID() + "|" + dayKey(tx.CreatedAt)
	if guard != nil {
		if err := guard(s.dailyTotals[key]); err != nil {
			return err
		}
	}
	tx.Status = StatusCompleted
	s.transactions[tx.ID] = tx
	s.applyCompletion(tx)
	s.dailyTotals[key] += tx.AmountCents
	return nil
}

func (s *inMemoryStore) Get(_ context.Context, id string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return tx, nil
}

func (s *inMemoryStore) List(_ context.Context) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txs := make([]Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		txs = append(txs, tx)
	}
	sortNewestFirst(txs)
	return txs, nil
}

func (s *inMemoryStore) ListPending(_ context.Context) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var txs []Transaction
	for _, tx := range s.transactions {
		if tx.Status == StatusPendingApproval {
			txs = append(txs, tx)
		}
	}
	sortNewestFirst(txs)
	return txs, nil
}

func (s *inMemoryStore) Approve(_ context.Context, id, approverID, reason string, at time.Time) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if tx.Status != StatusPendingApproval {
		return Transaction{}, ErrNotPending
	}
	tx.Status = StatusApproved
	tx.ApprovedBy = approverID
	tx.ApprovedAt = &at
	tx.ApprovalReason = reason
	tx.UpdatedAt = at
	s.transactions[id] = tx
	return tx, nil
}

func (s *inMemoryStore) Reject(_ context.Context, id, reason string, at time.Time) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if tx.Status != StatusPendingApproval {
		return Transaction{}, ErrNotPending
	}
	tx.Status = StatusRejected
	tx.RejectionReason = reason
	tx.UpdatedAt = at
	s.transactions[id] = tx
	return tx, nil
}

func (s *inMemoryStore) Complete(_ context.Context, id string, at time.Time) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if tx.Terminal() {
		return tx, ErrAlreadyFinal
	}
	tx.Status = StatusCompleted
	tx.UpdatedAt = at
	s.transactions[id] = tx
	s.applyCompletion(tx)
	return tx, nil
}

func (s *inMemoryStore) Fail(_ context.Context, id string, at time.Time) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if tx.Terminal() {
		return tx, ErrAlreadyFinal
	}
	tx.Status = StatusFailed
	tx.UpdatedAt = at
	s.transactions[id] = tx
	return tx, nil
}

func (s *inMemoryStore) DailyTotal(_ context.Context, walletID string, day time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dailyTotals[walletID+"|"+dayKey(day)], nil
}

// applyCompletion mutates balances for a completed movement. Caller holds the lock.
func (s *inMemoryStore) applyCompletion(tx Transaction) {
	switch tx.Type {
	case TypeFund:
		s.balances[tx.ToWalletID] += tx.AmountCents
	case TypeSend:
		s.balances[tx.FromWalletID] -= tx.AmountCents
		s.balances[tx.ToWalletID] += tx.AmountCents
	case TypeWithdraw:
		s.balances[tx.FromWalletID] -= tx.AmountCents
	}
}

func sortNewestFirst(txs []Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].ID > txs[j].ID
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
}
