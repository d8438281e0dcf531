package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const currencyUSD = "USD"

// BalanceReader reads wallet balances. The ledger store implements it; the
// wallet package never mutates balances itself.
type BalanceReader interface {
	Balance(ctx context.Context, walletID string) (int64, error)
}

// Service exposes wallet operations.
type Service struct {
	repo     Repository
	balances BalanceReader
}

// NewService builds a wallet service instance.
func NewService(repo Repository, balances BalanceReader) *Service {
	return &Service{repo: repo, balances: balances}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	OwnerID string
	Name    string
	Kind    Kind
}

// Create provisions a wallet.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	if input.Name == "" {
		return Wallet{}, fmt.Errorf("wallet name is required")
	}
	kind := input.Kind
	if kind == "" {
		kind = KindUser
	}

	w := Wallet{
		ID:        uuid.NewString(),
		OwnerID:   input.OwnerID,
		Name:      input.Name,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, w); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// Get retrieves wallet metadata.
func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	return s.repo.Get(ctx, id)
}

// FindByName looks a wallet up by its name.
func (s *Service) FindByName(ctx context.Context, name string) (Wallet, error) {
	return s.repo.FindByName(ctx, name)
}

// List returns all wallets.
func (s *Service) List(ctx context.Context) ([]Wallet, error) {
	return s.repo.List(ctx)
}

// Balance returns the current ledger balance for the wallet.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.balances.Balance(ctx, w.ID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: w.ID, Currency: currencyUSD, AmountCents: amount, AsOf: time.Now().UTC()}, nil
}
