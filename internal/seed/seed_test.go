package seed

import (
	"context"
	"testing"

	"github.com/horizon-treasury/horizon/internal/ledger"
	"github.com/horizon-treasury/horizon/internal/logging"
	"github.com/horizon-treasury/horizon/internal/policy"
	"github.com/horizon-treasury/horizon/internal/wallet"
)

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewInMemoryStore()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), store)
	policies := policy.NewSource(policy.Config{WhitelistEnabled: true})
	logger := logging.Discard()

	if err := Run(ctx, wallets, store, policies, logger); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := Run(ctx, wallets, store, policies, logger); err != nil {
		t.Fatalf("second run: %v", err)
	}

	all, err := wallets.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("wallets = %d, want 2", len(all))
	}

	operating, err := wallets.FindByName(ctx, operatingWalletName)
	if err != nil {
		t.Fatalf("find operating: %v", err)
	}
	treasury, err := wallets.FindByName(ctx, treasuryWalletName)
	if err != nil {
		t.Fatalf("find treasury: %v", err)
	}

	opBal, err := store.Balance(ctx, operating.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if opBal != operatingOpeningCents {
		t.Fatalf("operating balance = %d, want %d", opBal, operatingOpeningCents)
	}
	trBal, err := store.Balance(ctx, treasury.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if trBal != treasuryOpeningCents {
		t.Fatalf("treasury balance = %d, want %d", trBal, treasuryOpeningCents)
	}

	cfg := policies.Current()
	found := false
	for _, id := range cfg.WhitelistedWalletIDs {
		if id == treasury.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("treasury wallet missing from whitelist")
	}
}
