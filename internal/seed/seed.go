// Package seed provisions the wallets a fresh deployment starts with.
package seed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/horizon-treasury/horizon/internal/ledger"
	"github.com/horizon-treasury/horizon/internal/policy"
	"github.com/horizon-treasury/horizon/internal/wallet"
)

const (
	operatingWalletName = "Operating"
	treasuryWalletName  = "Treasury Reserve"

	operatingOpeningCents = 750_000   // $7,500
	treasuryOpeningCents  = 2_500_000 // $25,000
)

// Run creates the Operating and Treasury Reserve wallets with their opening
// balances and whitelists the treasury as a SEND destination. Idempotent:
// existing wallets are reused and opening balances are never re-applied.
func Run(ctx context.Context, wallets *wallet.Service, store ledger.Store, policies *policy.Source, logger *slog.Logger) error {
	operating, err := ensureWallet(ctx, wallets, operatingWalletName, wallet.KindUser)
	if err != nil {
		return err
	}
	treasury, err := ensureWallet(ctx, wallets, treasuryWalletName, wallet.KindTreasury)
	if err != nil {
		return err
	}

	if err := store.EnsureBalance(ctx, operating.ID, operatingOpeningCents); err != nil {
		return err
	}
	if err := store.EnsureBalance(ctx, treasury.ID, treasuryOpeningCents); err != nil {
		return err
	}

	policies.Whitelist(treasury.ID)

	logger.Info("seed wallets ready",
		"operating_wallet_id", operating.ID,
		"treasury_wallet_id", treasury.ID)
	return nil
}

func ensureWallet(ctx context.Context, wallets *wallet.Service, name string, kind wallet.Kind) (wallet.Wallet, error) {
	w, err := wallets.FindByName(ctx, name)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, wallet.ErrNotFound) {
		return wallet.Wallet{}, err
	}
	return wallets.Create(ctx, wallet.CreateInput{Name: name, Kind: kind})
}
