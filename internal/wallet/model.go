package wallet

import "time"

// Kind distinguishes treasury wallets from user wallets.
type Kind string

const (
	KindTreasury Kind = "treasury"
	KindUser     Kind = "user"
)

// Wallet is immutable metadata after creation; balances live with the ledger.
type Wallet struct {
	ID        string
	OwnerID   string
	Name      string
	Kind      Kind
	CreatedAt time.Time
}

// Balance is a point-in-time view of a wallet's funds in USD cents.
type Balance struct {
	WalletID    string
	Currency    string
	AmountCents int64
	AsOf        time.Time
}
