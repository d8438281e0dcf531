package policy

import "testing"

func TestSourceWhitelistGrows(t *testing.T) {
	src := NewSource(Config{WhitelistEnabled: true, WhitelistedWalletIDs: []string{"w-1"}})

	src.Whitelist("w-2", "w-2", "")
	cfg := src.Current()
	if len(cfg.WhitelistedWalletIDs) != 2 {
		t.Fatalf("whitelist = %v", cfg.WhitelistedWalletIDs)
	}

	// Mutating the returned slice must not leak back into the source.
	cfg.WhitelistedWalletIDs[0] = "tampered"
	if src.Current().WhitelistedWalletIDs[0] != "w-1" {
		t.Fatal("Current leaked internal state")
	}
}
