package wallet

import (
	"context"
	"errors"
	"testing"
)

type fixedBalances map[string]int64

func (b fixedBalances) Balance(_ context.Context, walletID string) (int64, error) {
	return b[walletID], nil
}

func TestCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), fixedBalances{})

	w, err := svc.Create(ctx, CreateInput{Name: "Operating", Kind: KindUser, OwnerID: "u-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.ID == "" {
		t.Fatal("missing wallet id")
	}

	got, err := svc.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Operating" || got.Kind != KindUser {
		t.Fatalf("wallet = %+v", got)
	}

	byName, err := svc.FindByName(ctx, "Operating")
	if err != nil {
		t.Fatalf("find by name: %v", err)
	}
	if byName.ID != w.ID {
		t.Fatalf("find by name id = %s, want %s", byName.ID, w.ID)
	}
}

func TestCreateRequiresName(t *testing.T) {
	svc := NewService(NewMemoryRepository(), fixedBalances{})
	if _, err := svc.Create(context.Background(), CreateInput{}); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestCreateDefaultsKindToUser(t *testing.T) {
	svc := NewService(NewMemoryRepository(), fixedBalances{})
	w, err := svc.Create(context.Background(), CreateInput{Name: "Plain"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.Kind != KindUser {
		t.Fatalf("kind = %s, want user", w.Kind)
	}
}

func TestBalanceForUnknownWallet(t *testing.T) {
	svc := NewService(NewMemoryRepository(), fixedBalances{})
	if _, err := svc.Balance(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestBalanceReadsFromLedger(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), fixedBalances{})

	w, err := svc.Create(ctx, CreateInput{Name: "Operating"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	svc.balances = fixedBalances{w.ID: 1_234}
	bal, err := svc.Balance(ctx, w.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.AmountCents != 1_234 || bal.Currency != "USD" {
		t.Fatalf("balance = %+v", bal)
	}
}
