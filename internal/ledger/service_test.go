package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/horizon-treasury/horizon/internal/actor"
	"github.com/horizon-treasury/horizon/internal/audit"
	"github.com/horizon-treasury/horizon/internal/policy"
	"github.com/horizon-treasury/horizon/internal/wallet"
)

var noon = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

type staticPolicies struct {
	cfg policy.Config
}

func (p staticPolicies) Current() policy.Config { return p.cfg }

type fixture struct {
	store    Store
	service  *Service
	auditLog audit.Log
	wallets  *wallet.Service
	operator actor.Actor
	admin    actor.Actor
	w1, w2   wallet.Wallet
}

func newFixture(t *testing.T, cfg policy.Config) *fixture {
	t.Helper()

	store := NewInMemoryStore()
	repo := wallet.NewMemoryRepository()
	wallets := wallet.NewService(repo, store)
	auditLog := audit.NewMemoryLog()

	ctx := context.Background()
	w1, err := wallets.Create(ctx, wallet.CreateInput{Name: "Operating", Kind: wallet.KindUser})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	w2, err := wallets.Create(ctx, wallet.CreateInput{Name: "Treasury Reserve", Kind: wallet.KindTreasury})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if err := store.EnsureBalance(ctx, w1.ID, 750_000); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	if err := store.EnsureBalance(ctx, w2.ID, 2_500_000); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	if cfg.WhitelistEnabled && cfg.WhitelistedWalletIDs == nil {
		cfg.WhitelistedWalletIDs = []string{w2.ID}
	}

	service := NewService(store, wallets, auditLog, nil, staticPolicies{cfg: cfg})
	service.now = func() time.Time { return noon }

	return &fixture{
		store:    store,
		service:  service,
		auditLog: auditLog,
		wallets:  wallets,
		operator: actor.Actor{ID: "u-1", Email: "ops@example.com", Role: actor.RoleUser},
		admin:    actor.Actor{ID: "u-9", Email: "admin@example.com", Role: actor.RoleAdmin},
		w1:       w1,
		w2:       w2,
	}
}

func defaultConfig() policy.Config {
	return policy.Config{
		PolicyVersion:          1,
		WhitelistEnabled:       true,
		TxLimitCents:           1_000_000,
		DailyLimitCents:        2_000_000,
		ApprovalThresholdCents: 500_000,
		TimelockStart:          "22:00",
		TimelockEnd:            "06:00",
	}
}

func (f *fixture) balance(t *testing.T, walletID string) int64 {
	t.Helper()
	got, err := f.store.Balance(context.Background(), walletID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return got
}

func (f *fixture) auditActions(t *testing.T) []audit.Action {
	t.Helper()
	events, err := f.auditLog.List(context.Background())
	if err != nil {
		t.Fatalf("list audit events: %v", err)
	}
	actions := make([]audit.Action, len(events))
	for i, ev := range events {
		actions[i] = ev.Action
	}
	return actions
}

func TestFundBelowThresholdCompletesImmediately(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	res, err := f.service.CreateMovement(ctx, f.operator, MovementInput{
		Type: TypeFund, ToWalletID: f.w1.ID, AmountCents: 100_000,
	})
	if err != nil {
		t.Fatalf("create movement: %v", err)
	}
	if res.Decision != policy.DecisionAllow {
		t.Fatalf("decision = %s, want ALLOW", res.Decision)
	}
	if res.Transaction.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", res.Transaction.Status)
	}
	if got := f.balance(t, f.w1.ID); got != 850_000 {
		t.Fatalf("balance = %d, want 850000", got)
	}

	total, err := f.store.DailyTotal(ctx, f.w1.ID, noon)
	if err != nil {
		t.Fatalf("daily total: %v", err)
	}
	if total != 100_000 {
		t.Fatalf("daily total = %d, want 100000", total)
	}

	// Newest first: completion audit follows creation and evaluation.
	actions := f.auditActions(t)
	want := []audit.Action{audit.ActionBalanceUpdated, audit.ActionPolicyEvaluated, audit.ActionTxCreated}
	if len(actions) != len(want) {
		t.Fatalf("audit actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("audit actions = %v, want %v", actions, want)
		}
	}
}

func TestAmountAtThresholdRequiresApproval(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	res, err := f.service.CreateMovement(ctx, f.operator, MovementInput{
		Type: TypeSend, FromWalletID: f.w1.ID, ToWalletID: f.w2.ID, AmountCents: 500_000,
	})
	if err != nil {
		t.Fatalf("create movement: %v", err)
	}
	if res.Transaction.Status != StatusPendingApproval {
		t.Fatalf("status = %s, want PENDING_APPROVAL", res.Transaction.Status)
	}
	if !res.Transaction.RequiresApproval {
		t.Fatal("expected requires_approval")
	}
	if got := f.balance(t, f.w1.ID); got != 750_000 {
		t.Fatalf("balance moved on pending transaction: %d", got)
	}
	total, err := f.store.DailyTotal(ctx, f.w1.ID, noon)
	if err != nil {
		t.Fatalf("daily total: %v", err)
	}
	if total != 0 {
		t.Fatalf("pending transaction committed to daily total: %d", total)
	}

	pending, err := f.service.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != res.Transaction.ID {
		t.Fatalf("pending = %v", pending)
	}
}

func TestSendToUnlistedWalletIsBlocked(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	w3, err := f.wallets.Create(ctx, wallet.CreateInput{Name: "Unknown", Kind: wallet.KindUser})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	_, err = f.service.CreateMovement(ctx, f.operator, MovementInput{
		Type: TypeSend, FromWalletID: f.w1.ID, ToWalletID: w3.ID, AmountCents: 100_000,
	})
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("err = %v, want BlockedError", err)
	}
	if len(blocked.ReasonCodes) != 1 || blocked.ReasonCodes[0] != policy.ReasonDestNotWhitelisted {
		t.Fatalf("reason codes = %v", blocked.ReasonCodes)
	}

	txs, err := f.service.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("blocked attempt persisted a transaction: %v", txs)
	}

	// The block is still audited: creation and evaluation against one
	// synthetic resource id.
	events, err := f.auditLog.List(ctx)
	if err != nil {
		t.Fatalf("list audit events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("audit events = %d, want 2", len(events))
	}
	if events[0].ResourceID != events[1].ResourceID || events[0].ResourceID == "" {
		t.Fatalf("audit pair resource ids differ: %q vs %q", events[0].ResourceID, events[1].ResourceID)
	}
}

func TestDailyLimitCountsOnlyCompletedMovements(t *testing.T) {
	cfg := defaultConfig()
	cfg.DailyLimitCents = 600_000
	f := newFixture(t, cfg)
	ctx := context.Background()

	if _, err := f.service.CreateMovement(ctx, f.operator, MovementInput{
		Type: TypeWithdraw, FromWalletID: f.w1.ID, AmountCents: 400_000,
	}); err != nil {
		t.Fatalf("first withdraw: %v", err)
	}

	_, err := f.service.CreateMovement(ctx, f.operator, MovementInput{
		Type: TypeWithdraw, FromWalletID: f.w1.ID, AmountCents: 300_000,
	})
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("err = %v, want BlockedError", err)
	}
	if len(blocked.ReasonCodes) != 1 || blocked.ReasonCodes[0] != policy.ReasonLimitDailyExceeded {
		t.Fatalf("reason codes = %v", blocked.ReasonCodes)
	}
}

// staleTotalStore always reports a zero daily total, standing in for a read
// that another completion has outrun.
type staleTotalStore struct {
	Store
}

func (s staleTotalStore) DailyTotal(context.Context, string, time.Time) (int64, error) {
	return 0, nil
}

func TestStaleDailyTotalReadCannotExceedLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.TxLimitCents = 2_000_000
	cfg.ApprovalThresholdCents = 5_000_000
	f := newFixture(t, cfg)
	ctx := context.Background()

	// The service sees a stale total, but the commit re-checks against the
	// store's fresh one.
	svc := NewService(staleTotalStore{f.store}, f.wallets, f.auditLog, nil, staticPolicies{cfg: cfg})
	svc.now = func() time.Time { return noon }

	if _, err := svc.CreateMovement(ctx, f.operator, MovementInput{
		Type: TypeWithdraw, FromWalletID: f.w1.ID, AmountCents: 1_500_000,
	}); err != nil {
		t.Fatalf("first withdraw: %v", err)
	}

	_, err := svc.CreateMovement(ctx, f.operator, MovementInput{
		Type: TypeWithdraw, FromWalletID: f.w1.ID, AmountCents: 1_500_000,
	})
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("err = %v, want BlockedError", err)
	}
	if len(blocked.ReasonCodes) != 1 || blocked.ReasonCodes[0] != policy.ReasonLimitDailyExceeded {
		t.Fatalf("reason codes = %v", blocked.ReasonCodes)
	}

	total, err := f.store.DailyTotal(ctx, f.w1.ID, noon)
	if err != nil {
		t.Fatalf("daily total: %v", err)
	}
	if total != 1_500_000 {
		t.Fatalf("committed daily total = %d, want 1500000", total)
	}
	txs, err := f.store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}
}

func TestConcurrentMovementsRespectDailyLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.DailyLimitCents = 1_000_000
	cfg.ApprovalThresholdCents = 5_000_000
	f := newFixture(t, cfg)
	ctx := context.Background()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.CreateMovement(ctx, f.operator, MovementInput{
				Type: TypeWithdraw, FromWalletID: f.w1.ID, AmountCents: 600_000,
			})
		}(i)
	}
	wg.Wait()

	var completed, blocked int
	for _, err := range errs {
		var b *BlockedError
		switch {
		case err == nil:
			completed++
		case errors.As(err, &b):
			blocked++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if completed != 1 || blocked != 1 {
		t.Fatalf("completed = %d, blocked = %d, want 1/1", completed, blocked)
	}

	total, err := f.store.DailyTotal(ctx, f.w1.ID, noon)
	if err != nil {
		t.Fatalf("daily total: %v", err)
	}
	if total != 600_000 {
		t.Fatalf("committed daily total = %d, want 600000", total)
	}
	if got := f.balance(t, f.w1.ID); got != 150_000 {
		t.Fatalf("balance = %d, want 150000", got)
	}
}

type settleFunc func(ctx context.Context, tx Transaction) error

func (f settleFunc) Settle(ctx context.Context, tx Transaction) error { return f(ctx, tx) }

func TestApproveSettlesThroughFinalize(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	f.service.AttachSettler(settleFunc(func(ctx context.Context, tx Transaction) error {
		_, err := f.service.Finalize(ctx, tx.ID, OutcomeCompleted)
		return err
	}))

	res, err := f.service.CreateMovement(ctx, f.operator, MovementInput{
		Type: TypeSend, FromWalletID: f.w1.ID, ToWalletID: f.w2.ID, AmountCents: 600_000,
	})
	if err != nil {
		t.Fatalf("create movement: %v", err)
	}

	tx, err := f.service.Approve(ctx, f.admin, res.Transaction.ID, DecisionApprove, "quarterly sweep")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if tx.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", tx.Status)
	}
	if tx.ApprovedBy != f.admin.ID {
		t.Fatalf("approved_by = %q", tx.ApprovedBy)
	}
	if got := f.balance(t, f.w1.ID); got != 150_000 {
		t.Fatalf("source balance = %d, want 150000", got)
	}
	if got := f.balance(t, f.w2.ID); got != 3_100_000 {
		t.Fatalf("destination balance = %d, want 3100000", got)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	res, err := f.service.CreateMovement(ctx, f.operator, MovementInput{
		Type: TypeSend, FromWalletID: f.w1.ID, ToWalletID: f.w2.ID, AmountCents: 600_000,
	})
	if err != nil {
		t.Fatalf("create movement: %v", err)
	}

	tx, err := f.service.Approve(ctx, f.admin, res.Transaction.ID, DecisionReject, "not budgeted")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if tx.Status != StatusRejected {
		t.Fatalf("status = %s, want REJECTED", tx.Status)
	}
	if tx.RejectionReason != "not budgeted" {
		t.Fatalf("rejection reason = %q", tx.RejectionReason)
	}
	if got := f.balance(t, f.w1.ID); got != 750_000 {
		t.Fatalf("balance moved on rejection: %d", got)
	}

	// Approval decisions are not idempotent.
	if _, err := f.service.Approve(ctx, f.admin, res.Transaction.ID, DecisionApprove, ""); !errors.Is(err, ErrNotPending) {
		t.Fatalf("second decision err = %v, want ErrNotPending", err)
	}
}

func TestFinalizeCompletedIsIdempotent(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	res, err := f.service.CreateMovement(ctx, f.operator, MovementInput{
		Type: TypeSend, FromWalletID: f.w1.ID, ToWalletID: f.w2.ID, AmountCents: 600_000,
	})
	if err != nil {
		t.Fatalf("create movement: %v", err)
	}
	if _, err := f.service.Approve(ctx, f.admin, res.Transaction.ID, DecisionApprove, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := f.service.Finalize(ctx, res.Transaction.ID, OutcomeCompleted); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := f.service.Finalize(ctx, res.Transaction.ID, OutcomeCompleted); !errors.Is(err, ErrAlreadyFinal) {
		t.Fatalf("second finalize err = %v, want ErrAlreadyFinal", err)
	}
	// Balance applied exactly once.
	if got := f.balance(t, f.w1.ID); got != 150_000 {
		t.Fatalf("source balance = %d, want 150000", got)
	}
}

func TestFinalizeFailedLeavesBalances(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	res, err := f.service.CreateMovement(ctx, f.operator, MovementInput{
		Type: TypeWithdraw, FromWalletID: f.w1.ID, AmountCents: 600_000, Notes: "BANK-REF-41",
	})
	if err != nil {
		t.Fatalf("create movement: %v", err)
	}
	if _, err := f.service.Approve(ctx, f.admin, res.Transaction.ID, DecisionApprove, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}

	tx, err := f.service.Finalize(ctx, res.Transaction.ID, OutcomeFailed)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if tx.Status != StatusFailed {
		t.Fatalf("status = %s, want FAILED", tx.Status)
	}
	if got := f.balance(t, f.w1.ID); got != 750_000 {
		t.Fatalf("balance moved on failed settlement: %d", got)
	}
	if _, err := f.service.Finalize(ctx, res.Transaction.ID, OutcomeCompleted); !errors.Is(err, ErrAlreadyFinal) {
		t.Fatalf("finalize after failure err = %v, want ErrAlreadyFinal", err)
	}
}

func TestCreateMovementValidation(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	if _, err := f.service.CreateMovement(ctx, f.operator, MovementInput{
		Type: TypeFund, ToWalletID: f.w1.ID, AmountCents: 0,
	}); !errors.Is(err, ErrInvalidMovement) {
		t.Fatalf("zero amount err = %v, want ErrInvalidMovement", err)
	}

	if _, err := f.service.CreateMovement(ctx, f.operator, MovementInput{
		Type: TypeSend, FromWalletID: f.w1.ID, ToWalletID: f.w1.ID, AmountCents: 1_000,
	}); !errors.Is(err, ErrInvalidMovement) {
		t.Fatalf("self-send err = %v, want ErrInvalidMovement", err)
	}

	if _, err := f.service.CreateMovement(ctx, f.operator, MovementInput{
		Type: TypeFund, ToWalletID: "missing", AmountCents: 1_000,
	}); !errors.Is(err, wallet.ErrNotFound) {
		t.Fatalf("unknown wallet err = %v, want wallet.ErrNotFound", err)
	}
}

func TestApproveUnknownTransaction(t *testing.T) {
	f := newFixture(t, defaultConfig())

	if _, err := f.service.Approve(context.Background(), f.admin, "missing", DecisionApprove, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestVerdictFrozenOnTransaction(t *testing.T) {
	f := newFixture(t, defaultConfig())
	ctx := context.Background()

	res, err := f.service.CreateMovement(ctx, f.operator, MovementInput{
		Type: TypeSend, FromWalletID: f.w1.ID, ToWalletID: f.w2.ID, AmountCents: 600_000,
	})
	if err != nil {
		t.Fatalf("create movement: %v", err)
	}

	tx, err := f.service.Get(ctx, res.Transaction.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if tx.PolicyVersion != 1 {
		t.Fatalf("policy version = %d, want 1", tx.PolicyVersion)
	}
	if len(tx.PolicySnapshot) != 4 {
		t.Fatalf("snapshot rules = %d, want 4", len(tx.PolicySnapshot))
	}
	if len(tx.ReasonCodes) != 1 || tx.ReasonCodes[0] != policy.ReasonApprovalRequired {
		t.Fatalf("reason codes = %v", tx.ReasonCodes)
	}
}
