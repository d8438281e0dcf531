package policy

import (
	"strconv"
	"strings"
	"time"
)

// Decision is the outcome of evaluating a movement against the policy set.
type Decision string

const (
	DecisionAllow           Decision = "ALLOW"
	DecisionBlock           Decision = "BLOCK"
	DecisionRequireApproval Decision = "REQUIRE_APPROVAL"
)

// ReasonCode identifies which rule produced a non-ALLOW outcome.
type ReasonCode string

const (
	ReasonLimitTxExceeded    ReasonCode = "LIMIT_TX_EXCEEDED"
	ReasonLimitDailyExceeded ReasonCode = "LIMIT_DAILY_EXCEEDED"
	ReasonDestNotWhitelisted ReasonCode = "DESTINATION_NOT_WHITELISTED"
	ReasonTimelockActive     ReasonCode = "TIMELOCK_ACTIVE"
	ReasonApprovalRequired   ReasonCode = "APPROVAL_REQUIRED"
)

// MovementType mirrors the transaction types the engine evaluates.
type MovementType string

const (
	MovementFund     MovementType = "FUND"
	MovementSend     MovementType = "SEND"
	MovementWithdraw MovementType = "WITHDRAW"
)

// Config carries the active policy parameters plus the caller-supplied
// same-day total for the relevant wallet. Monetary values are USD cents.
// The engine never queries storage; everything it needs is in here.
type Config struct {
	PolicyVersion          int
	WhitelistEnabled       bool
	WhitelistedWalletIDs   []string
	TxLimitCents           int64
	DailyLimitCents        int64
	ApprovalThresholdCents int64
	TimelockStart          string // "22:00", UTC minutes-of-day
	TimelockEnd            string // "06:00"
	DailyTotalCents        int64
}

// Request describes the movement candidate under evaluation.
type Request struct {
	Type         MovementType
	ActorID      string
	FromWalletID string
	ToWalletID   string
	AmountCents  int64
	Now          time.Time
}

// Result is the full, auditable verdict: decision, every reason code that
// fired, a stable human-readable explanation, and the frozen rule snapshot.
type Result struct {
	Decision    Decision
	ReasonCodes []ReasonCode
	Explain     string
	Version     int
	Snapshot    []SnapshotRule
}

var explainLines = map[ReasonCode]string{
	ReasonLimitTxExceeded:    "Per-transaction limit exceeded.",
	ReasonLimitDailyExceeded: "Daily limit exceeded.",
	ReasonDestNotWhitelisted: "Destination wallet is not on the whitelist.",
	ReasonTimelockActive:     "Timelock active: movement blocked during restricted window.",
	ReasonApprovalRequired:   "Approval required: amount meets or exceeds threshold.",
}

// Explain renders the reason codes as an order-preserving sentence list.
// Pure and stable for a given code set; the audit trail depends on that.
func Explain(codes []ReasonCode) string {
	parts := make([]string, 0, len(codes))
	for _, c := range codes {
		if line, ok := explainLines[c]; ok {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

// Evaluate applies every rule in fixed order without short-circuiting so all
// applicable reason codes surface, then resolves the decision. Hard-limit and
// timelock violations block outright and are never downgraded to approval.
func Evaluate(cfg Config, req Request) Result {
	codes := make([]ReasonCode, 0, 4)

	if req.AmountCents > cfg.TxLimitCents {
		codes = append(codes, ReasonLimitTxExceeded)
	}

	if cfg.DailyTotalCents+req.AmountCents > cfg.DailyLimitCents {
		codes = append(codes, ReasonLimitDailyExceeded)
	}

	if req.Type == MovementSend && cfg.WhitelistEnabled && req.ToWalletID != "" && !contains(cfg.WhitelistedWalletIDs, req.ToWalletID) {
		codes = append(codes, ReasonDestNotWhitelisted)
	}

	utcMinutes := req.Now.UTC().Hour()*60 + req.Now.UTC().Minute()
	if withinTimelock(utcMinutes, cfg.TimelockStart, cfg.TimelockEnd) {
		codes = append(codes, ReasonTimelockActive)
	}

	decision := DecisionAllow
	if len(codes) > 0 {
		decision = DecisionBlock
	} else if req.AmountCents >= cfg.ApprovalThresholdCents {
		decision = DecisionRequireApproval
		codes = append(codes, ReasonApprovalRequired)
	}

	return Result{
		Decision:    decision,
		ReasonCodes: codes,
		Explain:     Explain(codes),
		Version:     cfg.PolicyVersion,
		Snapshot:    BuildSnapshot(cfg),
	}
}

// withinTimelock checks a [start,end) window in UTC minutes-of-day.
// start > end means the window wraps midnight (e.g. 22:00-06:00).
func withinTimelock(nowMinutes int, start, end string) bool {
	s := parseTimeHM(start)
	e := parseTimeHM(end)
	if s <= e {
		return nowMinutes >= s && nowMinutes < e
	}
	return nowMinutes >= s || nowMinutes < e
}

func parseTimeHM(t string) int {
	h, m, ok := strings.Cut(t, ":")
	hours, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	minutes := 0
	if ok {
		if v, err := strconv.Atoi(m); err == nil {
			minutes = v
		}
	}
	return hours*60 + minutes
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
