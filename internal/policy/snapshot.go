package policy

// RuleKind categorizes the rules captured in a policy snapshot.
type RuleKind string

const (
	RuleLimit             RuleKind = "LIMIT"
	RuleWhitelist         RuleKind = "WHITELIST"
	RuleTimelock          RuleKind = "TIMELOCK"
	RuleApprovalThreshold RuleKind = "APPROVAL_THRESHOLD"
)

// SnapshotRule is an immutable copy of one configured rule, frozen onto each
// transaction at evaluation time so later config changes never rewrite the
// explanation of a past decision.
type SnapshotRule struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Kind    RuleKind       `json:"kind"`
	Params  map[string]any `json:"params"`
	Enabled bool           `json:"enabled"`
	Version int            `json:"version"`
}

// BuildSnapshot captures the full governing rule set regardless of which
// rules fired.
func BuildSnapshot(cfg Config) []SnapshotRule {
	return []SnapshotRule{
		{
			ID:   "limit-daily",
			Name: "Daily Limit",
			Kind: RuleLimit,
			Params: map[string]any{
				"daily_limit_cents": cfg.DailyLimitCents,
				"tx_limit_cents":    cfg.TxLimitCents,
			},
			Enabled: true,
			Version: cfg.PolicyVersion,
		},
		{
			ID:   "whitelist",
			Name: "Destination Whitelist",
			Kind: RuleWhitelist,
			Params: map[string]any{
				"enabled":   cfg.WhitelistEnabled,
				"whitelist": append([]string(nil), cfg.WhitelistedWalletIDs...),
			},
			Enabled: true,
			Version: cfg.PolicyVersion,
		},
		{
			ID:   "timelock",
			Name: "Restricted Hours Timelock",
			Kind: RuleTimelock,
			Params: map[string]any{
				"start": cfg.TimelockStart,
				"end":   cfg.TimelockEnd,
			},
			Enabled: true,
			Version: cfg.PolicyVersion,
		},
		{
			ID:   "approval-threshold",
			Name: "Approval Threshold",
			Kind: RuleApprovalThreshold,
			Params: map[string]any{
				"threshold_cents": cfg.ApprovalThresholdCents,
			},
			Enabled: true,
			Version: cfg.PolicyVersion,
		},
	}
}
