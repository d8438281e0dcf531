package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/horizon-treasury/horizon/internal/policy"
)

const (
	defaultAppName        = "Horizon"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour

	defaultPolicyVersion        = 1
	defaultTxLimitUSD           = 10_000
	defaultDailyLimitUSD        = 20_000
	defaultApprovalThresholdUSD = 5_000
	defaultTimelockStart        = "22:00"
	defaultTimelockEnd          = "06:00"
	defaultWebhookRatePerMin    = 120
)

// Config captures application runtime configuration loaded from environment
// variables. Monetary policy limits are configured in whole USD and converted
// to cents here, once.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	AuthJWTSecret     string
	WebhookSecret     string
	WebhookRatePerMin int

	PolicyVersion          int
	WhitelistEnabled       bool
	WhitelistedWalletIDs   []string
	TxLimitCents           int64
	DailyLimitCents        int64
	ApprovalThresholdCents int64
	TimelockStart          string
	TimelockEnd            string
}

// Load reads configuration values from the environment and populates a
// Config instance. Database, Redis, and secrets are mandatory outside of dev;
// in dev the server falls back to in-memory stores and development secrets.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,

		AuthJWTSecret:     os.Getenv("AUTH_JWT_SECRET"),
		WebhookSecret:     os.Getenv("WEBHOOK_SECRET"),
		WebhookRatePerMin: defaultWebhookRatePerMin,

		PolicyVersion:    defaultPolicyVersion,
		WhitelistEnabled: getEnv("POLICY_WHITELIST_ENABLED", "true") == "true",
		TimelockStart:    getEnv("POLICY_TIMELOCK_START", defaultTimelockStart),
		TimelockEnd:      getEnv("POLICY_TIMELOCK_END", defaultTimelockEnd),
	}

	if v := os.Getenv("POLICY_WHITELIST_WALLET_IDS"); v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.WhitelistedWalletIDs = append(cfg.WhitelistedWalletIDs, id)
			}
		}
	}

	var err error
	if cfg.PolicyVersion, err = intEnv("POLICY_VERSION", defaultPolicyVersion); err != nil {
		return Config{}, err
	}
	if cfg.TxLimitCents, err = usdEnvCents("POLICY_TX_LIMIT_USD", defaultTxLimitUSD); err != nil {
		return Config{}, err
	}
	if cfg.DailyLimitCents, err = usdEnvCents("POLICY_DAILY_LIMIT_USD", defaultDailyLimitUSD); err != nil {
		return Config{}, err
	}
	if cfg.ApprovalThresholdCents, err = usdEnvCents("POLICY_APPROVAL_THRESHOLD_USD", defaultApprovalThresholdUSD); err != nil {
		return Config{}, err
	}
	if cfg.WebhookRatePerMin, err = intEnv("WEBHOOK_RATE_PER_MIN", defaultWebhookRatePerMin); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownPeriod = d
	}
	if v := os.Getenv("IDEMPOTENCY_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
		}
		cfg.IdempotencyTTL = d
	}

	if cfg.IsDev() {
		if cfg.AuthJWTSecret == "" {
			cfg.AuthJWTSecret = "dev-auth-secret"
		}
		if cfg.WebhookSecret == "" {
			cfg.WebhookSecret = "dev-webhook-secret"
		}
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
	}
	if cfg.AuthJWTSecret == "" {
		return Config{}, fmt.Errorf("AUTH_JWT_SECRET must be set when APP_ENV=%s", cfg.AppEnv)
	}
	if cfg.WebhookSecret == "" {
		return Config{}, fmt.Errorf("WEBHOOK_SECRET must be set when APP_ENV=%s", cfg.AppEnv)
	}

	return cfg, nil
}

// IsDev reports whether the configured environment is a development one.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// PolicyConfig assembles the policy engine parameters. The per-call daily
// total is filled in by the ledger at evaluation time.
func (c Config) PolicyConfig() policy.Config {
	return policy.Config{
		PolicyVersion:          c.PolicyVersion,
		WhitelistEnabled:       c.WhitelistEnabled,
		WhitelistedWalletIDs:   append([]string(nil), c.WhitelistedWalletIDs...),
		TxLimitCents:           c.TxLimitCents,
		DailyLimitCents:        c.DailyLimitCents,
		ApprovalThresholdCents: c.ApprovalThresholdCents,
		TimelockStart:          c.TimelockStart,
		TimelockEnd:            c.TimelockEnd,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func usdEnvCents(key string, fallbackUSD int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallbackUSD * 100, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n * 100, nil
}
