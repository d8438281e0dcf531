package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/horizon-treasury/horizon/internal/audit"
	"github.com/horizon-treasury/horizon/internal/config"
	"github.com/horizon-treasury/horizon/internal/envelope"
	"github.com/horizon-treasury/horizon/internal/ledger"
	"github.com/horizon-treasury/horizon/internal/middleware"
	"github.com/horizon-treasury/horizon/internal/notification"
	"github.com/horizon-treasury/horizon/internal/policy"
	"github.com/horizon-treasury/horizon/internal/seed"
	"github.com/horizon-treasury/horizon/internal/wallet"
	"github.com/horizon-treasury/horizon/internal/webhook"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares, builds every service, and wires all routes.
// With no database or cache attached (dev only) the stores fall back to their
// in-memory implementations.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.RequestLogger(d.Logger))

	var (
		ledgerStore  ledger.Store
		walletRepo   wallet.Repository
		auditLog     audit.Log
		webhookStore webhook.Store
	)
	if d.DB != nil {
		ledgerStore = ledger.NewPostgresStore(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		auditLog = audit.NewPostgresLog(d.DB)
		webhookStore = webhook.NewPostgresStore(d.DB)
	} else {
		ledgerStore = ledger.NewInMemoryStore()
		walletRepo = wallet.NewMemoryRepository()
		auditLog = audit.NewMemoryLog()
		webhookStore = webhook.NewInMemoryStore()
	}

	policies := policy.NewSource(d.Cfg.PolicyConfig())
	wallets := wallet.NewService(walletRepo, ledgerStore)
	notifier := notification.NewLoggerNotifier(d.Logger)
	ledgerSvc := ledger.NewService(ledgerStore, wallets, auditLog, notifier, policies)

	ingestor := webhook.NewIngestor(webhookStore, ledgerSvc, auditLog, d.Cfg.WebhookSecret, d.Logger)
	simulator := webhook.NewSimulator(ingestor, d.Cfg.WebhookSecret)
	ledgerSvc.AttachSettler(simulator)

	if err := seed.Run(context.Background(), wallets, ledgerStore, policies, d.Logger); err != nil {
		return fmt.Errorf("seed wallets: %w", err)
	}

	walletHandler := wallet.NewHandler(wallets)
	ledgerHandler := ledger.NewHandler(ledgerSvc)
	auditHandler := audit.NewHandler(auditLog)
	webhookHandler := webhook.NewHandler(ingestor, simulator, webhookStore, ledgerSvc)

	RegisterHealthRoutes(app, d)

	// The issuer endpoint authenticates by signature, not bearer token.
	app.Post("/webhooks/issuer",
		middleware.WebhookRateLimit(d.Cache, d.Cfg.WebhookRatePerMin),
		webhookHandler.Receive)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":    "ok",
			"trace_id":  envelope.TraceID(c),
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	protected := api.Group("", middleware.Auth([]byte(d.Cfg.AuthJWTSecret)))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterWalletRoutes(protected, walletHandler)
	RegisterTransactionRoutes(protected, ledgerHandler)
	RegisterAuditRoutes(protected, auditHandler)
	RegisterWebhookRoutes(protected, webhookHandler)

	return nil
}
