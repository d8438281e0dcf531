package routes

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/horizon-treasury/horizon/internal/config"
	"github.com/horizon-treasury/horizon/internal/envelope"
	"github.com/horizon-treasury/horizon/internal/logging"
)

func devConfig() config.Config {
	return config.Config{
		AppName:                "Horizon",
		AppEnv:                 "development",
		Port:                   "8080",
		AuthJWTSecret:          "dev-auth-secret",
		WebhookSecret:          "dev-webhook-secret",
		PolicyVersion:          1,
		WhitelistEnabled:       true,
		TxLimitCents:           1_000_000,
		DailyLimitCents:        2_000_000,
		ApprovalThresholdCents: 500_000,
		TimelockStart:          "00:00",
		TimelockEnd:            "00:00",
	}
}

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: envelope.ErrorHandler})
	if err := Setup(app, Deps{Cfg: devConfig(), Logger: logging.Discard()}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return app
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "u-1",
		"email": "ops@example.com",
		"role":  role,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("dev-auth-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func TestHealthAndPing(t *testing.T) {
	app := setupApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/healthz", nil))
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("healthz status = %d, want 200", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/ping", nil))
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("ping status = %d, want 200", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := setupApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/wallets", nil))
	if err != nil {
		t.Fatalf("wallets: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestSeededWalletsVisibleWithToken(t *testing.T) {
	app := setupApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/wallets", nil)
	req.Header.Set(fiber.HeaderAuthorization, bearer(t, "user"))

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("wallets: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Data []struct {
			Name         string `json:"name"`
			BalanceCents int64  `json:"balance_cents"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 2 {
		t.Fatalf("wallets = %d, want 2", len(body.Data))
	}
	total := body.Data[0].BalanceCents + body.Data[1].BalanceCents
	if total != 3_250_000 {
		t.Fatalf("opening balances total = %d, want 3250000", total)
	}
}

func TestRequestIDHeaderEchoed(t *testing.T) {
	app := setupApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("X-Request-ID", "trace-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if got := resp.Header.Get("X-Request-ID"); got != "trace-123" {
		t.Fatalf("X-Request-ID = %q, want trace-123", got)
	}
}
