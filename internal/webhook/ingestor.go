package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/horizon-treasury/horizon/internal/audit"
	"github.com/horizon-treasury/horizon/internal/ledger"
)

// ErrBadSignature indicates the delivery failed HMAC verification. The body
// is discarded without being parsed or stored.
var ErrBadSignature = errors.New("webhook signature mismatch")

// ErrBadPayload indicates a correctly signed but malformed body.
var ErrBadPayload = errors.New("malformed webhook payload")

// Ingestor verifies, dedups, records, and applies issuer settlement events.
type Ingestor struct {
	store    Store
	ledger   *ledger.Service
	auditLog audit.Log
	secret   []byte
	logger   *slog.Logger
	now      func() time.Time
}

// NewIngestor builds the webhook ingestor. The secret is the shared HMAC key
// the issuer signs deliveries with.
func NewIngestor(store Store, ledgerSvc *ledger.Service, auditLog audit.Log, secret string, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		store:    store,
		ledger:   ledgerSvc,
		auditLog: auditLog,
		secret:   []byte(secret),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type payload struct {
	ID        string `json:"id"`
	Provider  string `json:"provider"`
	EventType string `json:"event_type"`
	IssuedAt  string `json:"issued_at"`
	Data      struct {
		TransactionID string `json:"transaction_id"`
	} `json:"data"`
}

// Result reports what ingestion did with a delivery.
type Result struct {
	EventID string
	Status  Status
}

// Ingest processes one raw webhook delivery. The signature is checked against
// the exact bytes received; a replayed payload is a recorded no-op. A
// settlement event for a missing or already-terminal transaction is stored
// and audited but changes no state.
func (i *Ingestor) Ingest(ctx context.Context, body []byte, signature string) (Result, error) {
	if !i.verify(body, signature) {
		return Result{}, ErrBadSignature
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if p.EventType == "" {
		return Result{}, fmt.Errorf("%w: event_type is required", ErrBadPayload)
	}
	provider := p.Provider
	if provider == "" {
		provider = "issuer"
	}

	sum := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(sum[:])

	ev := Event{
		ID:          uuid.NewString(),
		Provider:    provider,
		EventType:   p.EventType,
		Status:      StatusIngested,
		Payload:     body,
		PayloadHash: payloadHash,
		ReceivedAt:  i.now(),
	}

	if err := i.store.Insert(ctx, ev); err != nil {
		if errors.Is(err, ErrDuplicate) {
			original, findErr := i.store.FindByHash(ctx, provider, payloadHash)
			if findErr != nil {
				return Result{}, findErr
			}
			i.logger.Info("webhook replay ignored",
				"provider", provider, "event_type", p.EventType, "event_id", original.ID)
			return Result{EventID: original.ID, Status: StatusDeduped}, nil
		}
		return Result{}, err
	}

	if err := i.auditLog.Record(ctx, audit.Event{
		Action:     audit.ActionWebhookIngested,
		Resource:   audit.ResourceWebhookEvent,
		ResourceID: ev.ID,
		Payload: map[string]any{
			"provider":       provider,
			"event_type":     p.EventType,
			"transaction_id": p.Data.TransactionID,
		},
	}); err != nil {
		return Result{}, err
	}

	if err := i.apply(ctx, p); err != nil {
		return Result{}, err
	}

	return Result{EventID: ev.ID, Status: StatusIngested}, nil
}

// apply finalizes the referenced transaction. Unknown transactions and
// already-terminal ones are expected with at-least-once delivery; both are
// logged and swallowed.
func (i *Ingestor) apply(ctx context.Context, p payload) error {
	outcome, ok := outcomeFor(p.EventType)
	if !ok || p.Data.TransactionID == "" {
		i.logger.Info("webhook event carries no settlement outcome", "event_type", p.EventType)
		return nil
	}

	_, err := i.ledger.Finalize(ctx, p.Data.TransactionID, outcome)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		i.logger.Warn("webhook references unknown transaction", "transaction_id", p.Data.TransactionID)
		return nil
	case errors.Is(err, ledger.ErrAlreadyFinal):
		i.logger.Info("webhook for already-finalized transaction", "transaction_id", p.Data.TransactionID)
		return nil
	}
	return err
}

func (i *Ingestor) verify(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(strings.ToLower(signature)))
}

// outcomeFor maps an issuer event type to a terminal settlement outcome.
func outcomeFor(eventType string) (ledger.Outcome, bool) {
	switch {
	case strings.HasSuffix(eventType, ".completed"):
		return ledger.OutcomeCompleted, true
	case strings.HasSuffix(eventType, ".failed"):
		return ledger.OutcomeFailed, true
	}
	return "", false
}
