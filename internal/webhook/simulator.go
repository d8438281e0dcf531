package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/horizon-treasury/horizon/internal/ledger"
)

// Simulator plays the card issuer. It builds a settlement event, canonicalizes
// it with JCS so the signed bytes are reproducible, signs it with the shared
// secret, and feeds it through the same ingestion path a real delivery takes.
// It implements ledger.Settler for the approval flow.
type Simulator struct {
	ingestor *Ingestor
	secret   []byte
	provider string
	now      func() time.Time
}

// NewSimulator builds an issuer simulator sharing the ingestor's secret.
func NewSimulator(ingestor *Ingestor, secret string) *Simulator {
	return &Simulator{
		ingestor: ingestor,
		secret:   []byte(secret),
		provider: "issuer",
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Settle emits a synthetic completion event for an approved transaction.
func (s *Simulator) Settle(ctx context.Context, tx ledger.Transaction) error {
	body, signature, err := s.Build(tx.ID, eventTypeFor(tx.Type))
	if err != nil {
		return err
	}
	_, err = s.ingestor.Ingest(ctx, body, signature)
	return err
}

// Build assembles and signs a settlement event body. The returned signature
// covers exactly the returned bytes.
func (s *Simulator) Build(transactionID, eventType string) (body []byte, signature string, err error) {
	raw, err := json.Marshal(map[string]any{
		"id":         uuid.NewString(),
		"provider":   s.provider,
		"event_type": eventType,
		"issued_at":  s.now().Format(time.RFC3339),
		"data":       map[string]any{"transaction_id": transactionID},
	})
	if err != nil {
		return nil, "", err
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, "", err
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(canonical)
	return canonical, hex.EncodeToString(mac.Sum(nil)), nil
}

// eventTypeFor maps a movement type to the issuer event emitted on settlement.
func eventTypeFor(t ledger.Type) string {
	switch t {
	case ledger.TypeSend:
		return EventTransferCompleted
	case ledger.TypeWithdraw:
		return EventWithdrawCompleted
	default:
		return EventSettlementCompleted
	}
}
