package webhook

import "time"

// Status records what ingestion did with an event.
type Status string

const (
	// StatusIngested means the event was new and processed.
	StatusIngested Status = "ingested"
	// StatusDeduped means the same payload was already ingested; the replay
	// had no effect.
	StatusDeduped Status = "deduped"
)

// Event types the issuer emits for settled movements. Any "*.failed" type
// finalizes the transaction as FAILED instead.
const (
	EventSettlementCompleted = "settlement.completed"
	EventTransferCompleted   = "transfer.completed"
	EventWithdrawCompleted   = "withdraw.completed"
)

// Event is one ingested webhook delivery, stored verbatim. The payload hash
// is the dedup key together with the provider name.
type Event struct {
	ID          string
	Provider    string
	EventType   string
	Status      Status
	Payload     []byte
	PayloadHash string
	ReceivedAt  time.Time
}
