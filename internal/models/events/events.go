package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TopicEntrySucceeded       = "ledger.entry_succeeded"
	TopicAffiliatePayment     = "ledger.affiliate_payment"
	TopicBatchClosed          = "ledger.batch_closed"
	TopicBatchTransmitted     = "ledger.batch_transmitted"
	TopicBatchPurged          = "ledger.batch_purged"
	TopicMinimumNetValidation = "ledger.minimum_net_validation"
)

// Envelope wraps every event published by the ledger
type Envelope struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// NewEnvelope stamps a payload with a fresh ID and time.
func NewEnvelope(topic string, payload any, at time.Time) Envelope {
	return Envelope{
		ID:         uuid.New().String(),
		Topic:      topic,
		OccurredAt: at,
		Payload:    payload,
	}
}

type EntrySucceeded struct {
	Participant string          `json:"participant"`
	Referrer    string          `json:"referrer"`
	Batch       uint64          `json:"batch"`
	Sequence    int             `json:"sequence"`
	Fee         decimal.Decimal `json:"fee"`
	Commission  decimal.Decimal `json:"commission"`
}

type AffiliatePayment struct {
	Referrer    string          `json:"referrer"`
	Amount      decimal.Decimal `json:"amount"`
	Participant string          `json:"participant"`
	Batch       uint64          `json:"batch"`
}

type BatchClosed struct {
	Batch           uint64          `json:"batch"`
	Size            int             `json:"size"`
	TotalFees       decimal.Decimal `json:"total_fees"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	NetAmount       decimal.Decimal `json:"net_amount"`
}

type BatchTransmitted struct {
	Batch      uint64          `json:"batch"`
	Authority  string          `json:"authority"`
	EntryCount int             `json:"entry_count"`
	NetAmount  decimal.Decimal `json:"net_amount"`
}

type BatchPurged struct {
	Batch          uint64 `json:"batch"`
	EntriesRemoved int    `json:"entries_removed"`
}

type MinimumNetValidationResult struct {
	Batch     uint64          `json:"batch"`
	NetAmount decimal.Decimal `json:"net_amount"`
	Minimum   decimal.Decimal `json:"minimum"`
	Passed    bool            `json:"passed"`
}
