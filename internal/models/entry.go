package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry represents one admitted participation in a batch
type Entry struct {
	Batch       uint64          `json:"batch"`       // batch the entry belongs to
	Sequence    int             `json:"sequence"`    // 1..capacity, gapless within the batch
	Participant string          `json:"participant"` // who paid the entry fee
	Referrer    string          `json:"referrer"`    // who received the commission, may equal Participant
	Commission  decimal.Decimal `json:"commission"`  // commission paid to Referrer for this entry
	AdmittedAt  time.Time       `json:"admitted_at"`
}
