package authority

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models"
)

// Settlement is one batch as delivered to an authority.
type Settlement struct {
	Authority string
	Batch     uint64
	Entries   []models.Entry
	NetAmount decimal.Decimal
}

// Recorder is an in-process SettlementNotifier that keeps every delivered batch.
// Fail, when set, is returned instead of recording.
type Recorder struct {
	mu          sync.Mutex
	settlements []Settlement
	Fail        error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) ReceiveBatch(ctx context.Context, authority string, batch uint64, entries []models.Entry, netAmount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Fail != nil {
		return r.Fail
	}
	copied := make([]models.Entry, len(entries))
	copy(copied, entries)
	r.settlements = append(r.settlements, Settlement{
		Authority: authority,
		Batch:     batch,
		Entries:   copied,
		NetAmount: netAmount,
	})
	return nil
}

// Settlements returns a copy of everything received so far.
func (r *Recorder) Settlements() []Settlement {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := make([]Settlement, len(r.settlements))
	copy(copied, r.settlements)
	return copied
}

var _ interfaces.SettlementNotifier = (*Recorder)(nil)
