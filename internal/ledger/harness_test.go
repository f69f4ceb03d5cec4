package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/authority"
	custodianmem "github.com/sheikh-saqib/batch-settlement-ledger/internal/custodian/memory"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/ledger"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models/events"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/storage/memory"
)

const (
	pool       = "pool"
	authority1 = "authority-1"
	authority2 = "authority-2"
)

var errPublish = errors.New("broker down")

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Envelope
	fail   bool
}

func (p *recordingPublisher) Publish(topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errPublish
	}
	p.events = append(p.events, event.(events.Envelope))
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	topics := make([]string, len(p.events))
	for i, e := range p.events {
		topics[i] = e.Topic
	}
	return topics
}

func (p *recordingPublisher) count(topic string) int {
	n := 0
	for _, t := range p.topics() {
		if t == topic {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) payloads(topic string) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []any
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e.Payload)
		}
	}
	return out
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	ledger    *ledger.Ledger
	store     *memory.MemoryBatchStore
	custodian *custodianmem.Custodian
	authority *authority.Registry
	recorder  *authority.Recorder
	publisher *recordingPublisher
}

func smallTier() models.Tier {
	return models.Tier{
		Label:      "small",
		EntryFee:   decimal.NewFromInt(10),
		Commission: decimal.RequireFromString("0.75"),
		Capacity:   3,
		MinimumNet: decimal.NewFromInt(27),
	}
}

func newHarness(t *testing.T, tier models.Tier) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		ctx:       context.Background(),
		store:     memory.NewMemoryBatchStore(),
		custodian: custodianmem.NewCustodian(pool),
		authority: authority.NewRegistry(authority1),
		recorder:  authority.NewRecorder(),
		publisher: &recordingPublisher{},
	}
	l, err := ledger.NewLedger(tier, ledger.Deps{
		Store:     h.store,
		Custodian: h.custodian,
		Authority: h.authority,
		Notifier:  h.recorder,
		Publisher: h.publisher,
		Clock:     func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	require.NoError(t, err)
	h.ledger = l
	return h
}

// fund gives account amount and lets the pool pull all of it.
func (h *harness) fund(account string, amount string) {
	h.t.Helper()
	d := decimal.RequireFromString(amount)
	require.NoError(h.t, h.custodian.Deposit(h.ctx, account, d))
	allowed, err := h.custodian.Allowance(h.ctx, account)
	require.NoError(h.t, err)
	require.NoError(h.t, h.custodian.Approve(h.ctx, account, allowed.Add(d)))
}

func (h *harness) balance(account string) decimal.Decimal {
	h.t.Helper()
	b, err := h.custodian.Balance(h.ctx, account)
	require.NoError(h.t, err)
	return b
}

func (h *harness) current() models.BatchStatus {
	h.t.Helper()
	status, err := h.ledger.CurrentBatch(h.ctx)
	require.NoError(h.t, err)
	return status
}

func (h *harness) account(batch uint64) models.BatchAccount {
	h.t.Helper()
	account, err := h.ledger.BatchAccount(h.ctx, batch)
	require.NoError(h.t, err)
	return account
}

func (h *harness) admit(participant, referrer string) models.Entry {
	h.t.Helper()
	entry, err := h.ledger.AdmitEntry(h.ctx, participant, referrer)
	require.NoError(h.t, err)
	return entry
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
