package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/authority"
	custodianmem "github.com/sheikh-saqib/batch-settlement-ledger/internal/custodian/memory"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/ledger"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models/events"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/storage/memory"
)

func TestNewLedger_Validation(t *testing.T) {
	deps := ledger.Deps{
		Store:     memory.NewMemoryBatchStore(),
		Custodian: custodianmem.NewCustodian(pool),
		Authority: authority.NewRegistry(authority1),
		Notifier:  authority.NewRecorder(),
		Publisher: &recordingPublisher{},
	}

	t.Run("invalid tier", func(t *testing.T) {
		tier := smallTier()
		tier.Capacity = 0
		_, err := ledger.NewLedger(tier, deps)
		assert.ErrorIs(t, err, models.ErrInvalidCapacity)
	})

	t.Run("missing store", func(t *testing.T) {
		d := deps
		d.Store = nil
		_, err := ledger.NewLedger(smallTier(), d)
		assert.Error(t, err)
	})

	t.Run("missing notifier", func(t *testing.T) {
		d := deps
		d.Notifier = nil
		_, err := ledger.NewLedger(smallTier(), d)
		assert.Error(t, err)
	})

	t.Run("unclosable tier is accepted", func(t *testing.T) {
		tier := smallTier()
		tier.MinimumNet = decimal.NewFromInt(1000)
		l, err := ledger.NewLedger(tier, deps)
		require.NoError(t, err)
		assert.Equal(t, tier, l.Tier())
	})
}

func TestAdmitEntry_FullBatchClosesAndTransmits(t *testing.T) {
	h := newHarness(t, models.DefaultTier())
	for i := 0; i < 100; i++ {
		h.fund(fmt.Sprintf("p%d", i), "10")
	}

	for i := 0; i < 99; i++ {
		entry := h.admit(fmt.Sprintf("p%d", i), "ref")
		assert.Equal(t, uint64(1), entry.Batch)
		assert.Equal(t, i+1, entry.Sequence)
	}
	assert.Empty(t, h.recorder.Settlements())
	assert.Equal(t, models.BatchStatus{Number: 1, Size: 99, Capacity: 100}, h.current())

	last := h.admit("p99", "ref")
	assert.Equal(t, 100, last.Sequence)

	account := h.account(1)
	assert.Equal(t, 100, account.Size)
	assert.True(t, account.TotalFees.Equal(dec("1000")), account.TotalFees.String())
	assert.True(t, account.TotalCommission.Equal(dec("75")), account.TotalCommission.String())
	assert.True(t, account.NetAmount.Equal(dec("925")), account.NetAmount.String())

	settlements := h.recorder.Settlements()
	require.Len(t, settlements, 1)
	s := settlements[0]
	assert.Equal(t, authority1, s.Authority)
	assert.Equal(t, uint64(1), s.Batch)
	assert.True(t, s.NetAmount.Equal(dec("925")))
	require.Len(t, s.Entries, 100)
	for i, e := range s.Entries {
		assert.Equal(t, i+1, e.Sequence)
		assert.Equal(t, fmt.Sprintf("p%d", i), e.Participant)
	}

	assert.True(t, h.balance(authority1).Equal(dec("925")))
	assert.True(t, h.balance("ref").Equal(dec("75")))
	assert.True(t, h.balance(pool).IsZero())
	assert.Equal(t, models.BatchStatus{Number: 2, Size: 0, Capacity: 100}, h.current())

	assert.Equal(t, 1, h.publisher.count(events.TopicBatchClosed))
	assert.Equal(t, 1, h.publisher.count(events.TopicBatchTransmitted))
	assert.Equal(t, 100, h.publisher.count(events.TopicEntrySucceeded))
	assert.Equal(t, 100, h.publisher.count(events.TopicAffiliatePayment))

	closed := h.publisher.payloads(events.TopicBatchClosed)[0].(events.BatchClosed)
	assert.Equal(t, 100, closed.Size)
	assert.True(t, closed.NetAmount.Equal(dec("925")))
	transmitted := h.publisher.payloads(events.TopicBatchTransmitted)[0].(events.BatchTransmitted)
	assert.Equal(t, authority1, transmitted.Authority)
	assert.Equal(t, 100, transmitted.EntryCount)
}

func TestAdmitEntry_SelfReferral(t *testing.T) {
	h := newHarness(t, models.DefaultTier())
	h.fund("alice", "10")

	entry := h.admit("alice", "alice")

	assert.Equal(t, "alice", entry.Referrer)
	assert.Equal(t, entry.Participant, entry.Referrer)
	assert.True(t, entry.Commission.Equal(dec("0.75")))
	// pays 10, gets 0.75 back
	assert.True(t, h.balance("alice").Equal(dec("0.75")), h.balance("alice").String())
	assert.True(t, h.balance(pool).Equal(dec("9.25")))

	stored, err := h.ledger.Entry(h.ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Referrer)

	payment := h.publisher.payloads(events.TopicAffiliatePayment)[0].(events.AffiliatePayment)
	assert.Equal(t, "alice", payment.Referrer)
	assert.True(t, payment.Amount.Equal(dec("0.75")))
}

func TestAdmitEntry_EventPayload(t *testing.T) {
	h := newHarness(t, smallTier())
	h.fund("alice", "10")
	h.admit("alice", "bob")

	assert.Equal(t, []string{events.TopicEntrySucceeded, events.TopicAffiliatePayment}, h.publisher.topics())
	succeeded := h.publisher.payloads(events.TopicEntrySucceeded)[0].(events.EntrySucceeded)
	assert.Equal(t, "alice", succeeded.Participant)
	assert.Equal(t, "bob", succeeded.Referrer)
	assert.Equal(t, uint64(1), succeeded.Batch)
	assert.Equal(t, 1, succeeded.Sequence)
	assert.True(t, succeeded.Fee.Equal(dec("10")))
	assert.True(t, succeeded.Commission.Equal(dec("0.75")))
}

func TestAdmitEntry_FailuresLeaveNoTrace(t *testing.T) {
	tests := []struct {
		name        string
		participant string
		referrer    string
		deposit     string
		approve     string
		wantErr     error
	}{
		{"empty referrer", "alice", "", "10", "10", ledger.ErrInvalidReferrer},
		{"empty participant", "", "bob", "10", "10", ledger.ErrInvalidParticipant},
		{"insufficient funds", "alice", "bob", "5", "10", ledger.ErrInsufficientFunds},
		{"no allowance", "alice", "bob", "10", "0", ledger.ErrAllowance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, smallTier())
			h.fund("early", "10")
			h.admit("early", "bob")

			require.NoError(t, h.custodian.Deposit(h.ctx, "alice", dec(tt.deposit)))
			require.NoError(t, h.custodian.Approve(h.ctx, "alice", dec(tt.approve)))

			beforeStatus := h.current()
			beforeAccount := h.account(1)
			beforeAlice, beforeBob, beforePool := h.balance("alice"), h.balance("bob"), h.balance(pool)
			beforeEvents := len(h.publisher.topics())

			_, err := h.ledger.AdmitEntry(h.ctx, tt.participant, tt.referrer)
			require.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, beforeStatus, h.current())
			assert.Equal(t, beforeAccount, h.account(1))
			assert.True(t, h.balance("alice").Equal(beforeAlice))
			assert.True(t, h.balance("bob").Equal(beforeBob))
			assert.True(t, h.balance(pool).Equal(beforePool))
			assert.Len(t, h.publisher.topics(), beforeEvents)

			entries, err := h.ledger.Entries(h.ctx, 1)
			require.NoError(t, err)
			assert.Len(t, entries, 1)
		})
	}
}

func TestAdmitEntry_MinimumNetNotMetAbortsClosingAdmission(t *testing.T) {
	tier := smallTier()
	tier.MinimumNet = decimal.NewFromInt(28) // full batch nets 27.75
	h := newHarness(t, tier)
	for _, p := range []string{"a", "b", "c"} {
		h.fund(p, "10")
	}
	h.admit("a", "ref")
	h.admit("b", "ref")

	_, err := h.ledger.AdmitEntry(h.ctx, "c", "ref")
	require.ErrorIs(t, err, ledger.ErrMinimumNetNotMet)

	assert.Equal(t, models.BatchStatus{Number: 1, Size: 2, Capacity: 3}, h.current())
	assert.True(t, h.balance("c").Equal(dec("10")))
	assert.True(t, h.balance("ref").Equal(dec("1.5")))
	assert.Empty(t, h.recorder.Settlements())
	assert.Zero(t, h.publisher.count(events.TopicBatchClosed))
	assert.Zero(t, h.publisher.count(events.TopicMinimumNetValidation))

	_, err = h.ledger.Entry(h.ctx, 1, 3)
	assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
}

func TestAdmitEntry_AuthorityUnsetRollsBackToOpen(t *testing.T) {
	h := newHarness(t, smallTier())
	for _, p := range []string{"a", "b", "c"} {
		h.fund(p, "10")
	}
	h.admit("a", "ref")
	h.admit("b", "ref")
	h.authority.Set("")

	_, err := h.ledger.AdmitEntry(h.ctx, "c", "ref")
	require.ErrorIs(t, err, ledger.ErrSettlementAuthorityUnset)
	assert.Equal(t, models.BatchStatus{Number: 1, Size: 2, Capacity: 3}, h.current())
	assert.True(t, h.balance("c").Equal(dec("10")))
	assert.True(t, h.balance(pool).Equal(dec("18.5")))

	// configuring the authority makes the same admission succeed
	h.authority.Set(authority2)
	entry := h.admit("c", "ref")
	assert.Equal(t, 3, entry.Sequence)
	assert.Equal(t, uint64(2), h.current().Number)
	require.Len(t, h.recorder.Settlements(), 1)
	assert.Equal(t, authority2, h.recorder.Settlements()[0].Authority)
	assert.True(t, h.balance(authority2).Equal(dec("27.75")))
}

func TestAdmitEntry_NotificationFailureRollsBack(t *testing.T) {
	h := newHarness(t, smallTier())
	for _, p := range []string{"a", "b", "c"} {
		h.fund(p, "10")
	}
	h.admit("a", "ref")
	h.admit("b", "ref")
	h.recorder.Fail = errors.New("authority offline")

	_, err := h.ledger.AdmitEntry(h.ctx, "c", "ref")
	require.ErrorIs(t, err, ledger.ErrNotificationFailed)

	assert.True(t, h.balance(authority1).IsZero())
	assert.True(t, h.balance("c").Equal(dec("10")))
	assert.Equal(t, 2, h.current().Size)
	assert.Equal(t, uint64(1), h.current().Number)
	assert.Zero(t, h.publisher.count(events.TopicBatchTransmitted))
}

func TestAdmitEntry_SettlementTransferFailureRollsBack(t *testing.T) {
	h := newHarness(t, smallTier())
	c := &failingOutCustodian{Custodian: h.custodian, refuse: authority1}
	l, err := ledger.NewLedger(smallTier(), ledger.Deps{
		Store:     h.store,
		Custodian: c,
		Authority: h.authority,
		Notifier:  h.recorder,
		Publisher: h.publisher,
	})
	require.NoError(t, err)
	for _, p := range []string{"a", "b", "c"} {
		h.fund(p, "10")
	}
	for _, p := range []string{"a", "b"} {
		_, err := l.AdmitEntry(h.ctx, p, "ref")
		require.NoError(t, err)
	}

	_, err = l.AdmitEntry(h.ctx, "c", "ref")
	require.ErrorIs(t, err, ledger.ErrTransferFailed)
	assert.ErrorIs(t, err, errRefused)
	assert.Empty(t, h.recorder.Settlements())
	assert.Equal(t, 2, h.current().Size)
	assert.True(t, h.balance("c").Equal(dec("10")))
}

func TestTransmit_NotifiedAmountEqualsTransferred(t *testing.T) {
	tier := smallTier()
	tier.EntryFee = dec("0.3")
	tier.Commission = dec("0.1")
	tier.MinimumNet = dec("0.6")
	h := newHarness(t, tier)
	for _, p := range []string{"a", "b", "c"} {
		h.fund(p, "0.3")
	}
	for _, p := range []string{"a", "b", "c"} {
		h.admit(p, "ref")
	}

	settlements := h.recorder.Settlements()
	require.Len(t, settlements, 1)
	transferred := h.balance(authority1)
	assert.True(t, settlements[0].NetAmount.Equal(transferred))
	assert.Equal(t, transferred.String(), settlements[0].NetAmount.String())
	assert.Equal(t, "0.6", transferred.String())
}

func TestBatchTotals_AcrossManyBatches(t *testing.T) {
	h := newHarness(t, smallTier())
	for i := 0; i < 10; i++ {
		h.fund(fmt.Sprintf("p%d", i), "10")
	}
	for i := 0; i < 10; i++ {
		h.admit(fmt.Sprintf("p%d", i), fmt.Sprintf("r%d", i%2))
	}

	assert.Equal(t, models.BatchStatus{Number: 4, Size: 1, Capacity: 3}, h.current())
	require.Len(t, h.recorder.Settlements(), 3)

	for batch := uint64(1); batch <= 4; batch++ {
		account := h.account(batch)
		size := decimal.NewFromInt(int64(account.Size))
		assert.True(t, account.TotalFees.Equal(size.Mul(dec("10"))))
		assert.True(t, account.TotalCommission.Equal(size.Mul(dec("0.75"))))
		assert.True(t, account.NetAmount.Equal(account.TotalFees.Sub(account.TotalCommission)))

		entries, err := h.ledger.Entries(h.ctx, batch)
		require.NoError(t, err)
		require.Len(t, entries, account.Size)
		for i, e := range entries {
			assert.Equal(t, i+1, e.Sequence)
			assert.Equal(t, batch, e.Batch)
		}
	}
	for i, s := range h.recorder.Settlements() {
		assert.Equal(t, uint64(i+1), s.Batch)
		assert.True(t, s.NetAmount.Equal(dec("27.75")))
	}
	assert.True(t, h.balance(authority1).Equal(dec("83.25")))
	assert.Equal(t, 3, h.publisher.count(events.TopicBatchClosed))
}

func TestAdmitEntry_SequencesAfterFailuresStayGapless(t *testing.T) {
	h := newHarness(t, smallTier())
	h.fund("a", "10")
	h.fund("b", "10")

	h.admit("a", "ref")
	_, err := h.ledger.AdmitEntry(h.ctx, "broke", "ref")
	require.ErrorIs(t, err, ledger.ErrAllowance)
	_, err = h.ledger.AdmitEntry(h.ctx, "b", "")
	require.ErrorIs(t, err, ledger.ErrInvalidReferrer)
	entry := h.admit("b", "ref")

	assert.Equal(t, 2, entry.Sequence)
}

func TestAdmitEntry_ConcurrentCallersNeverInterleave(t *testing.T) {
	h := newHarness(t, models.DefaultTier())
	const n = 50
	for i := 0; i < n; i++ {
		h.fund(fmt.Sprintf("p%d", i), "10")
	}

	var (
		wg   sync.WaitGroup
		busy atomic.Int64
	)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for {
				_, err := h.ledger.AdmitEntry(context.Background(), fmt.Sprintf("p%d", i), "ref")
				if !errors.Is(err, ledger.ErrReentrantCall) {
					errs <- err
					return
				}
				busy.Add(1)
				runtime.Gosched()
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	t.Logf("%d calls found another admission in flight", busy.Load())

	entries, err := h.ledger.Entries(h.ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, n)
	seqs := make([]int, 0, n)
	participants := map[string]bool{}
	for _, e := range entries {
		seqs = append(seqs, e.Sequence)
		participants[e.Participant] = true
	}
	sort.Ints(seqs)
	for i, s := range seqs {
		assert.Equal(t, i+1, s)
	}
	assert.Len(t, participants, n)
	assert.True(t, h.account(1).TotalFees.Equal(dec("500")))
}

// reentrantNotifier calls back into the ledger while it is being notified.
type reentrantNotifier struct {
	ledger   *ledger.Ledger
	admitErr error
	purgeErr error
}

func (n *reentrantNotifier) ReceiveBatch(ctx context.Context, authority string, batch uint64, entries []models.Entry, net decimal.Decimal) error {
	_, n.admitErr = n.ledger.AdmitEntry(ctx, "sneaky", "sneaky")
	_, n.purgeErr = n.ledger.PurgeBatch(ctx, authority, batch)
	return nil
}

func TestAdmitEntry_ReentrantCallsAreRejected(t *testing.T) {
	h := newHarness(t, smallTier())
	notifier := &reentrantNotifier{}
	l, err := ledger.NewLedger(smallTier(), ledger.Deps{
		Store:     h.store,
		Custodian: h.custodian,
		Authority: h.authority,
		Notifier:  notifier,
		Publisher: h.publisher,
	})
	require.NoError(t, err)
	notifier.ledger = l

	for _, p := range []string{"a", "b", "c", "sneaky"} {
		h.fund(p, "10")
	}
	for _, p := range []string{"a", "b", "c"} {
		_, err := l.AdmitEntry(h.ctx, p, "ref")
		require.NoError(t, err)
	}

	assert.ErrorIs(t, notifier.admitErr, ledger.ErrReentrantCall)
	assert.ErrorIs(t, notifier.purgeErr, ledger.ErrReentrantCall)
	assert.True(t, h.balance("sneaky").Equal(dec("10")))

	entries, err := l.Entries(h.ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, uint64(2), h.current().Number)

	// the guard is released afterwards
	_, err = l.AdmitEntry(h.ctx, "sneaky", "sneaky")
	require.NoError(t, err)
}

// detachedNotifier calls back into the ledger with a fresh context.
type detachedNotifier struct {
	ledger   *ledger.Ledger
	admitErr error
	purgeErr error
}

func (n *detachedNotifier) ReceiveBatch(_ context.Context, authority string, batch uint64, _ []models.Entry, _ decimal.Decimal) error {
	_, n.admitErr = n.ledger.AdmitEntry(context.Background(), "sneaky", "sneaky")
	_, n.purgeErr = n.ledger.PurgeBatch(context.Background(), authority, batch)
	return nil
}

func TestAdmitEntry_ReentryWithDetachedContextFailsFast(t *testing.T) {
	h := newHarness(t, smallTier())
	notifier := &detachedNotifier{}
	l, err := ledger.NewLedger(smallTier(), ledger.Deps{
		Store:     h.store,
		Custodian: h.custodian,
		Authority: h.authority,
		Notifier:  notifier,
		Publisher: h.publisher,
	})
	require.NoError(t, err)
	notifier.ledger = l

	for _, p := range []string{"a", "b", "c", "sneaky"} {
		h.fund(p, "10")
	}
	for _, p := range []string{"a", "b"} {
		_, err := l.AdmitEntry(h.ctx, p, "ref")
		require.NoError(t, err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := l.AdmitEntry(h.ctx, "c", "ref")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("closing admission blocked on its own reentrant call")
	}

	assert.ErrorIs(t, notifier.admitErr, ledger.ErrReentrantCall)
	assert.ErrorIs(t, notifier.purgeErr, ledger.ErrReentrantCall)
	assert.True(t, h.balance("sneaky").Equal(dec("10")))
	assert.Equal(t, uint64(2), h.current().Number)
}

func TestAdmitEntry_PoolCannotBeCounterparty(t *testing.T) {
	tests := []struct {
		name        string
		participant string
		referrer    string
	}{
		{"pool as participant", pool, "bob"},
		{"pool as referrer", "alice", pool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, smallTier())
			h.fund("alice", "10")
			require.NoError(t, h.custodian.Deposit(h.ctx, pool, dec("10")))

			_, err := h.ledger.AdmitEntry(h.ctx, tt.participant, tt.referrer)
			require.ErrorIs(t, err, ledger.ErrPoolAccount)

			assert.True(t, h.account(1).IsEmpty())
			assert.True(t, h.balance(pool).Equal(dec("10")))
			assert.True(t, h.balance("alice").Equal(dec("10")))
			assert.Empty(t, h.publisher.topics())
		})
	}
}

func TestAdmitEntry_PoolAsAuthorityCannotReceiveSettlement(t *testing.T) {
	h := newHarness(t, smallTier())
	h.authority.Set(pool)
	for _, p := range []string{"a", "b", "c"} {
		h.fund(p, "10")
	}
	h.admit("a", "ref")
	h.admit("b", "ref")

	_, err := h.ledger.AdmitEntry(h.ctx, "c", "ref")
	require.ErrorIs(t, err, ledger.ErrTransferFailed)
	require.ErrorIs(t, err, ledger.ErrPoolAccount)
	assert.Equal(t, 2, h.current().Size)
	assert.True(t, h.balance(pool).Equal(dec("18.5")))
	assert.Empty(t, h.recorder.Settlements())
}

func TestAdmitEntry_PublishFailureKeepsCommittedState(t *testing.T) {
	h := newHarness(t, smallTier())
	h.publisher.fail = true
	h.fund("a", "10")

	entry, err := h.ledger.AdmitEntry(h.ctx, "a", "ref")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Sequence)
	assert.Equal(t, 1, h.current().Size)
}

func TestValidateMinimumNet(t *testing.T) {
	h := newHarness(t, smallTier())
	h.fund("a", "10")
	h.admit("a", "ref")

	result, err := h.ledger.ValidateMinimumNet(h.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Batch)
	assert.True(t, result.NetAmount.Equal(dec("9.25")))
	assert.True(t, result.Minimum.Equal(dec("27")))
	assert.False(t, result.Passed)

	payload := h.publisher.payloads(events.TopicMinimumNetValidation)
	require.Len(t, payload, 1)
	assert.False(t, payload[0].(events.MinimumNetValidationResult).Passed)
}

func TestEntry_NotFound(t *testing.T) {
	h := newHarness(t, smallTier())
	_, err := h.ledger.Entry(h.ctx, 1, 1)
	assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
	_, err = h.ledger.Entry(h.ctx, 7, 0)
	assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
}
