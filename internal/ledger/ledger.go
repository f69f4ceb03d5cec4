// Package ledger admits fixed-fee entries into fixed-capacity batches, pays
// the referrer's commission per entry, and hands each full batch with its net
// funds to the settlement authority. Every mutating call is one unit of work:
// it commits in full or leaves no trace.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/metrics"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models/events"
)

// Deps are the collaborators a Ledger works with. Clock is optional.
type Deps struct {
	Store     interfaces.BatchStore
	Custodian interfaces.FundsCustodian
	Authority interfaces.AuthorityResolver
	Notifier  interfaces.SettlementNotifier
	Publisher interfaces.EventPublisher
	Clock     func() time.Time
}

// Ledger is the batch accounting engine.
type Ledger struct {
	tier      models.Tier
	store     interfaces.BatchStore
	custodian interfaces.FundsCustodian
	authority interfaces.AuthorityResolver
	notifier  interfaces.SettlementNotifier
	publisher interfaces.EventPublisher
	now       func() time.Time
	guard     guard
}

// NewLedger validates the tier and wires the collaborators.
func NewLedger(tier models.Tier, deps Deps) (*Ledger, error) {
	if err := tier.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Store == nil:
		return nil, errors.New("ledger: store is required")
	case deps.Custodian == nil:
		return nil, errors.New("ledger: custodian is required")
	case deps.Authority == nil:
		return nil, errors.New("ledger: authority resolver is required")
	case deps.Notifier == nil:
		return nil, errors.New("ledger: settlement notifier is required")
	case deps.Publisher == nil:
		return nil, errors.New("ledger: event publisher is required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	if !tier.CanClose() {
		log.Printf("ledger: tier %q can never close a batch: full batch net %s is below minimum %s",
			tier.Label, tier.FullBatchNet(), tier.MinimumNet)
	}

	return &Ledger{
		tier:      tier,
		store:     deps.Store,
		custodian: deps.Custodian,
		authority: deps.Authority,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		now:       deps.Clock,
	}, nil
}

// Tier returns the ledger's fixed constants.
func (l *Ledger) Tier() models.Tier {
	return l.tier
}

// CurrentBatch returns the open batch's number and size.
func (l *Ledger) CurrentBatch(ctx context.Context) (models.BatchStatus, error) {
	number, err := l.store.CurrentBatch(ctx)
	if err != nil {
		return models.BatchStatus{}, err
	}
	account, err := l.store.GetAccount(ctx, number)
	if err != nil {
		return models.BatchStatus{}, err
	}
	return models.BatchStatus{
		Number:   number,
		Size:     account.Size,
		Capacity: l.tier.Capacity,
	}, nil
}

// BatchAccount returns the financial totals of a batch. Absent or purged
// batches read as zero.
func (l *Ledger) BatchAccount(ctx context.Context, batch uint64) (models.BatchAccount, error) {
	return l.store.GetAccount(ctx, batch)
}

// Entries exports a batch's entries in sequence order.
func (l *Ledger) Entries(ctx context.Context, batch uint64) ([]models.Entry, error) {
	return l.store.GetEntries(ctx, batch)
}

// Entry looks up one entry by batch and sequence.
func (l *Ledger) Entry(ctx context.Context, batch uint64, sequence int) (models.Entry, error) {
	entry, ok, err := l.store.GetEntry(ctx, batch, sequence)
	if err != nil {
		return models.Entry{}, err
	}
	if !ok {
		return models.Entry{}, fmt.Errorf("%w: batch %d sequence %d", ErrEntryNotFound, batch, sequence)
	}
	return entry, nil
}

// ValidateMinimumNet checks a batch's current net amount against the minimum
// transfer and publishes the result.
func (l *Ledger) ValidateMinimumNet(ctx context.Context, batch uint64) (models.MinimumNetValidation, error) {
	account, err := l.store.GetAccount(ctx, batch)
	if err != nil {
		return models.MinimumNetValidation{}, err
	}
	result := l.checkMinimumNet(account)
	l.publish([]events.Envelope{events.NewEnvelope(events.TopicMinimumNetValidation, minimumNetEvent(result), l.now())})
	return result, nil
}

func (l *Ledger) checkMinimumNet(account models.BatchAccount) models.MinimumNetValidation {
	return models.MinimumNetValidation{
		Batch:     account.Batch,
		NetAmount: account.NetAmount,
		Minimum:   l.tier.MinimumNet,
		Passed:    account.NetAmount.GreaterThanOrEqual(l.tier.MinimumNet),
	}
}

func minimumNetEvent(v models.MinimumNetValidation) events.MinimumNetValidationResult {
	return events.MinimumNetValidationResult{
		Batch:     v.Batch,
		NetAmount: v.NetAmount,
		Minimum:   v.Minimum,
		Passed:    v.Passed,
	}
}

// publish delivers events raised by a committed operation. Delivery failures
// are logged; the operation stays committed.
func (l *Ledger) publish(envelopes []events.Envelope) {
	for _, env := range envelopes {
		if err := l.publisher.Publish(env.Topic, env); err != nil {
			metrics.EventPublishErrors.WithLabelValues(env.Topic).Inc()
			log.Printf("ledger: publish %s %s: %v", env.Topic, env.ID, err)
		}
	}
}
