package ledger

import (
	"context"
	"fmt"
	"log"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/metrics"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models/events"
)

// AdmitEntry collects the entry fee from participant, pays the commission to
// referrer and records the entry in the open batch. The admission that fills
// the batch also closes and transmits it; if any step fails nothing is kept.
func (l *Ledger) AdmitEntry(ctx context.Context, participant, referrer string) (models.Entry, error) {
	release, err := l.guard.enter()
	defer release()
	if err != nil {
		return models.Entry{}, l.rejected(participant, err)
	}

	if referrer == "" {
		return models.Entry{}, l.rejected(participant, ErrInvalidReferrer)
	}
	if participant == "" {
		return models.Entry{}, l.rejected(participant, ErrInvalidParticipant)
	}

	u, err := l.begin(ctx, true)
	if err != nil {
		return models.Entry{}, l.rejected(participant, err)
	}

	entry, account, err := l.admit(ctx, u, participant, referrer)
	if err != nil {
		u.rollback()
		return models.Entry{}, l.rejected(participant, err)
	}
	if err := u.commit(); err != nil {
		return models.Entry{}, l.rejected(participant, err)
	}

	metrics.EntriesAdmitted.Inc()
	if account.Size == l.tier.Capacity {
		metrics.BatchesTransmitted.Inc()
		metrics.NetTransmitted.Add(account.NetAmount.InexactFloat64())
		metrics.CurrentBatchNumber.Set(float64(account.Batch + 1))
		metrics.CurrentBatchSize.Set(0)
	} else {
		metrics.CurrentBatchNumber.Set(float64(account.Batch))
		metrics.CurrentBatchSize.Set(float64(account.Size))
	}
	log.Printf("ledger: admitted entry batch=%d seq=%d participant=%s referrer=%s",
		entry.Batch, entry.Sequence, entry.Participant, entry.Referrer)

	l.publish(u.events)
	return entry, nil
}

func (l *Ledger) rejected(participant string, err error) error {
	metrics.EntriesRejected.WithLabelValues(reason(err)).Inc()
	log.Printf("ledger: admission rejected participant=%s: %v", participant, err)
	return err
}

// admit stages the fee, the commission, the registry row and the account update.
func (l *Ledger) admit(ctx context.Context, u *unit, participant, referrer string) (models.Entry, models.BatchAccount, error) {
	batch, err := u.store.CurrentBatch()
	if err != nil {
		return models.Entry{}, models.BatchAccount{}, fmt.Errorf("ledger: read current batch: %w", err)
	}
	account, err := u.store.GetAccount(batch)
	if err != nil {
		return models.Entry{}, models.BatchAccount{}, fmt.Errorf("ledger: read batch account: %w", err)
	}
	if account.Size >= l.tier.Capacity {
		return models.Entry{}, models.BatchAccount{}, fmt.Errorf("%w: batch %d holds %d entries", ErrBatchFull, batch, account.Size)
	}

	fee, commission := l.tier.EntryFee, l.tier.Commission
	if err := u.funds.TransferIn(participant, fee); err != nil {
		return models.Entry{}, models.BatchAccount{}, fmt.Errorf("ledger: collect entry fee: %w", err)
	}
	if commission.IsPositive() {
		if err := u.funds.TransferOut(referrer, commission); err != nil {
			return models.Entry{}, models.BatchAccount{}, fmt.Errorf("ledger: pay commission: %w", err)
		}
	}

	entry := models.Entry{
		Batch:       batch,
		Sequence:    account.Size + 1,
		Participant: participant,
		Referrer:    referrer,
		Commission:  commission,
		AdmittedAt:  l.now().UTC(),
	}
	if err := u.store.AppendEntry(entry); err != nil {
		return models.Entry{}, models.BatchAccount{}, fmt.Errorf("ledger: append entry: %w", err)
	}

	account = account.Record(fee, commission)
	if err := u.store.PutAccount(account); err != nil {
		return models.Entry{}, models.BatchAccount{}, fmt.Errorf("ledger: update batch account: %w", err)
	}

	u.emit(events.TopicEntrySucceeded, events.EntrySucceeded{
		Participant: participant,
		Referrer:    referrer,
		Batch:       batch,
		Sequence:    entry.Sequence,
		Fee:         fee,
		Commission:  commission,
	})
	u.emit(events.TopicAffiliatePayment, events.AffiliatePayment{
		Referrer:    referrer,
		Amount:      commission,
		Participant: participant,
		Batch:       batch,
	})

	if account.Size == l.tier.Capacity {
		if err := l.closeBatch(ctx, u, account); err != nil {
			return models.Entry{}, models.BatchAccount{}, err
		}
	}
	return entry, account, nil
}
