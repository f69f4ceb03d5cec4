package ledger

import (
	"context"
	"fmt"
	"log"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/metrics"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models/events"
)

// PurgeBatch deletes every record of a batch. Only the settlement authority
// resolved at call time may purge. Purging an absent batch removes nothing
// and succeeds. Whether the batch was transmitted is not checked.
func (l *Ledger) PurgeBatch(ctx context.Context, caller string, batch uint64) (int, error) {
	release, err := l.guard.enter()
	defer release()
	if err != nil {
		return 0, l.purgeFailed(caller, batch, err)
	}

	authority, err := l.authority.CurrentAuthority(ctx)
	if err != nil {
		return 0, l.purgeFailed(caller, batch, fmt.Errorf("ledger: resolve settlement authority: %w", err))
	}
	if authority == "" {
		return 0, l.purgeFailed(caller, batch, ErrSettlementAuthorityUnset)
	}
	if caller != authority {
		return 0, l.purgeFailed(caller, batch, ErrUnauthorizedPurge)
	}

	u, err := l.begin(ctx, false)
	if err != nil {
		return 0, l.purgeFailed(caller, batch, err)
	}
	current, err := u.store.CurrentBatch()
	if err != nil {
		u.rollback()
		return 0, l.purgeFailed(caller, batch, fmt.Errorf("ledger: read current batch: %w", err))
	}
	account, err := u.store.GetAccount(batch)
	if err != nil {
		u.rollback()
		return 0, l.purgeFailed(caller, batch, fmt.Errorf("ledger: read batch account: %w", err))
	}
	removed, err := u.store.DeleteBatch(batch)
	if err != nil {
		u.rollback()
		return 0, l.purgeFailed(caller, batch, fmt.Errorf("ledger: delete batch %d: %w", batch, err))
	}
	u.emit(events.TopicBatchPurged, events.BatchPurged{Batch: batch, EntriesRemoved: removed})
	if err := u.commit(); err != nil {
		return 0, l.purgeFailed(caller, batch, err)
	}

	metrics.BatchesPurged.WithLabelValues("ok").Inc()
	if batch == current {
		// the pool keeps the open batch's net; no later transmission sends it
		metrics.CurrentBatchSize.Set(0)
		metrics.CurrentBatchNumber.Set(float64(current))
		if !account.IsEmpty() {
			metrics.StrandedNet.Add(account.NetAmount.InexactFloat64())
			log.Printf("ledger: warning: purged open batch %d; pool keeps its net %s untransmitted",
				batch, account.NetAmount)
		}
	}
	log.Printf("ledger: purged batch %d entries=%d", batch, removed)
	l.publish(u.events)
	return removed, nil
}

func (l *Ledger) purgeFailed(caller string, batch uint64, err error) error {
	metrics.BatchesPurged.WithLabelValues(reason(err)).Inc()
	log.Printf("ledger: purge of batch %d by %s rejected: %v", batch, caller, err)
	return err
}
