package ledger

import (
	"context"
	"fmt"
	"log"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models/events"
)

// closeBatch finalizes a batch that just reached capacity, transmits it and
// opens the next one. It runs inside the admission that filled the batch.
func (l *Ledger) closeBatch(ctx context.Context, u *unit, account models.BatchAccount) error {
	validation := l.checkMinimumNet(account)
	u.emit(events.TopicMinimumNetValidation, minimumNetEvent(validation))
	if !validation.Passed {
		return fmt.Errorf("%w: batch %d net %s, minimum %s",
			ErrMinimumNetNotMet, account.Batch, account.NetAmount, l.tier.MinimumNet)
	}

	u.emit(events.TopicBatchClosed, events.BatchClosed{
		Batch:           account.Batch,
		Size:            account.Size,
		TotalFees:       account.TotalFees,
		TotalCommission: account.TotalCommission,
		NetAmount:       account.NetAmount,
	})

	if err := l.transmit(ctx, u, account); err != nil {
		return err
	}

	if err := u.store.SetCurrentBatch(account.Batch + 1); err != nil {
		return fmt.Errorf("ledger: open batch %d: %w", account.Batch+1, err)
	}
	return nil
}

// transmit moves the batch's net amount to the settlement authority and then
// hands it the ordered entries. The notified amount is the transferred amount.
func (l *Ledger) transmit(ctx context.Context, u *unit, account models.BatchAccount) error {
	authority, err := l.authority.CurrentAuthority(ctx)
	if err != nil {
		return fmt.Errorf("ledger: resolve settlement authority: %w", err)
	}
	if authority == "" {
		return ErrSettlementAuthorityUnset
	}

	entries, err := u.store.GetEntries(account.Batch)
	if err != nil {
		return fmt.Errorf("ledger: export batch %d: %w", account.Batch, err)
	}
	if len(entries) != account.Size {
		return fmt.Errorf("ledger: batch %d registry holds %d entries, account records %d",
			account.Batch, len(entries), account.Size)
	}

	net := account.NetAmount
	if err := u.funds.TransferOut(authority, net); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if err := l.notifier.ReceiveBatch(ctx, authority, account.Batch, entries, net); err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}

	u.emit(events.TopicBatchTransmitted, events.BatchTransmitted{
		Batch:      account.Batch,
		Authority:  authority,
		EntryCount: len(entries),
		NetAmount:  net,
	})
	log.Printf("ledger: batch %d transmitted to %s entries=%d net=%s", account.Batch, authority, len(entries), net)
	return nil
}
