// Package storagetest runs the same behavioural checks against every BatchStore.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/storage"
)

var (
	fee        = decimal.NewFromInt(10)
	commission = decimal.RequireFromString("0.75")
)

func entry(batch uint64, seq int, participant string) models.Entry {
	return models.Entry{
		Batch:       batch,
		Sequence:    seq,
		Participant: participant,
		Referrer:    "ref",
		Commission:  commission,
		AdmittedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// appendN stages n entries into batch and commits them.
func appendN(t *testing.T, store interfaces.BatchStore, batch uint64, n int) {
	t.Helper()
	ctx := context.Background()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	account, err := tx.GetAccount(batch)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, tx.AppendEntry(entry(batch, account.Size+1, "p")))
		account = account.Record(fee, commission)
	}
	require.NoError(t, tx.PutAccount(account))
	require.NoError(t, tx.Commit())
}

// Run exercises store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) interfaces.BatchStore) {
	ctx := context.Background()

	t.Run("empty store opens batch 1", func(t *testing.T) {
		store := newStore(t)
		current, err := store.CurrentBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), current)

		account, err := store.GetAccount(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, account.Size)
		assert.True(t, account.NetAmount.IsZero())

		entries, err := store.GetEntries(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, entries)

		_, ok, err := store.GetEntry(ctx, 1, 1)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("commit makes writes visible", func(t *testing.T) {
		store := newStore(t)
		appendN(t, store, 1, 3)

		entries, err := store.GetEntries(ctx, 1)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		for i, e := range entries {
			assert.Equal(t, i+1, e.Sequence)
			assert.Equal(t, uint64(1), e.Batch)
			assert.True(t, e.Commission.Equal(commission))
			assert.True(t, e.AdmittedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
		}

		account, err := store.GetAccount(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, account.Size)
		assert.True(t, account.TotalFees.Equal(decimal.NewFromInt(30)))
		assert.True(t, account.TotalCommission.Equal(decimal.RequireFromString("2.25")))
		assert.True(t, account.NetAmount.Equal(decimal.RequireFromString("27.75")))

		e, ok, err := store.GetEntry(ctx, 1, 2)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 2, e.Sequence)
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		store := newStore(t)
		appendN(t, store, 1, 1)

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.AppendEntry(entry(1, 2, "q")))
		account, err := tx.GetAccount(1)
		require.NoError(t, err)
		require.NoError(t, tx.PutAccount(account.Record(fee, commission)))
		require.NoError(t, tx.SetCurrentBatch(9))

		staged, err := tx.GetEntries(1)
		require.NoError(t, err)
		assert.Len(t, staged, 2)
		require.NoError(t, tx.Rollback())

		entries, err := store.GetEntries(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		account, err = store.GetAccount(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, account.Size)
		current, err := store.CurrentBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), current)
	})

	t.Run("sequence gaps are rejected", func(t *testing.T) {
		store := newStore(t)
		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()

		err = tx.AppendEntry(entry(1, 2, "p"))
		assert.ErrorIs(t, err, storage.ErrSequenceGap)
	})

	t.Run("current batch advances", func(t *testing.T) {
		store := newStore(t)
		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.SetCurrentBatch(2))
		current, err := tx.CurrentBatch()
		require.NoError(t, err)
		assert.Equal(t, uint64(2), current)
		require.NoError(t, tx.Commit())

		current, err = store.CurrentBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), current)
	})

	t.Run("delete batch", func(t *testing.T) {
		store := newStore(t)
		appendN(t, store, 1, 3)
		appendN(t, store, 2, 1)

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		removed, err := tx.DeleteBatch(1)
		require.NoError(t, err)
		assert.Equal(t, 3, removed)
		require.NoError(t, tx.Commit())

		entries, err := store.GetEntries(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, entries)
		account, err := store.GetAccount(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, account.Size)

		others, err := store.GetEntries(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, others, 1)

		tx, err = store.Begin(ctx)
		require.NoError(t, err)
		removed, err = tx.DeleteBatch(1)
		require.NoError(t, err)
		assert.Zero(t, removed)
		require.NoError(t, tx.Commit())
	})

	t.Run("deleted batch can be refilled from 1", func(t *testing.T) {
		store := newStore(t)
		appendN(t, store, 1, 2)

		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		_, err = tx.DeleteBatch(1)
		require.NoError(t, err)
		require.NoError(t, tx.AppendEntry(entry(1, 1, "again")))
		require.NoError(t, tx.Commit())

		entries, err := store.GetEntries(ctx, 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "again", entries[0].Participant)
	})

	t.Run("finished tx is rejected", func(t *testing.T) {
		store := newStore(t)
		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		assert.ErrorIs(t, tx.AppendEntry(entry(1, 1, "p")), storage.ErrTxDone)
		assert.ErrorIs(t, tx.Commit(), storage.ErrTxDone)
		assert.NoError(t, tx.Rollback())
	})
}
