package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/custodian/custodiantest"
	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/storage/storagetest"
)

// testDB connects to LEDGER_TEST_DATABASE_URL, which must point at a
// disposable database. Tests skip when it is unset.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL not set")
	}
	db, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// reset migrates and empties every table.
func reset(t *testing.T, db *sql.DB) *PostgresBatchStore {
	t.Helper()
	ctx := context.Background()
	store := NewPostgresBatchStore(db)
	require.NoError(t, store.Migrate(ctx))
	_, err := db.ExecContext(ctx,
		`TRUNCATE ledger_state, batch_accounts, batch_entries, custodian_balances, custodian_allowances`)
	require.NoError(t, err)
	return store
}

func TestPostgresBatchStore(t *testing.T) {
	db := testDB(t)
	storagetest.Run(t, func(t *testing.T) interfaces.BatchStore {
		return reset(t, db)
	})
}

func TestPostgresCustodian(t *testing.T) {
	db := testDB(t)
	custodiantest.Run(t, func(t *testing.T) custodiantest.Backend {
		reset(t, db)
		return NewPostgresCustodian(db, custodiantest.Pool)
	})
}

func TestPostgresCustodian_JoinCommitsWithBatchWrites(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	store := reset(t, db)
	c := NewPostgresCustodian(db, "pool")
	require.NoError(t, c.Deposit(ctx, "alice", decimal.NewFromInt(20)))
	require.NoError(t, c.Approve(ctx, "alice", decimal.NewFromInt(20)))

	batchTx, err := store.Begin(ctx)
	require.NoError(t, err)
	funds, err := c.Join(batchTx)
	require.NoError(t, err)
	require.NoError(t, funds.TransferIn("alice", decimal.NewFromInt(10)))
	require.NoError(t, batchTx.AppendEntry(models.Entry{Batch: 1, Sequence: 1, Participant: "alice", Referrer: "r"}))
	require.NoError(t, funds.Commit())
	require.NoError(t, batchTx.Rollback())

	have, err := c.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, have.Equal(decimal.NewFromInt(20)))

	batchTx, err = store.Begin(ctx)
	require.NoError(t, err)
	funds, err = c.Join(batchTx)
	require.NoError(t, err)
	require.NoError(t, funds.TransferIn("alice", decimal.NewFromInt(10)))
	require.NoError(t, batchTx.Commit())

	have, err = c.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, have.Equal(decimal.NewFromInt(10)))
}

func TestPostgresCustodian_JoinRejectsForeignTx(t *testing.T) {
	memTx, err := memory.NewMemoryBatchStore().Begin(context.Background())
	require.NoError(t, err)
	_, err = NewPostgresCustodian(nil, "pool").Join(memTx)
	assert.Error(t, err)
}
