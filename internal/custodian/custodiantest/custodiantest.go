// Package custodiantest runs the same behavioural checks against every funds custodian.
package custodiantest

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/custodian"
	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
)

// Pool is the pool account every backend under test is created with.
const Pool = "pool"

// Backend is a custodian that can also be funded directly.
type Backend interface {
	interfaces.FundsCustodian
	Deposit(ctx context.Context, account string, amount decimal.Decimal) error
	Approve(ctx context.Context, owner string, amount decimal.Decimal) error
	Allowance(ctx context.Context, owner string) (decimal.Decimal, error)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func balance(t *testing.T, c Backend, account string) decimal.Decimal {
	t.Helper()
	b, err := c.Balance(context.Background(), account)
	require.NoError(t, err)
	return b
}

func allowance(t *testing.T, c Backend, owner string) decimal.Decimal {
	t.Helper()
	a, err := c.Allowance(context.Background(), owner)
	require.NoError(t, err)
	return a
}

// Run exercises a custodian. newBackend must return one with no funds whose
// pool account is Pool.
func Run(t *testing.T, newBackend func(t *testing.T) Backend) {
	ctx := context.Background()

	t.Run("transfer in spends allowance", func(t *testing.T) {
		c := newBackend(t)
		require.NoError(t, c.Deposit(ctx, "alice", d("25")))
		require.NoError(t, c.Approve(ctx, "alice", d("20")))

		tx, err := c.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.TransferIn("alice", d("10")))
		require.NoError(t, tx.TransferIn("alice", d("10")))
		assert.ErrorIs(t, tx.TransferIn("alice", d("1")), custodian.ErrAllowance)
		require.NoError(t, tx.Commit())

		assert.True(t, balance(t, c, "alice").Equal(d("5")))
		assert.True(t, balance(t, c, Pool).Equal(d("20")))
		assert.True(t, allowance(t, c, "alice").IsZero())
	})

	t.Run("transfers are invisible until commit", func(t *testing.T) {
		c := newBackend(t)
		require.NoError(t, c.Deposit(ctx, "alice", d("10")))
		require.NoError(t, c.Approve(ctx, "alice", d("10")))

		tx, err := c.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.TransferIn("alice", d("10")))
		require.NoError(t, tx.TransferOut("bob", d("0.75")))

		assert.True(t, balance(t, c, "alice").Equal(d("10")))
		assert.True(t, balance(t, c, "bob").IsZero())

		require.NoError(t, tx.Rollback())
		assert.True(t, balance(t, c, "alice").Equal(d("10")))
		assert.True(t, allowance(t, c, "alice").Equal(d("10")))
		assert.True(t, balance(t, c, Pool).IsZero())
	})

	t.Run("pool pays out what it pulled in", func(t *testing.T) {
		c := newBackend(t)
		require.NoError(t, c.Deposit(ctx, "alice", d("10")))
		require.NoError(t, c.Approve(ctx, "alice", d("10")))

		tx, err := c.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.TransferIn("alice", d("10")))
		require.NoError(t, tx.TransferOut("bob", d("0.75")))
		require.NoError(t, tx.TransferOut("settler", d("9.25")))
		require.NoError(t, tx.Commit())

		assert.True(t, balance(t, c, Pool).IsZero())
		assert.True(t, balance(t, c, "bob").Equal(d("0.75")))
		assert.True(t, balance(t, c, "settler").Equal(d("9.25")))
	})

	t.Run("rejected transfers change nothing", func(t *testing.T) {
		c := newBackend(t)
		require.NoError(t, c.Deposit(ctx, "alice", d("5")))
		require.NoError(t, c.Approve(ctx, "alice", d("100")))
		require.NoError(t, c.Deposit(ctx, Pool, d("3")))

		tests := []struct {
			name    string
			run     func(tx interfaces.CustodianTx) error
			wantErr error
		}{
			{"insufficient balance", func(tx interfaces.CustodianTx) error { return tx.TransferIn("alice", d("10")) }, custodian.ErrInsufficientFunds},
			{"no allowance", func(tx interfaces.CustodianTx) error { return tx.TransferIn("bob", d("1")) }, custodian.ErrAllowance},
			{"pool short", func(tx interfaces.CustodianTx) error { return tx.TransferOut("bob", d("4")) }, custodian.ErrInsufficientFunds},
			{"zero amount", func(tx interfaces.CustodianTx) error { return tx.TransferOut("bob", decimal.Zero) }, custodian.ErrInvalidAmount},
			{"negative amount", func(tx interfaces.CustodianTx) error { return tx.TransferIn("alice", d("-1")) }, custodian.ErrInvalidAmount},
			{"empty account", func(tx interfaces.CustodianTx) error { return tx.TransferOut("", d("1")) }, custodian.ErrInvalidAccount},
			{"pool pays itself in", func(tx interfaces.CustodianTx) error { return tx.TransferIn(Pool, d("1")) }, custodian.ErrPoolAccount},
			{"pool pays itself out", func(tx interfaces.CustodianTx) error { return tx.TransferOut(Pool, d("1")) }, custodian.ErrPoolAccount},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tx, err := c.Begin(ctx)
				require.NoError(t, err)
				assert.ErrorIs(t, tt.run(tx), tt.wantErr)
				require.NoError(t, tx.Commit())

				assert.True(t, balance(t, c, "alice").Equal(d("5")))
				assert.True(t, balance(t, c, Pool).Equal(d("3")))
				assert.True(t, balance(t, c, "bob").IsZero())
				assert.True(t, allowance(t, c, "alice").Equal(d("100")))
			})
		}
	})

	t.Run("pool counterparty is an invalid account", func(t *testing.T) {
		c := newBackend(t)
		tx, err := c.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()
		assert.ErrorIs(t, tx.TransferIn(Pool, d("1")), custodian.ErrInvalidAccount)
	})

	t.Run("finished tx", func(t *testing.T) {
		c := newBackend(t)
		tx, err := c.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		assert.ErrorIs(t, tx.TransferOut("bob", d("1")), custodian.ErrTxDone)
		assert.ErrorIs(t, tx.Commit(), custodian.ErrTxDone)
		assert.NoError(t, tx.Rollback())
	})

	t.Run("deposit and approve validation", func(t *testing.T) {
		c := newBackend(t)
		assert.ErrorIs(t, c.Deposit(ctx, "", d("1")), custodian.ErrInvalidAccount)
		assert.ErrorIs(t, c.Deposit(ctx, "alice", d("0")), custodian.ErrInvalidAmount)
		assert.ErrorIs(t, c.Approve(ctx, "alice", d("-1")), custodian.ErrInvalidAmount)
		assert.ErrorIs(t, c.Approve(ctx, Pool, d("1")), custodian.ErrPoolAccount)
		assert.NoError(t, c.Approve(ctx, "alice", d("0")))

		require.NoError(t, c.Deposit(ctx, "alice", d("1.5")))
		require.NoError(t, c.Deposit(ctx, "alice", d("2")))
		assert.True(t, balance(t, c, "alice").Equal(d("3.5")))
	})
}
