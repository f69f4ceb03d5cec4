package bolt

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/custodian"
	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
)

// Custodian keeps balances and allowances in the same database as the
// batches, so a restart finds the pool holding exactly the funds of the
// batches it still owes.
type Custodian struct {
	db   *bbolt.DB
	pool string
}

// NewCustodian returns a custodian over store's database.
func NewCustodian(store *Store, pool string) *Custodian {
	return &Custodian{db: store.db, pool: pool}
}

// Pool returns the account holding the ledger's funds.
func (c *Custodian) Pool() string {
	return c.pool
}

// Deposit credits account with amount.
func (c *Custodian) Deposit(ctx context.Context, account string, amount decimal.Decimal) error {
	if err := custodian.CheckDeposit(account, amount); err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		funds := fundsBuckets{tx: tx}
		have, err := funds.Balance(account)
		if err != nil {
			return err
		}
		return funds.SetBalance(account, have.Add(amount))
	})
}

// Approve sets the amount the pool may pull from owner.
func (c *Custodian) Approve(ctx context.Context, owner string, amount decimal.Decimal) error {
	if err := custodian.CheckApprove(c.pool, owner, amount); err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return fundsBuckets{tx: tx}.SetAllowance(owner, amount)
	})
}

// Allowance returns what the pool may still pull from owner.
func (c *Custodian) Allowance(ctx context.Context, owner string) (decimal.Decimal, error) {
	var allowed decimal.Decimal
	err := c.db.View(func(tx *bbolt.Tx) error {
		var err error
		allowed, err = fundsBuckets{tx: tx}.Allowance(owner)
		return err
	})
	return allowed, err
}

func (c *Custodian) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	var have decimal.Decimal
	err := c.db.View(func(tx *bbolt.Tx) error {
		var err error
		have, err = fundsBuckets{tx: tx}.Balance(account)
		return err
	})
	return have, err
}

// Begin opens a write transaction of its own. It blocks while a store Tx is
// open; the ledger uses Join instead.
func (c *Custodian) Begin(ctx context.Context) (interfaces.CustodianTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := c.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("bolt: begin: %w", err)
	}
	return &CustodianTx{tx: tx, pool: c.pool, owned: true}, nil
}

// Join runs transfers inside a store Tx opened on the same database.
func (c *Custodian) Join(batchTx interfaces.BatchTx) (interfaces.CustodianTx, error) {
	storeTx, ok := batchTx.(*Tx)
	if !ok || storeTx.tx.DB() != c.db {
		return nil, fmt.Errorf("bolt: cannot join %T from another database", batchTx)
	}
	return &CustodianTx{tx: storeTx.tx, pool: c.pool}, nil
}

// CustodianTx stages transfers in a bbolt write transaction. A joined Tx
// leaves commit and rollback to the store Tx that owns it.
type CustodianTx struct {
	tx    *bbolt.Tx
	pool  string
	owned bool
	done  bool
}

func (t *CustodianTx) TransferIn(from string, amount decimal.Decimal) error {
	if t.done {
		return custodian.ErrTxDone
	}
	return custodian.TransferIn(fundsBuckets{tx: t.tx}, t.pool, from, amount)
}

func (t *CustodianTx) TransferOut(to string, amount decimal.Decimal) error {
	if t.done {
		return custodian.ErrTxDone
	}
	return custodian.TransferOut(fundsBuckets{tx: t.tx}, t.pool, to, amount)
}

func (t *CustodianTx) Commit() error {
	if t.done {
		return custodian.ErrTxDone
	}
	t.done = true
	if !t.owned {
		return nil
	}
	return t.tx.Commit()
}

func (t *CustodianTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if !t.owned {
		return nil
	}
	return t.tx.Rollback()
}

// fundsBuckets reads and writes amounts as decimal strings.
type fundsBuckets struct {
	tx *bbolt.Tx
}

func (f fundsBuckets) Balance(account string) (decimal.Decimal, error) {
	return readAmount(f.tx.Bucket(bucketBalances), account)
}

func (f fundsBuckets) SetBalance(account string, amount decimal.Decimal) error {
	return f.tx.Bucket(bucketBalances).Put([]byte(account), []byte(amount.String()))
}

func (f fundsBuckets) Allowance(owner string) (decimal.Decimal, error) {
	return readAmount(f.tx.Bucket(bucketAllowances), owner)
}

func (f fundsBuckets) SetAllowance(owner string, amount decimal.Decimal) error {
	return f.tx.Bucket(bucketAllowances).Put([]byte(owner), []byte(amount.String()))
}

func readAmount(b *bbolt.Bucket, key string) (decimal.Decimal, error) {
	data := b.Get([]byte(key))
	if data == nil {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(string(data))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("bolt: decode amount for %q: %w", key, err)
	}
	return amount, nil
}

var (
	_ interfaces.FundsCustodian = (*Custodian)(nil)
	_ interfaces.TxJoiner       = (*Custodian)(nil)
	_ interfaces.CustodianTx    = (*CustodianTx)(nil)
	_ custodian.Accounts        = fundsBuckets{}
)
