package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/custodian"
	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
)

// PostgresCustodian keeps balances and allowances next to the batch tables.
// Joined to a PostgresBatchTx, transfers commit in the same sql.Tx as the
// batch writes.
type PostgresCustodian struct {
	db   *sql.DB
	pool string
}

func NewPostgresCustodian(db *sql.DB, pool string) *PostgresCustodian {
	return &PostgresCustodian{db: db, pool: pool}
}

// Pool returns the account holding the ledger's funds.
func (p *PostgresCustodian) Pool() string {
	return p.pool
}

// Deposit credits account with amount.
func (p *PostgresCustodian) Deposit(ctx context.Context, account string, amount decimal.Decimal) error {
	if err := custodian.CheckDeposit(account, amount); err != nil {
		return err
	}
	const query = `INSERT INTO custodian_balances (account, balance) VALUES ($1, $2)
	ON CONFLICT (account) DO UPDATE SET balance = custodian_balances.balance + EXCLUDED.balance`

	_, err := p.db.ExecContext(ctx, query, account, amount)
	return err
}

// Approve sets the amount the pool may pull from owner.
func (p *PostgresCustodian) Approve(ctx context.Context, owner string, amount decimal.Decimal) error {
	if err := custodian.CheckApprove(p.pool, owner, amount); err != nil {
		return err
	}
	return setAmount(ctx, p.db, allowanceTable, owner, amount)
}

// Allowance returns what the pool may still pull from owner.
func (p *PostgresCustodian) Allowance(ctx context.Context, owner string) (decimal.Decimal, error) {
	return readAmount(ctx, p.db, allowanceTable, owner, false)
}

func (p *PostgresCustodian) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	return readAmount(ctx, p.db, balanceTable, account, false)
}

// Begin opens a transaction of its own.
func (p *PostgresCustodian) Begin(ctx context.Context) (interfaces.CustodianTx, error) {
	dbTx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &PostgresCustodianTx{ctx: ctx, tx: dbTx, pool: p.pool, owned: true}, nil
}

// Join runs transfers inside a PostgresBatchTx. The batch store must use the
// same database.
func (p *PostgresCustodian) Join(batchTx interfaces.BatchTx) (interfaces.CustodianTx, error) {
	storeTx, ok := batchTx.(*PostgresBatchTx)
	if !ok {
		return nil, fmt.Errorf("postgres: cannot join %T", batchTx)
	}
	return &PostgresCustodianTx{ctx: storeTx.ctx, tx: storeTx.tx, pool: p.pool}, nil
}

// PostgresCustodianTx stages transfers in a sql.Tx. A joined Tx leaves commit
// and rollback to the PostgresBatchTx that owns it.
type PostgresCustodianTx struct {
	ctx   context.Context
	tx    *sql.Tx
	pool  string
	owned bool
	done  bool
}

func (p *PostgresCustodianTx) TransferIn(from string, amount decimal.Decimal) error {
	if p.done {
		return custodian.ErrTxDone
	}
	return custodian.TransferIn(p.accounts(), p.pool, from, amount)
}

func (p *PostgresCustodianTx) TransferOut(to string, amount decimal.Decimal) error {
	if p.done {
		return custodian.ErrTxDone
	}
	return custodian.TransferOut(p.accounts(), p.pool, to, amount)
}

func (p *PostgresCustodianTx) Commit() error {
	if p.done {
		return custodian.ErrTxDone
	}
	p.done = true
	if !p.owned {
		return nil
	}
	return p.tx.Commit()
}

func (p *PostgresCustodianTx) Rollback() error {
	if p.done {
		return nil
	}
	p.done = true
	if !p.owned {
		return nil
	}
	return p.tx.Rollback()
}

func (p *PostgresCustodianTx) accounts() txAccounts {
	return txAccounts{ctx: p.ctx, tx: p.tx}
}

const (
	balanceTable   = "balance"
	allowanceTable = "allowance"
)

var amountQueries = map[string]struct{ read, lock, write string }{
	balanceTable: {
		read: `SELECT balance FROM custodian_balances WHERE account = $1`,
		lock: `SELECT balance FROM custodian_balances WHERE account = $1 FOR UPDATE`,
		write: `INSERT INTO custodian_balances (account, balance) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET balance = EXCLUDED.balance`,
	},
	allowanceTable: {
		read: `SELECT amount FROM custodian_allowances WHERE owner = $1`,
		lock: `SELECT amount FROM custodian_allowances WHERE owner = $1 FOR UPDATE`,
		write: `INSERT INTO custodian_allowances (owner, amount) VALUES ($1, $2)
		ON CONFLICT (owner) DO UPDATE SET amount = EXCLUDED.amount`,
	},
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	querier
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func readAmount(ctx context.Context, q querier, table, key string, forUpdate bool) (decimal.Decimal, error) {
	query := amountQueries[table].read
	if forUpdate {
		query = amountQueries[table].lock
	}
	var amount decimal.Decimal
	err := q.QueryRowContext(ctx, query, key).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	return amount, nil
}

func setAmount(ctx context.Context, e execer, table, key string, amount decimal.Decimal) error {
	_, err := e.ExecContext(ctx, amountQueries[table].write, key, amount)
	return err
}

// txAccounts locks every row it reads until the transaction ends.
type txAccounts struct {
	ctx context.Context
	tx  *sql.Tx
}

func (a txAccounts) Balance(account string) (decimal.Decimal, error) {
	return readAmount(a.ctx, a.tx, balanceTable, account, true)
}

func (a txAccounts) SetBalance(account string, amount decimal.Decimal) error {
	return setAmount(a.ctx, a.tx, balanceTable, account, amount)
}

func (a txAccounts) Allowance(owner string) (decimal.Decimal, error) {
	return readAmount(a.ctx, a.tx, allowanceTable, owner, true)
}

func (a txAccounts) SetAllowance(owner string, amount decimal.Decimal) error {
	return setAmount(a.ctx, a.tx, allowanceTable, owner, amount)
}

var (
	_ interfaces.FundsCustodian = (*PostgresCustodian)(nil)
	_ interfaces.TxJoiner       = (*PostgresCustodian)(nil)
	_ interfaces.CustodianTx    = (*PostgresCustodianTx)(nil)
	_ custodian.Accounts        = txAccounts{}
)
