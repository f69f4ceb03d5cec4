package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/custodian"
	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
)

// Custodian is an in-memory token ledger. Accounts hold balances and grant the
// pool an allowance it may pull fees against, like an ERC-20 transferFrom.
type Custodian struct {
	mu         sync.RWMutex
	pool       string
	balances   map[string]decimal.Decimal
	allowances map[string]decimal.Decimal // owner -> amount the pool may pull
}

// NewCustodian creates a custodian whose held funds live in the pool account.
func NewCustodian(pool string) *Custodian {
	return &Custodian{
		pool:       pool,
		balances:   make(map[string]decimal.Decimal),
		allowances: make(map[string]decimal.Decimal),
	}
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
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[account] = c.balances[account].Add(amount)
	return nil
}

// Approve sets the amount the pool may pull from owner.
func (c *Custodian) Approve(ctx context.Context, owner string, amount decimal.Decimal) error {
	if err := custodian.CheckApprove(c.pool, owner, amount); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowances[owner] = amount
	return nil
}

// Allowance returns what the pool may still pull from owner.
func (c *Custodian) Allowance(ctx context.Context, owner string) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.allowances[owner], nil
}

func (c *Custodian) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balances[account], nil
}

func (c *Custodian) Begin(ctx context.Context) (interfaces.CustodianTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		c:          c,
		balances:   make(map[string]decimal.Decimal),
		allowances: make(map[string]decimal.Decimal),
	}, nil
}

// Tx stages transfers as deltas against the committed state. Commit adds the
// deltas under the write lock, so deposits and approvals made while the Tx
// was open are kept.
type Tx struct {
	c          *Custodian
	balances   map[string]decimal.Decimal
	allowances map[string]decimal.Decimal
	done       bool
}

func (t *Tx) Balance(account string) (decimal.Decimal, error) {
	t.c.mu.RLock()
	defer t.c.mu.RUnlock()
	return t.c.balances[account].Add(t.balances[account]), nil
}

func (t *Tx) SetBalance(account string, amount decimal.Decimal) error {
	current, _ := t.Balance(account)
	t.balances[account] = t.balances[account].Add(amount.Sub(current))
	return nil
}

func (t *Tx) Allowance(owner string) (decimal.Decimal, error) {
	t.c.mu.RLock()
	defer t.c.mu.RUnlock()
	return t.c.allowances[owner].Add(t.allowances[owner]), nil
}

func (t *Tx) SetAllowance(owner string, amount decimal.Decimal) error {
	current, _ := t.Allowance(owner)
	t.allowances[owner] = t.allowances[owner].Add(amount.Sub(current))
	return nil
}

// TransferIn pulls amount from an account into the pool, spending its allowance.
func (t *Tx) TransferIn(from string, amount decimal.Decimal) error {
	if t.done {
		return custodian.ErrTxDone
	}
	return custodian.TransferIn(t, t.c.pool, from, amount)
}

// TransferOut pays amount from the pool to an account.
func (t *Tx) TransferOut(to string, amount decimal.Decimal) error {
	if t.done {
		return custodian.ErrTxDone
	}
	return custodian.TransferOut(t, t.c.pool, to, amount)
}

func (t *Tx) Commit() error {
	if t.done {
		return custodian.ErrTxDone
	}
	t.done = true

	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	for account, delta := range t.balances {
		if next := t.c.balances[account].Add(delta); next.IsNegative() {
			return fmt.Errorf("%w: %s would hold %s", custodian.ErrInsufficientFunds, account, next)
		}
	}
	for account, delta := range t.balances {
		t.c.balances[account] = t.c.balances[account].Add(delta)
	}
	// an owner may have lowered the approval while the Tx was open
	for owner, delta := range t.allowances {
		next := t.c.allowances[owner].Add(delta)
		if next.IsNegative() {
			next = decimal.Zero
		}
		t.c.allowances[owner] = next
	}
	return nil
}

func (t *Tx) Rollback() error {
	t.done = true
	t.balances = nil
	t.allowances = nil
	return nil
}

var (
	_ interfaces.FundsCustodian = (*Custodian)(nil)
	_ interfaces.CustodianTx    = (*Tx)(nil)
	_ custodian.Accounts        = (*Tx)(nil)
)
