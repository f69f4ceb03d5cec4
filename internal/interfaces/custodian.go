package interfaces

import (
	"context"

	"github.com/shopspring/decimal"
)

// FundsCustodian moves value between accounts and the pool the ledger holds.
type FundsCustodian interface {
	Begin(ctx context.Context) (CustodianTx, error)
	Balance(ctx context.Context, account string) (decimal.Decimal, error)
}

// CustodianTx stages transfers until Commit. Each transfer is atomic on its own
// and fails without effect on insufficient balance or allowance.
type CustodianTx interface {
	TransferIn(from string, amount decimal.Decimal) error
	TransferOut(to string, amount decimal.Decimal) error
	Commit() error
	Rollback() error
}

// TxJoiner is implemented by custodians that keep funds in the batch store's
// own database. Join returns a CustodianTx that works inside tx, so transfers
// and batch writes commit or roll back together; its Commit and Rollback only
// close the handle.
type TxJoiner interface {
	Join(tx BatchTx) (CustodianTx, error)
}
