package ledger_test

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	custodianmem "github.com/sheikh-saqib/batch-settlement-ledger/internal/custodian/memory"
	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
)

var errRefused = errors.New("payee refused")

// failingOutCustodian collects fees normally but refuses to pay one account.
type failingOutCustodian struct {
	*custodianmem.Custodian
	refuse string
}

func (c *failingOutCustodian) Begin(ctx context.Context) (interfaces.CustodianTx, error) {
	tx, err := c.Custodian.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &refusingTx{CustodianTx: tx, refuse: c.refuse}, nil
}

type refusingTx struct {
	interfaces.CustodianTx
	refuse string
}

func (t *refusingTx) TransferOut(to string, amount decimal.Decimal) error {
	if to == t.refuse {
		return errRefused
	}
	return t.CustodianTx.TransferOut(to, amount)
}
