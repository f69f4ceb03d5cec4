package custodian

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Accounts is the balance and allowance state a transfer reads and writes.
// Every custodian backend implements it over its own transaction.
type Accounts interface {
	Balance(account string) (decimal.Decimal, error)
	SetBalance(account string, amount decimal.Decimal) error
	Allowance(owner string) (decimal.Decimal, error)
	SetAllowance(owner string, amount decimal.Decimal) error
}

// TransferIn pulls amount from an account into pool and spends the same
// amount of the account's allowance. Nothing is written unless both the
// allowance and the balance cover amount.
func TransferIn(a Accounts, pool, from string, amount decimal.Decimal) error {
	if err := checkCounterparty(pool, from, amount); err != nil {
		return err
	}
	allowed, err := a.Allowance(from)
	if err != nil {
		return err
	}
	if allowed.LessThan(amount) {
		return fmt.Errorf("%w: %s allows %s, needs %s", ErrAllowance, from, allowed, amount)
	}
	if err := move(a, from, pool, amount); err != nil {
		return err
	}
	return a.SetAllowance(from, allowed.Sub(amount))
}

// TransferOut pays amount from pool to an account.
func TransferOut(a Accounts, pool, to string, amount decimal.Decimal) error {
	if err := checkCounterparty(pool, to, amount); err != nil {
		return err
	}
	return move(a, pool, to, amount)
}

func move(a Accounts, from, to string, amount decimal.Decimal) error {
	have, err := a.Balance(from)
	if err != nil {
		return err
	}
	if have.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from, have, amount)
	}
	credit, err := a.Balance(to)
	if err != nil {
		return err
	}
	if err := a.SetBalance(from, have.Sub(amount)); err != nil {
		return err
	}
	return a.SetBalance(to, credit.Add(amount))
}

func checkCounterparty(pool, account string, amount decimal.Decimal) error {
	switch {
	case account == "":
		return ErrInvalidAccount
	case account == pool:
		return fmt.Errorf("%w: %q", ErrPoolAccount, account)
	case !amount.IsPositive():
		return ErrInvalidAmount
	}
	return nil
}

// CheckDeposit validates a faucet deposit. The pool may be topped up directly.
func CheckDeposit(account string, amount decimal.Decimal) error {
	if account == "" {
		return ErrInvalidAccount
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// CheckApprove validates an allowance grant. The pool never pulls from itself,
// so it cannot hold an allowance.
func CheckApprove(pool, owner string, amount decimal.Decimal) error {
	switch {
	case owner == "":
		return ErrInvalidAccount
	case owner == pool:
		return fmt.Errorf("%w: %q", ErrPoolAccount, owner)
	case amount.IsNegative():
		return ErrInvalidAmount
	}
	return nil
}
