package custodian

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds indicates the source account balance is below the transfer amount.
	ErrInsufficientFunds = errors.New("custodian: insufficient funds")

	// ErrAllowance indicates the owner has not authorized the pool to pull the amount.
	ErrAllowance = errors.New("custodian: insufficient allowance")

	// ErrInvalidAmount indicates a non-positive transfer amount.
	ErrInvalidAmount = errors.New("custodian: amount must be positive")

	// ErrInvalidAccount indicates an empty account identifier.
	ErrInvalidAccount = errors.New("custodian: account is required")

	// ErrPoolAccount indicates the pool itself was named as the other side of a transfer.
	ErrPoolAccount = fmt.Errorf("%w: the pool cannot trade with itself", ErrInvalidAccount)

	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("custodian: transaction already finished")
)
