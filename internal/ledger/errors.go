package ledger

import (
	"errors"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/custodian"
)

var (
	// ErrInvalidReferrer indicates an empty referrer. Self-referral is allowed.
	ErrInvalidReferrer = errors.New("ledger: referrer is required")

	// ErrInvalidParticipant indicates an empty participant.
	ErrInvalidParticipant = errors.New("ledger: participant is required")

	// ErrInsufficientFunds indicates the custodian rejected a transfer for lack of balance.
	ErrInsufficientFunds = custodian.ErrInsufficientFunds

	// ErrAllowance indicates the participant has not authorized the fee transfer.
	ErrAllowance = custodian.ErrAllowance

	// ErrPoolAccount indicates the custodian's own pool was named as participant,
	// referrer or settlement authority.
	ErrPoolAccount = custodian.ErrPoolAccount

	// ErrBatchFull indicates the open batch already holds capacity entries.
	ErrBatchFull = errors.New("ledger: batch is full")

	// ErrMinimumNetNotMet indicates a closing batch's net amount is below the minimum transfer.
	ErrMinimumNetNotMet = errors.New("ledger: batch net amount below minimum transfer")

	// ErrSettlementAuthorityUnset indicates no settlement authority could be resolved.
	ErrSettlementAuthorityUnset = errors.New("ledger: settlement authority is not set")

	// ErrUnauthorizedPurge indicates the purge caller is not the current settlement authority.
	ErrUnauthorizedPurge = errors.New("ledger: caller is not the settlement authority")

	// ErrTransferFailed indicates the net amount could not be moved to the authority.
	ErrTransferFailed = errors.New("ledger: settlement transfer failed")

	// ErrNotificationFailed indicates the authority did not accept the finalized batch.
	ErrNotificationFailed = errors.New("ledger: settlement notification failed")

	// ErrReentrantCall indicates a mutating call was attempted while another
	// one was still in flight.
	ErrReentrantCall = errors.New("ledger: another mutating call is in flight")

	// ErrEntryNotFound indicates no entry exists at the requested batch and sequence.
	ErrEntryNotFound = errors.New("ledger: entry not found")
)

// reason maps an error to a short label for metrics.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidReferrer):
		return "invalid_referrer"
	case errors.Is(err, ErrInvalidParticipant):
		return "invalid_participant"
	case errors.Is(err, ErrAllowance):
		return "allowance"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrPoolAccount):
		return "pool_account"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrBatchFull):
		return "batch_full"
	case errors.Is(err, ErrMinimumNetNotMet):
		return "minimum_net"
	case errors.Is(err, ErrSettlementAuthorityUnset):
		return "authority_unset"
	case errors.Is(err, ErrNotificationFailed):
		return "notification_failed"
	case errors.Is(err, ErrUnauthorizedPurge):
		return "unauthorized"
	case errors.Is(err, ErrReentrantCall):
		return "reentrant"
	default:
		return "internal"
	}
}
