package models

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidEntryFee   = errors.New("tier: entry fee must be positive")
	ErrInvalidCommission = errors.New("tier: commission must be non-negative and below the entry fee")
	ErrInvalidCapacity   = errors.New("tier: capacity must be positive")
	ErrInvalidMinimumNet = errors.New("tier: minimum net transfer must be non-negative")
)

// Tier is the fixed set of economic constants a ledger is deployed with.
// It never changes after the ledger is constructed.
type Tier struct {
	Label      string          `json:"label"`
	EntryFee   decimal.Decimal `json:"entry_fee"`
	Commission decimal.Decimal `json:"commission"`
	Capacity   int             `json:"capacity"`
	MinimumNet decimal.Decimal `json:"minimum_net"`
}

// DefaultTier returns the standard tier: fee 10, commission 0.75,
// 100 entries per batch and a minimum net transfer of 900.
func DefaultTier() Tier {
	return Tier{
		Label:      "standard",
		EntryFee:   decimal.NewFromInt(10),
		Commission: decimal.RequireFromString("0.75"),
		Capacity:   100,
		MinimumNet: decimal.NewFromInt(900),
	}
}

// Validate checks the tier constants are usable.
func (t Tier) Validate() error {
	if !t.EntryFee.IsPositive() {
		return ErrInvalidEntryFee
	}
	if t.Commission.IsNegative() || t.Commission.GreaterThanOrEqual(t.EntryFee) {
		return ErrInvalidCommission
	}
	if t.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	if t.MinimumNet.IsNegative() {
		return ErrInvalidMinimumNet
	}
	return nil
}

// NetPerEntry is the amount each entry contributes to the batch net.
func (t Tier) NetPerEntry() decimal.Decimal {
	return t.EntryFee.Sub(t.Commission)
}

// FullBatchNet is the net amount of a batch filled to capacity.
func (t Tier) FullBatchNet() decimal.Decimal {
	return t.NetPerEntry().Mul(decimal.NewFromInt(int64(t.Capacity)))
}

// CanClose reports whether a full batch would satisfy the minimum net transfer.
func (t Tier) CanClose() bool {
	return t.FullBatchNet().GreaterThanOrEqual(t.MinimumNet)
}
