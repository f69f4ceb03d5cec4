package models

import "github.com/shopspring/decimal"

// BatchAccount holds the running financial totals of one batch.
// NetAmount is always TotalFees minus TotalCommission.
type BatchAccount struct {
	Batch           uint64          `json:"batch"`
	Size            int             `json:"size"`
	TotalFees       decimal.Decimal `json:"total_fees"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	NetAmount       decimal.Decimal `json:"net_amount"`
}

// NewBatchAccount returns the zero account for a batch that has no entries yet.
func NewBatchAccount(batch uint64) BatchAccount {
	return BatchAccount{
		Batch:           batch,
		TotalFees:       decimal.Zero,
		TotalCommission: decimal.Zero,
		NetAmount:       decimal.Zero,
	}
}

// Record adds one entry's fee and commission to the account.
func (a BatchAccount) Record(fee, commission decimal.Decimal) BatchAccount {
	a.Size++
	a.TotalFees = a.TotalFees.Add(fee)
	a.TotalCommission = a.TotalCommission.Add(commission)
	a.NetAmount = a.TotalFees.Sub(a.TotalCommission)
	return a
}

// IsEmpty reports whether the account has never recorded an entry (or was purged).
func (a BatchAccount) IsEmpty() bool {
	return a.Size == 0
}

// BatchStatus describes the currently open batch
type BatchStatus struct {
	Number   uint64 `json:"number"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
}

// MinimumNetValidation is the result of checking a batch's net amount
// against the tier's minimum net transfer.
type MinimumNetValidation struct {
	Batch     uint64          `json:"batch"`
	NetAmount decimal.Decimal `json:"net_amount"`
	Minimum   decimal.Decimal `json:"minimum"`
	Passed    bool            `json:"passed"`
}
