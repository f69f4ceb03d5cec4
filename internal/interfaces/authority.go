package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models"
)

// AuthorityResolver returns the current settlement authority, or "" when none is configured.
type AuthorityResolver interface {
	CurrentAuthority(ctx context.Context) (string, error)
}

// SettlementNotifier hands a finalized batch to the settlement authority.
// It is called once per batch, after the net amount has been transferred.
type SettlementNotifier interface {
	ReceiveBatch(ctx context.Context, authority string, batch uint64, entries []models.Entry, netAmount decimal.Decimal) error
}
