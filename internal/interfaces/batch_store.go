package interfaces

import (
	"context"

	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models"
)

// BatchStore persists the registry and per-batch accounting.
// All writes go through a BatchTx so an operation commits or discards as a whole.
type BatchStore interface {
	Begin(ctx context.Context) (BatchTx, error)

	CurrentBatch(ctx context.Context) (uint64, error)
	GetAccount(ctx context.Context, batch uint64) (models.BatchAccount, error)
	GetEntries(ctx context.Context, batch uint64) ([]models.Entry, error)
	GetEntry(ctx context.Context, batch uint64, sequence int) (models.Entry, bool, error)
}

// BatchTx is a unit of work against a BatchStore. Reads observe the tx's own writes.
type BatchTx interface {
	CurrentBatch() (uint64, error)
	SetCurrentBatch(batch uint64) error

	GetAccount(batch uint64) (models.BatchAccount, error)
	PutAccount(account models.BatchAccount) error

	GetEntries(batch uint64) ([]models.Entry, error)
	AppendEntry(entry models.Entry) error

	// DeleteBatch removes every entry and the account of a batch and returns
	// how many entries were removed. Deleting an absent batch removes nothing.
	DeleteBatch(batch uint64) (int, error)

	Commit() error
	Rollback() error
}
