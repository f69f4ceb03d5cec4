package memory

import (
	"context" // standard Go package for request-scoped context
	"fmt"
	"sync" // guards the committed state against concurrent readers

	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/storage"
)

type batchRecord struct {
	account models.BatchAccount
	entries []models.Entry
}

func (r *batchRecord) clone() *batchRecord {
	entries := make([]models.Entry, len(r.entries))
	copy(entries, r.entries)
	return &batchRecord{account: r.account, entries: entries}
}

// MemoryBatchStore is an in-memory implementation of interfaces.BatchStore.
// Writes are staged in a MemoryBatchTx and only become visible on Commit.
type MemoryBatchStore struct {
	mu      sync.RWMutex            // protects current and batches
	current uint64                  // number of the open batch
	batches map[uint64]*batchRecord // committed records keyed by batch number
}

// NewMemoryBatchStore creates an empty store whose first open batch is 1
func NewMemoryBatchStore() *MemoryBatchStore {
	return &MemoryBatchStore{
		current: 1,
		batches: make(map[uint64]*batchRecord),
	}
}

func (m *MemoryBatchStore) Begin(ctx context.Context) (interfaces.BatchTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &MemoryBatchTx{
		store:   m,
		touched: make(map[uint64]*batchRecord),
	}, nil
}

func (m *MemoryBatchStore) CurrentBatch(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, nil
}

func (m *MemoryBatchStore) GetAccount(ctx context.Context, batch uint64) (models.BatchAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if rec, ok := m.batches[batch]; ok {
		return rec.account, nil
	}
	return models.NewBatchAccount(batch), nil
}

// GetEntries returns a copy of the batch's entries in sequence order,
// so callers can't modify internal state.
func (m *MemoryBatchStore) GetEntries(ctx context.Context, batch uint64) ([]models.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.batches[batch]
	if !ok {
		return []models.Entry{}, nil
	}
	copied := make([]models.Entry, len(rec.entries))
	copy(copied, rec.entries)
	return copied, nil
}

func (m *MemoryBatchStore) GetEntry(ctx context.Context, batch uint64, sequence int) (models.Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.batches[batch]
	if !ok || sequence < 1 || sequence > len(rec.entries) {
		return models.Entry{}, false, nil
	}
	return rec.entries[sequence-1], true, nil
}

// MemoryBatchTx stages writes against a MemoryBatchStore.
// A nil value in touched marks a batch deleted within the tx.
type MemoryBatchTx struct {
	store   *MemoryBatchStore
	current *uint64
	touched map[uint64]*batchRecord
	done    bool
}

func (t *MemoryBatchTx) record(batch uint64) *batchRecord {
	if rec, ok := t.touched[batch]; ok && rec != nil {
		return rec
	} else if ok {
		rec = &batchRecord{account: models.NewBatchAccount(batch)}
		t.touched[batch] = rec
		return rec
	}

	t.store.mu.RLock()
	base, ok := t.store.batches[batch]
	t.store.mu.RUnlock()

	var rec *batchRecord
	if ok {
		rec = base.clone()
	} else {
		rec = &batchRecord{account: models.NewBatchAccount(batch)}
	}
	t.touched[batch] = rec
	return rec
}

func (t *MemoryBatchTx) CurrentBatch() (uint64, error) {
	if t.done {
		return 0, storage.ErrTxDone
	}
	if t.current != nil {
		return *t.current, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.current, nil
}

func (t *MemoryBatchTx) SetCurrentBatch(batch uint64) error {
	if t.done {
		return storage.ErrTxDone
	}
	t.current = &batch
	return nil
}

func (t *MemoryBatchTx) GetAccount(batch uint64) (models.BatchAccount, error) {
	if t.done {
		return models.BatchAccount{}, storage.ErrTxDone
	}
	return t.record(batch).account, nil
}

func (t *MemoryBatchTx) PutAccount(account models.BatchAccount) error {
	if t.done {
		return storage.ErrTxDone
	}
	t.record(account.Batch).account = account
	return nil
}

func (t *MemoryBatchTx) GetEntries(batch uint64) ([]models.Entry, error) {
	if t.done {
		return nil, storage.ErrTxDone
	}
	rec := t.record(batch)
	copied := make([]models.Entry, len(rec.entries))
	copy(copied, rec.entries)
	return copied, nil
}

func (t *MemoryBatchTx) AppendEntry(entry models.Entry) error {
	if t.done {
		return storage.ErrTxDone
	}
	rec := t.record(entry.Batch)
	if entry.Sequence != len(rec.entries)+1 {
		return fmt.Errorf("%w: batch %d has %d entries, got sequence %d",
			storage.ErrSequenceGap, entry.Batch, len(rec.entries), entry.Sequence)
	}
	rec.entries = append(rec.entries, entry)
	return nil
}

func (t *MemoryBatchTx) DeleteBatch(batch uint64) (int, error) {
	if t.done {
		return 0, storage.ErrTxDone
	}
	removed := len(t.record(batch).entries)
	t.touched[batch] = nil
	return removed, nil
}

// Commit publishes every staged write at once.
func (t *MemoryBatchTx) Commit() error {
	if t.done {
		return storage.ErrTxDone
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for batch, rec := range t.touched {
		if rec == nil || (rec.account.IsEmpty() && len(rec.entries) == 0) {
			delete(t.store.batches, batch)
			continue
		}
		t.store.batches[batch] = rec
	}
	if t.current != nil {
		t.store.current = *t.current
	}
	return nil
}

// Rollback discards the staged writes. Rolling back a finished tx is a no-op.
func (t *MemoryBatchTx) Rollback() error {
	t.done = true
	t.touched = nil
	return nil
}

// Compile-time checks
var (
	_ interfaces.BatchStore = (*MemoryBatchStore)(nil)
	_ interfaces.BatchTx    = (*MemoryBatchTx)(nil)
)
