package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/storage"
)

var (
	bucketMeta     = []byte("meta")
	bucketAccounts = []byte("accounts")
	bucketEntries  = []byte("entries") // one nested bucket per batch, keyed by sequence

	bucketBalances   = []byte("balances")   // account -> decimal string
	bucketAllowances = []byte("allowances") // owner -> decimal string

	keyCurrentBatch = []byte("current_batch")
)

// Store is a BoltDB-backed BatchStore.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database at path. The parent directory is created if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("bolt: storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return nil, fmt.Errorf("bolt: create directory: %w", err)
	}
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: open db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketAccounts, bucketEntries, bucketBalances, bucketAllowances} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("bolt: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Begin(ctx context.Context) (interfaces.BatchTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := s.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("bolt: begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func (s *Store) CurrentBatch(ctx context.Context) (uint64, error) {
	var current uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		current = readCurrent(tx)
		return nil
	})
	return current, err
}

func (s *Store) GetAccount(ctx context.Context, batch uint64) (models.BatchAccount, error) {
	var account models.BatchAccount
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		account, err = readAccount(tx, batch)
		return err
	})
	return account, err
}

func (s *Store) GetEntries(ctx context.Context, batch uint64) ([]models.Entry, error) {
	var entries []models.Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		entries, err = readEntries(tx, batch)
		return err
	})
	return entries, err
}

func (s *Store) GetEntry(ctx context.Context, batch uint64, sequence int) (models.Entry, bool, error) {
	var (
		entry models.Entry
		found bool
	)
	if sequence < 1 {
		return entry, false, nil
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEntries).Bucket(batchKey(batch))
		if b == nil {
			return nil
		}
		data := b.Get(sequenceKey(sequence))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &entry)
	})
	return entry, found, err
}

func batchKey(batch uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, batch)
	return k
}

func sequenceKey(sequence int) []byte {
	k := make([]byte, 4)
	binary.BigEndian.PutUint32(k, uint32(sequence))
	return k
}

// lastSequence returns the highest sequence stored in a batch bucket, 0 when empty.
func lastSequence(b *bbolt.Bucket) int {
	k, _ := b.Cursor().Last()
	if len(k) != 4 {
		return 0
	}
	return int(binary.BigEndian.Uint32(k))
}

func readCurrent(tx *bbolt.Tx) uint64 {
	data := tx.Bucket(bucketMeta).Get(keyCurrentBatch)
	if len(data) != 8 {
		return 1
	}
	return binary.BigEndian.Uint64(data)
}

func readAccount(tx *bbolt.Tx, batch uint64) (models.BatchAccount, error) {
	data := tx.Bucket(bucketAccounts).Get(batchKey(batch))
	if data == nil {
		return models.NewBatchAccount(batch), nil
	}
	var account models.BatchAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return models.BatchAccount{}, fmt.Errorf("bolt: decode account %d: %w", batch, err)
	}
	return account, nil
}

func readEntries(tx *bbolt.Tx, batch uint64) ([]models.Entry, error) {
	entries := []models.Entry{}
	b := tx.Bucket(bucketEntries).Bucket(batchKey(batch))
	if b == nil {
		return entries, nil
	}
	err := b.ForEach(func(_, v []byte) error {
		var entry models.Entry
		if err := json.Unmarshal(v, &entry); err != nil {
			return fmt.Errorf("bolt: decode entry: %w", err)
		}
		entries = append(entries, entry)
		return nil
	})
	return entries, err
}

// Tx is a writable bbolt transaction. bbolt allows a single writer, so
// Begin blocks while another Tx is open.
type Tx struct {
	tx   *bbolt.Tx
	done bool
}

func (t *Tx) CurrentBatch() (uint64, error) {
	if t.done {
		return 0, storage.ErrTxDone
	}
	return readCurrent(t.tx), nil
}

func (t *Tx) SetCurrentBatch(batch uint64) error {
	if t.done {
		return storage.ErrTxDone
	}
	return t.tx.Bucket(bucketMeta).Put(keyCurrentBatch, batchKey(batch))
}

func (t *Tx) GetAccount(batch uint64) (models.BatchAccount, error) {
	if t.done {
		return models.BatchAccount{}, storage.ErrTxDone
	}
	return readAccount(t.tx, batch)
}

func (t *Tx) PutAccount(account models.BatchAccount) error {
	if t.done {
		return storage.ErrTxDone
	}
	payload, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("bolt: encode account: %w", err)
	}
	return t.tx.Bucket(bucketAccounts).Put(batchKey(account.Batch), payload)
}

func (t *Tx) GetEntries(batch uint64) ([]models.Entry, error) {
	if t.done {
		return nil, storage.ErrTxDone
	}
	return readEntries(t.tx, batch)
}

func (t *Tx) AppendEntry(entry models.Entry) error {
	if t.done {
		return storage.ErrTxDone
	}
	b, err := t.tx.Bucket(bucketEntries).CreateBucketIfNotExists(batchKey(entry.Batch))
	if err != nil {
		return fmt.Errorf("bolt: create batch bucket: %w", err)
	}
	if count := lastSequence(b); entry.Sequence != count+1 {
		return fmt.Errorf("%w: batch %d has %d entries, got sequence %d",
			storage.ErrSequenceGap, entry.Batch, count, entry.Sequence)
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("bolt: encode entry: %w", err)
	}
	return b.Put(sequenceKey(entry.Sequence), payload)
}

func (t *Tx) DeleteBatch(batch uint64) (int, error) {
	if t.done {
		return 0, storage.ErrTxDone
	}
	entries := t.tx.Bucket(bucketEntries)
	removed := 0
	if b := entries.Bucket(batchKey(batch)); b != nil {
		if err := b.ForEach(func(_, _ []byte) error {
			removed++
			return nil
		}); err != nil {
			return 0, err
		}
		if err := entries.DeleteBucket(batchKey(batch)); err != nil {
			return 0, fmt.Errorf("bolt: delete batch bucket: %w", err)
		}
	}
	if err := t.tx.Bucket(bucketAccounts).Delete(batchKey(batch)); err != nil {
		return 0, fmt.Errorf("bolt: delete account: %w", err)
	}
	return removed, nil
}

func (t *Tx) Commit() error {
	if t.done {
		return storage.ErrTxDone
	}
	t.done = true
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

var (
	_ interfaces.BatchStore = (*Store)(nil)
	_ interfaces.BatchTx    = (*Tx)(nil)
)
