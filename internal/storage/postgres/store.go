package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // registers the "postgres" driver

	interfaces "github.com/sheikh-saqib/batch-settlement-ledger/internal/interfaces"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/models"
	"github.com/sheikh-saqib/batch-settlement-ledger/internal/storage"
)

// Schema creates the tables the store needs. It is safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_state (
	id            INT PRIMARY KEY CHECK (id = 1),
	current_batch BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS batch_accounts (
	batch            BIGINT PRIMARY KEY,
	size             INT NOT NULL,
	total_fees       NUMERIC NOT NULL,
	total_commission NUMERIC NOT NULL,
	net_amount       NUMERIC NOT NULL
);

CREATE TABLE IF NOT EXISTS batch_entries (
	batch       BIGINT NOT NULL,
	sequence    INT NOT NULL,
	participant TEXT NOT NULL,
	referrer    TEXT NOT NULL,
	commission  NUMERIC NOT NULL,
	admitted_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (batch, sequence)
);

CREATE TABLE IF NOT EXISTS custodian_balances (
	account TEXT PRIMARY KEY,
	balance NUMERIC NOT NULL CHECK (balance >= 0)
);

CREATE TABLE IF NOT EXISTS custodian_allowances (
	owner  TEXT PRIMARY KEY,
	amount NUMERIC NOT NULL CHECK (amount >= 0)
);
`

type PostgresBatchStore struct {
	db *sql.DB
}

func NewPostgresBatchStore(db *sql.DB) *PostgresBatchStore {
	return &PostgresBatchStore{
		db: db,
	}
}

// Open connects to the database at dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// Migrate applies Schema.
func (p *PostgresBatchStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (p *PostgresBatchStore) Begin(ctx context.Context) (interfaces.BatchTx, error) {
	dbTx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &PostgresBatchTx{ctx: ctx, tx: dbTx}, nil
}

func (p *PostgresBatchStore) CurrentBatch(ctx context.Context) (uint64, error) {
	return currentBatch(ctx, p.db, `SELECT current_batch FROM ledger_state WHERE id = 1`)
}

func (p *PostgresBatchStore) GetAccount(ctx context.Context, batch uint64) (models.BatchAccount, error) {
	return getAccount(ctx, p.db, batch)
}

func (p *PostgresBatchStore) GetEntries(ctx context.Context, batch uint64) ([]models.Entry, error) {
	return getEntries(ctx, p.db, batch)
}

func (p *PostgresBatchStore) GetEntry(ctx context.Context, batch uint64, sequence int) (models.Entry, bool, error) {
	const query = `SELECT batch, sequence, participant, referrer, commission, admitted_at
	FROM batch_entries WHERE batch = $1 AND sequence = $2`

	var entry models.Entry
	err := p.db.QueryRowContext(ctx, query, int64(batch), sequence).Scan(
		&entry.Batch,
		&entry.Sequence,
		&entry.Participant,
		&entry.Referrer,
		&entry.Commission,
		&entry.AdmittedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entry{}, false, nil
	}
	if err != nil {
		return models.Entry{}, false, err
	}
	return entry, true, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func currentBatch(ctx context.Context, q querier, query string) (uint64, error) {
	var current int64
	err := q.QueryRowContext(ctx, query).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(current), nil
}

func getAccount(ctx context.Context, q querier, batch uint64) (models.BatchAccount, error) {
	const query = `SELECT size, total_fees, total_commission, net_amount
	FROM batch_accounts WHERE batch = $1`

	account := models.NewBatchAccount(batch)
	err := q.QueryRowContext(ctx, query, int64(batch)).Scan(
		&account.Size,
		&account.TotalFees,
		&account.TotalCommission,
		&account.NetAmount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewBatchAccount(batch), nil
	}
	if err != nil {
		return models.BatchAccount{}, err
	}
	return account, nil
}

func getEntries(ctx context.Context, q querier, batch uint64) ([]models.Entry, error) {
	const query = `SELECT batch, sequence, participant, referrer, commission, admitted_at
	FROM batch_entries WHERE batch = $1 ORDER BY sequence`

	rows, err := q.QueryContext(ctx, query, int64(batch))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.Entry{}
	for rows.Next() {
		var entry models.Entry
		if err := rows.Scan(
			&entry.Batch,
			&entry.Sequence,
			&entry.Participant,
			&entry.Referrer,
			&entry.Commission,
			&entry.AdmittedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// PostgresBatchTx runs every write of one ledger operation inside a single sql.Tx.
type PostgresBatchTx struct {
	ctx  context.Context
	tx   *sql.Tx
	done bool
}

func (p *PostgresBatchTx) CurrentBatch() (uint64, error) {
	if p.done {
		return 0, storage.ErrTxDone
	}
	return currentBatch(p.ctx, p.tx, `SELECT current_batch FROM ledger_state WHERE id = 1 FOR UPDATE`)
}

func (p *PostgresBatchTx) SetCurrentBatch(batch uint64) error {
	if p.done {
		return storage.ErrTxDone
	}
	const query = `INSERT INTO ledger_state (id, current_batch) VALUES (1, $1)
	ON CONFLICT (id) DO UPDATE SET current_batch = EXCLUDED.current_batch`

	_, err := p.tx.ExecContext(p.ctx, query, int64(batch))
	return err
}

func (p *PostgresBatchTx) GetAccount(batch uint64) (models.BatchAccount, error) {
	if p.done {
		return models.BatchAccount{}, storage.ErrTxDone
	}
	return getAccount(p.ctx, p.tx, batch)
}

func (p *PostgresBatchTx) PutAccount(account models.BatchAccount) error {
	if p.done {
		return storage.ErrTxDone
	}
	const query = `INSERT INTO batch_accounts (batch, size, total_fees, total_commission, net_amount)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (batch) DO UPDATE SET
		size = EXCLUDED.size,
		total_fees = EXCLUDED.total_fees,
		total_commission = EXCLUDED.total_commission,
		net_amount = EXCLUDED.net_amount`

	_, err := p.tx.ExecContext(p.ctx, query,
		int64(account.Batch), account.Size, account.TotalFees, account.TotalCommission, account.NetAmount)
	return err
}

func (p *PostgresBatchTx) GetEntries(batch uint64) ([]models.Entry, error) {
	if p.done {
		return nil, storage.ErrTxDone
	}
	return getEntries(p.ctx, p.tx, batch)
}

func (p *PostgresBatchTx) AppendEntry(entry models.Entry) error {
	if p.done {
		return storage.ErrTxDone
	}

	var count int
	if err := p.tx.QueryRowContext(p.ctx,
		`SELECT COUNT(*) FROM batch_entries WHERE batch = $1`, int64(entry.Batch)).Scan(&count); err != nil {
		return err
	}
	if entry.Sequence != count+1 {
		return fmt.Errorf("%w: batch %d has %d entries, got sequence %d",
			storage.ErrSequenceGap, entry.Batch, count, entry.Sequence)
	}

	const query = `INSERT INTO batch_entries (batch, sequence, participant, referrer, commission, admitted_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := p.tx.ExecContext(p.ctx, query,
		int64(entry.Batch), entry.Sequence, entry.Participant, entry.Referrer, entry.Commission, entry.AdmittedAt)
	return err
}

func (p *PostgresBatchTx) DeleteBatch(batch uint64) (int, error) {
	if p.done {
		return 0, storage.ErrTxDone
	}

	result, err := p.tx.ExecContext(p.ctx, `DELETE FROM batch_entries WHERE batch = $1`, int64(batch))
	if err != nil {
		return 0, err
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := p.tx.ExecContext(p.ctx, `DELETE FROM batch_accounts WHERE batch = $1`, int64(batch)); err != nil {
		return 0, err
	}
	return int(removed), nil
}

func (p *PostgresBatchTx) Commit() error {
	if p.done {
		return storage.ErrTxDone
	}
	p.done = true
	return p.tx.Commit()
}

func (p *PostgresBatchTx) Rollback() error {
	if p.done {
		return nil
	}
	p.done = true
	return p.tx.Rollback()
}

var (
	_ interfaces.BatchStore = (*PostgresBatchStore)(nil)
	_ interfaces.BatchTx    = (*PostgresBatchTx)(nil)
)
