package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/kelsos/approvals/internal/ledger"
	"github.com/kelsos/approvals/internal/models"
)

// Schema creates the approvals table. Id and timestamp are assigned by the
// database; amount stays text so the decimal string round-trips unchanged.
const Schema = `
CREATE TABLE IF NOT EXISTS approvals (
	id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	wallet_address TEXT        NOT NULL,
	amount         TEXT        NOT NULL,
	tx_hash        TEXT        NOT NULL,
	timestamp      TIMESTAMPTZ NOT NULL DEFAULT now(),
	status         TEXT        NOT NULL
);
CREATE INDEX IF NOT EXISTS approvals_wallet_address_idx ON approvals (wallet_address);
`

const selectApprovals = `
	SELECT id::text AS id, wallet_address, amount, tx_hash, timestamp, status
	FROM approvals`

// PostgresStore keeps the ledger in PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

var _ ledger.Store = (*PostgresStore)(nil)

// OpenPostgres connects with the lib/pq driver and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	store := NewPostgresStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore wraps an open handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the approvals table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create approvals table: %w", err)
	}
	return nil
}

// Ping checks that the database answers.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Insert(ctx context.Context, entry ledger.Entry) (models.ApprovalRecord, error) {
	record := models.ApprovalRecord{
		WalletAddress: entry.WalletAddress,
		Amount:        entry.Amount,
		TxHash:        entry.TxHash,
		Status:        entry.Status,
	}

	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO approvals (wallet_address, amount, tx_hash, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, timestamp
	`, record.WalletAddress, record.Amount, record.TxHash, record.Status)
	if err := row.Scan(&record.ID, &record.Timestamp); err != nil {
		return models.ApprovalRecord{}, fmt.Errorf("insert approval: %w", err)
	}
	record.Timestamp = record.Timestamp.UTC()
	return record, nil
}

func (s *PostgresStore) List(ctx context.Context, filter ledger.Filter) ([]models.ApprovalRecord, error) {
	var (
		records []models.ApprovalRecord
		err     error
	)
	if filter.WalletAddress == "" {
		err = s.db.SelectContext(ctx, &records, selectApprovals+` ORDER BY timestamp`)
	} else {
		err = s.db.SelectContext(ctx, &records, selectApprovals+` WHERE wallet_address = $1 ORDER BY timestamp`, filter.WalletAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	if records == nil {
		records = []models.ApprovalRecord{}
	}
	return records, nil
}
