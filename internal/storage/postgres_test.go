package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/approvals/internal/ledger"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestPostgresMigrate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS approvals`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertReturnsServerIDAndTimestamp(t *testing.T) {
	store, mock := newMockStore(t)
	ts := time.Date(2025, 5, 2, 10, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO approvals \(wallet_address, amount, tx_hash, status\)`).
		WithArgs(alice, "12.5", hash, "approved").
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp"}).
			AddRow("8f14e45f-ceea-4e1b-9f8a-2b4d5c6e7f80", ts))

	record, err := store.Insert(context.Background(), ledger.Entry{
		WalletAddress: alice, Amount: "12.5", TxHash: hash, Status: "approved",
	})

	require.NoError(t, err)
	assert.Equal(t, "8f14e45f-ceea-4e1b-9f8a-2b4d5c6e7f80", record.ID)
	assert.True(t, ts.Equal(record.Timestamp))
	assert.Equal(t, "12.5", record.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`INSERT INTO approvals`).WillReturnError(errors.New("connection reset"))

	_, err := store.Insert(context.Background(), ledger.Entry{WalletAddress: alice, Amount: "1", TxHash: hash, Status: "approved"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPostgresListByWallet(t *testing.T) {
	store, mock := newMockStore(t)
	ts := time.Date(2025, 5, 2, 10, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT (.+) FROM approvals WHERE wallet_address = \$1 ORDER BY timestamp`).
		WithArgs(alice).
		WillReturnRows(sqlmock.NewRows([]string{"id", "wallet_address", "amount", "tx_hash", "timestamp", "status"}).
			AddRow("1", alice, "3", hash, ts, "approved"))

	records, err := store.List(context.Background(), ledger.Filter{WalletAddress: alice})

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, alice, records[0].WalletAddress)
	assert.Equal(t, "3", records[0].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListAllEmpty(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT (.+) FROM approvals ORDER BY timestamp`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "wallet_address", "amount", "tx_hash", "timestamp", "status"}))

	records, err := store.List(context.Background(), ledger.Filter{})

	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}
