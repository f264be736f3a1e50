package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/approvals/internal/apperr"
	"github.com/kelsos/approvals/internal/models"
)

const (
	alice = "0x00000000000000000000000000000000000000A1"
	bob   = "0x00000000000000000000000000000000000000B0"
	hash1 = "0x0000000000000000000000000000000000000000000000000000000000001001"
	hash2 = "0x0000000000000000000000000000000000000000000000000000000000001002"
)

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time { return fixed })
	l := New(store)

	id, err := l.Record(context.Background(), Entry{WalletAddress: alice, Amount: "10.5", TxHash: hash1})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	records, err := l.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
	assert.Equal(t, fixed, records[0].Timestamp)
	assert.Equal(t, models.StatusApproved, records[0].Status)
	assert.Equal(t, "10.5", records[0].Amount)
}

func TestRecordRejectsIncompleteEntries(t *testing.T) {
	store := NewMemoryStore()
	l := New(store)

	cases := map[string]Entry{
		"missing wallet": {Amount: "1", TxHash: hash1},
		"missing amount": {WalletAddress: alice, TxHash: hash1},
		"zero amount":    {WalletAddress: alice, Amount: "0", TxHash: hash1},
		"bad amount":     {WalletAddress: alice, Amount: "ten", TxHash: hash1},
		"missing hash":   {WalletAddress: alice, Amount: "1"},
	}
	for name, entry := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := l.Record(context.Background(), entry)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.InvalidRecord))
		})
	}
	assert.Equal(t, 0, store.Inserts())
}

func TestRecordSurfacesStoreFailure(t *testing.T) {
	store := NewMemoryStore()
	store.InsertErr = errors.New("unavailable")
	l := New(store)

	_, err := l.Record(context.Background(), Entry{WalletAddress: alice, Amount: "1", TxHash: hash1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}

func TestListByWalletIsExactSubsetOfListAll(t *testing.T) {
	l := New(NewMemoryStore())
	ctx := context.Background()

	for _, e := range []Entry{
		{WalletAddress: alice, Amount: "1", TxHash: hash1},
		{WalletAddress: bob, Amount: "2", TxHash: hash2},
		{WalletAddress: strings.ToLower(alice), Amount: "3", TxHash: hash2},
	} {
		_, err := l.Record(ctx, e)
		require.NoError(t, err)
	}

	all, err := l.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	mine, err := l.ListByWallet(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "1", mine[0].Amount)
	assert.Contains(t, all, mine[0])

	none, err := l.ListByWallet(ctx, "0x0000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.Empty(t, none)
}
