package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/approvals/internal/admin"
	"github.com/kelsos/approvals/internal/config"
	"github.com/kelsos/approvals/internal/models"
)

func TestParseSorter(t *testing.T) {
	s, err := parseSorter("wallet", true)
	require.NoError(t, err)
	assert.Equal(t, admin.Sorter{Field: admin.FieldWallet, Direction: admin.Asc}, s)

	s, err = parseSorter("amount", false)
	require.NoError(t, err)
	assert.Equal(t, admin.Desc, s.Direction)

	_, err = parseSorter("color", false)
	assert.Error(t, err)
}

func TestRenderRecords(t *testing.T) {
	assert.Equal(t, "No approval data found", renderRecords(nil, "USDT"))

	out := renderRecords([]models.ApprovalRecord{
		{WalletAddress: "0x00000000000000000000000000000000000000A1", Amount: "1.5", Status: "approved",
			Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{WalletAddress: "0x00000000000000000000000000000000000000B0", Amount: "2", Status: "approved"},
	}, "USDT")

	assert.Contains(t, out, "AMOUNT (USDT)")
	assert.Contains(t, out, "0x00000000000000000000000000000000000000A1")
	assert.Contains(t, out, "N/A")
	assert.Contains(t, out, "2 approvals, 2 wallets, 3.5 USDT total")
}

func TestOverridesWinOverEnvironment(t *testing.T) {
	t.Setenv("APPROVALS_LEDGER_BACKEND", "postgres")
	cfg := config.NewConfig()
	cfg.LoadFromEnvironment()

	overrides{ledgerBackend: "file", dataDir: "/tmp/ledger"}.apply(cfg)

	assert.Equal(t, config.LedgerFile, cfg.LedgerBackend)
	assert.Equal(t, "/tmp/ledger", cfg.DataDir)
	assert.Equal(t, "0x38", cfg.ChainID)
}
