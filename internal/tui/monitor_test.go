package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/approvals/internal/admin"
	"github.com/kelsos/approvals/internal/models"
)

var ledgerRows = []models.ApprovalRecord{
	{WalletAddress: "0xbbbb000000000000000000000000000000000002", Amount: "9.5", Status: "approved",
		Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	{WalletAddress: "0xaaaa000000000000000000000000000000000001", Amount: "10.2", Status: "approved",
		Timestamp: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
	{WalletAddress: "0xcccc000000000000000000000000000000000003", Amount: "2", Status: "approved",
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func amounts(m Model) []string {
	var out []string
	for _, row := range m.table.Rows() {
		out = append(out, row[1])
	}
	return out
}

func loaded(t *testing.T) Model {
	t.Helper()
	m := NewModel(context.Background(), nil, admin.DefaultSorter(), "USDT")
	m, _ = update(t, m, RecordsLoaded{Records: ledgerRows})
	return m
}

func TestLoadedRecordsAreSortedNewestFirst(t *testing.T) {
	m := loaded(t)

	assert.False(t, m.loading)
	assert.Equal(t, []string{"10.2", "9.5", "2"}, amounts(m))
	assert.Equal(t, 3, m.summary.Count)
	assert.Equal(t, "21.7", m.summary.Total.String())
	assert.Contains(t, m.View(), "Total approved: 21.7 USDT")
}

func TestNumberKeysToggleSortColumn(t *testing.T) {
	m := loaded(t)

	m, _ = update(t, m, key("2"))
	assert.Equal(t, admin.Sorter{Field: admin.FieldAmount, Direction: admin.Desc}, m.sorter)
	assert.Equal(t, []string{"10.2", "9.5", "2"}, amounts(m))
	assert.Equal(t, "[2] Amount (USDT) ↓", m.table.Columns()[1].Title)

	m, _ = update(t, m, key("2"))
	assert.Equal(t, admin.Asc, m.sorter.Direction)
	assert.Equal(t, []string{"2", "9.5", "10.2"}, amounts(m))
	assert.Equal(t, "[2] Amount (USDT) ↑", m.table.Columns()[1].Title)

	m, _ = update(t, m, key("1"))
	assert.Equal(t, admin.FieldWallet, m.sorter.Field)
	assert.Equal(t, "[2] Amount (USDT)", m.table.Columns()[1].Title)
	assert.Equal(t, "0xcccc000000000000000000000000000000000003", m.table.Rows()[0][0])
}

func TestReloadReadsTheLedgerAgain(t *testing.T) {
	calls := 0
	load := func(context.Context) ([]models.ApprovalRecord, error) {
		calls++
		return ledgerRows[:calls], nil
	}
	m := NewModel(context.Background(), load, admin.DefaultSorter(), "")

	msg := m.fetch()()
	m, _ = update(t, m, msg)
	assert.Len(t, m.table.Rows(), 1)

	m, cmd := update(t, m, key("r"))
	require.NotNil(t, cmd)
	assert.True(t, m.loading)
	m, _ = update(t, m, cmd())

	assert.Equal(t, 2, calls)
	assert.Len(t, m.table.Rows(), 2)
}

func TestFailedReloadKeepsRowsAndShowsError(t *testing.T) {
	m := loaded(t)

	m, _ = update(t, m, RecordsLoaded{Err: errors.New("connection refused")})

	assert.Len(t, m.table.Rows(), 3)
	assert.Contains(t, m.View(), "Failed to load approval data: connection refused")
}

func TestEmptyAndLoadingStates(t *testing.T) {
	m := NewModel(context.Background(), nil, admin.DefaultSorter(), "USDT")
	assert.Contains(t, m.View(), "Loading approval data...")

	m, _ = update(t, m, RecordsLoaded{Records: []models.ApprovalRecord{}})
	assert.Contains(t, m.View(), "No approval data found")
}

func TestQuitKeys(t *testing.T) {
	for _, k := range []tea.KeyMsg{key("q"), {Type: tea.KeyCtrlC}} {
		m, cmd := update(t, loaded(t), k)
		assert.True(t, m.quit)
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}
}
