package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kelsos/approvals/internal/admin"
	"github.com/kelsos/approvals/internal/models"
)

// Loader reads the full approval ledger.
type Loader func(ctx context.Context) ([]models.ApprovalRecord, error)

// RecordsLoaded carries the result of a ledger read.
type RecordsLoaded struct {
	Records []models.ApprovalRecord
	Err     error
}

type Model struct {
	ctx     context.Context
	load    Loader
	records []models.ApprovalRecord
	sorter  admin.Sorter
	summary admin.Summary
	table   table.Model
	spinner spinner.Model
	symbol  string
	loading bool
	err     error
	width   int
	height  int
	quit    bool
}

func NewModel(ctx context.Context, load Loader, sorter admin.Sorter, symbol string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	tbl := table.New(table.WithFocused(true), table.WithHeight(15))
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	tbl.SetStyles(styles)

	if symbol == "" {
		symbol = "USDT"
	}
	m := Model{
		ctx:     ctx,
		load:    load,
		sorter:  sorter,
		table:   tbl,
		spinner: sp,
		symbol:  symbol,
		loading: true,
		width:   100,
		height:  24,
	}
	m.table.SetColumns(m.columns())
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.fetch(),
	)
}

func (m Model) fetch() tea.Cmd {
	load, ctx := m.load, m.ctx
	return func() tea.Msg {
		records, err := load(ctx)
		return RecordsLoaded{Records: records, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.handleKeyMsg(msg) {
			m.quit = true
			return m, tea.Quit
		}
		switch msg.String() {
		case "r":
			return m.reload()
		case "1", "2", "3", "4":
			field := admin.Fields[int(msg.String()[0]-'1')]
			m.sorter = m.sorter.Toggle(field)
			m = m.rebuild()
		default:
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m = m.handleWindowSizeMsg(msg)

	case RecordsLoaded:
		m = m.handleRecordsLoaded(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) reload() (Model, tea.Cmd) {
	m.loading = true
	m.err = nil
	return m, m.fetch()
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "ctrl+c":
		return true
	}
	return false
}

func (m Model) handleWindowSizeMsg(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	if h := msg.Height - 10; h > 3 {
		m.table.SetHeight(h)
	}
	return m
}

// A failed reload keeps the previous rows on screen next to the error.
func (m Model) handleRecordsLoaded(msg RecordsLoaded) Model {
	m.loading = false
	m.err = msg.Err
	if msg.Err == nil {
		m.records = msg.Records
		m.summary = admin.Summarize(msg.Records)
	}
	return m.rebuild()
}

func (m Model) rebuild() Model {
	m.table.SetColumns(m.columns())
	sorted := admin.Sort(m.records, m.sorter)
	rows := make([]table.Row, 0, len(sorted))
	for _, r := range sorted {
		rows = append(rows, table.Row{
			r.WalletAddress,
			r.Amount,
			admin.FormatTimestamp(r.Timestamp),
			r.Status,
			admin.TruncateAddress(r.TxHash),
		})
	}
	m.table.SetRows(rows)
	return m
}

func (m Model) columns() []table.Column {
	title := func(n int, label string, field admin.Field) string {
		t := fmt.Sprintf("[%d] %s", n, label)
		if m.sorter.Field == field {
			t += " " + m.sorter.Arrow()
		}
		return t
	}
	return []table.Column{
		{Title: title(1, "Wallet Address", admin.FieldWallet), Width: 44},
		{Title: title(2, "Amount ("+m.symbol+")", admin.FieldAmount), Width: 18},
		{Title: title(3, "Timestamp", admin.FieldTimestamp), Width: 21},
		{Title: title(4, "Status", admin.FieldStatus), Width: 12},
		{Title: "Transaction", Width: 15},
	}
}

func (m Model) View() string {
	if m.quit {
		return "Shutting down...\n"
	}

	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		MarginBottom(1)

	s.WriteString(headerStyle.Render("Admin Dashboard - Approval Ledger"))
	s.WriteString("\n\n")

	summaryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	summary := fmt.Sprintf("Approvals: %d | Wallets: %d | Total approved: %s %s",
		m.summary.Count, m.summary.Wallets, m.summary.Total.String(), m.symbol)
	if m.loading {
		summary += " " + m.spinner.View()
	}
	s.WriteString(summaryStyle.Render(summary))
	s.WriteString("\n\n")

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		s.WriteString(errorStyle.Render(fmt.Sprintf("Failed to load approval data: %v", m.err)))
		s.WriteString("\n\n")
	}

	switch {
	case m.loading && m.records == nil:
		s.WriteString(m.spinner.View() + " Loading approval data...")
	case len(m.records) == 0 && m.err == nil:
		s.WriteString("No approval data found")
	case len(m.records) > 0:
		tableStyle := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))
		s.WriteString(tableStyle.Render(m.table.View()))
	}
	s.WriteString("\n\n")

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	s.WriteString(footerStyle.Render("1-4 sort column (again to flip) | r reload | q quit"))

	return s.String()
}
