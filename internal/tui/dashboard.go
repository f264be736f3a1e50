package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kelsos/approvals/internal/admin"
)

type Dashboard struct {
	program *tea.Program
}

func NewDashboard(ctx context.Context, load Loader, sorter admin.Sorter, symbol string) *Dashboard {
	model := NewModel(ctx, load, sorter, symbol)
	return &Dashboard{
		program: tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)),
	}
}

// Run blocks until the operator quits.
func (d *Dashboard) Run() error {
	if _, err := d.program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}
