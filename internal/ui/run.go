package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"av1conv/internal/model"
	"av1conv/internal/progress"
)

// Runner executes the batch, sending events to rp, and returns its summary.
type Runner func(ctx context.Context, rp progress.Reporter) model.RunSummary

// Run shows the batch in a TUI while runner executes it. Pressing q or
// ctrl+c cancels the batch; the TUI stays up until the runner has returned so
// a cancelled item is only shown once its encoder has exited. Signals are
// left to the caller, who cancels ctx.
func Run(ctx context.Context, title string, items []model.JobItem, runner Runner) (model.RunSummary, error) {
	m := NewModel(ctx, title, items, runner)
	prog := tea.NewProgram(m, tea.WithoutSignalHandler())
	final, err := prog.Run()
	if err != nil {
		return model.RunSummary{}, err
	}
	fm, ok := final.(Model)
	if !ok || fm.summary == nil {
		return model.RunSummary{}, errors.New("tui exited before the batch finished")
	}
	return *fm.summary, nil
}
