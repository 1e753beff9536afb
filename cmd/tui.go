package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/repositories"
	"github.com/desertthunder/spotstats/internal/shared"
	"github.com/desertthunder/spotstats/internal/tasks"
	"github.com/desertthunder/spotstats/internal/ui"
)

// TUI launches the interactive stats dashboard.
//
// Syncing from the dashboard is available when Spotify credentials are configured.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Logs go to a file while the dashboard owns the terminal.
	f, err := os.OpenFile(cmd.String("log-file"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	level := r.logger.GetLevel()
	r.logger = shared.NewLogger(f)
	r.logger.SetLevel(level)

	db, err := r.database()
	if err != nil {
		return err
	}

	var sync ui.SyncFunc
	if _, err := r.client(); err == nil {
		sync = r.syncFunc()
	} else {
		r.logger.Warn("dashboard sync disabled", "error", err)
	}

	windows := r.config.Extract.TimeRanges
	model := ui.NewModel(ctx, repositories.NewStatsRepository(db), sync, windows, cmd.Int("limit"))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// syncFunc builds a fresh pipeline for every sync.
func (r *Runner) syncFunc() ui.SyncFunc {
	return func(ctx context.Context, window string, report tasks.Reporter) (*models.Run, error) {
		pipeline, err := r.pipeline()
		if err != nil {
			return nil, err
		}
		return pipeline.WithReporter(report).Run(ctx, window)
	}
}
