package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
)

const runColumns = `id, status, time_range, started_at, finished_at, artists, top_tracks, top_artists, listening_history, error`

// RunRepository stores the pipeline_runs audit trail.
type RunRepository struct {
	db *shared.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *shared.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Start inserts a run in its initial state.
func (r *RunRepository) Start(ctx context.Context, run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO pipeline_runs (id, status, time_range, started_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(query), run.ID, string(run.Status), run.TimeRange, utc(run.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// Finish records the final status, committed counts and error of a run.
func (r *RunRepository) Finish(ctx context.Context, run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	var finished any
	if run.FinishedAt != nil {
		finished = utc(*run.FinishedAt)
	}

	query := `
		UPDATE pipeline_runs
		SET status = ?, finished_at = ?, artists = ?, top_tracks = ?, top_artists = ?, listening_history = ?, error = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		string(run.Status), finished,
		run.Result.Artists, run.Result.TopTracks, run.Result.TopArtists, run.Result.ListeningHistory,
		run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

// Get retrieves a run by id.
func (r *RunRepository) Get(ctx context.Context, id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRowContext(ctx, r.db.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + runColumns + ` FROM pipeline_runs ORDER BY started_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return collect(rows, scanRun)
}

func scanRun(row scanner) (*models.Run, error) {
	var (
		run    models.Run
		status string
	)
	err := row.Scan(
		&run.ID, &status, &run.TimeRange, &run.StartedAt, &run.FinishedAt,
		&run.Result.Artists, &run.Result.TopTracks, &run.Result.TopArtists, &run.Result.ListeningHistory,
		&run.Error,
	)
	if err != nil {
		return nil, err
	}
	run.Status = models.RunStatus(status)
	if run.Status == models.RunSucceeded {
		run.Result.Committed = slices.Clone(models.Groups)
	}
	return &run, nil
}
