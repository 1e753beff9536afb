package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/repositories"
	"github.com/desertthunder/spotstats/internal/shared"
	"github.com/desertthunder/spotstats/internal/tasks"
	"github.com/desertthunder/spotstats/internal/ui"
)

// retryPolicy reads --retries and --retry-delay, falling back to the [pipeline] config.
func (r *Runner) retryPolicy(cmd *cli.Command) (int, time.Duration) {
	retries := r.config.Pipeline.Retries
	if n := cmd.Int("retries"); n >= 0 {
		retries = n
	}
	delay := r.config.Pipeline.RetryDelay.Duration
	if d := cmd.Duration("retry-delay"); d > 0 {
		delay = d
	}
	return retries, delay
}

func (r *Runner) reporter() tasks.Reporter {
	return func(u tasks.ProgressUpdate) {
		r.writePlainln(ui.RenderProgress(u))
	}
}

// Run executes extract, transform and load, retrying failed attempts.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	window, err := r.window(cmd)
	if err != nil {
		return err
	}
	pipeline, err := r.pipeline()
	if err != nil {
		return err
	}
	pipeline.WithReporter(r.reporter())

	retries, delay := r.retryPolicy(cmd)

	var run *models.Run
	err = r.withRetry(ctx, retries, delay, func(attempt int) error {
		var err error
		run, err = pipeline.Run(ctx, window)
		return err
	})
	if run != nil {
		r.writePlainln(ui.RenderLoadResult(&run.Result))
	}
	if err != nil {
		return err
	}
	return r.writePlainln(ui.Success("Run %s loaded %d rows in %s", run.ID, run.Result.Total(), run.Duration()))
}

// Extract writes a raw snapshot to --output.
func (r *Runner) Extract(ctx context.Context, cmd *cli.Command) error {
	extractor, err := r.extractor()
	if err != nil {
		return err
	}
	out := cmd.String("output")
	if out != "-" {
		extractor.WithReporter(r.reporter())
	}

	retries, delay := r.retryPolicy(cmd)

	var raw *tasks.RawSnapshot
	err = r.withRetry(ctx, retries, delay, func(int) error {
		var err error
		raw, err = extractor.ExtractAll(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if err := r.writeJSONFile(out, raw); err != nil {
		return err
	}
	if out != "-" {
		r.writePlainln(ui.Success("Snapshot written to %s", out))
	}
	return nil
}

// Transform reads a raw snapshot and writes the load batch.
func (r *Runner) Transform(ctx context.Context, cmd *cli.Command) error {
	window, err := r.window(cmd)
	if err != nil {
		return err
	}

	var raw tasks.RawSnapshot
	if err := readJSON(cmd.String("input"), &raw); err != nil {
		return err
	}

	transformer := tasks.NewTransformer(r.logger)
	batch, err := transformer.Transform(&raw, window)
	if err != nil {
		return err
	}

	out := cmd.String("output")
	if err := r.writeJSONFile(out, batch); err != nil {
		return err
	}
	if out != "-" {
		r.writePlainln(ui.Success("Batch with %d artists, %d top tracks, %d top artists and %d plays written to %s",
			len(batch.Artists), len(batch.TopTracks), len(batch.TopArtists), len(batch.ListeningHistory), out))
	}
	return nil
}

// Load persists a batch file.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) error {
	var batch models.TransformedBatch
	if err := readJSON(cmd.String("input"), &batch); err != nil {
		return err
	}
	if err := batch.Validate(); err != nil {
		return err
	}

	retries, delay := r.retryPolicy(cmd)

	var res *models.LoadResult
	err := r.withRetry(ctx, retries, delay, func(int) error {
		db, err := r.database()
		if err != nil {
			return err
		}
		res, err = repositories.NewLoader(db, r.logger).Load(ctx, &batch)
		return err
	})
	if res != nil {
		r.writePlainln(ui.RenderLoadResult(res))
	}
	return err
}

// ArtistAdd resolves an artist by name through search and stores it.
func (r *Runner) ArtistAdd(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: artist name", shared.ErrMissingArgument)
	}

	api, err := r.client()
	if err != nil {
		return err
	}
	db, err := r.database()
	if err != nil {
		return err
	}

	artist, found, err := tasks.NewArtistResolver(api, cmd.Int("candidates"), r.logger).Resolve(ctx, name)
	if err != nil {
		return err
	}
	if _, err := repositories.NewLoader(db, r.logger).LoadArtists(ctx, []models.Artist{artist}); err != nil {
		return err
	}

	if !found {
		return r.writePlainln(ui.Warning("No exact match for %q, stored a placeholder with id %s", name, artist.ID))
	}
	return r.writePlainln(ui.Success("Stored %s (%s)", artist.Name, artist.ID))
}

// ArtistList prints stored artists by name.
func (r *Runner) ArtistList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	repo := repositories.NewArtistRepository(db)

	artists, err := repo.List(ctx, cmd.Int("limit"), cmd.Int("offset"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(artists, true)
	}

	total, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	rows := make([]models.TopArtistRow, len(artists))
	for i, a := range artists {
		rows[i] = models.TopArtistRow{Rank: cmd.Int("offset") + i + 1, Artist: *a}
	}
	r.writePlainln(ui.RenderTopArtists(rows))
	return r.writePlain("Showing %d of %d artists\n", len(artists), total)
}

// Runs prints the pipeline audit trail.
func (r *Runner) Runs(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	runs, err := repositories.NewRunRepository(db).List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}
	return r.writePlainln(ui.RenderRuns(runs))
}
