package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/repositories"
	"github.com/desertthunder/spotstats/internal/shared"
	"github.com/desertthunder/spotstats/internal/ui"
)

type statsReport struct {
	Summary    *models.Summary       `json:"summary"`
	TopTracks  []models.TopTrackRow  `json:"top_tracks"`
	TopArtists []models.TopArtistRow `json:"top_artists"`
	Genres     []models.GenreCount   `json:"genres"`
	Timeline   []models.DailyPlays   `json:"timeline"`
}

// Stats prints the summary, top lists, genres and daily plays for a time range.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	window, err := r.window(cmd)
	if err != nil {
		return err
	}
	days := cmd.Int("days")
	if days < 1 {
		return fmt.Errorf("%w: --days must be at least 1", shared.ErrInvalidArgument)
	}
	limit := cmd.Int("limit")

	db, err := r.database()
	if err != nil {
		return err
	}
	stats := repositories.NewStatsRepository(db)

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	var report statsReport
	if report.Summary, err = stats.Summary(ctx, window, from, to); err != nil {
		return err
	}
	if report.TopTracks, err = stats.TopTracks(ctx, window, limit); err != nil {
		return err
	}
	if report.TopArtists, err = stats.TopArtists(ctx, window, limit); err != nil {
		return err
	}
	if report.Genres, err = stats.GenreDistribution(ctx, limit); err != nil {
		return err
	}
	if report.Timeline, err = stats.ListeningTimeline(ctx, from, to); err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	if report.Summary.LastExtracted == nil {
		r.writePlainln(ui.Warning("No snapshot for %s yet, run `spotstats run -t %s`", ui.WindowLabel(window), window))
	}

	sections := []struct {
		title string
		body  string
	}{
		{"Summary", ui.RenderSummary(report.Summary)},
		{"Top Tracks · " + ui.WindowLabel(window), ui.RenderTopTracks(report.TopTracks)},
		{"Top Artists · " + ui.WindowLabel(window), ui.RenderTopArtists(report.TopArtists)},
		{"Genres", ui.RenderGenres(report.Genres)},
		{fmt.Sprintf("Plays · last %d days", days), ui.RenderTimeline(report.Timeline)},
	}
	for _, s := range sections {
		r.writePlainln(ui.Title(s.title))
		if err := r.writePlainln(s.body); err != nil {
			return err
		}
	}
	return nil
}
