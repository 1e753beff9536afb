package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotstats/internal/formatter"
	"github.com/desertthunder/spotstats/internal/repositories"
	"github.com/desertthunder/spotstats/internal/shared"
	"github.com/desertthunder/spotstats/internal/ui"
)

// Export writes the latest snapshot of a time range plus recent plays in the chosen format.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	window, err := r.window(cmd)
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	db, err := r.database()
	if err != nil {
		return err
	}
	export, err := buildExport(ctx, repositories.NewStatsRepository(db), window, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("stdout") {
		return formatter.Write(r.output, format, export)
	}

	base := filepath.Join(cmd.String("output"), export.Name())
	r.logger.Info("exporting", "format", format, "time_range", window, "tracks", len(export.Tracks), "artists", len(export.Artists))

	switch format {
	case formatter.FormatCSV:
		res, err := formatter.WriteCSVExport(export, base)
		if err != nil {
			return err
		}
		return r.writeFiles(res.TracksFile, res.ArtistsFile, res.PlaysFile, res.MetadataFile)
	case formatter.FormatMarkdown:
		res, err := formatter.WriteMarkdownExport(export, base, cmd.Bool("cover"))
		if err != nil {
			return err
		}
		return r.writeFiles(res.Files...)
	case formatter.FormatText:
		path, err := formatter.WriteTextExport(export, base+".txt")
		if err != nil {
			return err
		}
		return r.writeFiles(path)
	default:
		path, err := formatter.WriteJSONExport(export, base+".json")
		if err != nil {
			return err
		}
		return r.writeFiles(path)
	}
}

func buildExport(ctx context.Context, stats *repositories.StatsRepository, window string, limit int) (*formatter.Export, error) {
	export := &formatter.Export{TimeRange: window}

	var err error
	if export.ExtractedAt, err = stats.LatestExtraction(ctx, window); err != nil {
		return nil, err
	}
	if export.ExtractedAt == nil {
		return nil, fmt.Errorf("%w: nothing extracted for %s", shared.ErrNoSnapshot, window)
	}
	if export.Tracks, err = stats.TopTracks(ctx, window, limit); err != nil {
		return nil, err
	}
	if export.Artists, err = stats.TopArtists(ctx, window, limit); err != nil {
		return nil, err
	}
	if export.Plays, err = stats.RecentPlays(ctx, limit); err != nil {
		return nil, err
	}
	return export, nil
}

func (r *Runner) writeFiles(paths ...string) error {
	for _, p := range paths {
		if err := r.writePlainln(ui.Success("Wrote %s", p)); err != nil {
			return err
		}
	}
	return nil
}
