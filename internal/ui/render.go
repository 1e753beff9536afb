package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"

	"github.com/desertthunder/spotstats/internal/formatter"
	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
	"github.com/desertthunder/spotstats/internal/tasks"
)

const barWidth = 30

// WindowLabel is the human name of a time range.
func WindowLabel(window string) string {
	switch window {
	case shared.WindowShort:
		return "4 weeks"
	case shared.WindowMedium:
		return "6 months"
	case shared.WindowLong:
		return "All time"
	}
	return window
}

// SummaryLine renders a summary on a single line.
func SummaryLine(s *models.Summary) string {
	parts := []string{
		fmt.Sprintf("%d artists", s.TotalArtists),
		fmt.Sprintf("%d top tracks", s.TopTracks),
		fmt.Sprintf("%d plays in %s", s.Plays, s.To.Sub(s.From).Round(time.Hour)),
	}
	if s.TopGenre != nil {
		parts = append(parts, "top genre "+*s.TopGenre)
	}
	if s.LastExtracted != nil {
		parts = append(parts, "extracted "+s.LastExtracted.Local().Format("2006-01-02 15:04"))
	}
	return styles.muted.Render(strings.Join(parts, " · "))
}

func newTable(headers ...string) *ltable.Table {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	return ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.muted).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return header
			}
			return cell
		})
}

// RenderSummary renders the headline block of the stats command.
func RenderSummary(s *models.Summary) string {
	t := newTable("Metric", "Value").
		Row("Time range", WindowLabel(s.TimeRange)).
		Row("Artists", strconv.Itoa(s.TotalArtists)).
		Row("Top tracks", strconv.Itoa(s.TopTracks)).
		Row("Plays", fmt.Sprintf("%d since %s", s.Plays, s.From.Local().Format("2006-01-02"))).
		Row("Top genre", orDash(s.TopGenre))

	last := "never"
	if s.LastExtracted != nil {
		last = s.LastExtracted.Local().Format(time.DateTime)
	}
	t.Row("Last extracted", last)
	return t.String()
}

// RenderTopTracks renders ranked tracks.
func RenderTopTracks(rows []models.TopTrackRow) string {
	if len(rows) == 0 {
		return styles.muted.Render("No top tracks stored for this range.")
	}
	return newTable("#", "Track", "Artist", "Album", "Length").
		Rows(trackTableRows(rows)...).
		String()
}

func trackTableRows(rows []models.TopTrackRow) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{strconv.Itoa(r.Rank), r.Name, r.ArtistName, r.AlbumName, formatter.FormatDuration(r.Duration())}
	}
	return out
}

// RenderTopArtists renders ranked artists.
func RenderTopArtists(rows []models.TopArtistRow) string {
	if len(rows) == 0 {
		return styles.muted.Render("No top artists stored for this range.")
	}
	t := newTable("#", "Artist", "Genre", "Followers")
	for _, r := range rows {
		t.Row(strconv.Itoa(r.Rank), r.Artist.Name, orDash(r.Artist.Genre), intOrDash(r.Artist.Followers))
	}
	return t.String()
}

// RenderGenres renders a genre histogram.
func RenderGenres(counts []models.GenreCount) string {
	if len(counts) == 0 {
		return styles.muted.Render("No genres recorded.")
	}
	most := counts[0].Artists
	for _, c := range counts {
		most = max(most, c.Artists)
	}
	t := newTable("Genre", "Artists", "")
	for _, c := range counts {
		t.Row(c.Genre, strconv.Itoa(c.Artists), bar(c.Artists, most))
	}
	return t.String()
}

// RenderTimeline renders plays per day.
func RenderTimeline(days []models.DailyPlays) string {
	if len(days) == 0 {
		return styles.muted.Render("No plays in range.")
	}
	most := 0
	for _, d := range days {
		most = max(most, d.Plays)
	}
	t := newTable("Day", "Plays", "")
	for _, d := range days {
		t.Row(d.Day.Format("Mon 01-02"), strconv.Itoa(d.Plays), bar(d.Plays, most))
	}
	return t.String()
}

// RenderPlays renders listening history in the given location.
func RenderPlays(plays []models.ListeningHistoryEvent, loc *time.Location) string {
	if len(plays) == 0 {
		return styles.muted.Render("No listening history stored.")
	}
	return newTable("Played", "Track", "Artist", "Context").
		Rows(playTableRows(plays, loc)...).
		String()
}

func playTableRows(plays []models.ListeningHistoryEvent, loc *time.Location) [][]string {
	rows := playRows(plays, loc)
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

// RenderRuns renders the pipeline audit trail.
func RenderRuns(runs []*models.Run) string {
	if len(runs) == 0 {
		return styles.muted.Render("No runs recorded.")
	}
	t := newTable("Started", "Range", "Status", "Rows", "Took", "Error")
	for _, r := range runs {
		took := "-"
		if r.FinishedAt != nil {
			took = r.Duration().Round(time.Millisecond).String()
		}
		t.Row(
			r.StartedAt.Local().Format(time.DateTime),
			r.TimeRange,
			RunStatus(r.Status),
			strconv.Itoa(r.Result.Total()),
			took,
			orDash(r.Error),
		)
	}
	return t.String()
}

// RunStatus colors a run status.
func RunStatus(s models.RunStatus) string {
	switch s {
	case models.RunSucceeded:
		return styles.ok.Render(string(s))
	case models.RunFailed:
		return styles.err.Render(string(s))
	}
	return styles.warn.Render(string(s))
}

// RenderLoadResult renders per-group row counts of a load.
func RenderLoadResult(r *models.LoadResult) string {
	counts := map[string]int{
		models.GroupArtists:          r.Artists,
		models.GroupTopTracks:        r.TopTracks,
		models.GroupTopArtists:       r.TopArtists,
		models.GroupListeningHistory: r.ListeningHistory,
	}
	t := newTable("Group", "Rows", "")
	for _, g := range models.Groups {
		state := styles.muted.Render("skipped")
		for _, c := range r.Committed {
			if c == g {
				state = styles.ok.Render("committed")
			}
		}
		t.Row(g, strconv.Itoa(counts[g]), state)
	}
	return t.String()
}

// RenderProgress renders a single pipeline progress line.
func RenderProgress(u tasks.ProgressUpdate) string {
	prefix := styles.header.Render(u.Phase.String())
	if u.Total > 0 {
		prefix += styles.muted.Render(fmt.Sprintf(" [%d/%d]", u.Step, u.Total))
	}
	return prefix + " " + u.Message
}

// Success, Failure and Warning render status lines for CLI output.
func Success(format string, args ...any) string {
	return styles.ok.Render("✓ ") + fmt.Sprintf(format, args...)
}

func Failure(format string, args ...any) string {
	return styles.err.Render("✗ ") + fmt.Sprintf(format, args...)
}

func Warning(format string, args ...any) string {
	return styles.warn.Render("! " + fmt.Sprintf(format, args...))
}

// Title renders a section heading.
func Title(s string) string {
	return styles.title.Render(s)
}

func bar(n, most int) string {
	if most <= 0 || n <= 0 {
		return ""
	}
	w := max(n*barWidth/most, 1)
	return styles.ok.Render(strings.Repeat("█", w))
}
