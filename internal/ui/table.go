package ui

import (
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"

	"github.com/desertthunder/spotstats/internal/formatter"
	"github.com/desertthunder/spotstats/internal/models"
)

// ViewKind selects which table the dashboard shows.
type ViewKind int

const (
	TracksView ViewKind = iota
	ArtistsView
	PlaysView
)

func (v ViewKind) String() string {
	switch v {
	case TracksView:
		return "Top Tracks"
	case ArtistsView:
		return "Top Artists"
	case PlaysView:
		return "Recently Played"
	}
	return ""
}

func trackColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 3},
		{Title: "Track", Width: 32},
		{Title: "Artist", Width: 24},
		{Title: "Album", Width: 24},
		{Title: "Length", Width: 6},
		{Title: "Pop", Width: 4},
	}
}

func trackRows(rows []models.TopTrackRow) []table.Row {
	out := make([]table.Row, len(rows))
	for i, t := range rows {
		out[i] = table.Row{
			strconv.Itoa(t.Rank),
			t.Name,
			t.ArtistName,
			t.AlbumName,
			formatter.FormatDuration(t.Duration()),
			strconv.Itoa(t.Popularity),
		}
	}
	return out
}

func artistColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 3},
		{Title: "Artist", Width: 28},
		{Title: "Genre", Width: 36},
		{Title: "Pop", Width: 4},
		{Title: "Followers", Width: 11},
	}
}

func artistRows(rows []models.TopArtistRow) []table.Row {
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		a := r.Artist
		out[i] = table.Row{
			strconv.Itoa(r.Rank),
			a.Name,
			orDash(a.Genre),
			intOrDash(a.Popularity),
			intOrDash(a.Followers),
		}
	}
	return out
}

func playColumns() []table.Column {
	return []table.Column{
		{Title: "Played", Width: 16},
		{Title: "Track", Width: 32},
		{Title: "Artist", Width: 24},
		{Title: "Context", Width: 10},
	}
}

func playRows(plays []models.ListeningHistoryEvent, loc *time.Location) []table.Row {
	out := make([]table.Row, len(plays))
	for i, p := range plays {
		out[i] = table.Row{
			p.PlayedAt.In(loc).Format("2006-01-02 15:04"),
			p.TrackName,
			p.ArtistName,
			orDash(p.Context),
		}
	}
	return out
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func intOrDash(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}
