package tasks

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/services"
	"github.com/desertthunder/spotstats/internal/shared"
)

// MaxGenreLength caps the stored genre string, in runes.
const MaxGenreLength = 100

// preferredImageHeights are the medium artwork sizes picked over any other.
var preferredImageHeights = []int{300, 320, 400}

// Transformer turns a [RawSnapshot] into a [models.TransformedBatch].
type Transformer struct {
	logger *log.Logger
	now    func() time.Time
	report Reporter
}

// NewTransformer creates a transformer. A nil logger discards output.
func NewTransformer(logger *log.Logger) *Transformer {
	if logger == nil {
		logger = shared.NopLogger()
	}
	return &Transformer{logger: logger, now: time.Now}
}

// WithReporter sets the progress reporter and returns t.
func (t *Transformer) WithReporter(r Reporter) *Transformer {
	t.report = r
	return t
}

// Transform merges artists and builds snapshot and history rows.
//
// window labels every top-tracks or top-artists group that has no window of its own.
// All rows share one extraction timestamp: the snapshot's, or now when the snapshot has none.
func (t *Transformer) Transform(raw *RawSnapshot, window string) (*models.TransformedBatch, error) {
	if raw == nil || raw.Profile == nil {
		return nil, shared.Missing("profile")
	}

	extractedAt := raw.ExtractedAt
	if extractedAt.IsZero() {
		extractedAt = t.now()
	}
	extractedAt = extractedAt.UTC().Truncate(time.Second)

	merged, err := mergeArtists(raw)
	if err != nil {
		return nil, err
	}

	batch := &models.TransformedBatch{ExtractedAt: extractedAt}
	if batch.Artists, err = merged.artists(extractedAt); err != nil {
		return nil, err
	}
	if batch.TopTracks, err = topTrackRows(raw.TopTracks, window, extractedAt); err != nil {
		return nil, err
	}
	if batch.TopArtists, err = topArtistRows(raw.TopArtists, window, extractedAt); err != nil {
		return nil, err
	}
	if batch.ListeningHistory, err = historyRows(raw.RecentlyPlayed, extractedAt); err != nil {
		return nil, err
	}

	if err := batch.Validate(); err != nil {
		return nil, err
	}

	t.logger.Info("transform complete",
		"artists", len(batch.Artists),
		"top_tracks", len(batch.TopTracks),
		"top_artists", len(batch.TopArtists),
		"listening_history", len(batch.ListeningHistory),
	)
	t.report.send(transformedUpdate(batch))
	return batch, nil
}

// artistMerge holds the best-known payload per artist id, in first-seen order.
type artistMerge struct {
	order []string
	byID  map[string]*services.Artist
}

// mergeArtists scans top-track artists, then top artists, then recently played artists.
func mergeArtists(raw *RawSnapshot) (*artistMerge, error) {
	m := &artistMerge{byID: make(map[string]*services.Artist)}

	for g, group := range raw.TopTracks {
		for i, tr := range group.Items {
			for j, a := range tr.Artists {
				if err := m.add(fmt.Sprintf("top_tracks[%d].items[%d].artists[%d]", g, i, j), a); err != nil {
					return nil, err
				}
			}
		}
	}

	for g, group := range raw.TopArtists {
		for i, a := range group.Items {
			if err := m.add(fmt.Sprintf("top_artists[%d].items[%d]", g, i), a); err != nil {
				return nil, err
			}
		}
	}

	for i, item := range raw.RecentlyPlayed {
		if item.Track == nil {
			return nil, shared.Missing("recently_played[%d].track", i)
		}
		for j, a := range item.Track.Artists {
			if err := m.add(fmt.Sprintf("recently_played[%d].track.artists[%d]", i, j), a); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *artistMerge) add(path string, a services.Artist) error {
	if a.ID == nil || *a.ID == "" {
		return shared.Missing("%s.id", path)
	}

	existing, ok := m.byID[*a.ID]
	if !ok {
		cp := a
		m.byID[*a.ID] = &cp
		m.order = append(m.order, *a.ID)
		return nil
	}

	mergeArtist(existing, a)
	return nil
}

// mergeArtist copies src into dst field by field. A non-null src value replaces a
// null one; popularity is replaced whenever src has one.
func mergeArtist(dst *services.Artist, src services.Artist) {
	fill(&dst.Name, src.Name)
	fill(&dst.Followers, src.Followers)
	fill(&dst.ExternalURLs, src.ExternalURLs)
	fill(&dst.URI, src.URI)

	if dst.Genres == nil && src.Genres != nil {
		dst.Genres = src.Genres
	}
	if dst.Images == nil && src.Images != nil {
		dst.Images = src.Images
	}
	if src.Popularity != nil {
		dst.Popularity = src.Popularity
	}
}

func fill[T any](dst **T, src *T) {
	if *dst == nil && src != nil {
		*dst = src
	}
}

func (m *artistMerge) artists(extractedAt time.Time) ([]models.Artist, error) {
	out := make([]models.Artist, 0, len(m.order))
	for _, id := range m.order {
		a, err := toArtist(*m.byID[id], extractedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// toArtist converts a merged payload into an artist record. The name is required.
func toArtist(a services.Artist, at time.Time) (models.Artist, error) {
	if a.ID == nil {
		return models.Artist{}, shared.Missing("artist.id")
	}
	if a.Name == nil {
		return models.Artist{}, shared.Missing("artists[%s].name", *a.ID)
	}

	out := models.Artist{
		ID:         *a.ID,
		Name:       *a.Name,
		Genre:      joinGenres(a.Genres),
		Popularity: a.Popularity,
		ImageURL:   selectImage(a.Images),
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	if a.Followers != nil {
		out.Followers = a.Followers.Total
	}
	if a.ExternalURLs != nil {
		out.SpotifyURL = a.ExternalURLs.Spotify
	}
	return out, nil
}

// joinGenres returns the comma-joined genres truncated to [MaxGenreLength] runes,
// or nil when there are none.
func joinGenres(genres []string) *string {
	if len(genres) == 0 {
		return nil
	}
	s := strings.Join(genres, ", ")
	if utf8.RuneCountInString(s) > MaxGenreLength {
		s = string([]rune(s)[:MaxGenreLength])
	}
	return &s
}

// selectImage prefers a medium image, then the first image.
func selectImage(images []services.Image) *string {
	for _, img := range images {
		if img.Height != nil && slices.Contains(preferredImageHeights, *img.Height) && img.URL != "" {
			url := img.URL
			return &url
		}
	}
	if len(images) > 0 && images[0].URL != "" {
		url := images[0].URL
		return &url
	}
	return nil
}

func topTrackRows(groups []WindowedTracks, window string, at time.Time) ([]models.TopTrackSnapshot, error) {
	var rows []models.TopTrackSnapshot
	for g, group := range groups {
		label := windowLabel(group.Window, window)
		for i, tr := range group.Items {
			path := fmt.Sprintf("top_tracks[%d].items[%d]", g, i)
			row, err := topTrackRow(path, tr)
			if err != nil {
				return nil, err
			}
			row.ExtractedAt = at
			row.TimeRange = label
			row.Rank = i + 1
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func topTrackRow(path string, tr services.Track) (models.TopTrackSnapshot, error) {
	var row models.TopTrackSnapshot
	switch {
	case tr.ID == nil:
		return row, shared.Missing("%s.id", path)
	case tr.Name == nil:
		return row, shared.Missing("%s.name", path)
	case len(tr.Artists) == 0 || tr.Artists[0].ID == nil:
		return row, shared.Missing("%s.artists[0].id", path)
	case tr.Album == nil || tr.Album.ID == nil:
		return row, shared.Missing("%s.album.id", path)
	case tr.Album.Name == nil:
		return row, shared.Missing("%s.album.name", path)
	case tr.Popularity == nil:
		return row, shared.Missing("%s.popularity", path)
	case tr.DurationMS == nil:
		return row, shared.Missing("%s.duration_ms", path)
	case tr.Explicit == nil:
		return row, shared.Missing("%s.explicit", path)
	}

	return models.TopTrackSnapshot{
		TrackID:    *tr.ID,
		Name:       *tr.Name,
		ArtistID:   *tr.Artists[0].ID,
		AlbumName:  *tr.Album.Name,
		AlbumID:    *tr.Album.ID,
		Popularity: *tr.Popularity,
		DurationMS: *tr.DurationMS,
		Explicit:   *tr.Explicit,
	}, nil
}

func topArtistRows(groups []WindowedArtists, window string, at time.Time) ([]models.TopArtistSnapshot, error) {
	var rows []models.TopArtistSnapshot
	for g, group := range groups {
		label := windowLabel(group.Window, window)
		for i, a := range group.Items {
			if a.ID == nil {
				return nil, shared.Missing("top_artists[%d].items[%d].id", g, i)
			}
			rows = append(rows, models.TopArtistSnapshot{
				ArtistID:    *a.ID,
				ExtractedAt: at,
				TimeRange:   label,
				Rank:        i + 1,
			})
		}
	}
	return rows, nil
}

func historyRows(items []services.PlayHistory, at time.Time) ([]models.ListeningHistoryEvent, error) {
	rows := make([]models.ListeningHistoryEvent, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("recently_played[%d]", i)
		tr := item.Track
		switch {
		case tr == nil:
			return nil, shared.Missing("%s.track", path)
		case tr.ID == nil:
			return nil, shared.Missing("%s.track.id", path)
		case tr.Name == nil:
			return nil, shared.Missing("%s.track.name", path)
		case len(tr.Artists) == 0 || tr.Artists[0].ID == nil:
			return nil, shared.Missing("%s.track.artists[0].id", path)
		case tr.Artists[0].Name == nil:
			return nil, shared.Missing("%s.track.artists[0].name", path)
		case item.PlayedAt == nil:
			return nil, shared.Missing("%s.played_at", path)
		}

		playedAt, err := ParsePlayedAt(*item.PlayedAt)
		if err != nil {
			return nil, &shared.MalformedDataError{Path: path + ".played_at", Reason: err.Error()}
		}

		ev := models.ListeningHistoryEvent{
			TrackID:     *tr.ID,
			TrackName:   *tr.Name,
			ArtistID:    *tr.Artists[0].ID,
			ArtistName:  *tr.Artists[0].Name,
			PlayedAt:    playedAt,
			ExtractedAt: at,
		}
		if item.Context != nil {
			ev.Context = item.Context.Type
		}
		rows = append(rows, ev)
	}
	return rows, nil
}

// ParsePlayedAt parses an ISO-8601 play timestamp. A trailing Z is read as +00:00.
// The result is in UTC.
func ParsePlayedAt(s string) (time.Time, error) {
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func windowLabel(own, fallback string) string {
	if own != "" {
		return own
	}
	return fallback
}
