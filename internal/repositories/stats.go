package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
)

// StatsRepository answers read-only dashboard queries.
//
// Snapshot queries read the most recent extraction of a window, found with
// a subquery on extracted_at so that no timestamp round-trips through Go.
type StatsRepository struct {
	db *shared.DB
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *shared.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// LatestExtraction returns when the window's top tracks were last extracted,
// or nil when no snapshot exists.
func (r *StatsRepository) LatestExtraction(ctx context.Context, window string) (*time.Time, error) {
	if err := checkWindow(window); err != nil {
		return nil, err
	}

	query := `
		SELECT extracted_at FROM top_tracks
		WHERE time_range = ?
		ORDER BY extracted_at DESC
		LIMIT 1
	`

	var at time.Time
	err := r.db.QueryRowContext(ctx, r.db.Rebind(query), window).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest extraction: %w", err)
	}
	at = at.UTC()
	return &at, nil
}

// TopTracks returns the latest top-track snapshot of window ordered by rank.
func (r *StatsRepository) TopTracks(ctx context.Context, window string, limit int) ([]models.TopTrackRow, error) {
	if err := checkWindow(window); err != nil {
		return nil, err
	}

	query := `
		SELECT t.rank, t.track_id, t.name, t.artist_id, COALESCE(a.name, ''), t.album_name,
			t.popularity, t.duration_ms, t.explicit, t.extracted_at
		FROM top_tracks t
		LEFT JOIN artists a ON a.id = t.artist_id
		WHERE t.time_range = ?
			AND t.extracted_at = (SELECT MAX(extracted_at) FROM top_tracks WHERE time_range = ?)
		ORDER BY t.rank ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), window, window, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query top tracks: %w", err)
	}
	return collect(rows, func(row scanner) (models.TopTrackRow, error) {
		var t models.TopTrackRow
		err := row.Scan(
			&t.Rank, &t.TrackID, &t.Name, &t.ArtistID, &t.ArtistName, &t.AlbumName,
			&t.Popularity, &t.DurationMS, &t.Explicit, &t.ExtractedAt,
		)
		t.ExtractedAt = t.ExtractedAt.UTC()
		return t, err
	})
}

// TopArtists returns the latest top-artist snapshot of window joined with artist details.
func (r *StatsRepository) TopArtists(ctx context.Context, window string, limit int) ([]models.TopArtistRow, error) {
	if err := checkWindow(window); err != nil {
		return nil, err
	}

	query := `
		SELECT s.rank, s.extracted_at,
			a.id, a.name, a.genre, a.popularity, a.followers, a.spotify_url, a.image_url, a.created_at, a.updated_at
		FROM top_artists s
		JOIN artists a ON a.id = s.artist_id
		WHERE s.time_range = ?
			AND s.extracted_at = (SELECT MAX(extracted_at) FROM top_artists WHERE time_range = ?)
		ORDER BY s.rank ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), window, window, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query top artists: %w", err)
	}
	return collect(rows, func(row scanner) (models.TopArtistRow, error) {
		var (
			t models.TopArtistRow
			a = &t.Artist
		)
		err := row.Scan(
			&t.Rank, &t.ExtractedAt,
			&a.ID, &a.Name, &a.Genre, &a.Popularity, &a.Followers, &a.SpotifyURL, &a.ImageURL,
			&a.CreatedAt, &a.UpdatedAt,
		)
		t.ExtractedAt = t.ExtractedAt.UTC()
		return t, err
	})
}

// GenreDistribution counts artists per genre string, most common first.
func (r *StatsRepository) GenreDistribution(ctx context.Context, limit int) ([]models.GenreCount, error) {
	query := `
		SELECT genre, COUNT(*) AS artists
		FROM artists
		WHERE genre IS NOT NULL AND genre <> ''
		GROUP BY genre
		ORDER BY artists DESC, genre ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query genres: %w", err)
	}
	return collect(rows, func(row scanner) (models.GenreCount, error) {
		var g models.GenreCount
		err := row.Scan(&g.Genre, &g.Artists)
		return g, err
	})
}

// PlayCount counts plays with from <= played_at < to.
func (r *StatsRepository) PlayCount(ctx context.Context, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM listening_history WHERE played_at >= ? AND played_at < ?`

	var n int
	if err := r.db.QueryRowContext(ctx, r.db.Rebind(query), utc(from), utc(to)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count plays: %w", err)
	}
	return n, nil
}

// ListeningTimeline returns plays per UTC day for from <= played_at < to.
//
// Days without plays are included with a zero count.
func (r *StatsRepository) ListeningTimeline(ctx context.Context, from, to time.Time) ([]models.DailyPlays, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: timeline range is empty", shared.ErrInvalidArgument)
	}

	query := `
		SELECT played_at FROM listening_history
		WHERE played_at >= ? AND played_at < ?
		ORDER BY played_at ASC
	`
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), utc(from), utc(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	played, err := collect(rows, func(row scanner) (time.Time, error) {
		var t time.Time
		err := row.Scan(&t)
		return t, err
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[time.Time]int, len(played))
	for _, t := range played {
		counts[day(t)]++
	}

	var out []models.DailyPlays
	last := day(to.Add(-time.Nanosecond))
	for d := day(from); !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, models.DailyPlays{Day: d, Plays: counts[d]})
	}
	return out, nil
}

// RecentPlays returns the latest plays, newest first.
func (r *StatsRepository) RecentPlays(ctx context.Context, limit int) ([]models.ListeningHistoryEvent, error) {
	query := `
		SELECT track_id, track_name, artist_id, artist_name, played_at, context, extracted_at
		FROM listening_history
		ORDER BY played_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	return collect(rows, func(row scanner) (models.ListeningHistoryEvent, error) {
		var e models.ListeningHistoryEvent
		err := row.Scan(&e.TrackID, &e.TrackName, &e.ArtistID, &e.ArtistName, &e.PlayedAt, &e.Context, &e.ExtractedAt)
		e.PlayedAt, e.ExtractedAt = e.PlayedAt.UTC(), e.ExtractedAt.UTC()
		return e, err
	})
}

// Summary gathers the dashboard headline for window and the play range [from, to).
func (r *StatsRepository) Summary(ctx context.Context, window string, from, to time.Time) (*models.Summary, error) {
	if err := checkWindow(window); err != nil {
		return nil, err
	}

	s := &models.Summary{TimeRange: window, From: utc(from), To: utc(to)}

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM artists").Scan(&s.TotalArtists); err != nil {
		return nil, fmt.Errorf("failed to count artists: %w", err)
	}

	query := `
		SELECT COUNT(*) FROM top_tracks
		WHERE time_range = ?
			AND extracted_at = (SELECT MAX(extracted_at) FROM top_tracks WHERE time_range = ?)
	`
	if err := r.db.QueryRowContext(ctx, r.db.Rebind(query), window, window).Scan(&s.TopTracks); err != nil {
		return nil, fmt.Errorf("failed to count top tracks: %w", err)
	}

	plays, err := r.PlayCount(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.Plays = plays

	genres, err := r.GenreDistribution(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(genres) > 0 {
		s.TopGenre = &genres[0].Genre
	}

	if s.LastExtracted, err = r.LatestExtraction(ctx, window); err != nil {
		return nil, err
	}
	return s, nil
}

// limitOrAll maps non-positive limits to "no limit" for LIMIT ? placeholders.
func limitOrAll(limit int) int {
	if limit <= 0 {
		return math.MaxInt32
	}
	return limit
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
