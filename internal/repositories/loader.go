package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
)

const upsertArtistQuery = `
	INSERT INTO artists (id, name, genre, popularity, followers, spotify_url, image_url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		genre = COALESCE(excluded.genre, artists.genre),
		popularity = COALESCE(excluded.popularity, artists.popularity),
		followers = COALESCE(excluded.followers, artists.followers),
		spotify_url = COALESCE(excluded.spotify_url, artists.spotify_url),
		image_url = COALESCE(excluded.image_url, artists.image_url),
		updated_at = excluded.updated_at
`

const insertTopTrackQuery = `
	INSERT INTO top_tracks (track_id, name, artist_id, album_name, album_id, popularity, duration_ms, explicit, extracted_at, time_range, rank)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertTopArtistQuery = `
	INSERT INTO top_artists (artist_id, extracted_at, time_range, rank)
	VALUES (?, ?, ?, ?)
`

const insertHistoryQuery = `
	INSERT INTO listening_history (track_id, track_name, artist_id, artist_name, played_at, context, extracted_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

// Loader persists transformed batches.
//
// Each group (artists, top tracks, top artists, history) commits in its own
// transaction, in [models.Groups] order, over a single connection. A failure
// rolls back only the failing group; earlier groups stay committed.
type Loader struct {
	db     *shared.DB
	logger *log.Logger
	now    func() time.Time
}

// NewLoader creates a new loader.
func NewLoader(db *shared.DB, logger *log.Logger) *Loader {
	if logger == nil {
		logger = shared.NopLogger()
	}
	return &Loader{db: db, logger: logger, now: time.Now}
}

type loadGroup struct {
	name  string
	count int
	write func(ctx context.Context, tx *sql.Tx) error
}

// Load writes batch and returns the per-group counts committed.
//
// On failure the result holds the groups that did commit and the error is a
// [*shared.LoadError] naming the group that was rolled back.
func (l *Loader) Load(ctx context.Context, batch *models.TransformedBatch) (*models.LoadResult, error) {
	if batch == nil {
		return nil, fmt.Errorf("%w: nil batch", shared.ErrInvalidInput)
	}

	result := &models.LoadResult{}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return result, &shared.LoadError{Group: models.GroupArtists, Err: fmt.Errorf("failed to acquire connection: %w", err)}
	}
	defer conn.Close()

	now := utc(l.now())
	groups := []loadGroup{
		{models.GroupArtists, len(batch.Artists), func(ctx context.Context, tx *sql.Tx) error {
			return l.upsertArtists(ctx, tx, batch.Artists, now)
		}},
		{models.GroupTopTracks, len(batch.TopTracks), func(ctx context.Context, tx *sql.Tx) error {
			return l.insertTopTracks(ctx, tx, batch.TopTracks)
		}},
		{models.GroupTopArtists, len(batch.TopArtists), func(ctx context.Context, tx *sql.Tx) error {
			return l.insertTopArtists(ctx, tx, batch.TopArtists)
		}},
		{models.GroupListeningHistory, len(batch.ListeningHistory), func(ctx context.Context, tx *sql.Tx) error {
			return l.insertHistory(ctx, tx, batch.ListeningHistory)
		}},
	}

	for _, g := range groups {
		if err := inTx(ctx, conn, g.write); err != nil {
			l.logger.Error("load group rolled back", "group", g.name, "rows", g.count, "error", err)
			return result, &shared.LoadError{Group: g.name, Err: err}
		}
		result.Add(g.name, g.count)
		l.logger.Debug("load group committed", "group", g.name, "rows", g.count)
	}

	l.logger.Info("batch loaded",
		"artists", result.Artists,
		"top_tracks", result.TopTracks,
		"top_artists", result.TopArtists,
		"listening_history", result.ListeningHistory,
	)
	return result, nil
}

// LoadArtists upserts artists in a single transaction.
func (l *Loader) LoadArtists(ctx context.Context, artists []models.Artist) (int, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return 0, &shared.LoadError{Group: models.GroupArtists, Err: fmt.Errorf("failed to acquire connection: %w", err)}
	}
	defer conn.Close()

	now := utc(l.now())
	err = inTx(ctx, conn, func(ctx context.Context, tx *sql.Tx) error {
		return l.upsertArtists(ctx, tx, artists, now)
	})
	if err != nil {
		return 0, &shared.LoadError{Group: models.GroupArtists, Err: err}
	}
	return len(artists), nil
}

func inTx(ctx context.Context, conn *sql.Conn, fn func(context.Context, *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (l *Loader) prepare(ctx context.Context, ex execer, query string) (*sql.Stmt, error) {
	stmt, err := ex.PrepareContext(ctx, l.db.Rebind(query))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	return stmt, nil
}

func (l *Loader) upsertArtists(ctx context.Context, tx *sql.Tx, artists []models.Artist, now time.Time) error {
	if len(artists) == 0 {
		return nil
	}

	stmt, err := l.prepare(ctx, tx, upsertArtistQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range artists {
		if err := a.Validate(); err != nil {
			return err
		}

		createdAt := now
		if !a.CreatedAt.IsZero() {
			createdAt = utc(a.CreatedAt)
		}

		_, err := stmt.ExecContext(ctx,
			a.ID, a.Name, a.Genre, a.Popularity, a.Followers, a.SpotifyURL, a.ImageURL, createdAt, now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert artist %s: %w", a.ID, err)
		}
	}
	return nil
}

func (l *Loader) insertTopTracks(ctx context.Context, tx *sql.Tx, rows []models.TopTrackSnapshot) error {
	if len(rows) == 0 {
		return nil
	}

	stmt, err := l.prepare(ctx, tx, insertTopTrackQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range rows {
		_, err := stmt.ExecContext(ctx,
			t.TrackID, t.Name, t.ArtistID, t.AlbumName, t.AlbumID, t.Popularity, t.DurationMS,
			t.Explicit, utc(t.ExtractedAt), t.TimeRange, t.Rank,
		)
		if err != nil {
			return fmt.Errorf("failed to insert top track %s: %w", t.TrackID, err)
		}
	}
	return nil
}

func (l *Loader) insertTopArtists(ctx context.Context, tx *sql.Tx, rows []models.TopArtistSnapshot) error {
	if len(rows) == 0 {
		return nil
	}

	stmt, err := l.prepare(ctx, tx, insertTopArtistQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range rows {
		if _, err := stmt.ExecContext(ctx, t.ArtistID, utc(t.ExtractedAt), t.TimeRange, t.Rank); err != nil {
			return fmt.Errorf("failed to insert top artist %s: %w", t.ArtistID, err)
		}
	}
	return nil
}

func (l *Loader) insertHistory(ctx context.Context, tx *sql.Tx, rows []models.ListeningHistoryEvent) error {
	if len(rows) == 0 {
		return nil
	}

	stmt, err := l.prepare(ctx, tx, insertHistoryQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range rows {
		_, err := stmt.ExecContext(ctx,
			e.TrackID, e.TrackName, e.ArtistID, e.ArtistName, utc(e.PlayedAt), e.Context, utc(e.ExtractedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert play of %s: %w", e.TrackID, err)
		}
	}
	return nil
}
