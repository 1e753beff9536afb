package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
)

const artistColumns = `id, name, genre, popularity, followers, spotify_url, image_url, created_at, updated_at`

// ArtistRepository reads the artists table.
type ArtistRepository struct {
	db *shared.DB
}

// NewArtistRepository creates a new artist repository
func NewArtistRepository(db *shared.DB) *ArtistRepository {
	return &ArtistRepository{db: db}
}

// Get retrieves an artist by Spotify id.
func (r *ArtistRepository) Get(ctx context.Context, id string) (*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists WHERE id = ?`

	artist, err := scanArtist(r.db.QueryRowContext(ctx, r.db.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrArtistNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artist: %w", err)
	}
	return artist, nil
}

// FindByName retrieves the first artist whose name matches case-insensitively.
func (r *ArtistRepository) FindByName(ctx context.Context, name string) (*models.Artist, error) {
	query := `
		SELECT ` + artistColumns + `
		FROM artists
		WHERE LOWER(name) = LOWER(?)
		ORDER BY updated_at DESC
		LIMIT 1
	`

	artist, err := scanArtist(r.db.QueryRowContext(ctx, r.db.Rebind(query), name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", shared.ErrArtistNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find artist: %w", err)
	}
	return artist, nil
}

// List returns artists ordered by name. A limit of zero or less returns all rows.
func (r *ArtistRepository) List(ctx context.Context, limit, offset int) ([]*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists ORDER BY name ASC, id ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, max(offset, 0))
	}

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	return collect(rows, scanArtist)
}

// Count returns the number of stored artists.
func (r *ArtistRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM artists").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count artists: %w", err)
	}
	return n, nil
}

// scanArtist scans one artist row. Nullable columns scan into the model's pointer fields.
func scanArtist(row scanner) (*models.Artist, error) {
	var a models.Artist
	err := row.Scan(
		&a.ID, &a.Name, &a.Genre, &a.Popularity, &a.Followers,
		&a.SpotifyURL, &a.ImageURL, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
