package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/services"
	"github.com/desertthunder/spotstats/internal/shared"
)

// ArtistResolver looks an artist up by name.
type ArtistResolver struct {
	api    services.API
	limit  int
	logger *log.Logger
	now    func() time.Time
}

// NewArtistResolver creates a resolver that inspects up to limit search results.
func NewArtistResolver(api services.API, limit int, logger *log.Logger) *ArtistResolver {
	if logger == nil {
		logger = shared.NopLogger()
	}
	if limit <= 0 {
		limit = 5
	}
	return &ArtistResolver{api: api, limit: limit, logger: logger, now: time.Now}
}

// Resolve searches for name and returns the result whose normalized name matches.
//
// When nothing matches, a placeholder artist with a generated id and only the
// name is returned and found is false. Search failures are returned as errors.
func (r *ArtistResolver) Resolve(ctx context.Context, name string) (artist models.Artist, found bool, err error) {
	at := r.now().UTC().Truncate(time.Second)

	page, err := r.api.SearchArtist(ctx, name, r.limit)
	if err != nil {
		return models.Artist{}, false, err
	}

	want := shared.NormalizeArtistName(name)
	for _, item := range page.Items {
		if item.Name == nil || item.ID == nil || shared.NormalizeArtistName(*item.Name) != want {
			continue
		}
		a, err := toArtist(item, at)
		if err != nil {
			return models.Artist{}, false, err
		}
		r.logger.Info("artist matched", "name", name, "id", a.ID)
		return a, true, nil
	}

	r.logger.Warn("artist not found, using placeholder", "name", name, "results", len(page.Items))
	return Placeholder(name, at), false, nil
}

// Placeholder builds an artist record for a name the API does not know.
func Placeholder(name string, at time.Time) models.Artist {
	return models.Artist{
		ID:        shared.GenerateID(),
		Name:      name,
		CreatedAt: at,
		UpdatedAt: at,
	}
}
