package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/services"
)

func ptr[T any](v T) *T { return &v }

func simpleArtist(id, name string) services.Artist {
	return services.Artist{ID: ptr(id), Name: ptr(name)}
}

func track(id, name string, artists ...services.Artist) services.Track {
	return services.Track{
		ID:         ptr(id),
		Name:       ptr(name),
		Artists:    artists,
		Album:      &services.Album{ID: ptr("album-" + id), Name: ptr("Album " + name)},
		Popularity: ptr(50),
		DurationMS: ptr(180000),
		Explicit:   ptr(false),
	}
}

// fakeAPI serves canned pages and records the calls it received.
type fakeAPI struct {
	profile        *services.Profile
	topTracks      map[string][]services.Track
	topArtists     map[string][]services.Artist
	recentlyPlayed []services.PlayHistory
	saved          []services.SavedTrack
	search         []services.Artist

	failOn string
	calls  []string
}

func (f *fakeAPI) record(call string) error {
	f.calls = append(f.calls, call)
	if call == f.failOn {
		return fmt.Errorf("boom: %s", call)
	}
	return nil
}

func (f *fakeAPI) Profile(context.Context) (*services.Profile, error) {
	if err := f.record("profile"); err != nil {
		return nil, err
	}
	return f.profile, nil
}

func (f *fakeAPI) TopTracks(_ context.Context, window string, limit int) (*services.Page[services.Track], error) {
	if err := f.record("top_tracks:" + window); err != nil {
		return nil, err
	}
	items := f.topTracks[window]
	if items == nil {
		items = []services.Track{}
	}
	return &services.Page[services.Track]{Items: items}, nil
}

func (f *fakeAPI) TopArtists(_ context.Context, window string, limit int) (*services.Page[services.Artist], error) {
	if err := f.record("top_artists:" + window); err != nil {
		return nil, err
	}
	items := f.topArtists[window]
	if items == nil {
		items = []services.Artist{}
	}
	return &services.Page[services.Artist]{Items: items}, nil
}

func (f *fakeAPI) RecentlyPlayed(context.Context, int) (*services.Page[services.PlayHistory], error) {
	if err := f.record("recently_played"); err != nil {
		return nil, err
	}
	return &services.Page[services.PlayHistory]{Items: append([]services.PlayHistory{}, f.recentlyPlayed...)}, nil
}

func (f *fakeAPI) SavedTracks(context.Context, int) (*services.Page[services.SavedTrack], error) {
	if err := f.record("saved_tracks"); err != nil {
		return nil, err
	}
	return &services.Page[services.SavedTrack]{Items: append([]services.SavedTrack{}, f.saved...)}, nil
}

func (f *fakeAPI) SearchArtist(_ context.Context, name string, limit int) (*services.Page[services.Artist], error) {
	if err := f.record("search:" + name); err != nil {
		return nil, err
	}
	return &services.Page[services.Artist]{Items: append([]services.Artist{}, f.search...)}, nil
}

type fakeLoader struct {
	batches []*models.TransformedBatch
	result  *models.LoadResult
	err     error
}

func (f *fakeLoader) Load(_ context.Context, b *models.TransformedBatch) (*models.LoadResult, error) {
	f.batches = append(f.batches, b)
	return f.result, f.err
}

type fakeRecorder struct {
	started  []models.Run
	finished []models.Run
}

func (f *fakeRecorder) Start(_ context.Context, r *models.Run) error {
	f.started = append(f.started, *r)
	return nil
}

func (f *fakeRecorder) Finish(_ context.Context, r *models.Run) error {
	f.finished = append(f.finished, *r)
	return nil
}
