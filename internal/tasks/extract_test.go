package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotstats/internal/services"
	"github.com/desertthunder/spotstats/internal/shared"
)

func populatedAPI() *fakeAPI {
	x := simpleArtist("a1", "X")
	return &fakeAPI{
		profile: &services.Profile{ID: ptr("me")},
		topTracks: map[string][]services.Track{
			shared.WindowShort: {track("t1", "One", x), track("t2", "Two", x)},
			shared.WindowLong:  {track("t3", "Three", x)},
		},
		topArtists: map[string][]services.Artist{
			shared.WindowMedium: {x},
		},
		recentlyPlayed: []services.PlayHistory{{Track: ptr(track("t1", "One", x)), PlayedAt: ptr("2024-01-01T10:00:00Z")}},
		saved:          []services.SavedTrack{{Track: ptr(track("t4", "Four", x))}},
	}
}

func TestExtractAll(t *testing.T) {
	ctx := context.Background()

	t.Run("Calls In Order", func(t *testing.T) {
		api := populatedAPI()
		var updates []ProgressUpdate
		e := NewExtractor(api, DefaultExtractOptions(), nil).WithReporter(func(u ProgressUpdate) { updates = append(updates, u) })
		e.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 500, time.UTC) }

		raw, err := e.ExtractAll(ctx)
		if err != nil {
			t.Fatalf("ExtractAll failed: %v", err)
		}

		want := "profile,top_tracks:short_term,top_tracks:medium_term,top_tracks:long_term," +
			"top_artists:short_term,top_artists:medium_term,top_artists:long_term,recently_played,saved_tracks"
		if got := strings.Join(api.calls, ","); got != want {
			t.Errorf("unexpected call order:\n got %s\nwant %s", got, want)
		}

		if len(raw.TopTracks) != 3 || raw.TopTracks[0].Window != shared.WindowShort || raw.TopTracks[2].Window != shared.WindowLong {
			t.Errorf("top tracks should keep one group per window: %+v", raw.TopTracks)
		}
		if len(raw.FlatTopTracks()) != 3 || len(raw.FlatTopArtists()) != 1 {
			t.Errorf("unexpected flat sizes %d/%d", len(raw.FlatTopTracks()), len(raw.FlatTopArtists()))
		}
		if len(raw.RecentlyPlayed) != 1 || len(raw.SavedTracks) != 1 {
			t.Error("recently played and saved tracks should be captured")
		}
		if raw.ExtractedAt.Nanosecond() != 0 {
			t.Error("extraction time should be truncated to the second")
		}

		if len(updates) != 9 || updates[0].Phase != FetchProfile || updates[8].Phase != FetchSavedTracks || updates[8].Step != 9 {
			t.Errorf("unexpected progress updates: %+v", updates)
		}
	})

	t.Run("Fails Fast", func(t *testing.T) {
		api := populatedAPI()
		api.failOn = "top_artists:medium_term"

		raw, err := NewExtractor(api, DefaultExtractOptions(), nil).ExtractAll(ctx)
		if err == nil || raw != nil {
			t.Fatalf("expected error and no snapshot, got %v, %v", raw, err)
		}
		if last := api.calls[len(api.calls)-1]; last != "top_artists:medium_term" {
			t.Errorf("no calls should follow the failure, last was %s", last)
		}
	})

	t.Run("Errors Are Unchanged", func(t *testing.T) {
		httpErr := &shared.HTTPError{Endpoint: "/me", StatusCode: 500}
		e := NewExtractor(erroringAPI{err: httpErr}, DefaultExtractOptions(), nil)

		_, err := e.ExtractAll(ctx)
		if err != httpErr {
			t.Fatalf("expected the HTTPError itself, got %v", err)
		}
	})

	t.Run("Custom Windows", func(t *testing.T) {
		api := populatedAPI()
		opts := DefaultExtractOptions()
		opts.Windows = []string{shared.WindowLong}

		if _, err := NewExtractor(api, opts, nil).ExtractAll(ctx); err != nil {
			t.Fatalf("ExtractAll failed: %v", err)
		}
		if len(api.calls) != 5 {
			t.Errorf("expected 5 calls, got %v", api.calls)
		}
	})
}

type erroringAPI struct {
	services.API
	err error
}

func (e erroringAPI) Profile(context.Context) (*services.Profile, error) { return nil, e.err }

func TestExtractThenTransform(t *testing.T) {
	raw, err := NewExtractor(populatedAPI(), DefaultExtractOptions(), nil).ExtractAll(context.Background())
	if err != nil {
		t.Fatalf("ExtractAll failed: %v", err)
	}

	batch, err := NewTransformer(nil).Transform(raw, shared.WindowMedium)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	if len(batch.TopTracks) != 3 || len(batch.TopArtists) != 1 || len(batch.ListeningHistory) != 1 || len(batch.Artists) != 1 {
		t.Errorf("unexpected batch sizes: %v", batch.Counts())
	}
	if batch.TopTracks[2].TimeRange != shared.WindowLong || batch.TopTracks[2].Rank != 1 {
		t.Errorf("long-term track should be rank 1 of its window: %+v", batch.TopTracks[2])
	}
	if !batch.ExtractedAt.Equal(raw.ExtractedAt) {
		t.Error("batch should carry the extraction time")
	}
	if errors.Is(batch.Validate(), shared.ErrInvalidInput) {
		t.Error("batch should validate")
	}
}
