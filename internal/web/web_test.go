package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/repositories"
	"github.com/desertthunder/spotstats/internal/server"
	"github.com/desertthunder/spotstats/internal/shared"
	th "github.com/desertthunder/spotstats/internal/testing"
)

var (
	extractedAt = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	now         = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
)

func genre(s string) *string { return &s }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := th.MustOpenDB(t)

	batch := &models.TransformedBatch{
		Artists: []models.Artist{
			{ID: "ar1", Name: "Radiohead", Genre: genre("art rock")},
			{ID: "ar2", Name: "Björk", Genre: genre("art pop")},
		},
		TopTracks: []models.TopTrackSnapshot{
			{TrackID: "t1", Name: "Reckoner", ArtistID: "ar1", AlbumName: "In Rainbows", AlbumID: "al1",
				DurationMS: 290000, ExtractedAt: extractedAt, TimeRange: shared.WindowShort, Rank: 1},
		},
		TopArtists: []models.TopArtistSnapshot{
			{ArtistID: "ar2", ExtractedAt: extractedAt, TimeRange: shared.WindowShort, Rank: 1},
			{ArtistID: "ar1", ExtractedAt: extractedAt, TimeRange: shared.WindowShort, Rank: 2},
		},
		ListeningHistory: []models.ListeningHistoryEvent{
			{TrackID: "t1", TrackName: "Reckoner", ArtistID: "ar1", ArtistName: "Radiohead",
				PlayedAt: time.Date(2025, 3, 13, 8, 0, 0, 0, time.UTC), ExtractedAt: extractedAt},
			{TrackID: "t1", TrackName: "Reckoner", ArtistID: "ar1", ArtistName: "Radiohead",
				PlayedAt: time.Date(2025, 3, 13, 21, 0, 0, 0, time.UTC), ExtractedAt: extractedAt},
		},
		ExtractedAt: extractedAt,
	}
	if _, err := repositories.NewLoader(db, nil).Load(context.Background(), batch); err != nil {
		t.Fatalf("Failed to load fixture: %v", err)
	}

	h := New(repositories.NewStatsRepository(db), shared.WindowShort, nil)
	h.now = func() time.Time { return now }

	r := server.NewRouter(nil)
	server.Mount(r, h)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, ts *httptest.Server, path string, wantStatus int, v any) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: expected status %d, got %d", path, wantStatus, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("failed to decode %s: %v", path, err)
		}
	}
}

func TestHandler(t *testing.T) {
	ts := newTestServer(t)

	t.Run("Health", func(t *testing.T) {
		var body map[string]string
		get(t, ts, "/healthz", http.StatusOK, &body)
		if body["status"] != "ok" {
			t.Errorf("unexpected body: %v", body)
		}
	})

	t.Run("Summary", func(t *testing.T) {
		var s models.Summary
		get(t, ts, "/api/summary?days=7", http.StatusOK, &s)

		if s.TimeRange != shared.WindowShort || s.TotalArtists != 2 || s.TopTracks != 1 || s.Plays != 2 {
			t.Errorf("unexpected summary: %+v", s)
		}
		if s.LastExtracted == nil || !s.LastExtracted.Equal(extractedAt) {
			t.Errorf("expected last extraction %v, got %v", extractedAt, s.LastExtracted)
		}
	})

	t.Run("TopTracks", func(t *testing.T) {
		var body list[models.TopTrackRow]
		get(t, ts, "/api/top-tracks", http.StatusOK, &body)

		if body.Count != 1 || body.Items[0].ArtistName != "Radiohead" {
			t.Errorf("unexpected tracks: %+v", body)
		}
	})

	t.Run("TopArtists", func(t *testing.T) {
		var body list[models.TopArtistRow]
		get(t, ts, "/api/top-artists?limit=1", http.StatusOK, &body)

		if body.Count != 1 || body.Items[0].Artist.Name != "Björk" {
			t.Errorf("unexpected artists: %+v", body)
		}
	})

	t.Run("EmptyWindow", func(t *testing.T) {
		var body list[models.TopTrackRow]
		get(t, ts, "/api/top-tracks?time_range=long_term", http.StatusOK, &body)

		if body.Count != 0 || body.Items == nil {
			t.Errorf("expected empty item list, got %+v", body)
		}
	})

	t.Run("Genres", func(t *testing.T) {
		var body list[models.GenreCount]
		get(t, ts, "/api/genres", http.StatusOK, &body)

		if body.Count != 2 {
			t.Errorf("expected 2 genres, got %+v", body)
		}
	})

	t.Run("Timeline", func(t *testing.T) {
		var body list[models.DailyPlays]
		get(t, ts, "/api/timeline?from=2025-03-12&to=2025-03-15", http.StatusOK, &body)

		if body.Count != 3 {
			t.Fatalf("expected 3 days, got %+v", body)
		}
		if body.Items[1].Plays != 2 {
			t.Errorf("expected 2 plays on 03-13, got %d", body.Items[1].Plays)
		}
	})

	t.Run("History", func(t *testing.T) {
		var body list[models.ListeningHistoryEvent]
		get(t, ts, "/api/history?limit=1", http.StatusOK, &body)

		if body.Count != 1 || body.Items[0].PlayedAt.Hour() != 21 {
			t.Errorf("expected the latest play, got %+v", body)
		}
	})

	t.Run("BadParams", func(t *testing.T) {
		tests := []string{
			"/api/top-tracks?time_range=forever",
			"/api/top-tracks?limit=0",
			"/api/history?limit=abc",
			"/api/timeline?from=yesterday",
			"/api/timeline?from=2025-03-15&to=2025-03-12",
			"/api/summary?days=-1",
		}
		for _, path := range tests {
			var body errorBody
			get(t, ts, path, http.StatusBadRequest, &body)
			if body.Error == "" {
				t.Errorf("%s: expected error message", path)
			}
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/unknown")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})
}

type failingStats struct{ Stats }

func (failingStats) RecentPlays(context.Context, int) ([]models.ListeningHistoryEvent, error) {
	return nil, errors.New("database is locked")
}

func TestHandlerStoreError(t *testing.T) {
	h := New(failingStats{}, "", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
