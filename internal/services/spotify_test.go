package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/spotstats/internal/shared"
)

// fakeTokens hands out "token-N" where N counts refreshes.
type fakeTokens struct {
	current    string
	refreshes  atomic.Int32
	tokenErr   error
	refreshErr error
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return f.current, nil
}

func (f *fakeTokens) Refresh(context.Context) (string, error) {
	f.refreshes.Add(1)
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.current = "refreshed"
	return f.current, nil
}

func newTestClient(t *testing.T, tokens TokenProvider, h http.HandlerFunc) *SpotifyClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewSpotifyClient(tokens, WithBaseURL(srv.URL), WithRateLimit(0))
}

func TestAuthenticatedGet(t *testing.T) {
	ctx := context.Background()

	t.Run("Sends Bearer Token And Params", func(t *testing.T) {
		tokens := &fakeTokens{current: "abc"}
		c := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer abc" {
				t.Errorf("expected bearer header, got %q", got)
			}
			if r.URL.Path != "/me/top/tracks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.URL.Query().Get("time_range") != "short_term" || r.URL.Query().Get("limit") != "50" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"items":[]}`))
		})

		body, err := c.AuthenticatedGet(ctx, "/me/top/tracks", map[string]string{"time_range": "short_term", "limit": "50"})
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if string(body) != `{"items":[]}` {
			t.Errorf("unexpected body %s", body)
		}
	})

	t.Run("Non 2xx Is HTTPError", func(t *testing.T) {
		c := newTestClient(t, &fakeTokens{current: "abc"}, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"slow down"}`))
		})

		_, err := c.AuthenticatedGet(ctx, "/me", nil)
		var he *shared.HTTPError
		if !errors.As(err, &he) {
			t.Fatalf("expected HTTPError, got %v", err)
		}
		if he.StatusCode != http.StatusTooManyRequests || !strings.Contains(he.Body, "slow down") || he.Endpoint != "/me" {
			t.Errorf("unexpected error details: %+v", he)
		}
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Error("HTTPError should match ErrAPIRequest")
		}
	})

	t.Run("401 Refreshes Once And Replays", func(t *testing.T) {
		tokens := &fakeTokens{current: "stale"}
		var calls atomic.Int32
		c := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			if r.Header.Get("Authorization") != "Bearer refreshed" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"id":"user"}`))
		})

		p, err := c.Profile(ctx)
		if err != nil {
			t.Fatalf("expected success after refresh, got %v", err)
		}
		if p.ID == nil || *p.ID != "user" {
			t.Errorf("unexpected profile %+v", p)
		}
		if tokens.refreshes.Load() != 1 || calls.Load() != 2 {
			t.Errorf("expected 1 refresh and 2 calls, got %d and %d", tokens.refreshes.Load(), calls.Load())
		}
	})

	t.Run("Second 401 Is Not Retried", func(t *testing.T) {
		tokens := &fakeTokens{current: "stale"}
		var calls atomic.Int32
		c := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := c.AuthenticatedGet(ctx, "/me", nil)
		if !shared.IsUnauthorized(err) {
			t.Fatalf("expected 401 HTTPError, got %v", err)
		}
		if tokens.refreshes.Load() != 1 || calls.Load() != 2 {
			t.Errorf("expected 1 refresh and 2 calls, got %d and %d", tokens.refreshes.Load(), calls.Load())
		}
	})

	t.Run("Refresh Error Surfaces As-Is", func(t *testing.T) {
		refreshErr := errors.New("invalid_grant")
		tokens := &fakeTokens{current: "stale", refreshErr: refreshErr}
		c := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		if _, err := c.AuthenticatedGet(ctx, "/me", nil); err != refreshErr {
			t.Fatalf("expected refresh error unchanged, got %v", err)
		}
	})

	t.Run("Auth Error Stops Before Request", func(t *testing.T) {
		var calls atomic.Int32
		tokens := &fakeTokens{tokenErr: &shared.AuthError{Reason: "no token"}}
		c := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

		if _, err := c.AuthenticatedGet(ctx, "/me", nil); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
		if calls.Load() != 0 {
			t.Errorf("expected no requests, got %d", calls.Load())
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		c := newTestClient(t, &fakeTokens{current: "abc"}, func(w http.ResponseWriter, r *http.Request) {})
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		if _, err := c.AuthenticatedGet(cctx, "/me", nil); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestTypedEndpoints(t *testing.T) {
	ctx := context.Background()

	routes := map[string]string{
		"/me/top/tracks": `{"items":[{"id":"t1","name":"Song","artists":[{"id":"a1","name":"X"}],
			"album":{"id":"al1","name":"Album"},"popularity":70,"duration_ms":200000,"explicit":false}]}`,
		"/me/top/artists":            `{"items":[{"id":"a1","name":"X","genres":["indie"],"popularity":99,"followers":{"total":10}}]}`,
		"/me/player/recently-played": `{"items":[{"track":{"id":"t1","name":"Song","artists":[{"id":"a1","name":"X"}]},"played_at":"2024-01-01T10:00:00Z","context":{"type":"playlist"}}]}`,
		"/me/tracks":                 `{"items":[{"added_at":"2024-01-01T00:00:00Z","track":{"id":"t2","name":"Other"}}]}`,
		"/search":                    `{"artists":{"items":[{"id":"a9","name":"Found"}]}}`,
	}
	c := newTestClient(t, &fakeTokens{current: "abc"}, func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Path == "/search" && (r.URL.Query().Get("type") != "artist" || r.URL.Query().Get("q") != "Found It") {
			t.Errorf("unexpected search query %s", r.URL.RawQuery)
		}
		w.Write([]byte(body))
	})

	t.Run("TopTracks", func(t *testing.T) {
		page, err := c.TopTracks(ctx, shared.WindowShort, 50)
		if err != nil {
			t.Fatalf("TopTracks failed: %v", err)
		}
		tr := page.Items[0]
		if *tr.ID != "t1" || *tr.Album.Name != "Album" || *tr.DurationMS != 200000 || *tr.Explicit {
			t.Errorf("unexpected track %+v", tr)
		}
		if tr.Artists[0].Popularity != nil {
			t.Error("simplified artist should have no popularity")
		}
	})

	t.Run("TopArtists", func(t *testing.T) {
		page, err := c.TopArtists(ctx, shared.WindowLong, 50)
		if err != nil {
			t.Fatalf("TopArtists failed: %v", err)
		}
		a := page.Items[0]
		if *a.Popularity != 99 || *a.Followers.Total != 10 || a.Genres[0] != "indie" {
			t.Errorf("unexpected artist %+v", a)
		}
	})

	t.Run("RecentlyPlayed", func(t *testing.T) {
		page, err := c.RecentlyPlayed(ctx, 50)
		if err != nil {
			t.Fatalf("RecentlyPlayed failed: %v", err)
		}
		if *page.Items[0].PlayedAt != "2024-01-01T10:00:00Z" || *page.Items[0].Context.Type != "playlist" {
			t.Errorf("unexpected play %+v", page.Items[0])
		}
	})

	t.Run("SavedTracks", func(t *testing.T) {
		page, err := c.SavedTracks(ctx, 50)
		if err != nil {
			t.Fatalf("SavedTracks failed: %v", err)
		}
		if *page.Items[0].Track.ID != "t2" {
			t.Errorf("unexpected saved track %+v", page.Items[0])
		}
	})

	t.Run("SearchArtist", func(t *testing.T) {
		page, err := c.SearchArtist(ctx, "Found It", 5)
		if err != nil {
			t.Fatalf("SearchArtist failed: %v", err)
		}
		if len(page.Items) != 1 || page.Items[0].String() != "Found" {
			t.Errorf("unexpected search result %+v", page.Items)
		}
	})
}

func TestMissingItems(t *testing.T) {
	c := newTestClient(t, &fakeTokens{current: "abc"}, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"href":"x"}`))
	})

	_, err := c.TopArtists(context.Background(), shared.WindowShort, 10)
	var me *shared.MalformedDataError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedDataError, got %v", err)
	}
	if me.Path != "/me/top/artists.items" {
		t.Errorf("unexpected path %s", me.Path)
	}

	if _, err := c.SearchArtist(context.Background(), "x", 1); !errors.Is(err, shared.ErrMalformedData) {
		t.Errorf("expected ErrMalformedData for search, got %v", err)
	}
}
