package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/spotstats/internal/shared"
)

// DefaultBaseURL is the Spotify Web API root.
const DefaultBaseURL = "https://api.spotify.com/v1"

// TokenProvider supplies bearer tokens to the client.
type TokenProvider interface {
	// Token returns a usable access token, refreshing an expired one first.
	Token(ctx context.Context) (string, error)
	// Refresh forces a refresh and returns the new access token.
	Refresh(ctx context.Context) (string, error)
}

// API is the subset of the Spotify Web API the pipeline reads.
type API interface {
	Profile(ctx context.Context) (*Profile, error)
	TopTracks(ctx context.Context, window string, limit int) (*Page[Track], error)
	TopArtists(ctx context.Context, window string, limit int) (*Page[Artist], error)
	RecentlyPlayed(ctx context.Context, limit int) (*Page[PlayHistory], error)
	SavedTracks(ctx context.Context, limit int) (*Page[SavedTrack], error)
	SearchArtist(ctx context.Context, name string, limit int) (*Page[Artist], error)
}

// SpotifyClient is an authenticated, rate-limited Spotify Web API client.
type SpotifyClient struct {
	http    *resty.Client
	tokens  TokenProvider
	limiter *rate.Limiter
	logger  *log.Logger
}

// ClientOption configures a [SpotifyClient].
type ClientOption func(*SpotifyClient)

// WithBaseURL points the client at a different API root.
func WithBaseURL(url string) ClientOption {
	return func(c *SpotifyClient) { c.http.SetBaseURL(url) }
}

// WithRateLimit caps requests per second. Zero or less disables limiting.
func WithRateLimit(rps float64) ClientOption {
	return func(c *SpotifyClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithHTTPClient sets the underlying [http.Client].
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *SpotifyClient) {
		base := c.http.BaseURL
		c.http = resty.NewWithClient(hc).SetBaseURL(base).SetHeader("Accept", "application/json")
	}
}

// WithClientLogger sets the client's logger.
func WithClientLogger(l *log.Logger) ClientOption {
	return func(c *SpotifyClient) { c.logger = l }
}

// NewSpotifyClient creates a client that authenticates with tokens.
func NewSpotifyClient(tokens TokenProvider, opts ...ClientOption) *SpotifyClient {
	c := &SpotifyClient{
		http: resty.New().
			SetBaseURL(DefaultBaseURL).
			SetTimeout(30*time.Second).
			SetHeader("Accept", "application/json"),
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = shared.NopLogger()
	}
	return c
}

// AuthenticatedGet performs GET endpoint with params and returns the raw JSON body.
//
// A 401 triggers one forced token refresh and one replay of the request.
// Any other non-2xx status, or a second 401, is returned as [*shared.HTTPError].
func (c *SpotifyClient) AuthenticatedGet(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, token, endpoint, params)
	if !shared.IsUnauthorized(err) {
		return body, err
	}

	c.logger.Warn("access token rejected, refreshing", "endpoint", endpoint)
	if token, err = c.tokens.Refresh(ctx); err != nil {
		return nil, err
	}
	return c.get(ctx, token, endpoint, params)
}

func (c *SpotifyClient) get(ctx context.Context, token, endpoint string, params map[string]string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(params).
		Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", shared.ErrAPIRequest, endpoint, err)
	}

	c.logger.Debug("spotify request", "endpoint", endpoint, "status", resp.StatusCode(), "elapsed", time.Since(start))

	if !resp.IsSuccess() {
		return nil, &shared.HTTPError{Endpoint: endpoint, StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	return json.RawMessage(resp.Body()), nil
}

// Profile fetches GET /me.
func (c *SpotifyClient) Profile(ctx context.Context) (*Profile, error) {
	body, err := c.AuthenticatedGet(ctx, "/me", nil)
	if err != nil {
		return nil, err
	}

	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &shared.MalformedDataError{Path: "/me", Reason: err.Error()}
	}
	return &p, nil
}

// TopTracks fetches the user's top tracks for a time window.
func (c *SpotifyClient) TopTracks(ctx context.Context, window string, limit int) (*Page[Track], error) {
	const endpoint = "/me/top/tracks"
	body, err := c.AuthenticatedGet(ctx, endpoint, map[string]string{
		"time_range": window,
		"limit":      strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}
	return decodePage[Track](endpoint, body)
}

// TopArtists fetches the user's top artists for a time window.
func (c *SpotifyClient) TopArtists(ctx context.Context, window string, limit int) (*Page[Artist], error) {
	const endpoint = "/me/top/artists"
	body, err := c.AuthenticatedGet(ctx, endpoint, map[string]string{
		"time_range": window,
		"limit":      strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}
	return decodePage[Artist](endpoint, body)
}

// RecentlyPlayed fetches the most recent plays.
func (c *SpotifyClient) RecentlyPlayed(ctx context.Context, limit int) (*Page[PlayHistory], error) {
	const endpoint = "/me/player/recently-played"
	body, err := c.AuthenticatedGet(ctx, endpoint, map[string]string{"limit": strconv.Itoa(limit)})
	if err != nil {
		return nil, err
	}
	return decodePage[PlayHistory](endpoint, body)
}

// SavedTracks fetches the first page of the user's library.
func (c *SpotifyClient) SavedTracks(ctx context.Context, limit int) (*Page[SavedTrack], error) {
	const endpoint = "/me/tracks"
	body, err := c.AuthenticatedGet(ctx, endpoint, map[string]string{"limit": strconv.Itoa(limit)})
	if err != nil {
		return nil, err
	}
	return decodePage[SavedTrack](endpoint, body)
}

// SearchArtist searches artists by name.
func (c *SpotifyClient) SearchArtist(ctx context.Context, name string, limit int) (*Page[Artist], error) {
	body, err := c.AuthenticatedGet(ctx, "/search", map[string]string{
		"q":     name,
		"type":  "artist",
		"limit": strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}
	return decodeArtistSearch(body)
}
