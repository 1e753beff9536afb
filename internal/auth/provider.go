package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/desertthunder/spotstats/internal/shared"
)

// ExpiryMargin is subtracted from the lifetime the server reports so a token
// is refreshed shortly before it actually lapses.
const ExpiryMargin = 5 * time.Minute

// Scopes requested during login.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopeUserReadRecentlyPlayed,
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
}

// Provider hands out access tokens, refreshing and persisting them as needed.
//
// It is safe for concurrent use, although the pipeline only calls it from one goroutine.
type Provider struct {
	config    *oauth2.Config
	store     TokenStore
	logger    *log.Logger
	now       func() time.Time
	onRefresh func(*TokenFile)

	mu     sync.Mutex
	token  *TokenFile
	loaded bool
}

// Option configures a [Provider].
type Option func(*Provider)

// WithClock replaces the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithLogger sets the provider's logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithEndpoint overrides the Spotify authorize/token endpoints.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(p *Provider) { p.config.Endpoint = ep }
}

// WithOnRefresh registers fn to be called after a new token has been saved.
func WithOnRefresh(fn func(*TokenFile)) Option {
	return func(p *Provider) { p.onRefresh = fn }
}

// NewProvider creates a provider for the given credentials backed by store.
//
// Token requests authenticate the client with HTTP Basic auth.
func NewProvider(creds shared.SpotifyConfig, store TokenStore, opts ...Option) *Provider {
	p := &Provider{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyauth.AuthURL,
				TokenURL:  spotifyauth.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = shared.NopLogger()
	}
	p.config.Endpoint.AuthStyle = oauth2.AuthStyleInHeader
	return p
}

// AuthCodeURL returns the consent page URL for the authorization code flow.
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token and saves it.
func (p *Provider) Exchange(ctx context.Context, code string) (*TokenFile, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchanging code: %w", shared.ErrAuthFailed, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.loaded = true
	return p.persist(tok, "")
}

// Token returns a usable access token, refreshing it first if it has expired.
//
// Returns [*shared.AuthError] when there is no valid access token and no refresh token.
func (p *Provider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.load(); err != nil {
		return "", err
	}
	if p.token.Valid(p.now()) {
		return p.token.AccessToken, nil
	}
	return p.refresh(ctx)
}

// Refresh exchanges the refresh token for a new access token regardless of the current expiry.
//
// Errors from the token endpoint are returned as-is.
func (p *Provider) Refresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.load(); err != nil {
		return "", err
	}
	return p.refresh(ctx)
}

// Current returns a copy of the stored token, or nil if none exists.
func (p *Provider) Current() (*TokenFile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.load(); err != nil {
		return nil, err
	}
	if p.token == nil {
		return nil, nil
	}
	tf := *p.token
	return &tf, nil
}

func (p *Provider) load() error {
	if p.loaded {
		return nil
	}

	tf, err := p.store.Load()
	if err != nil {
		return err
	}
	p.token = tf
	p.loaded = true

	if tf != nil {
		if p.config.ClientID == "" {
			p.config.ClientID = tf.ClientID
		}
		if p.config.ClientSecret == "" {
			p.config.ClientSecret = tf.ClientSecret
		}
		if p.config.RedirectURL == "" {
			p.config.RedirectURL = tf.RedirectURI
		}
	}
	return nil
}

func (p *Provider) refresh(ctx context.Context) (string, error) {
	if p.token == nil || p.token.RefreshToken == "" {
		return "", &shared.AuthError{Reason: "no valid access token and no refresh token, run `spotstats auth login`"}
	}

	p.logger.Debug("refreshing access token", "expired_at", p.token.TokenExpires.Format(time.RFC3339))

	src := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: p.token.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return "", err
	}

	tf, err := p.persist(tok, p.token.RefreshToken)
	if err != nil {
		return "", err
	}
	return tf.AccessToken, nil
}

// persist records tok as the current token and writes it to the store.
// previousRefresh is kept when the server does not rotate the refresh token.
func (p *Provider) persist(tok *oauth2.Token, previousRefresh string) (*TokenFile, error) {
	now := p.now()

	var expires time.Time
	switch {
	case tok.ExpiresIn > 0:
		expires = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	case !tok.Expiry.IsZero():
		expires = tok.Expiry
	default:
		expires = now.Add(time.Hour)
	}

	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}

	tf := &TokenFile{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		TokenExpires: Expiry{expires.Add(-ExpiryMargin).Truncate(time.Second)},
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		RedirectURI:  p.config.RedirectURL,
	}

	if err := p.store.Save(tf); err != nil {
		return nil, fmt.Errorf("persisting token: %w", err)
	}
	p.token = tf

	p.logger.Info("saved access token", "expires", tf.TokenExpires.Format(time.RFC3339))
	if p.onRefresh != nil {
		p.onRefresh(tf)
	}
	return tf, nil
}
