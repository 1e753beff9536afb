package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotstats/internal/server"
	"github.com/desertthunder/spotstats/internal/shared"
	"github.com/desertthunder/spotstats/internal/ui"
)

// AuthLogin runs the authorization code flow against a loopback callback server.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	provider, err := r.authProvider()
	if err != nil {
		return err
	}

	redirect, err := url.Parse(r.config.Credentials.Spotify.RedirectURI)
	if err != nil || redirect.Path == "" {
		return fmt.Errorf("%w: redirect_uri %q needs a path", shared.ErrInvalidConfig, r.config.Credentials.Spotify.RedirectURI)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return err
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = r.config.Server.CallbackTimeout.Duration
	}

	authURL := provider.AuthCodeURL(state)
	r.writePlainln(ui.Title("Spotify authorization"))
	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL to continue:\n%s\n", authURL)
	} else if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		r.writePlain("Open this URL to continue:\n%s\n", authURL)
	} else {
		r.writePlain("Opened your browser. Waiting up to %s for the callback...\n", timeout)
	}

	handler := server.NewOAuthHandler(provider, state, redirect.Path)
	token, err := server.AwaitCallback(ctx, r.config.Server.Addr(), handler, timeout, r.logger)
	if err != nil {
		return err
	}

	r.logger.Info("token saved", "path", r.config.Credentials.Spotify.TokenPath)
	return r.writePlainln(ui.Success("Authenticated. Token expires %s", token.TokenExpires.Time.Local().Format(time.DateTime)))
}

type authStatus struct {
	Authenticated   bool       `json:"authenticated"`
	TokenPath       string     `json:"token_path"`
	Expires         *time.Time `json:"expires,omitempty"`
	Expired         bool       `json:"expired"`
	HasRefreshToken bool       `json:"has_refresh_token"`
}

// AuthStatus reports what the token file holds without contacting Spotify.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	tf, err := r.tokenStore().Load()
	if err != nil {
		return err
	}

	status := authStatus{TokenPath: r.config.Credentials.Spotify.TokenPath}
	if tf != nil {
		exp := tf.TokenExpires.Time
		status.Expires = &exp
		status.Expired = !tf.Valid(time.Now())
		status.HasRefreshToken = tf.RefreshToken != ""
		status.Authenticated = !status.Expired || status.HasRefreshToken
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	switch {
	case tf == nil:
		r.writePlainln(ui.Failure("Not authenticated (no token at %s)", status.TokenPath))
		return r.writePlainln("Run `spotstats auth login` to authorize.")
	case !status.Expired:
		r.writePlainln(ui.Success("Authenticated, token valid until %s", status.Expires.Local().Format(time.DateTime)))
	case status.HasRefreshToken:
		r.writePlainln(ui.Warning("Access token expired at %s, it will be refreshed on next use", status.Expires.Local().Format(time.DateTime)))
	default:
		r.writePlainln(ui.Failure("Token expired and no refresh token is stored"))
		return r.writePlainln("Run `spotstats auth login` to authorize again.")
	}

	refresh := "no"
	if status.HasRefreshToken {
		refresh = "yes"
	}
	return r.writePlain("Refresh token: %s\nToken file: %s\n", refresh, status.TokenPath)
}

// AuthLogout deletes the token file.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.tokenStore().Delete(); err != nil {
		return err
	}
	return r.writePlainln(ui.Success("Removed %s", r.config.Credentials.Spotify.TokenPath))
}
