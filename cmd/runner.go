package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotstats/internal/auth"
	"github.com/desertthunder/spotstats/internal/repositories"
	"github.com/desertthunder/spotstats/internal/services"
	"github.com/desertthunder/spotstats/internal/shared"
	"github.com/desertthunder/spotstats/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database, token provider and API client are opened on first use so that
// commands like `setup` and `auth logout` work without credentials.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	httpClient *http.Client
	db         *shared.DB
	api        services.API
	tokens     auth.TokenStore
	provider   *auth.Provider
	sleep      func(context.Context, time.Duration) error
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A non-nil Config is used as is and no config file is read.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	HTTPClient *http.Client
	DB         *shared.DB
	API        services.API
	Tokens     auth.TokenStore
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		httpClient: opts.HTTPClient,
		db:         opts.DB,
		api:        opts.API,
		tokens:     opts.Tokens,
		sleep:      sleepCtx,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, runCommand, extractCommand, transformCommand, loadCommand,
		artistCommand, runsCommand, statsCommand, exportCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads configuration and applies the log level ahead of every command.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.config == nil {
		r.configPath = cmd.String("config")
		config, err := r.loadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	level := r.config.Log.Level
	if l := cmd.String("log-level"); l != "" {
		level = l
	}
	if level != "" {
		if err := shared.SetLogLevel(r.logger, level); err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

// After releases the database connection, if one was opened.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// loadConfig reads path if it exists and falls back to the embedded defaults.
// Environment overrides are applied either way.
func (r *Runner) loadConfig(path string) (*shared.Config, error) {
	var config *shared.Config
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			return nil, err
		}
	} else {
		r.logger.Debug("config file not found, using defaults", "path", path)
		config = shared.DefaultConfig()
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// database opens the configured store and applies pending migrations.
func (r *Runner) database() (*shared.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	n, err := shared.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if n > 0 {
		r.logger.Info("applied migrations", "count", n)
	}

	r.db = db
	return db, nil
}

func (r *Runner) tokenStore() auth.TokenStore {
	if r.tokens == nil {
		r.tokens = auth.NewFileTokenStore(r.config.Credentials.Spotify.TokenPath)
	}
	return r.tokens
}

// authProvider builds the token provider. Client credentials are required.
func (r *Runner) authProvider() (*auth.Provider, error) {
	if r.provider != nil {
		return r.provider, nil
	}

	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: set credentials.spotify.client_id and client_secret or SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET", shared.ErrMissingCredentials)
	}

	r.provider = auth.NewProvider(creds, r.tokenStore(),
		auth.WithLogger(r.logger),
		auth.WithOnRefresh(func(tf *auth.TokenFile) {
			r.logger.Info("access token refreshed", "expires", tf.TokenExpires.Time.Format(time.RFC3339))
		}),
	)
	return r.provider, nil
}

// client returns the Spotify API client.
func (r *Runner) client() (services.API, error) {
	if r.api != nil {
		return r.api, nil
	}

	provider, err := r.authProvider()
	if err != nil {
		return nil, err
	}
	r.api = services.NewSpotifyClient(provider,
		services.WithHTTPClient(r.httpClient),
		services.WithRateLimit(r.config.Extract.RequestsPerSecond),
		services.WithClientLogger(r.logger),
	)
	return r.api, nil
}

func (r *Runner) extractor() (*tasks.Extractor, error) {
	api, err := r.client()
	if err != nil {
		return nil, err
	}
	return tasks.NewExtractor(api, tasks.ExtractOptionsFromConfig(r.config.Extract), r.logger), nil
}

// pipeline wires the three stages against the configured store.
func (r *Runner) pipeline() (*tasks.Pipeline, error) {
	extractor, err := r.extractor()
	if err != nil {
		return nil, err
	}
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return tasks.NewPipeline(
		extractor,
		tasks.NewTransformer(r.logger),
		repositories.NewLoader(db, r.logger),
		repositories.NewRunRepository(db),
		r.logger,
	), nil
}

func (r *Runner) window(cmd *cli.Command) (string, error) {
	w := cmd.String("time-range")
	if w == "" {
		return r.config.Extract.DefaultTimeRange, nil
	}
	if slices.Contains(shared.TimeWindows, w) {
		return w, nil
	}
	return "", fmt.Errorf("%w: unknown time range %q (want one of %v)", shared.ErrInvalidArgument, w, shared.TimeWindows)
}

// retryable reports whether a failed attempt is worth repeating.
//
// A failed load is never repeated since the groups it already committed would
// be written twice.
func retryable(err error) bool {
	var le *shared.LoadError
	switch {
	case errors.As(err, &le):
		return false
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrMissingCredentials),
		errors.Is(err, shared.ErrMalformedData),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidArgument):
		return false
	}
	return true
}

// withRetry calls fn up to 1+retries times, waiting delay between attempts.
func (r *Runner) withRetry(ctx context.Context, retries int, delay time.Duration, fn func(attempt int) error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			r.logger.Warn("retrying", "attempt", attempt+1, "of", retries+1, "delay", delay, "error", err)
			if serr := r.sleep(ctx, delay); serr != nil {
				return serr
			}
		}

		if err = fn(attempt); err == nil || !retryable(err) {
			return err
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(s string) error {
	return r.writePlain("%s\n", s)
}

// readJSON decodes path, or stdin when path is "-".
func readJSON(path string, v any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrInvalidInput, path, err)
	}
	return nil
}

// writeJSONFile writes v to path, or to the runner output when path is "-".
func (r *Runner) writeJSONFile(path string, v any) error {
	if path == "-" || path == "" {
		return r.writeJSON(v, true)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
