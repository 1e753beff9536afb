package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Time windows understood by the Spotify personalization endpoints.
const (
	WindowShort  = "short_term"
	WindowMedium = "medium_term"
	WindowLong   = "long_term"
)

// TimeWindows lists the known windows in the order they are extracted.
var TimeWindows = []string{WindowShort, WindowMedium, WindowLong}

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Dashboard   ServerConfig      `toml:"dashboard"`
	Extract     ExtractConfig     `toml:"extract"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the token file location.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	TokenPath    string `toml:"token_path"`
}

// DatabaseConfig contains database connection settings.
//
// Driver is either "sqlite3" (Path is used) or "pgx" (DSN is used).
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// Source returns the data source name for the configured driver.
func (d DatabaseConfig) Source() string {
	if d.Driver == DriverPostgres {
		return d.DSN
	}
	return d.Path
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	CallbackTimeout Duration `toml:"callback_timeout"`
}

// Addr joins host and port for [net/http.Server].
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ExtractConfig controls what the extractor requests.
type ExtractConfig struct {
	TimeRanges          []string `toml:"time_ranges"`
	Limit               int      `toml:"limit"`
	RecentlyPlayedLimit int      `toml:"recently_played_limit"`
	SavedTracksLimit    int      `toml:"saved_tracks_limit"`
	RequestsPerSecond   float64  `toml:"requests_per_second"`
	DefaultTimeRange    string   `toml:"default_time_range"`
}

// PipelineConfig holds orchestrator retry settings.
type PipelineConfig struct {
	Retries    int      `toml:"retries"`
	RetryDelay Duration `toml:"retry_delay"`
}

// LogConfig selects the log level ("debug", "info", "warn", "error").
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a [time.Duration] that decodes from TOML strings like "5m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv reads .env files (missing files are ignored) into the process environment.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides secrets and the database DSN from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REDIRECT_URI"); v != "" {
		c.Credentials.Spotify.RedirectURI = v
	}
	if v := os.Getenv("SPOTSTATS_DATABASE_URL"); v != "" {
		c.Database.Driver = DriverPostgres
		c.Database.DSN = v
	}
}

// Validate checks values the pipeline cannot run without.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Database.Source() == "" {
		return fmt.Errorf("%w: database source is empty", ErrInvalidConfig)
	}

	if len(c.Extract.TimeRanges) == 0 {
		return fmt.Errorf("%w: extract.time_ranges is empty", ErrInvalidConfig)
	}
	for _, w := range c.Extract.TimeRanges {
		if !slices.Contains(TimeWindows, w) {
			return fmt.Errorf("%w: unknown time range %q", ErrInvalidConfig, w)
		}
	}
	if !slices.Contains(TimeWindows, c.Extract.DefaultTimeRange) {
		return fmt.Errorf("%w: unknown default time range %q", ErrInvalidConfig, c.Extract.DefaultTimeRange)
	}

	for name, v := range map[string]int{
		"limit":                 c.Extract.Limit,
		"recently_played_limit": c.Extract.RecentlyPlayedLimit,
		"saved_tracks_limit":    c.Extract.SavedTracksLimit,
	} {
		if v < 1 || v > 50 {
			return fmt.Errorf("%w: extract.%s must be between 1 and 50, got %d", ErrInvalidConfig, name, v)
		}
	}

	if c.Pipeline.Retries < 0 {
		return fmt.Errorf("%w: pipeline.retries must not be negative", ErrInvalidConfig)
	}
	return nil
}
