package shared

import (
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix is prepended to every environment variable read by [ApplyEnv].
const EnvPrefix = "TRACKWATCH_"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	LogLevel    string            `toml:"log_level" env:"LOG_LEVEL"`
	Credentials CredentialsConfig `toml:"credentials"`
	State       StateConfig       `toml:"state"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Sync        SyncConfig        `toml:"sync"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Discord DiscordConfig `toml:"discord"`
}

// SpotifyConfig contains Spotify API credentials and endpoints.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"CLIENT_SECRET"`
	RedirectURI  string `toml:"redirect_uri" env:"REDIRECT_URI"`
	ProfileID    string `toml:"profile_id" env:"SPOTIFY_ID"`
	AccountsURL  string `toml:"accounts_url" env:"SPOTIFY_ACCOUNTS_URL"`
	APIURL       string `toml:"api_url" env:"SPOTIFY_API_URL"`
}

// Map returns the credentials in the map shape accepted by services.NewSpotifyService.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
		"accounts_url":  s.AccountsURL,
		"api_url":       s.APIURL,
	}
}

// ProfileURL is where GET / sends visitors.
func (s SpotifyConfig) ProfileURL() string {
	return "https://open.spotify.com/user/" + s.ProfileID
}

// DiscordConfig contains the webhook target for notifications.
type DiscordConfig struct {
	WebhookURL    string `toml:"webhook_url" env:"WEBHOOK_URL"`
	ThreadID      string `toml:"thread_id" env:"THREAD_ID"`
	MentionFormat string `toml:"mention_format" env:"MENTION_FORMAT"`
}

// Mention renders the requester id with the configured mention format.
func (d DiscordConfig) Mention(requesterID string) string {
	format := d.MentionFormat
	if format == "" {
		format = "<@%s>"
	}
	return fmt.Sprintf(format, requesterID)
}

// StateConfig holds the symmetric key used to seal the OAuth state parameter.
type StateConfig struct {
	Key string `toml:"key" env:"STATE_KEY"`
}

// DecodedKey returns the raw AES key bytes.
func (s StateConfig) DecodedKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: state key is not valid base64: %v", ErrInvalidConfig, err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, fmt.Errorf("%w: state key must decode to 16, 24 or 32 bytes, got %d", ErrInvalidConfig, len(key))
	}
}

// DatabaseConfig contains storage backend settings.
//
// Driver selects the backend: "sqlite" (Path), "postgres" (DSN) or "redis" (Redis*).
type DatabaseConfig struct {
	Driver        string `toml:"driver" env:"DB_DRIVER"`
	Path          string `toml:"path" env:"DB_PATH"`
	MaxOpenConns  int    `toml:"max_open_conns"`
	MaxIdleConns  int    `toml:"max_idle_conns"`
	DSN           string `toml:"dsn" env:"DATABASE_DSN"`
	RedisAddr     string `toml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `toml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `toml:"redis_db" env:"REDIS_DB"`
	RedisPrefix   string `toml:"redis_prefix" env:"REDIS_PREFIX"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host" env:"HOST"`
	Port int    `toml:"port" env:"PORT"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SyncConfig controls the scheduled saved-tracks poll.
type SyncConfig struct {
	Interval    time.Duration `toml:"interval" env:"SYNC_INTERVAL"`
	Timeout     time.Duration `toml:"timeout" env:"SYNC_TIMEOUT"`
	PageLimit   int           `toml:"page_limit" env:"SYNC_PAGE_LIMIT"`
	Concurrency int           `toml:"concurrency" env:"SYNC_CONCURRENCY"`
	RateLimit   float64       `toml:"rate_limit" env:"SYNC_RATE_LIMIT"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path,
// then applies environment overrides with [ApplyEnv].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv loads a .env file when present and overlays TRACKWATCH_* variables on config.
//
// Unset variables leave the file values untouched.
func ApplyEnv(config *Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
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
		return fmt.Errorf("config file already exists at %s: %w", path, os.ErrExist)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports every missing or malformed field `serve` needs: everything
// [Config.ValidateSync] checks plus the login flow and the schedule.
func (c *Config) Validate() error {
	errs := []error{c.ValidateSync()}

	errs = append(errs, required("credentials.spotify.redirect_uri", c.Credentials.Spotify.RedirectURI))
	if c.State.Key == "" {
		errs = append(errs, required("state.key", c.State.Key))
	} else if _, err := c.State.DecodedKey(); err != nil {
		errs = append(errs, err)
	}

	if c.Sync.Interval <= 0 {
		errs = append(errs, fmt.Errorf("%w: sync.interval must be positive, got %s", ErrInvalidConfig, c.Sync.Interval))
	}

	return errors.Join(errs...)
}

// ValidateSync reports every missing or malformed field a single sync pass needs.
func (c *Config) ValidateSync() error {
	errs := []error{
		required("credentials.spotify.client_id", c.Credentials.Spotify.ClientID),
		required("credentials.spotify.client_secret", c.Credentials.Spotify.ClientSecret),
		required("credentials.discord.webhook_url", c.Credentials.Discord.WebhookURL),
	}

	if f := c.Credentials.Discord.MentionFormat; f != "" && (strings.Count(f, "%") != 1 || strings.Count(f, "%s") != 1) {
		errs = append(errs, fmt.Errorf("%w: credentials.discord.mention_format must contain exactly one %%s, got %q", ErrInvalidConfig, f))
	}

	switch c.Database.Driver {
	case "sqlite", "":
		errs = append(errs, required("database.path", c.Database.Path))
	case "postgres":
		errs = append(errs, required("database.dsn", c.Database.DSN))
	case "redis":
		errs = append(errs, required("database.redis_addr", c.Database.RedisAddr))
	default:
		errs = append(errs, fmt.Errorf("%w: unknown database.driver %q", ErrInvalidConfig, c.Database.Driver))
	}

	if c.Sync.PageLimit < 1 || c.Sync.PageLimit > 50 {
		errs = append(errs, fmt.Errorf("%w: sync.page_limit must be between 1 and 50", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

func required(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, field)
	}
	return nil
}
