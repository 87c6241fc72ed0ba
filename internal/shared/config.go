package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "STYLX_"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Backend  BackendConfig  `toml:"backend" envPrefix:"BACKEND_"`
	Identity IdentityConfig `toml:"identity" envPrefix:"IDENTITY_"`
	Gallery  GalleryConfig  `toml:"gallery" envPrefix:"GALLERY_"`
	Images   ImagesConfig   `toml:"images" envPrefix:"IMAGES_"`
	Database DatabaseConfig `toml:"database" envPrefix:"DATABASE_"`
	Logging  LoggingConfig  `toml:"logging" envPrefix:"LOGGING_"`
}

// BackendConfig contains the style-transfer backend endpoints.
type BackendConfig struct {
	BaseURL           string  `toml:"base_url" env:"BASE_URL"`
	ProgressURL       string  `toml:"progress_url" env:"PROGRESS_URL"`
	TimeoutSeconds    int     `toml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	JobTimeoutSeconds int     `toml:"job_timeout_seconds" env:"JOB_TIMEOUT_SECONDS"`
	RateLimit         float64 `toml:"rate_limit" env:"RATE_LIMIT"`
	DialAttempts      uint    `toml:"dial_attempts" env:"DIAL_ATTEMPTS"`
}

// IdentityConfig contains identity provider (Firebase) settings.
type IdentityConfig struct {
	APIKey                string `toml:"api_key" env:"API_KEY"`
	AuthURL               string `toml:"auth_url" env:"AUTH_URL"`
	TokenURL              string `toml:"token_url" env:"TOKEN_URL"`
	ObserveTimeoutSeconds int    `toml:"observe_timeout_seconds" env:"OBSERVE_TIMEOUT_SECONDS"`
}

// GalleryConfig contains gallery paging defaults.
type GalleryConfig struct {
	PerPage int    `toml:"per_page" env:"PER_PAGE"`
	Sort    string `toml:"sort" env:"SORT"`
}

// ImagesConfig contains local image settings.
type ImagesConfig struct {
	StylesDir    string `toml:"styles_dir" env:"STYLES_DIR"`
	DownloadDir  string `toml:"download_dir" env:"DOWNLOAD_DIR"`
	MaxDimension int    `toml:"max_dimension" env:"MAX_DIMENSION"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"PATH"`
	MaxOpenConns int    `toml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns int    `toml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
}

// LoggingConfig contains log level and file rotation settings.
type LoggingConfig struct {
	Level      string `toml:"level" env:"LEVEL"`
	File       string `toml:"file" env:"FILE"`
	MaxSizeMB  int    `toml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `toml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `toml:"max_age_days" env:"MAX_AGE_DAYS"`
}

// RequestTimeout is the per-request HTTP timeout.
func (c BackendConfig) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// JobTimeout bounds a whole transfer job. Zero means no bound.
func (c BackendConfig) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

// ObserveTimeout is how long a session observation stays subscribed.
func (c IdentityConfig) ObserveTimeout() time.Duration {
	return time.Duration(c.ObserveTimeoutSeconds) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep their embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	}
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

// ApplyEnv loads an optional .env file and overrides config values from STYLX_ prefixed variables.
func ApplyEnv(c *Config, dotenvPaths ...string) error {
	_ = godotenv.Load(dotenvPaths...)

	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate reports values that would make the client unusable.
func (c *Config) Validate() error {
	switch {
	case c.Backend.BaseURL == "":
		return fmt.Errorf("%w: backend.base_url is required", ErrInvalidConfig)
	case c.Backend.ProgressURL == "":
		return fmt.Errorf("%w: backend.progress_url is required", ErrInvalidConfig)
	case c.Backend.TimeoutSeconds < 0 || c.Backend.JobTimeoutSeconds < 0:
		return fmt.Errorf("%w: backend timeouts must not be negative", ErrInvalidConfig)
	case c.Identity.ObserveTimeoutSeconds <= 0:
		return fmt.Errorf("%w: identity.observe_timeout_seconds must be positive", ErrInvalidConfig)
	case c.Gallery.PerPage <= 0:
		return fmt.Errorf("%w: gallery.per_page must be positive", ErrInvalidConfig)
	case c.Images.MaxDimension < 0:
		return fmt.Errorf("%w: images.max_dimension must not be negative", ErrInvalidConfig)
	}
	return nil
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
