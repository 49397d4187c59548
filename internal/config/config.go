// Package config provides application configuration with multi-source priority.
//
// Sources, highest priority first:
//  1. Environment variables (SHOPBOT_* prefix, plus DATABASE_URL / GEMINI_API_KEY)
//  2. Config file (~/.shopbot/config.yaml)
//  3. Defaults
//
// Sensitive values (API key, database password) are never logged.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the Gemini API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the completion model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates an embedder model name is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidSearchLimit indicates the search result limit is out of range.
	ErrInvalidSearchLimit = errors.New("invalid search limit")
)

const (
	// DefaultModelName is the provider-qualified completion model.
	DefaultModelName = "googleai/gemini-2.5-flash"

	// DefaultTextEmbedderModel embeds catalog text and text queries.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; the pgvector schema relies on that.
	DefaultTextEmbedderModel = "gemini-embedding-001"

	// DefaultImageEmbedderModel embeds product images and image queries.
	DefaultImageEmbedderModel = "multimodalembedding@001"

	// DefaultSearchLimit is the result count used when a tool call omits one.
	DefaultSearchLimit = 5

	// MaxSearchLimit caps the per-query result count.
	MaxSearchLimit = 20
)

// Config holds all application settings.
type Config struct {
	// AI
	GeminiAPIKey       string `mapstructure:"-"`
	ModelName          string `mapstructure:"model_name"`
	TextEmbedderModel  string `mapstructure:"text_embedder_model"`
	ImageEmbedderModel string `mapstructure:"image_embedder_model"`

	// Retrieval
	DefaultSearchLimit int `mapstructure:"default_search_limit"`

	// PostgreSQL
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode"`

	// HTTP server
	ServerAddr string `mapstructure:"server_addr"`

	// Catalog seeding
	ProductsPath string `mapstructure:"products_path"`
	ImagesPath   string `mapstructure:"images_path"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load reads configuration from defaults, an optional config file, and the
// environment. A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("text_embedder_model", DefaultTextEmbedderModel)
	v.SetDefault("image_embedder_model", DefaultImageEmbedderModel)
	v.SetDefault("default_search_limit", DefaultSearchLimit)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "shopbot")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_dbname", "shopbot")
	v.SetDefault("postgres_sslmode", "disable")
	v.SetDefault("server_addr", "127.0.0.1:8080")
	v.SetDefault("products_path", "data/products.json")
	v.SetDefault("images_path", "data/product_images")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetEnvPrefix("SHOPBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".shopbot"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// API key comes from the environment only, never from a file on disk.
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values needed by every command.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("configuration is nil")
	}
	if c.ModelName == "" {
		return ErrInvalidModelName
	}
	if c.TextEmbedderModel == "" || c.ImageEmbedderModel == "" {
		return ErrInvalidEmbedderModel
	}
	if c.DefaultSearchLimit < 1 || c.DefaultSearchLimit > MaxSearchLimit {
		return fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidSearchLimit, c.DefaultSearchLimit, MaxSearchLimit)
	}
	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	return nil
}

// ValidateServe additionally requires credentials for the live providers.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY not set", ErrMissingAPIKey)
	}
	return nil
}

// SlogLevel maps the configured log level string to a slog.Level.
// Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
