// Package config loads process-wide settings once at startup.
//
// Values come from environment variables, optionally overlaid on a config
// file (config.yaml, config.json or config.env in the working directory).
// The resulting Config is treated as read-only after Load returns.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// GeminiPlaceholderKey is the sample key shipped in example env files. It is
// treated the same as an empty key.
const GeminiPlaceholderKey = "YOUR_GEMINI_API_KEY_PLACEHOLDER"

// DefaultSecretKey is only suitable for local development.
const DefaultSecretKey = "your-secret-key-for-jwt-hs256"

// Config holds runtime settings for the story API.
type Config struct {
	AppPort          string
	CORSAllowOrigins string
	RabbitMQURL      string
	Database         DatabaseConfig
	JWT              JWTConfig
	Gemini           GeminiConfig
}

// DatabaseConfig selects the GORM dialector and its DSN.
type DatabaseConfig struct {
	Driver string // "sqlite" or "postgres"
	DSN    string
}

// JWTConfig holds the signing secret and token lifetime.
type JWTConfig struct {
	Secret         string
	Algorithm      string
	AccessTokenTTL time.Duration
}

// GeminiConfig configures the generative text provider.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// Configured reports whether a usable API key is present.
func (g GeminiConfig) Configured() bool {
	return g.APIKey != "" && g.APIKey != GeminiPlaceholderKey
}

// EventsEnabled reports whether story events should be published.
func (c *Config) EventsEnabled() bool {
	return c.RabbitMQURL != ""
}

var supportedAlgorithms = map[string]bool{"HS256": true, "HS384": true, "HS512": true}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8000")
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "storycraft.db")
	v.SetDefault("SECRET_KEY", DefaultSecretKey)
	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-pro")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")
	v.SetDefault("GEMINI_TIMEOUT", "30s")
	v.SetDefault("GEMINI_MAX_RETRIES", 2)
}

// Load reads configuration from the environment and an optional config file.
func Load() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper materializes and validates a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort:          v.GetString("APP_PORT"),
		CORSAllowOrigins: v.GetString("CORS_ALLOW_ORIGINS"),
		RabbitMQURL:      strings.TrimSpace(v.GetString("RABBITMQ_URL")),
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("DB_DRIVER")),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		JWT: JWTConfig{
			Secret:         v.GetString("SECRET_KEY"),
			Algorithm:      strings.ToUpper(v.GetString("JWT_ALGORITHM")),
			AccessTokenTTL: time.Duration(v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES")) * time.Minute,
		},
		Gemini: GeminiConfig{
			APIKey:     strings.TrimSpace(v.GetString("GEMINI_API_KEY")),
			Model:      v.GetString("GEMINI_MODEL"),
			BaseURL:    strings.TrimRight(v.GetString("GEMINI_BASE_URL"), "/"),
			Timeout:    v.GetDuration("GEMINI_TIMEOUT"),
			MaxRetries: v.GetInt("GEMINI_MAX_RETRIES"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail at request time.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite or postgres)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("DATABASE_DSN must not be empty")
	}
	if c.JWT.Secret == "" {
		return errors.New("SECRET_KEY must not be empty")
	}
	if !supportedAlgorithms[c.JWT.Algorithm] {
		return fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWT.Algorithm)
	}
	if c.JWT.AccessTokenTTL <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.Gemini.MaxRetries < 0 {
		return errors.New("GEMINI_MAX_RETRIES must not be negative")
	}
	if c.Gemini.Timeout <= 0 {
		return errors.New("GEMINI_TIMEOUT must be positive")
	}
	return nil
}
