// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// TranslationAPIURL enables outbound message translation when set.
	// Empty means enrichment is disabled and every client receives the
	// original text.
	TranslationAPIURL  string        `env:"TRANSLATION_API_URL"`
	TranslationTimeout time.Duration `env:"TRANSLATION_TIMEOUT" default:"3s"`

	MaxConnections int64 `env:"MAX_CONNECTIONS" default:"10000"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if cfg.TranslationAPIURL != "" {
		u, err := url.Parse(cfg.TranslationAPIURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("TRANSLATION_API_URL must be an absolute URL, got %q", cfg.TranslationAPIURL)
		}
	}

	if cfg.TranslationTimeout <= 0 {
		return fmt.Errorf("TRANSLATION_TIMEOUT must be positive, got %v", cfg.TranslationTimeout)
	}

	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS must be positive, got %d", cfg.MaxConnections)
	}

	return nil
}
