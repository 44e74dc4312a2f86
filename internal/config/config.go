// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
)

// Prefix is prepended to every environment variable name.
const Prefix = "OSMPANEL_"

// Config holds the application configuration loaded from environment variables.
// Defaults point at openstreetmap.org and the StreetComplete statistics backend.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:"127.0.0.1:8080"`
	DBPath     string `env:"DB_PATH" envDefault:"osmpanel.db"`

	// SecretKeyHex is the AES-256 key for credentials at rest, 64 hex chars.
	SecretKeyHex string `env:"SECRET_KEY"`
	SecretKey    []byte

	OAuthBaseURL   string `env:"OAUTH_BASE_URL" envDefault:"https://www.openstreetmap.org/oauth/"`
	ConsumerKey    string `env:"CONSUMER_KEY" envDefault:"L3JyJMjVk6g5atwACVySRWgmnrkBAH7u0U18ALO7"`
	ConsumerSecret string `env:"CONSUMER_SECRET" envDefault:"uNjPaXZw15CPHdCSeMzttRm20tyFGaBPO7jHt52c"`
	CallbackScheme string `env:"CALLBACK_SCHEME" envDefault:"streetcomplete"`
	CallbackHost   string `env:"CALLBACK_HOST" envDefault:"oauth"`

	APIBaseURL    string `env:"API_BASE_URL" envDefault:"https://api.openstreetmap.org/"`
	StatisticsURL string `env:"STATISTICS_URL" envDefault:"https://www.westnordost.de/stats/"`

	AvatarDir        string `env:"AVATAR_DIR"`
	AchievementsFile string `env:"ACHIEVEMENTS_FILE"`

	RefreshInterval    time.Duration `env:"REFRESH_INTERVAL" envDefault:"15m"`
	StatisticsTimeout  time.Duration `env:"STATISTICS_TIMEOUT" envDefault:"30s"`
	StatisticsCacheTTL time.Duration `env:"STATISTICS_CACHE_TTL" envDefault:"5m"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Level    slog.Level
}

// HasSecretKey reports whether an encryption key is configured. Without one
// the app starts, but login is refused until OSMPANEL_SECRET_KEY is set.
func (c *Config) HasSecretKey() bool {
	return len(c.SecretKey) > 0
}

// OAuthConfig returns the provider configuration for the handshake.
func (c *Config) OAuthConfig() model.OAuthConfig {
	return model.NewOAuthConfig(c.OAuthBaseURL, c.ConsumerKey, c.ConsumerSecret, c.CallbackScheme, c.CallbackHost)
}

// Load reads configuration from OSMPANEL_* environment variables and returns
// a validated Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.SecretKeyHex != "" {
		key, err := hex.DecodeString(cfg.SecretKeyHex)
		if err != nil {
			return nil, fmt.Errorf("%sSECRET_KEY is not valid hex: %w", Prefix, err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("%sSECRET_KEY must be 32 bytes (64 hex chars), got %d bytes", Prefix, len(key))
		}
		cfg.SecretKey = key
	}

	if err := cfg.Level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("%sLOG_LEVEL has invalid level %q: %w", Prefix, cfg.LogLevel, err)
	}

	for name, d := range map[string]time.Duration{
		"REFRESH_INTERVAL":   cfg.RefreshInterval,
		"STATISTICS_TIMEOUT": cfg.StatisticsTimeout,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("%s%s must be positive, got %s", Prefix, name, d)
		}
	}
	if cfg.StatisticsCacheTTL < 0 {
		return nil, fmt.Errorf("%sSTATISTICS_CACHE_TTL must not be negative, got %s", Prefix, cfg.StatisticsCacheTTL)
	}

	if cfg.CallbackScheme == "" || cfg.CallbackHost == "" {
		return nil, fmt.Errorf("%sCALLBACK_SCHEME and %sCALLBACK_HOST must not be empty", Prefix, Prefix)
	}

	return &cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}
