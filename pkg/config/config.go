// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// InsecureDefaultJWTSecret is used when AUTH_RELAY_JWT_SECRET is unset.
// Session tokens signed with it are forgeable; the server warns at startup.
const InsecureDefaultJWTSecret = "change-this-in-production-please-use-random-32-chars"

// relayEnv holds raw env values before post-parse cleanup.
type relayEnv struct {
	ListenAddr           string        `env:"AUTH_RELAY_LISTEN_ADDR"            envDefault:":8000"`
	GoogleClientID       string        `env:"AUTH_RELAY_GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string        `env:"AUTH_RELAY_GOOGLE_CLIENT_SECRET"`
	RedirectURI          string        `env:"AUTH_RELAY_REDIRECT_URI"`
	DefaultReturnURL     string        `env:"AUTH_RELAY_DEFAULT_RETURN_URL"     envDefault:"http://localhost:3000/auth/callback"`
	AllowedOrigins       []string      `env:"AUTH_RELAY_ALLOWED_ORIGINS"        envSeparator:","`
	JWTSecret            string        `env:"AUTH_RELAY_JWT_SECRET"`
	StateTTL             time.Duration `env:"AUTH_RELAY_STATE_TTL"              envDefault:"10m"`
	StateCleanupInterval time.Duration `env:"AUTH_RELAY_STATE_CLEANUP_INTERVAL" envDefault:"5m"`
	SessionLifetime      time.Duration `env:"AUTH_RELAY_SESSION_TTL"            envDefault:"720h"`
	ProviderTimeout      time.Duration `env:"AUTH_RELAY_PROVIDER_TIMEOUT"       envDefault:"30s"`
}

// Config is the validated process configuration.
type Config struct {
	ListenAddr           string
	GoogleClientID       string
	GoogleClientSecret   string
	RedirectURI          string
	DefaultReturnURL     string
	AllowedOrigins       []string
	JWTSecret            string
	StateTTL             time.Duration
	StateCleanupInterval time.Duration
	SessionLifetime      time.Duration
	ProviderTimeout      time.Duration
}

// LoadFromEnv reads relay configuration from environment variables.
func LoadFromEnv() (Config, error) {
	var raw relayEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse relay env: %w", err)
	}

	cfg := Config{
		ListenAddr:           strings.TrimSpace(raw.ListenAddr),
		GoogleClientID:       strings.TrimSpace(raw.GoogleClientID),
		GoogleClientSecret:   strings.TrimSpace(raw.GoogleClientSecret),
		RedirectURI:          strings.TrimSpace(raw.RedirectURI),
		DefaultReturnURL:     strings.TrimSpace(raw.DefaultReturnURL),
		AllowedOrigins:       trimAll(raw.AllowedOrigins),
		JWTSecret:            strings.TrimSpace(raw.JWTSecret),
		StateTTL:             raw.StateTTL,
		StateCleanupInterval: raw.StateCleanupInterval,
		SessionLifetime:      raw.SessionLifetime,
		ProviderTimeout:      raw.ProviderTimeout,
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = InsecureDefaultJWTSecret
	}
	if cfg.DefaultReturnURL == "" {
		return Config{}, fmt.Errorf("AUTH_RELAY_DEFAULT_RETURN_URL is required")
	}
	if cfg.ProviderConfigured() && cfg.RedirectURI == "" {
		return Config{}, fmt.Errorf("AUTH_RELAY_REDIRECT_URI is required when provider credentials are set")
	}
	return cfg, nil
}

// ProviderConfigured reports whether Google credentials are present.
func (c Config) ProviderConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
