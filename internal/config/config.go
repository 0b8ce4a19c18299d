// Package config loads server configuration from a TOML file with
// environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all server configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Providers ProvidersConfig `toml:"providers"`
	Auth      AuthConfig      `toml:"auth"`
	Billing   BillingConfig   `toml:"billing"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
	// StreamTimeoutSeconds bounds a single streaming completion.
	StreamTimeoutSeconds int `toml:"stream_timeout_seconds"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type ProvidersConfig struct {
	OpenAI    ProviderConfig `toml:"openai"`
	Anthropic ProviderConfig `toml:"anthropic"`
	Ollama    ProviderConfig `toml:"ollama"`
	// TitleModel is used for conversation title generation.
	TitleModel   string `toml:"title_model"`
	TitleBaseURL string `toml:"title_base_url"`
}

type ProviderConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type AuthConfig struct {
	JWTSecret     string `toml:"jwt_secret"`
	TokenLifetime int    `toml:"token_lifetime_seconds"`
}

type BillingConfig struct {
	StripeAPIKey      string `toml:"stripe_api_key"`
	WebhookSecret     string `toml:"webhook_secret"`
	SubscriptionPrice string `toml:"subscription_price_id"`
	SuccessURL        string `toml:"success_url"`
	CancelURL         string `toml:"cancel_url"`
}

type RateLimitConfig struct {
	// AnonymousPerMinute is the sustained request rate for unauthenticated chat.
	AnonymousPerMinute int `toml:"anonymous_per_minute"`
	AnonymousBurst     int `toml:"anonymous_burst"`
}

// Default returns a config populated with development defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:           ":8100",
			StreamTimeoutSeconds: 120,
		},
		Database: DatabaseConfig{
			Path: "colloquy.db",
		},
		Providers: ProvidersConfig{
			OpenAI:       ProviderConfig{BaseURL: "https://api.openai.com/v1"},
			Anthropic:    ProviderConfig{BaseURL: "https://api.anthropic.com/v1"},
			Ollama:       ProviderConfig{BaseURL: "http://localhost:11434"},
			TitleModel:   "gpt-4o-mini",
			TitleBaseURL: "https://api.openai.com/v1",
		},
		Auth: AuthConfig{
			TokenLifetime: 3600,
		},
		RateLimit: RateLimitConfig{
			AnonymousPerMinute: 10,
			AnonymousBurst:     3,
		},
	}
}

// Load reads configuration from path, falling back to defaults when the
// file does not exist. Secrets are always overridable from the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Server.StreamTimeoutSeconds <= 0 {
		cfg.Server.StreamTimeoutSeconds = 120
	}
	if cfg.RateLimit.AnonymousPerMinute <= 0 {
		cfg.RateLimit.AnonymousPerMinute = 10
	}
	if cfg.RateLimit.AnonymousBurst <= 0 {
		cfg.RateLimit.AnonymousBurst = 3
	}

	return cfg, nil
}

// applyEnv overrides secret-bearing fields from the environment so they
// never have to live in the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Providers.OpenAI.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Providers.Anthropic.APIKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("STRIPE_API_KEY"); v != "" {
		cfg.Billing.StripeAPIKey = v
	}
	if v := os.Getenv("STRIPE_WEBHOOK_SECRET"); v != "" {
		cfg.Billing.WebhookSecret = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
}

// StreamTimeout returns the configured streaming timeout as a duration.
func (c *Config) StreamTimeout() time.Duration {
	return time.Duration(c.Server.StreamTimeoutSeconds) * time.Second
}
