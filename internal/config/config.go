// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config carries everything the server binary needs. Values come from the
// environment; a .env file loaded by the binary feeds local development.
type Config struct {
	Server struct {
		Host            string        `env:"SERVER_HOST,default=0.0.0.0"`
		Port            int           `env:"SERVER_PORT,default=8080"`
		ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=15s"`
		WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=30s"`
		ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	}

	Database struct {
		URL string `env:"DATABASE_URL"`
	}

	Stripe struct {
		SecretKey     string        `env:"STRIPE_SECRET_KEY"`
		WebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET"`
		BaseURL       string        `env:"STRIPE_API_BASE_URL"`
		Timeout       time.Duration `env:"STRIPE_TIMEOUT,default=10s"`
	}

	Auth struct {
		SessionSecret string `env:"SESSION_JWT_SECRET"`
	}

	RateLimit struct {
		RequestsPerSecond int `env:"RATE_LIMIT_RPS,default=20"`
		Burst             int `env:"RATE_LIMIT_BURST,default=40"`
	}

	CORS struct {
		AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	}

	Log struct {
		Level  string `env:"LOG_LEVEL,default=info"`
		Format string `env:"LOG_FORMAT,default=json"`
	}

	TiersPath string `env:"TIERS_CONFIG,default=config/tiers.yaml"`
}

// Load decodes the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if cfg.Stripe.SecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if cfg.Stripe.WebhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	return &cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
