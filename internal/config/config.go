package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the console and the stub server read from the
// environment. A .env file in the working directory is loaded first when
// present, matching how the backend deployments are configured.
type Config struct {
	// APIBaseURL is the storefront backend, e.g. http://localhost:8000/api.
	APIBaseURL string
	// StripePublishableKey selects the live payment confirmer; when empty
	// the sandbox confirmer is used.
	StripePublishableKey string
	// RequestTimeout bounds every user-initiated API call.
	RequestTimeout time.Duration
	// ProbeTimeout bounds a single capability probe.
	ProbeTimeout time.Duration

	// Stub server settings.
	AppPort       string
	DatabaseURL   string
	SessionJWTKey string
}

const (
	defaultRequestTimeout = 15 * time.Second
	defaultProbeTimeout   = 5 * time.Second
)

// Load reads configuration from .env (optional) and the environment.
func Load() (*Config, error) {
	// A missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:           os.Getenv("STOREFRONT_API_BASE_URL"),
		StripePublishableKey: os.Getenv("STOREFRONT_STRIPE_KEY"),
		RequestTimeout:       defaultRequestTimeout,
		ProbeTimeout:         defaultProbeTimeout,
		AppPort:              os.Getenv("APP_PORT"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		SessionJWTKey:        os.Getenv("SESSION_JWT_KEY"),
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:8000/api"
	}
	if cfg.AppPort == "" {
		cfg.AppPort = "8000"
	}
	if cfg.SessionJWTKey == "" {
		cfg.SessionJWTKey = "dev-only-insecure-key"
	}

	if d := os.Getenv("STOREFRONT_REQUEST_TIMEOUT"); d != "" {
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return nil, fmt.Errorf("invalid STOREFRONT_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = parsed
	}
	if d := os.Getenv("STOREFRONT_PROBE_TIMEOUT"); d != "" {
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return nil, fmt.Errorf("invalid STOREFRONT_PROBE_TIMEOUT: %w", err)
		}
		cfg.ProbeTimeout = parsed
	}
	return cfg, nil
}
