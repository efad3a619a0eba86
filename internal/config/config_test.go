package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STOREFRONT_API_BASE_URL", "")
	t.Setenv("STOREFRONT_REQUEST_TIMEOUT", "")
	t.Setenv("STOREFRONT_PROBE_TIMEOUT", "")
	t.Setenv("APP_PORT", "")
	t.Setenv("SESSION_JWT_KEY", "")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api", cfg.APIBaseURL)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, "8000", cfg.AppPort)
	assert.NotEmpty(t, cfg.SessionJWTKey)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STOREFRONT_API_BASE_URL", "https://api.vanmilk.example/api")
	t.Setenv("STOREFRONT_REQUEST_TIMEOUT", "30s")
	t.Setenv("STOREFRONT_PROBE_TIMEOUT", "2s")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://api.vanmilk.example/api", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.ProbeTimeout)
}

func TestLoadRejectsBadDurations(t *testing.T) {
	t.Setenv("STOREFRONT_REQUEST_TIMEOUT", "soon")

	_, err := Load()
	assert.ErrorContains(t, err, "STOREFRONT_REQUEST_TIMEOUT")
}
