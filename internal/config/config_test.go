package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGINS", "WAITLIST_RATE_LIMIT", "NEXT_PUBLIC_API_BASE_URL",
		"UPSTREAM_TIMEOUT", "NEXTAUTH_SECRET", "SESSION_MAX_AGE", "IMPERSONATION_TTL",
		"NEXT_PUBLIC_SITE_URL", "DATABASE_URL", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 0, cfg.Server.WaitlistRateLimit)
	assert.Equal(t, "http://localhost:8080", cfg.Backend.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 30*24*time.Hour, cfg.Session.MaxAge)
	assert.Equal(t, 8*time.Hour, cfg.Session.ImpersonationTTL)
	assert.Equal(t, "http://localhost:3000", cfg.Site.URL)
	assert.Equal(t, "portal.sqlite", cfg.Database.URL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.SecureCookies())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_API_BASE_URL", "https://api.example.com/")
	t.Setenv("NEXT_PUBLIC_SITE_URL", "https://www.example.com/")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("WAITLIST_RATE_LIMIT", "12")
	t.Setenv("SESSION_MAX_AGE", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, "https://www.example.com", cfg.Site.URL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 12, cfg.Server.WaitlistRateLimit)
	assert.Equal(t, time.Hour, cfg.Session.MaxAge)
	assert.True(t, cfg.SecureCookies())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad duration", key: "SESSION_MAX_AGE", value: "forever"},
		{name: "bad rate limit", key: "WAITLIST_RATE_LIMIT", value: "lots"},
		{name: "negative rate limit", key: "WAITLIST_RATE_LIMIT", value: "-1"},
		{name: "bad upstream timeout", key: "UPSTREAM_TIMEOUT", value: "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
