package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// HTTP listener
	Server ServerConfig

	// Backend service the API routes forward to
	Backend BackendConfig

	// Session cookie signing and lifetime
	Session SessionConfig

	// Public site (SEO artifacts, canonical URLs)
	Site SiteConfig

	// Workspace store (impersonation / project selection)
	Database DatabaseConfig

	// Logging Configuration
	Logging LoggingConfig
}

// ServerConfig holds listener configuration
type ServerConfig struct {
	Port              string
	AllowedOrigins    []string
	WaitlistRateLimit int // requests per minute per client, 0 disables
}

// BackendConfig holds the upstream REST service configuration
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SessionConfig holds session token configuration
type SessionConfig struct {
	Secret           string
	MaxAge           time.Duration
	ImpersonationTTL time.Duration
}

// SiteConfig holds the public site configuration
type SiteConfig struct {
	URL string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	maxAge, err := durationEnv("SESSION_MAX_AGE", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}

	impersonationTTL, err := durationEnv("IMPERSONATION_TTL", 8*time.Hour)
	if err != nil {
		return nil, err
	}

	upstreamTimeout, err := durationEnv("UPSTREAM_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	rateLimit := 0
	if v := os.Getenv("WAITLIST_RATE_LIMIT"); v != "" {
		rateLimit, err = strconv.Atoi(v)
		if err != nil || rateLimit < 0 {
			return nil, fmt.Errorf("invalid WAITLIST_RATE_LIMIT %q", v)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:              envOrDefault("PORT", "3000"),
			AllowedOrigins:    splitList(envOrDefault("ALLOWED_ORIGINS", "http://localhost:3000")),
			WaitlistRateLimit: rateLimit,
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(envOrDefault("NEXT_PUBLIC_API_BASE_URL", "http://localhost:8080"), "/"),
			Timeout: upstreamTimeout,
		},
		Session: SessionConfig{
			Secret:           os.Getenv("NEXTAUTH_SECRET"),
			MaxAge:           maxAge,
			ImpersonationTTL: impersonationTTL,
		},
		Site: SiteConfig{
			URL: strings.TrimRight(envOrDefault("NEXT_PUBLIC_SITE_URL", "http://localhost:3000"), "/"),
		},
		Database: DatabaseConfig{
			URL: envOrDefault("DATABASE_URL", "portal.sqlite"),
		},
		Logging: LoggingConfig{
			Level:  envOrDefault("LOG_LEVEL", "info"),
			Format: envOrDefault("LOG_FORMAT", "json"),
		},
	}, nil
}

// SecureCookies reports whether the public site is served over TLS
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.Site.URL, "https://")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
