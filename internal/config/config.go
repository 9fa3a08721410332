package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session store backends.
const (
	SessionStoreRedis  = "redis"
	SessionStoreMemory = "memory"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	BaseURL          string
	FrontendURL      string
	EnableHSTS       bool
	RedisURL         string
	SessionStore     string
	SessionTTL       time.Duration
	CookieSecure     bool
	OIDCProvider     string
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURI  string
	ProtectedPaths   []string
	MaxUploadBytes   int64
	WorkspaceIdleTTL time.Duration
	RequestTimeout   time.Duration
	UploadTimeout    time.Duration
	ServerDebugMode  bool
	LogConsole       bool
	OTELEnabled      bool
	OTELEndpoint     string
	OTELInsecure     bool
	OTELSampleRatio  float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		BaseURL:          strings.TrimSuffix(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		FrontendURL:      getEnv("FRONTEND_URL", ""),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SessionStore:     strings.ToLower(getEnv("SESSION_STORE", SessionStoreRedis)),
		SessionTTL:       getEnvDuration("SESSION_TTL", 24*time.Hour),
		OIDCProvider:     getEnv("OIDC_PROVIDER", "google"),
		OIDCIssuer:       getEnv("OIDC_ISSUER", "https://accounts.google.com"),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		ProtectedPaths:   getEnvList("PROTECTED_PATHS", []string{"/dashboard", "/api/v1/workspace"}),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", 5<<20)),
		WorkspaceIdleTTL: getEnvDuration("WORKSPACE_IDLE_TTL", 2*time.Hour),
		RequestTimeout:   getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		UploadTimeout:    getEnvDuration("UPLOAD_TIMEOUT", 2*time.Minute),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		LogConsole:       strings.EqualFold(getEnv("LOG_FORMAT", "json"), "console"),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:     getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELSampleRatio:  getEnvFloat("OTEL_SAMPLE_RATIO", 1),
	}
	cfg.FrontendURL = getEnv("FRONTEND_URL", cfg.BaseURL)
	cfg.OIDCRedirectURI = getEnv("OIDC_REDIRECT_URI", cfg.BaseURL+"/auth/oidc/callback")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", strings.HasPrefix(cfg.BaseURL, "https://"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	switch cfg.SessionStore {
	case SessionStoreRedis, SessionStoreMemory:
	default:
		return nil, fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreRedis, SessionStoreMemory, cfg.SessionStore)
	}

	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	if cfg.OTELSampleRatio < 0 || cfg.OTELSampleRatio > 1 {
		return nil, fmt.Errorf("OTEL_SAMPLE_RATIO must be between 0 and 1")
	}

	return cfg, nil
}

// OIDCFromEnv reports whether the identity provider is configured through
// the environment rather than the database.
func (c *Config) OIDCFromEnv() bool {
	return c.OIDCClientID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
