// Package config loads and validates the process's environment configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Config holds validated environment configuration for the quiz server.
type Config struct {
	// Required
	Host string
	Port string

	// TLS is optional: if both are set the server terminates TLS itself,
	// otherwise it expects a reverse proxy in front of it.
	TLSCertPath string
	TLSKeyPath  string

	// OAuth (host login)
	OAuthClientID     string
	OAuthClientSecret string
	OAuthIssuer       string

	// Optional overrides
	AdminSessionCookie string // read from ADMIN_SESSION_COOKIE; no handler consults it
	AssetOptimisation  bool
	DevelopmentMode    bool
	LogLevel           string

	// Storage
	DatabasePath string
	BlobDir      string

	// Redis is optional; when empty the rate limiter falls back to an
	// in-memory store.
	RedisAddr     string
	RedisPassword string

	// Rate limits, ulule/limiter formatted strings ("100-M" == 100 per minute)
	RateLimitHTTPGlobal  string
	RateLimitHTTPPublic  string
	RateLimitSocketUser  string
	RateLimitSocketCmd   string

	// AllowedOrigins gates both the CORS middleware and the websocket
	// upgrader's CheckOrigin.
	AllowedOrigins []string

	// PublicBaseURL is this process's externally-reachable origin, used to
	// build the OAuth redirect_uri. Defaults to http://localhost:<port>.
	PublicBaseURL string
}

// Load reads and validates the environment, returning accumulated errors
// rather than failing on the first one.
func Load() (*Config, error) {
	cfg := &Config{}
	var problems []string

	cfg.Host = getEnvOrDefault("HOST", "0.0.0.0")

	cfg.Port = getEnvOrDefault("PORT", "8080")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT must be a valid port number (got %q)", cfg.Port))
	}

	cfg.TLSCertPath = os.Getenv("TLS_CERT_PATH")
	cfg.TLSKeyPath = os.Getenv("TLS_KEY_PATH")
	if (cfg.TLSCertPath == "") != (cfg.TLSKeyPath == "") {
		problems = append(problems, "TLS_CERT_PATH and TLS_KEY_PATH must both be set or both be empty")
	}

	cfg.OAuthClientID = os.Getenv("OAUTH_CLIENT_ID")
	cfg.OAuthClientSecret = os.Getenv("OAUTH_CLIENT_SECRET")
	cfg.OAuthIssuer = os.Getenv("OAUTH_ISSUER")

	cfg.AdminSessionCookie = os.Getenv("ADMIN_SESSION_COOKIE")
	cfg.AssetOptimisation = os.Getenv("ASSET_OPTIMISATION") == "true"
	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", "catbox.db")
	cfg.BlobDir = getEnvOrDefault("BLOB_DIR", "blobs")

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisAddr != "" && !isValidHostPort(cfg.RedisAddr) {
		problems = append(problems, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got %q)", cfg.RedisAddr))
	}

	cfg.RateLimitHTTPGlobal = getEnvOrDefault("RATE_LIMIT_HTTP_GLOBAL", "1000-M")
	cfg.RateLimitHTTPPublic = getEnvOrDefault("RATE_LIMIT_HTTP_PUBLIC", "100-M")
	cfg.RateLimitSocketUser = getEnvOrDefault("RATE_LIMIT_SOCKET_USER", "600-M")
	cfg.RateLimitSocketCmd = getEnvOrDefault("RATE_LIMIT_SOCKET_CMD", "60-M")

	cfg.AllowedOrigins = parseAllowedOrigins(getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:3000"))
	cfg.PublicBaseURL = getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:"+cfg.Port)

	if len(problems) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}

	return cfg, nil
}

// LogFields redacts OAuth secrets for startup logging.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("host", c.Host),
		zap.String("port", c.Port),
		zap.Bool("tls", c.TLSCertPath != ""),
		zap.String("oauth_client_id", redactSecret(c.OAuthClientID)),
		zap.Bool("redis_enabled", c.RedisAddr != ""),
		zap.String("database_path", c.DatabasePath),
		zap.Bool("development_mode", c.DevelopmentMode),
	}
}

func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 || parts[0] == "" {
		return false
	}
	port, err := strconv.Atoi(parts[1])
	return err == nil && port >= 1 && port <= 65535
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func redactSecret(secret string) string {
	if len(secret) <= 4 {
		return "***"
	}
	return secret[:4] + "***"
}

// parseAllowedOrigins splits a comma-separated ALLOWED_ORIGINS value,
// grounded on the teacher's GetAllowedOriginsFromEnv.
func parseAllowedOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
