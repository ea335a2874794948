// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
	_ "time/tzdata" // ORG_TIME_ZONE must resolve on hosts without zoneinfo
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Session backends accepted by SESSION_BACKEND.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Auth     AuthConfig
	Records  RecordsConfig
	Ingest   IngestConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 7000)
	Port int `env:"SERVER_PORT" default:"7000"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds record storage settings.
type DatabaseConfig struct {
	// Backend selects the record store: postgres or memory (default: postgres)
	Backend string `env:"STORE_BACKEND" default:"postgres"`

	// URL is the PostgreSQL connection string (required for the postgres backend)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies embedded migrations on startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// RedisConfig holds the Redis connection used by the redis session backend.
type RedisConfig struct {
	// URL is a redis:// connection string (required for SESSION_BACKEND=redis)
	URL string `env:"REDIS_URL"`

	// KeyPrefix namespaces session keys (default: rejectlist:session:)
	KeyPrefix string `env:"REDIS_KEY_PREFIX" default:"rejectlist:session:"`

	// DialTimeout bounds the startup ping (default: 5s)
	DialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT" default:"5s"`
}

// SessionConfig holds session and activity-timeout settings.
type SessionConfig struct {
	// Backend selects the session store: memory or redis (default: memory)
	Backend string `env:"SESSION_BACKEND" default:"memory"`

	// IdleTimeout is the inactivity threshold after which a session expires (default: 1h)
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" default:"1h"`

	// MaxAge is the absolute session lifetime and cookie Max-Age (default: 336h)
	MaxAge time.Duration `env:"SESSION_MAX_AGE" default:"336h"`

	// CookieName is the session cookie name (default: sessionid)
	CookieName string `env:"SESSION_COOKIE_NAME" default:"sessionid"`

	// CookieSecure marks cookies Secure (default: false)
	CookieSecure bool `env:"SESSION_COOKIE_SECURE" default:"false"`

	// CookieSameSite is lax, strict or none (default: lax)
	CookieSameSite string `env:"SESSION_COOKIE_SAMESITE" default:"lax"`

	// ExemptPaths are path prefixes that skip the activity guard entirely
	ExemptPaths []string `env:"SESSION_EXEMPT_PATHS" default:"/api/login,/api/logout,/static/"`

	// PassivePaths run the guard but never refresh last activity
	PassivePaths []string `env:"SESSION_PASSIVE_PATHS" default:"/api/check-auth"`

	// SweepInterval is how often the memory backend purges dead sessions (default: 5m)
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"5m"`
}

// AuthConfig holds authentication and role settings.
type AuthConfig struct {
	// RequireLogin rejects anonymous callers on record endpoints (default: true)
	RequireLogin bool `env:"AUTH_REQUIRE_LOGIN" default:"true"`

	// TeamLeadGroup is the group granting the team lead role (default: Team Lead)
	TeamLeadGroup string `env:"AUTH_TEAM_LEAD_GROUP" default:"Team Lead"`

	// BootstrapUser creates or resets a superuser at startup when set
	BootstrapUser string `env:"BOOTSTRAP_ADMIN_USER"`

	// BootstrapPassword is the password for BootstrapUser
	BootstrapPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
}

// RecordsConfig holds reject list record settings.
type RecordsConfig struct {
	// TimeZone is the organizational zone for created_at/updated_at (default: Asia/Kolkata)
	TimeZone string `env:"ORG_TIME_ZONE" default:"Asia/Kolkata"`
}

// IngestConfig holds record ingestion settings.
type IngestConfig struct {
	// MaxConcurrent is the maximum number of parallel bulk ingests (default: 5)
	MaxConcurrent int `env:"INGEST_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an ingest slot (default: 30s)
	MaxWaitTime time.Duration `env:"INGEST_MAX_WAIT_TIME" default:"30s"`

	// MaxBatchSize is the maximum number of items in one bulk request (default: 5000)
	MaxBatchSize int `env:"INGEST_MAX_BATCH_SIZE" default:"5000"`

	// MaxBodySize is the maximum request body size in bytes (default: 10MB)
	MaxBodySize int64 `env:"INGEST_MAX_BODY_SIZE" default:"10485760"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// LoginPerMinute is the rate limit per IP for the login endpoint (default: 10)
	LoginPerMinute int `env:"RATE_LIMIT_LOGIN" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`

	// Path is the metrics endpoint path (default: /metrics)
	Path string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Location loads the organizational time zone.
func (c *RecordsConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}
