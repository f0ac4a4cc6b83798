// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package config loads and validates Gatehouse configuration.
//
// Configuration is layered with Koanf v2: built-in defaults, then an
// optional YAML file, then environment variables. See LoadWithKoanf.
package config

import (
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Session  SessionConfig  `koanf:"session"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Audit    AuditConfig    `koanf:"audit"`
	Tasks    TasksConfig    `koanf:"tasks"`
	Casbin   CasbinConfig   `koanf:"casbin"`
	Routes   RoutesConfig   `koanf:"routes"`
	UI       UIConfig       `koanf:"ui"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// Environment is "development" or "production". Error details are only
	// exposed to clients in development.
	Environment string `koanf:"environment"`
}

// IsDevelopment reports whether the server runs in development mode.
func (s ServerConfig) IsDevelopment() bool {
	return strings.EqualFold(s.Environment, "development")
}

// SecurityConfig holds authentication and request-limiting settings.
type SecurityConfig struct {
	// SessionSecret signs session tokens (HS256). Required in production.
	SessionSecret     string        `koanf:"session_secret"`
	AuthorizeTimeout  time.Duration `koanf:"authorize_timeout"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	LoginRateLimit    int           `koanf:"login_rate_limit"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// SessionConfig holds session store and cookie settings.
type SessionConfig struct {
	// Store selects the backend: memory, badger or redis.
	Store           string        `koanf:"store"`
	Path            string        `koanf:"path"`
	TTL             time.Duration `koanf:"ttl"`
	// MaxLifetime bounds a session token regardless of activity.
	MaxLifetime     time.Duration `koanf:"max_lifetime"`
	RefreshFraction float64       `koanf:"refresh_fraction"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	CookieName      string        `koanf:"cookie_name"`
	HeaderName      string        `koanf:"header_name"`
	CookieSecure    bool          `koanf:"cookie_secure"`
	CookieDomain    string        `koanf:"cookie_domain"`
	CookieSameSite  string        `koanf:"cookie_same_site"`
}

// RefreshThreshold returns the session age after which a request triggers
// a TTL rollover.
func (s SessionConfig) RefreshThreshold() time.Duration {
	return time.Duration(float64(s.TTL) * s.RefreshFraction)
}

// DatabaseConfig holds account store settings.
type DatabaseConfig struct {
	// Driver selects the account store: memory or postgres.
	Driver             string        `koanf:"driver"`
	DSN                string        `koanf:"dsn"`
	MaxOpenConns       int           `koanf:"max_open_conns"`
	MaxIdleConns       int           `koanf:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `koanf:"conn_max_lifetime"`
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
	// SeedDemoData loads demo accounts into the memory store.
	SeedDemoData bool `koanf:"seed_demo_data"`
}

// RedisConfig holds the Redis connection used by the redis session store.
type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// AuditConfig holds action-log settings.
type AuditConfig struct {
	Enabled bool `koanf:"enabled"`
	// Store selects the audit sink: memory or duckdb.
	Store        string        `koanf:"store"`
	Path         string        `koanf:"path"`
	BufferSize   int           `koanf:"buffer_size"`
	MaxEvents    int           `koanf:"max_events"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	LogToStdout  bool          `koanf:"log_to_stdout"`
}

// TasksConfig sizes the background task runner used for session refreshes.
type TasksConfig struct {
	Workers      int           `koanf:"workers"`
	QueueSize    int           `koanf:"queue_size"`
	TaskTimeout  time.Duration `koanf:"task_timeout"`
	DrainTimeout time.Duration `koanf:"drain_timeout"`
}

// CasbinConfig holds role-permission policy settings.
type CasbinConfig struct {
	ModelPath    string        `koanf:"model_path"`
	PolicyPath   string        `koanf:"policy_path"`
	CacheEnabled bool          `koanf:"cache_enabled"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
}

// RoutesConfig locates the declarative route table.
type RoutesConfig struct {
	// Path is an optional YAML file with extra routes. Built-in routes are
	// always loaded.
	Path    string   `koanf:"path"`
	Locales []string `koanf:"locales"`
}

// UIConfig holds the page paths used by page authorization redirects.
type UIConfig struct {
	LoginPath       string `koanf:"login_path"`
	SuspendedPath   string `koanf:"suspended_path"`
	VerifyEmailPath string `koanf:"verify_email_path"`
	VerifyPhonePath string `koanf:"verify_phone_path"`
	ForbiddenPath   string `koanf:"forbidden_path"`
	ReturnURLParam  string `koanf:"return_url_param"`

	// InlineForbidden answers permission denials on every page with a 403
	// fragment. Pages can also opt in individually.
	InlineForbidden bool `koanf:"inline_forbidden"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, an optional config file and
// environment variables, in that order of precedence (later wins).
//
// See LoadWithKoanf() for the underlying implementation.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
