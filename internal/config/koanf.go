// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/gatehouse/config.yaml",
	"/etc/gatehouse/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			SessionSecret:     "",
			AuthorizeTimeout:  5 * time.Second,
			RateLimitReqs:     300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			LoginRateLimit:    10,
			CORSOrigins:       []string{"*"},
		},
		Session: SessionConfig{
			Store:           "memory",
			Path:            "/data/sessions",
			TTL:             7 * 24 * time.Hour,
			MaxLifetime:     30 * 24 * time.Hour,
			RefreshFraction: 0.25,
			CleanupInterval: 10 * time.Minute,
			CookieName:      "gatehouse_session",
			HeaderName:      "X-Session-Token",
			CookieSecure:    true,
			CookieDomain:    "",
			CookieSameSite:  "lax",
		},
		Database: DatabaseConfig{
			Driver:             "memory",
			DSN:                "",
			MaxOpenConns:       20,
			MaxIdleConns:       5,
			ConnMaxLifetime:    30 * time.Minute,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
			SeedDemoData:       false,
		},
		Redis: RedisConfig{
			Addr:      "127.0.0.1:6379",
			DB:        0,
			KeyPrefix: "gatehouse:",
		},
		Audit: AuditConfig{
			Enabled:      true,
			Store:        "memory",
			Path:         "/data/audit.duckdb",
			BufferSize:   1000,
			MaxEvents:    10000,
			WriteTimeout: 5 * time.Second,
			LogToStdout:  false,
		},
		Tasks: TasksConfig{
			Workers:      4,
			QueueSize:    1024,
			TaskTimeout:  5 * time.Second,
			DrainTimeout: 10 * time.Second,
		},
		Casbin: CasbinConfig{
			ModelPath:    "",
			PolicyPath:   "",
			CacheEnabled: true,
			CacheTTL:     5 * time.Minute,
		},
		Routes: RoutesConfig{
			Path:    "",
			Locales: []string{"en", "fr", "de", "es", "ar"},
		},
		UI: UIConfig{
			LoginPath:       "/login",
			SuspendedPath:   "/account/suspended",
			VerifyEmailPath: "/dashboard/verify-email",
			VerifyPhonePath: "/dashboard/verify-phone",
			ForbiddenPath:   "/forbidden",
			ReturnURLParam:  "returnUrl",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// SESSION_TTL -> session.ttl, HTTP_PORT -> server.port
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"routes.locales",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	// Security
	"session_secret":      "security.session_secret",
	"authorize_timeout":   "security.authorize_timeout",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"login_rate_limit":    "security.login_rate_limit",
	"cors_origins":        "security.cors_origins",

	// Session store
	"session_store":            "session.store",
	"session_store_path":       "session.path",
	"session_ttl":              "session.ttl",
	"session_max_lifetime":     "session.max_lifetime",
	"session_refresh_fraction": "session.refresh_fraction",
	"session_cleanup_interval": "session.cleanup_interval",
	"session_cookie_name":      "session.cookie_name",
	"session_header_name":      "session.header_name",
	"session_cookie_secure":    "session.cookie_secure",
	"session_cookie_domain":    "session.cookie_domain",
	"session_cookie_same_site": "session.cookie_same_site",

	// Account store
	"database_driver":        "database.driver",
	"database_url":           "database.dsn",
	"database_max_open":      "database.max_open_conns",
	"database_max_idle":      "database.max_idle_conns",
	"database_conn_lifetime": "database.conn_max_lifetime",
	"breaker_max_failures":   "database.breaker_max_failures",
	"breaker_timeout":        "database.breaker_timeout",
	"seed_demo_data":         "database.seed_demo_data",

	// Redis
	"redis_addr":       "redis.addr",
	"redis_password":   "redis.password",
	"redis_db":         "redis.db",
	"redis_key_prefix": "redis.key_prefix",

	// Audit
	"audit_enabled":       "audit.enabled",
	"audit_store":         "audit.store",
	"audit_path":          "audit.path",
	"audit_buffer_size":   "audit.buffer_size",
	"audit_max_events":    "audit.max_events",
	"audit_write_timeout": "audit.write_timeout",
	"audit_log_to_stdout": "audit.log_to_stdout",

	// Background tasks
	"task_workers":       "tasks.workers",
	"task_queue_size":    "tasks.queue_size",
	"task_timeout":       "tasks.task_timeout",
	"task_drain_timeout": "tasks.drain_timeout",

	// Casbin
	"casbin_model_path":    "casbin.model_path",
	"casbin_policy_path":   "casbin.policy_path",
	"casbin_cache_enabled": "casbin.cache_enabled",
	"casbin_cache_ttl":     "casbin.cache_ttl",

	// Routes
	"routes_path":    "routes.path",
	"routes_locales": "routes.locales",

	// UI
	"ui_login_path":        "ui.login_path",
	"ui_suspended_path":    "ui.suspended_path",
	"ui_verify_email_path": "ui.verify_email_path",
	"ui_verify_phone_path": "ui.verify_phone_path",
	"ui_forbidden_path":    "ui.forbidden_path",
	"ui_inline_forbidden":  "ui.inline_forbidden",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables return an empty key so koanf skips them.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
