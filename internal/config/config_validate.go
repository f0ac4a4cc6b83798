// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/gatehouse/internal/logging"
)

// minSessionSecretLength is the minimum HS256 key length accepted outside development.
const minSessionSecretLength = 32

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateAudit(); err != nil {
		return err
	}
	if err := c.validateTasks(); err != nil {
		return err
	}
	if err := c.validateUI(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch strings.ToLower(c.Server.Environment) {
	case "development", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be 'development' or 'production', got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if !c.Server.IsDevelopment() && len(c.Security.SessionSecret) < minSessionSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in production", minSessionSecretLength)
	}
	if c.Security.AuthorizeTimeout <= 0 {
		return fmt.Errorf("AUTHORIZE_TIMEOUT must be positive")
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Security.RateLimitWindow < time.Second {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be at least 1s")
		}
	}
	return nil
}

func (c *Config) validateSession() error {
	switch c.Session.Store {
	case "memory", "redis":
	case "badger":
		if c.Session.Path == "" {
			return fmt.Errorf("SESSION_STORE_PATH is required when SESSION_STORE=badger")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be one of memory, badger, redis; got %q", c.Session.Store)
	}
	if c.Session.Store == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when SESSION_STORE=redis")
	}
	if c.Session.TTL < time.Minute {
		return fmt.Errorf("SESSION_TTL must be at least 1m")
	}
	if c.Session.MaxLifetime < c.Session.TTL {
		return fmt.Errorf("SESSION_MAX_LIFETIME (%v) must not be shorter than SESSION_TTL (%v)", c.Session.MaxLifetime, c.Session.TTL)
	}
	if c.Session.RefreshFraction <= 0 || c.Session.RefreshFraction >= 1 {
		return fmt.Errorf("SESSION_REFRESH_FRACTION must be in (0, 1), got %v", c.Session.RefreshFraction)
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME is required")
	}
	switch strings.ToLower(c.Session.CookieSameSite) {
	case "lax", "strict", "none":
	default:
		return fmt.Errorf("SESSION_COOKIE_SAME_SITE must be lax, strict or none")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "memory":
		return nil
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required when DATABASE_DRIVER=postgres")
		}
		return nil
	default:
		return fmt.Errorf("DATABASE_DRIVER must be memory or postgres, got %q", c.Database.Driver)
	}
}

func (c *Config) validateAudit() error {
	if !c.Audit.Enabled {
		return nil
	}
	switch c.Audit.Store {
	case "memory":
	case "duckdb":
		if c.Audit.Path == "" {
			return fmt.Errorf("AUDIT_PATH is required when AUDIT_STORE=duckdb")
		}
	default:
		return fmt.Errorf("AUDIT_STORE must be memory or duckdb, got %q", c.Audit.Store)
	}
	if c.Audit.BufferSize < 1 {
		return fmt.Errorf("AUDIT_BUFFER_SIZE must be at least 1")
	}
	return nil
}

func (c *Config) validateTasks() error {
	if c.Tasks.Workers < 1 {
		return fmt.Errorf("TASK_WORKERS must be at least 1")
	}
	if c.Tasks.QueueSize < 1 {
		return fmt.Errorf("TASK_QUEUE_SIZE must be at least 1")
	}
	if c.Tasks.TaskTimeout <= 0 {
		return fmt.Errorf("TASK_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateUI() error {
	paths := map[string]string{
		"UI_LOGIN_PATH":        c.UI.LoginPath,
		"UI_SUSPENDED_PATH":    c.UI.SuspendedPath,
		"UI_VERIFY_EMAIL_PATH": c.UI.VerifyEmailPath,
		"UI_VERIFY_PHONE_PATH": c.UI.VerifyPhonePath,
		"UI_FORBIDDEN_PATH":    c.UI.ForbiddenPath,
	}
	for name, p := range paths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must be an absolute path, got %q", name, p)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}
