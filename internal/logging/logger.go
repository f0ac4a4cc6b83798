// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package logging provides centralized zerolog-based logging for Gatehouse.
//
// The package owns a single global logger configured once at startup from
// the logging section of the configuration. Request handlers never log
// through the global directly; they use Ctx(ctx), which returns the
// request-scoped logger installed by the request pipeline (request_id,
// method, route and account_id already attached).
//
//	logging.Init(logging.Config{Level: "info", Format: "json", Timestamp: true})
//
//	logging.Info().Msg("Server starting")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Session refresh failed")
//
// Log chains are only written by .Msg() or .Send().
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: trace, debug, info, warn, error, fatal,
	// panic or disabled. Default: info
	Level string

	// Format is json or console. Default: json
	Format string

	// Caller adds file:line to every entry.
	Caller bool

	// Timestamp adds an RFC 3339 "time" field.
	Timestamp bool

	// Service, when set, is attached to every entry as "service".
	Service string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Service:   "gatehouse",
		Output:    os.Stderr,
	}
}

var levels = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"fatal":    zerolog.FatalLevel,
	"panic":    zerolog.PanicLevel,
	"disabled": zerolog.Disabled,
}

// ParseLevel maps a case-insensitive level name to a zerolog level.
func ParseLevel(level string) (zerolog.Level, bool) {
	l, ok := levels[strings.ToLower(strings.TrimSpace(level))]
	return l, ok
}

// parseLevel falls back to info for unknown names.
func parseLevel(level string) zerolog.Level {
	if l, ok := ParseLevel(level); ok {
		return l
	}
	return zerolog.InfoLevel
}

var global atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // logging works before the explicit Init call
func init() {
	Init(DefaultConfig())
}

// Init builds the global logger from cfg. It may be called again to
// reconfigure; loggers already derived from the old one keep their output.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"

	out := cfg.Output
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(out).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	l := ctx.Logger()
	global.Store(&l)
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	return *global.Load()
}

// SetLogger replaces the global logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	global.Store(&l)
}

// With creates a child logger context.
//
//	storeLogger := logging.With().Str("component", "session_store").Logger()
func With() zerolog.Context {
	return global.Load().With()
}

// Debug starts a debug entry on the global logger.
func Debug() *zerolog.Event { return global.Load().Debug() }

// Info starts an info entry on the global logger.
func Info() *zerolog.Event { return global.Load().Info() }

// Warn starts a warning entry on the global logger.
func Warn() *zerolog.Event { return global.Load().Warn() }

// Error starts an error entry on the global logger.
func Error() *zerolog.Event { return global.Load().Error() }

// Fatal starts a fatal entry; os.Exit(1) follows Msg.
func Fatal() *zerolog.Event { return global.Load().Fatal() }

// Err starts an error entry carrying err.
func Err(err error) *zerolog.Event { return global.Load().Err(err) }

// GetLevel returns the current global log level.
func GetLevel() zerolog.Level {
	return zerolog.GlobalLevel()
}

// NewTestLogger returns a logger writing JSON to w, for tests that assert
// on log output.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
