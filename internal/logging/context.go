// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type (
	requestIDKey struct{}
	loggerKey    struct{}
)

// ContextWithRequestID attaches the request ID issued by the pipeline.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID, or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithLogger stores the request-scoped logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

func scopedLogger(ctx context.Context) (zerolog.Logger, bool) {
	l, ok := ctx.Value(loggerKey{}).(zerolog.Logger)
	return l, ok
}

// LoggerFromContext returns the request-scoped logger, falling back to the
// global one.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if l, ok := scopedLogger(ctx); ok {
		return l
	}
	return Logger()
}

// Ctx returns the logger for ctx. A scoped logger is returned as stored,
// since the pipeline already attached request_id to it; the global
// fallback gets request_id added when one is known.
//
//	logging.Ctx(ctx).Info().Msg("Processing request")
func Ctx(ctx context.Context) *zerolog.Logger {
	if l, ok := scopedLogger(ctx); ok {
		return &l
	}
	l := Logger()
	if id := RequestIDFromContext(ctx); id != "" {
		l = l.With().Str("request_id", id).Logger()
	}
	return &l
}

// CtxWith starts a child context from the logger for ctx, with request_id
// set when known.
//
//	logger := logging.CtxWith(ctx).Str("account_id", id).Logger()
func CtxWith(ctx context.Context) zerolog.Context {
	c := LoggerFromContext(ctx).With()
	if id := RequestIDFromContext(ctx); id != "" {
		c = c.Str("request_id", id)
	}
	return c
}

// WithComponent returns a child of the global logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
