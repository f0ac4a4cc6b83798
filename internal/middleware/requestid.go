// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package middleware

import (
	"context"
	"crypto/rand"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/gatehouse/internal/logging"
)

// RequestIDHeader carries the correlation id in both directions.
const RequestIDHeader = "X-Request-Id"

// maxInboundRequestIDLen bounds ids accepted from clients.
const maxInboundRequestIDLen = 128

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewRequestID returns "req_<base36 unix millis>_<8 random base36 chars>".
func NewRequestID() string {
	var suffix [8]byte
	limit := big.NewInt(int64(len(base36)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			n = big.NewInt(time.Now().UnixNano() % int64(len(base36)))
		}
		suffix[i] = base36[n.Int64()]
	}
	return "req_" + strconv.FormatInt(time.Now().UnixMilli(), 36) + "_" + string(suffix[:])
}

// ResolveRequestID returns the id already bound to the request context, the
// inbound X-Request-Id header if it is usable, or a fresh id.
func ResolveRequestID(r *http.Request) string {
	if id := logging.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	if id := r.Header.Get(RequestIDHeader); validInboundID(id) {
		return id
	}
	return NewRequestID()
}

// validInboundID accepts short printable ASCII ids without spaces.
func validInboundID(id string) bool {
	if id == "" || len(id) > maxInboundRequestIDLen {
		return false
	}
	return !strings.ContainsFunc(id, func(r rune) bool {
		return r <= ' ' || r > '~'
	})
}

// RequestID binds a correlation id to the request context and echoes it in
// the X-Request-Id response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := ResolveRequestID(r)
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), requestID)))
	})
}

// GetRequestID extracts the request ID from context.
func GetRequestID(ctx context.Context) string {
	return logging.RequestIDFromContext(ctx)
}
