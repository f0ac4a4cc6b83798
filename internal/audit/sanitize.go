// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package audit

import (
	"strings"

	"github.com/goccy/go-json"
)

const (
	// Redacted replaces the value of a sensitive key.
	Redacted = "[REDACTED]"
	// MaxDepthMarker replaces values nested deeper than MaxSanitizeDepth.
	MaxDepthMarker = "[MAX_DEPTH]"
	// MaxSanitizeDepth is the deepest level Sanitize descends into.
	MaxSanitizeDepth = 32
)

// sensitiveKeys are matched case-insensitively as substrings of a key.
// "pin" also catches keys such as "shipping"; over-redaction is accepted.
var sensitiveKeys = []string{
	"password",
	"passwd",
	"token",
	"secret",
	"authorization",
	"cookie",
	"card",
	"cvv",
	"cvc",
	"iban",
	"pin",
	"apikey",
	"api_key",
	"private_key",
}

// IsSensitiveKey reports whether values under key must be redacted.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Sanitize returns a copy of v with sensitive keys redacted. It walks
// map[string]any and []any as produced by JSON decoding; other values are
// returned unchanged. The input is never modified.
func Sanitize(v any) any {
	return sanitize(v, 0)
}

func sanitize(v any, depth int) any {
	if depth > MaxSanitizeDepth {
		return MaxDepthMarker
	}
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if IsSensitiveKey(k) {
				out[k] = Redacted
				continue
			}
			out[k] = sanitize(child, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = sanitize(child, depth+1)
		}
		return out
	default:
		return v
	}
}

// SanitizeJSON decodes a JSON document, redacts it and re-encodes it.
// Empty input yields nil.
func SanitizeJSON(raw []byte) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(Sanitize(doc))
}
