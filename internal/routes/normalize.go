// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package routes

import "strings"

// Opaque id bounds for NormalizedPath collapsing.
const (
	minOpaqueIDLen = 6
	maxOpaqueIDLen = 32
)

// splitPath returns the non-empty segments of p.
func splitPath(p string) []string {
	raw := strings.Split(p, "/")
	segs := raw[:0]
	for _, s := range raw {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func joinPath(segs []string) string {
	return "/" + strings.Join(segs, "/")
}

// normalize collapses dynamic segments into :id.
func normalize(segs []string) string {
	out := make([]string, len(segs))
	for i, s := range segs {
		if isDynamicSegment(s) {
			out[i] = ":id"
		} else {
			out[i] = s
		}
	}
	return joinPath(out)
}

// NormalizePath collapses ids in p without any locale handling.
func NormalizePath(p string) string {
	return normalize(splitPath(p))
}

// isDynamicSegment reports whether s looks like an id: all digits, or a
// short opaque token of [A-Za-z0-9_-] that mixes letters and digits.
func isDynamicSegment(s string) bool {
	if s == "" {
		return false
	}

	allDigits := true
	hasDigit, hasLetter := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			hasDigit = true
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			hasLetter = true
			allDigits = false
		case c == '-' || c == '_':
			allDigits = false
		default:
			return false
		}
	}
	if allDigits {
		return true
	}
	return hasDigit && hasLetter && len(s) >= minOpaqueIDLen && len(s) <= maxOpaqueIDLen
}
