// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/gatehouse/internal/config"
)

// CredentialConfig holds configuration for reading and writing session credentials.
type CredentialConfig struct {
	// CookieName is the name of the session cookie.
	CookieName string

	// HeaderName is an optional header to read the session token from.
	// If set, the header takes priority over the cookie.
	HeaderName string

	// CookieMaxAge is the cookie lifetime. Zero makes it a browser-session cookie.
	CookieMaxAge time.Duration

	// CookiePath is the path for the session cookie.
	CookiePath string

	// CookieDomain is the domain for the session cookie.
	CookieDomain string

	// CookieSecure sets the Secure flag on the cookie.
	CookieSecure bool

	// CookieHTTPOnly sets the HttpOnly flag on the cookie.
	CookieHTTPOnly bool

	// CookieSameSite sets the SameSite attribute.
	CookieSameSite http.SameSite
}

// DefaultCredentialConfig returns sensible defaults.
func DefaultCredentialConfig() *CredentialConfig {
	return &CredentialConfig{
		CookieName:     "gatehouse_session",
		HeaderName:     "X-Session-Token",
		CookieMaxAge:   30 * 24 * time.Hour,
		CookiePath:     "/",
		CookieSecure:   true,
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
	}
}

// CredentialConfigFromSession builds the cookie settings from the session
// config section. The cookie lives as long as the token can.
func CredentialConfigFromSession(cfg config.SessionConfig) *CredentialConfig {
	cc := DefaultCredentialConfig()
	cc.CookieName = cfg.CookieName
	cc.HeaderName = cfg.HeaderName
	cc.CookieMaxAge = cfg.MaxLifetime
	cc.CookieDomain = cfg.CookieDomain
	cc.CookieSecure = cfg.CookieSecure
	cc.CookieSameSite = ParseSameSite(cfg.CookieSameSite)
	return cc
}

// ParseSameSite maps a config string to http.SameSite. Unknown values are lax.
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// CredentialReader extracts session tokens from requests and manages the
// session cookie.
type CredentialReader struct {
	config *CredentialConfig
}

// NewCredentialReader creates a credential reader.
func NewCredentialReader(config *CredentialConfig) *CredentialReader {
	if config == nil {
		config = DefaultCredentialConfig()
	}
	return &CredentialReader{config: config}
}

// Token extracts the session token from the request.
// Priority: Authorization: Bearer > session header > cookie
func (c *CredentialReader) Token(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); authz != "" {
		if token, ok := bearerToken(authz); ok {
			return token
		}
	}

	if c.config.HeaderName != "" {
		if headerValue := strings.TrimSpace(r.Header.Get(c.config.HeaderName)); headerValue != "" {
			return headerValue
		}
	}

	cookie, err := r.Cookie(c.config.CookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return ""
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// SetSessionCookie sets the session cookie on the response.
func (c *CredentialReader) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.config.CookieName,
		Value:    token,
		Path:     c.config.CookiePath,
		Domain:   c.config.CookieDomain,
		MaxAge:   int(c.config.CookieMaxAge.Seconds()),
		Secure:   c.config.CookieSecure,
		HttpOnly: c.config.CookieHTTPOnly,
		SameSite: c.config.CookieSameSite,
	})
}

// ClearSessionCookie clears the session cookie.
func (c *CredentialReader) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.config.CookieName,
		Value:    "",
		Path:     c.config.CookiePath,
		Domain:   c.config.CookieDomain,
		MaxAge:   -1,
		Secure:   c.config.CookieSecure,
		HttpOnly: c.config.CookieHTTPOnly,
		SameSite: c.config.CookieSameSite,
	})
}

// CookieName returns the configured session cookie name.
func (c *CredentialReader) CookieName() string {
	return c.config.CookieName
}
