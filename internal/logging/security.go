// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package logging

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent represents a security-relevant event.
type SecurityEvent struct {
	// Event is the type of event (e.g., "login_success", "authorization_denied").
	Event string

	// UserID is the user's identifier (if known).
	UserID string

	// AccountID is the acting account (if known).
	AccountID string

	// Email is the login email (if known).
	Email string

	// SessionID is the session identifier (sanitized on output).
	SessionID string

	// IPAddress is the client's IP address.
	IPAddress string

	// Success indicates if the operation was successful.
	Success bool

	// Reason is the failure code or message when the operation failed.
	Reason string

	// Details contains additional details, sanitized by key.
	Details map[string]string
}

// SecurityLogger logs authentication and authorization events with
// automatic sanitization of identifiers and secrets.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a new security logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		logger: With().Str("component", "auth").Logger(),
	}
}

// NewSecurityLoggerWithLogger creates a security logger with a custom zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// LogEvent logs a security event. The request_id from ctx is attached when present.
func (l *SecurityLogger) LogEvent(ctx context.Context, event *SecurityEvent) {
	e := l.logger.Info()
	if !event.Success {
		e = l.logger.Warn()
	}
	e = e.Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		e = e.Str("request_id", requestID)
	}
	if event.UserID != "" {
		e = e.Str("user_id", event.UserID)
	}
	if event.AccountID != "" {
		e = e.Str("account_id", event.AccountID)
	}
	if event.Email != "" {
		e = e.Str("email", SanitizeEmail(event.Email))
	}
	if event.SessionID != "" {
		e = e.Str("session_id", SanitizeSessionID(event.SessionID))
	}
	if event.IPAddress != "" {
		e = e.Str("ip", event.IPAddress)
	}
	if event.Reason != "" && !event.Success {
		e = e.Str("reason", SanitizeError(event.Reason))
	}
	for k, v := range event.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}

	e.Msg("")
}

// LogLoginSuccess logs a successful login.
func (l *SecurityLogger) LogLoginSuccess(ctx context.Context, userID, accountID, sessionID, ip string) {
	l.LogEvent(ctx, &SecurityEvent{
		Event:     "login_success",
		UserID:    userID,
		AccountID: accountID,
		SessionID: sessionID,
		IPAddress: ip,
		Success:   true,
	})
}

// LogLoginFailure logs a failed login.
func (l *SecurityLogger) LogLoginFailure(ctx context.Context, email, ip, reason string) {
	l.LogEvent(ctx, &SecurityEvent{
		Event:     "login_failed",
		Email:     email,
		IPAddress: ip,
		Reason:    reason,
	})
}

// LogLogout logs a logout.
func (l *SecurityLogger) LogLogout(ctx context.Context, userID, sessionID, ip string) {
	l.LogEvent(ctx, &SecurityEvent{
		Event:     "logout",
		UserID:    userID,
		SessionID: sessionID,
		IPAddress: ip,
		Success:   true,
	})
}

// LogAuthorizationDenied logs a request rejected by the authorizer.
func (l *SecurityLogger) LogAuthorizationDenied(ctx context.Context, code, accountID, path, ip string) {
	l.LogEvent(ctx, &SecurityEvent{
		Event:     "authorization_denied",
		AccountID: accountID,
		IPAddress: ip,
		Reason:    code,
		Details:   map[string]string{"path": path},
	})
}

// SanitizeToken masks a token, showing only first and last 4 characters.
// Example: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..." -> "eyJh...kpXV"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeSessionID masks a session ID.
func SanitizeSessionID(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	if len(sessionID) <= 8 {
		return "***"
	}
	return sessionID[:4] + "..." + sessionID[len(sessionID)-4:]
}

// SanitizeEmail masks an email address.
// Example: "john.doe@example.com" -> "jo***@example.com"
func SanitizeEmail(email string) string {
	if email == "" {
		return ""
	}

	atIndex := strings.Index(email, "@")
	if atIndex <= 0 {
		return "***"
	}

	localPart := email[:atIndex]
	domain := email[atIndex:]
	if len(localPart) <= 2 {
		return "***" + domain
	}
	return localPart[:2] + "***" + domain
}

// SanitizeError removes potentially sensitive information from error messages.
func SanitizeError(err string) string {
	sensitivePatterns := []string{
		"password",
		"secret",
		"bearer",
		"cookie",
	}

	lowerErr := strings.ToLower(err)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerErr, pattern) {
			return "authentication error"
		}
	}
	return truncateString(err, 200)
}

// SanitizeValue sanitizes a value based on its key name.
func SanitizeValue(key, value string) string {
	switch strings.ToLower(key) {
	case "token", "access_token", "password", "secret", "authorization", "cookie", "session_id":
		return SanitizeToken(value)
	}
	if strings.Contains(value, "@") && strings.Contains(value, ".") {
		return SanitizeEmail(value)
	}
	return value
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
