// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session-related errors
var (
	// ErrSessionNotFound is returned when a session is not found in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when trying to access an expired session.
	ErrSessionExpired = errors.New("session expired")
)

// Session is the server-side record behind a session credential.
type Session struct {
	// ID is the opaque session identifier carried in the signed token.
	ID string `json:"id"`

	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`

	CreatedAt time.Time `json:"created_at"`

	// LastActivityAt is bumped by Refresh and drives NeedsRefresh.
	LastActivityAt time.Time `json:"last_activity_at"`

	// ExpiresAt is the sliding idle expiry.
	ExpiresAt time.Time `json:"expires_at"`

	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return s.IsExpiredAt(time.Now())
}

// IsExpiredAt reports expiry relative to now.
func (s *Session) IsExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// NewSession creates a session for the account valid for ttl.
func NewSession(userID, accountID string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		AccountID:      accountID,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(ttl),
	}
}

// SessionStore defines the interface for session storage backends.
// Implementations must be safe for concurrent use; Refresh in particular
// may race with itself for the same session.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by ID.
	// Returns ErrSessionNotFound if not found.
	// Returns ErrSessionExpired if the session exists but is expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Refresh extends the session to now+ttl and bumps LastActivityAt.
	// Expired sessions are not revived. Returns the new expiry.
	Refresh(ctx context.Context, id string, ttl time.Duration) (time.Time, error)

	// Delete removes a session by ID.
	// Does not return error if session doesn't exist.
	Delete(ctx context.Context, id string) error

	// DeleteByUserID removes all sessions for a user.
	// Returns the count of deleted sessions.
	DeleteByUserID(ctx context.Context, userID string) (int, error)

	// CleanupExpired removes all expired sessions.
	// Returns the count of deleted sessions.
	CleanupExpired(ctx context.Context) (int, error)
}

// MemorySessionStore is an in-memory implementation of SessionStore.
// Suitable for development and testing. For production, use the BadgerDB or
// Redis stores.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
	}
}

// Create stores a copy of the session.
func (s *MemorySessionStore) Create(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *session
	s.sessions[session.ID] = &stored
	return nil
}

// Get retrieves a session by ID.
func (s *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}

	copied := *session
	return &copied, nil
}

// Refresh extends a live session.
func (s *MemorySessionStore) Refresh(_ context.Context, id string, ttl time.Duration) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return time.Time{}, ErrSessionNotFound
	}
	now := time.Now().UTC()
	if session.IsExpiredAt(now) {
		return time.Time{}, ErrSessionExpired
	}

	session.LastActivityAt = now
	session.ExpiresAt = now.Add(ttl)
	return session.ExpiresAt, nil
}

// Delete removes a session by ID.
func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// DeleteByUserID removes all sessions for a user.
func (s *MemorySessionStore) DeleteByUserID(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

// CleanupExpired removes all expired sessions.
func (s *MemorySessionStore) CleanupExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	count := 0
	for id, session := range s.sessions {
		if session.IsExpiredAt(now) {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

// Len returns the number of stored sessions, expired or not.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
