// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key prefixes for BadgerDB storage
const (
	badgerSessionKeyPrefix     = "session:"
	badgerSessionUserKeyPrefix = "session_user:"
)

// BadgerSessionStore implements SessionStore using BadgerDB for durable storage.
// Entries carry a Badger TTL matching the session expiry, so expired
// records also disappear without CleanupExpired.
type BadgerSessionStore struct {
	db *badger.DB
}

var _ SessionStore = (*BadgerSessionStore)(nil)

// NewBadgerSessionStore creates a new BadgerDB-backed session store.
func NewBadgerSessionStore(db *badger.DB) *BadgerSessionStore {
	return &BadgerSessionStore{db: db}
}

func sessionEntry(key []byte, value []byte, expiresAt time.Time) *badger.Entry {
	e := badger.NewEntry(key, value)
	if ttl := time.Until(expiresAt); ttl > 0 {
		e = e.WithTTL(ttl)
	}
	return e
}

// Create stores a new session.
func (s *BadgerSessionStore) Create(_ context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		sessionKey := []byte(badgerSessionKeyPrefix + session.ID)
		if err := txn.SetEntry(sessionEntry(sessionKey, data, session.ExpiresAt)); err != nil {
			return fmt.Errorf("set session: %w", err)
		}

		// User-to-session mapping for DeleteByUserID
		userKey := []byte(badgerSessionUserKeyPrefix + session.UserID + ":" + session.ID)
		if err := txn.Set(userKey, []byte(session.ID)); err != nil {
			return fmt.Errorf("set user mapping: %w", err)
		}
		return nil
	})
}

func readSession(txn *badger.Txn, id string) (*Session, error) {
	item, err := txn.Get([]byte(badgerSessionKeyPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session Session
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &session)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// Get retrieves a session by ID.
func (s *BadgerSessionStore) Get(_ context.Context, id string) (*Session, error) {
	var session *Session
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		session, err = readSession(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return session, nil
}

// Refresh extends a live session inside a single transaction. Concurrent
// refreshes of the same session conflict and are retried once; both
// outcomes leave the session extended.
func (s *BadgerSessionStore) Refresh(ctx context.Context, id string, ttl time.Duration) (time.Time, error) {
	expiresAt, err := s.refresh(id, ttl)
	if errors.Is(err, badger.ErrConflict) {
		if ctx.Err() != nil {
			return time.Time{}, ctx.Err()
		}
		expiresAt, err = s.refresh(id, ttl)
	}
	return expiresAt, err
}

func (s *BadgerSessionStore) refresh(id string, ttl time.Duration) (time.Time, error) {
	var expiresAt time.Time
	err := s.db.Update(func(txn *badger.Txn) error {
		session, err := readSession(txn, id)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if session.IsExpiredAt(now) {
			return ErrSessionExpired
		}

		session.LastActivityAt = now
		session.ExpiresAt = now.Add(ttl)
		expiresAt = session.ExpiresAt

		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		return txn.SetEntry(sessionEntry([]byte(badgerSessionKeyPrefix+id), data, expiresAt))
	})
	return expiresAt, err
}

// Delete removes a session by ID.
func (s *BadgerSessionStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		session, err := readSession(txn, id)
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := txn.Delete([]byte(badgerSessionKeyPrefix + id)); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		if session.UserID != "" {
			userKey := []byte(badgerSessionUserKeyPrefix + session.UserID + ":" + id)
			if err := txn.Delete(userKey); err != nil {
				return fmt.Errorf("delete user mapping: %w", err)
			}
		}
		return nil
	})
}

// DeleteByUserID removes all sessions for a user.
func (s *BadgerSessionStore) DeleteByUserID(ctx context.Context, userID string) (int, error) {
	var sessionIDs []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(badgerSessionUserKeyPrefix + userID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				sessionIDs = append(sessionIDs, string(val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}

	count := 0
	for _, sessionID := range sessionIDs {
		if err := s.Delete(ctx, sessionID); err != nil {
			continue
		}
		count++
	}

	// Drop mappings whose session already expired out of Badger.
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, sessionID := range sessionIDs {
			if err := txn.Delete([]byte(badgerSessionUserKeyPrefix + userID + ":" + sessionID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("delete user mappings: %w", err)
	}
	return count, nil
}

// CleanupExpired removes expired sessions and user mappings that point at
// sessions Badger already evicted by TTL.
func (s *BadgerSessionStore) CleanupExpired(ctx context.Context) (int, error) {
	var expiredIDs []string
	var orphanKeys [][]byte
	now := time.Now()

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(badgerSessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var session Session
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &session)
			}); err != nil {
				continue
			}
			if session.IsExpiredAt(now) {
				expiredIDs = append(expiredIDs, session.ID)
			}
		}

		userPrefix := []byte(badgerSessionUserKeyPrefix)
		for it.Seek(userPrefix); it.ValidForPrefix(userPrefix); it.Next() {
			item := it.Item()
			var sessionID string
			if err := item.Value(func(val []byte) error {
				sessionID = string(val)
				return nil
			}); err != nil {
				continue
			}
			if _, err := txn.Get([]byte(badgerSessionKeyPrefix + sessionID)); errors.Is(err, badger.ErrKeyNotFound) {
				orphanKeys = append(orphanKeys, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan sessions: %w", err)
	}

	count := 0
	for _, id := range expiredIDs {
		if err := s.Delete(ctx, id); err != nil {
			continue
		}
		count++
	}

	if len(orphanKeys) > 0 {
		err = s.db.Update(func(txn *badger.Txn) error {
			for _, key := range orphanKeys {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return count, fmt.Errorf("delete orphan mappings: %w", err)
		}
	}
	return count, nil
}

// Count returns the total number of sessions in the store.
func (s *BadgerSessionStore) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(badgerSessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
