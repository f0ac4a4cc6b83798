// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package accounts

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*User
	byEmail  map[string]string
	accounts map[string]*Account
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*User),
		byEmail:  make(map[string]string),
		accounts: make(map[string]*Account),
	}
}

// PutUser inserts or replaces a user.
func (s *MemoryStore) PutUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.users[u.ID]; ok {
		delete(s.byEmail, strings.ToLower(old.Email))
	}
	s.users[u.ID] = cloneUser(u)
	s.byEmail[strings.ToLower(u.Email)] = u.ID
}

// PutAccount inserts or replaces an account.
func (s *MemoryStore) PutAccount(a *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = cloneAccount(a)
}

// GetAccount returns a copy of the account.
func (s *MemoryStore) GetAccount(_ context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

// GetUser returns a copy of the user.
func (s *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

// GetUserByEmail looks a user up by case-insensitive email.
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

// ListAccountsByUser returns the user's accounts ordered by id.
func (s *MemoryStore) ListAccountsByUser(_ context.Context, userID string) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, cloneAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetSuspended flips the suspension flag.
func (s *MemoryStore) SetSuspended(_ context.Context, accountID string, suspended bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	a.Suspended = suspended
	return nil
}
