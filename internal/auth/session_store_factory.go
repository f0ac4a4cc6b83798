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
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/gatehouse/internal/config"
)

// SessionStoreType defines the type of session storage backend.
type SessionStoreType string

const (
	// SessionStoreMemory uses in-memory storage (default, not persistent).
	SessionStoreMemory SessionStoreType = "memory"

	// SessionStoreBadger uses BadgerDB for persistent session storage.
	SessionStoreBadger SessionStoreType = "badger"

	// SessionStoreRedis uses Redis, shared between instances.
	SessionStoreRedis SessionStoreType = "redis"
)

// SessionStoreFactory opens the configured session backend and owns its
// connection.
type SessionStoreFactory struct {
	storeType SessionStoreType
	db        *badger.DB
	rdb       redis.UniversalClient
	prefix    string
}

// NewSessionStoreFactory opens the backend selected by cfg.Session.Store.
// Redis connectivity is checked with a ping bounded by ctx.
func NewSessionStoreFactory(ctx context.Context, sessionCfg config.SessionConfig, redisCfg config.RedisConfig) (*SessionStoreFactory, error) {
	factory := &SessionStoreFactory{storeType: SessionStoreType(sessionCfg.Store)}

	switch factory.storeType {
	case SessionStoreMemory, "":
		factory.storeType = SessionStoreMemory
	case SessionStoreBadger:
		opts := badger.DefaultOptions(sessionCfg.Path)
		opts.Logger = nil // Suppress BadgerDB logs

		db, err := badger.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("open badger db for sessions: %w", err)
		}
		factory.db = db
	case SessionStoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect redis for sessions: %w", err)
		}
		factory.rdb = rdb
		factory.prefix = redisCfg.KeyPrefix
	default:
		return nil, fmt.Errorf("unknown session store %q", sessionCfg.Store)
	}

	return factory, nil
}

// CreateStore creates a SessionStore based on the factory's configuration.
func (f *SessionStoreFactory) CreateStore() SessionStore {
	switch {
	case f.db != nil:
		return NewBadgerSessionStore(f.db)
	case f.rdb != nil:
		return NewRedisSessionStore(f.rdb, f.prefix)
	default:
		return NewMemorySessionStore()
	}
}

// Type returns the backend type.
func (f *SessionStoreFactory) Type() SessionStoreType {
	return f.storeType
}

// Close closes the underlying connection if one was opened.
func (f *SessionStoreFactory) Close() error {
	var errs []error
	if f.db != nil {
		errs = append(errs, f.db.Close())
	}
	if f.rdb != nil {
		errs = append(errs, f.rdb.Close())
	}
	return errors.Join(errs...)
}
