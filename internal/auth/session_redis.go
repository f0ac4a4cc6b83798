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

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis transport failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisSessionStore keeps sessions in Redis. Each session is a JSON string
// whose key TTL tracks ExpiresAt; a per-user set indexes session ids.
type RedisSessionStore struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore creates a store using keys under prefix.
func NewRedisSessionStore(rdb redis.UniversalClient, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = "gatehouse:"
	}
	return &RedisSessionStore{rdb: rdb, prefix: prefix}
}

func (s *RedisSessionStore) key(id string) string {
	return s.prefix + "session:" + id
}

func (s *RedisSessionStore) userKey(userID string) string {
	return s.prefix + "user_sessions:" + userID
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

// Create stores a new session.
func (s *RedisSessionStore) Create(ctx context.Context, session *Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return ErrSessionExpired
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(session.ID), data, ttl)
		pipe.SAdd(ctx, s.userKey(session.UserID), session.ID)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Get retrieves a session by ID. Redis evicts expired keys, so an expired
// session normally reads as not found; ExpiresAt is still checked to cover
// clock skew between the app and Redis.
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return &session, nil
}

// Refresh extends a live session under WATCH so a concurrent Delete is not
// undone by a late refresh.
func (s *RedisSessionStore) Refresh(ctx context.Context, id string, ttl time.Duration) (time.Time, error) {
	key := s.key(id)
	var expiresAt time.Time

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}

		var session Session
		if err := json.Unmarshal(data, &session); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		now := time.Now().UTC()
		if session.IsExpiredAt(now) {
			return ErrSessionExpired
		}
		session.LastActivityAt = now
		session.ExpiresAt = now.Add(ttl)

		updated, err := json.Marshal(&session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, ttl)
			return nil
		})
		if err == nil {
			expiresAt = session.ExpiresAt
		}
		return err
	}

	for attempt := 0; attempt < 3; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return expiresAt, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSessionExpired):
			return time.Time{}, err
		default:
			return time.Time{}, unavailable(err)
		}
	}
	// Lost every race to another writer; the other refresh already extended it.
	return time.Time{}, unavailable(redis.TxFailedErr)
}

// Delete removes a session by ID.
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	data, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return unavailable(err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		// Corrupt record: drop it regardless.
		if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
			return unavailable(err)
		}
		return nil
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(id))
		pipe.SRem(ctx, s.userKey(session.UserID), id)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// DeleteByUserID removes all sessions indexed for the user.
func (s *RedisSessionStore) DeleteByUserID(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)
	ids, err := s.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}

	var deleted *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, keys...)
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, unavailable(err)
	}
	return int(deleted.Val()), nil
}

// CleanupExpired prunes user index entries whose session key Redis has
// already expired. Session keys themselves expire natively, so the count is
// the number of pruned index entries.
func (s *RedisSessionStore) CleanupExpired(ctx context.Context) (int, error) {
	pruned := 0
	iter := s.rdb.Scan(ctx, 0, s.prefix+"user_sessions:*", 100).Iterator()
	for iter.Next(ctx) {
		userKey := iter.Val()
		ids, err := s.rdb.SMembers(ctx, userKey).Result()
		if err != nil {
			return pruned, unavailable(err)
		}
		for _, id := range ids {
			n, err := s.rdb.Exists(ctx, s.key(id)).Result()
			if err != nil {
				return pruned, unavailable(err)
			}
			if n == 0 {
				if err := s.rdb.SRem(ctx, userKey, id).Err(); err != nil {
					return pruned, unavailable(err)
				}
				pruned++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return pruned, unavailable(err)
	}
	return pruned, nil
}

// Ping checks connectivity.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
