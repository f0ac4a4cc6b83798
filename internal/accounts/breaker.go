// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/metrics"
)

// BreakerSettings configures BreakerStore.
type BreakerSettings struct {
	Name        string
	MaxFailures uint32
	Timeout     time.Duration
}

// BreakerStore wraps a Store with a circuit breaker so a failing database
// fails fast instead of holding every request for the full deadline.
//
// Lookup misses count as successes: a missing account is an answer, not an
// outage.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

var _ Store = (*BreakerStore)(nil)

// NewBreakerStore wraps next.
func NewBreakerStore(next Store, s BreakerSettings) *BreakerStore {
	if s.Name == "" {
		s.Name = "account-store"
	}
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsNotFound(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &BreakerStore{next: next, cb: cb, name: s.Name}
}

// State returns the current breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	switch {
	case err == nil, IsNotFound(err):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return result, err
}

// castResult type-asserts the breaker result.
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func (b *BreakerStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	return castResult[*Account](b.execute(func() (any, error) {
		return b.next.GetAccount(ctx, id)
	}))
}

func (b *BreakerStore) GetUser(ctx context.Context, id string) (*User, error) {
	return castResult[*User](b.execute(func() (any, error) {
		return b.next.GetUser(ctx, id)
	}))
}

func (b *BreakerStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return castResult[*User](b.execute(func() (any, error) {
		return b.next.GetUserByEmail(ctx, email)
	}))
}

func (b *BreakerStore) ListAccountsByUser(ctx context.Context, userID string) ([]*Account, error) {
	return castResult[[]*Account](b.execute(func() (any, error) {
		return b.next.ListAccountsByUser(ctx, userID)
	}))
}

func (b *BreakerStore) SetSuspended(ctx context.Context, accountID string, suspended bool) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.next.SetSuspended(ctx, accountID, suspended)
	})
	return err
}

// Ping probes the wrapped store directly so readiness reflects the
// database even while the breaker is open.
func (b *BreakerStore) Ping(ctx context.Context) error {
	if p, ok := b.next.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
