// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/metrics"
)

// ExpiredSessionCleaner is implemented by every session store.
type ExpiredSessionCleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// SessionCleanupService prunes expired sessions on an interval.
// A failed pass is logged and retried on the next tick.
type SessionCleanupService struct {
	store    ExpiredSessionCleaner
	interval time.Duration
	logger   zerolog.Logger
}

// NewSessionCleanupService creates the cleanup loop. Intervals below one
// second are raised to one second.
func NewSessionCleanupService(store ExpiredSessionCleaner, interval time.Duration) *SessionCleanupService {
	if interval < time.Second {
		interval = time.Second
	}
	return &SessionCleanupService{
		store:    store,
		interval: interval,
		logger:   logging.WithComponent("session-cleanup"),
	}
}

// Serve implements suture.Service.
func (s *SessionCleanupService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *SessionCleanupService) runOnce(ctx context.Context) {
	removed, err := s.store.CleanupExpired(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Session cleanup failed")
		return
	}
	if removed > 0 {
		metrics.SessionsCleanedUp.Add(float64(removed))
		s.logger.Debug().Int("removed", removed).Msg("Expired sessions removed")
	}
}

// String implements fmt.Stringer.
func (s *SessionCleanupService) String() string {
	return "session-cleanup"
}
