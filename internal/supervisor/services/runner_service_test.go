// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/gatehouse/internal/audit"
	"github.com/tomtom215/gatehouse/internal/tasks"
)

type funcRunner func(ctx context.Context) error

func (f funcRunner) RunWithContext(ctx context.Context) error { return f(ctx) }

func TestRunnerService_Serve(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		runner  funcRunner
		cancel  bool
		wantErr func(error) bool
	}{
		{
			name:    "canceled run is a normal stop",
			runner:  func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() },
			cancel:  true,
			wantErr: func(err error) bool { return errors.Is(err, context.Canceled) },
		},
		{
			name:    "failure while live is reported",
			runner:  func(context.Context) error { return boom },
			wantErr: func(err error) bool { return errors.Is(err, boom) },
		},
		{
			name:   "early nil return is a crash",
			runner: func(context.Context) error { return nil },
			wantErr: func(err error) bool {
				return err != nil && !errors.Is(err, context.Canceled)
			},
		},
		{
			name:    "drain error after cancel is kept",
			runner:  func(ctx context.Context) error { <-ctx.Done(); return boom },
			cancel:  true,
			wantErr: func(err error) bool { return errors.Is(err, boom) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				cancel()
			}
			err := NewRunnerService("test-runner", tt.runner).Serve(ctx)
			if !tt.wantErr(err) {
				t.Errorf("Serve() error = %v", err)
			}
		})
	}
}

func TestRunnerService_Names(t *testing.T) {
	t.Parallel()
	if got := NewAuditWriterService(audit.NewLogger(nil, nil)).String(); got != "audit-writer" {
		t.Errorf("audit writer name = %q", got)
	}
	if got := NewTaskRunnerService(tasks.NewRunner(tasks.Config{})).String(); got != "task-runner" {
		t.Errorf("task runner name = %q", got)
	}
}

func TestAuditWriterService_DrainsOnShutdown(t *testing.T) {
	t.Parallel()
	store := audit.NewMemoryStore(10)
	logger := audit.NewLogger(store, &audit.Config{Enabled: true, FlushInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewAuditWriterService(logger).Serve(ctx) }()

	logger.Log(audit.Event{Type: audit.EventTypeAction, Outcome: audit.OutcomeSuccess, Action: "create_listing"})
	logger.Log(audit.Event{Type: audit.EventTypeLogout, Outcome: audit.OutcomeSuccess, Action: "logout"})
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("audit writer did not stop")
	}
	if store.Len() != 2 {
		t.Errorf("persisted = %d, want 2", store.Len())
	}
}

func TestTaskRunnerService_UnderSupervisor(t *testing.T) {
	t.Parallel()
	runner := tasks.NewRunner(tasks.Config{Workers: 2})
	sup := suture.New("background-layer", suture.Spec{Timeout: 2 * time.Second})
	sup.Add(NewTaskRunnerService(runner))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	var ran atomic.Int32
	finished := make(chan struct{})
	if err := runner.Submit(context.Background(), "refresh_session", func(context.Context) error {
		ran.Add(1)
		close(finished)
		return nil
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	cancel()
	<-errCh

	if ran.Load() != 1 {
		t.Errorf("ran = %d, want 1", ran.Load())
	}
}
