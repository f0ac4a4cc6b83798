// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/gatehouse/internal/audit"
	"github.com/tomtom215/gatehouse/internal/tasks"
)

// Runner is a component that blocks until its context is canceled and
// then drains its pending work.
type Runner interface {
	RunWithContext(ctx context.Context) error
}

// RunnerService supervises a Runner.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService wraps runner under the given service name.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// NewAuditWriterService supervises the audit logger's batch writer.
func NewAuditWriterService(logger *audit.Logger) *RunnerService {
	return NewRunnerService("audit-writer", logger)
}

// NewTaskRunnerService supervises the background task pool.
func NewTaskRunnerService(runner *tasks.Runner) *RunnerService {
	return NewRunnerService("task-runner", runner)
}

// Serve implements suture.Service.
//
// A runner that returns while its context is still live has crashed and
// is restarted. Cancellation errors after shutdown are reported as
// ctx.Err() so suture treats them as a normal stop.
func (s *RunnerService) Serve(ctx context.Context) error {
	err := s.runner.RunWithContext(ctx)
	if ctx.Err() != nil {
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s stopped with error: %w", s.name, err)
		}
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", s.name, err)
	}
	return fmt.Errorf("%s exited unexpectedly", s.name)
}

// String implements fmt.Stringer.
func (s *RunnerService) String() string {
	return s.name
}
