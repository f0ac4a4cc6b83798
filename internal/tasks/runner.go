// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/metrics"
)

var (
	// ErrQueueFull is returned by Submit when the queue has no free slot.
	ErrQueueFull = errors.New("task queue full")

	// ErrRunnerClosed is returned by Submit after shutdown has begun.
	ErrRunnerClosed = errors.New("task runner closed")
)

// Func is a unit of background work. The context carries the task timeout.
type Func func(ctx context.Context) error

// Config sizes the runner.
type Config struct {
	Workers      int
	QueueSize    int
	TaskTimeout  time.Duration
	DrainTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:      4,
		QueueSize:    1024,
		TaskTimeout:  5 * time.Second,
		DrainTimeout: 10 * time.Second,
	}
}

type task struct {
	name string
	ctx  context.Context
	fn   Func
}

// Runner executes fire-and-forget work on a fixed worker pool fed by a
// bounded queue. Submit never blocks. Task errors and panics are logged and
// counted and never reach the submitter.
type Runner struct {
	config Config
	queue  chan task

	mu     sync.RWMutex
	closed bool

	dropWarn rate.Sometimes
}

// NewRunner creates a runner. Tasks are queued immediately but only run
// while RunWithContext is active.
func NewRunner(config Config) *Runner {
	defaults := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = defaults.TaskTimeout
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = defaults.DrainTimeout
	}
	return &Runner{
		config:   config,
		queue:    make(chan task, config.QueueSize),
		dropWarn: rate.Sometimes{Interval: 10 * time.Second},
	}
}

// Submit enqueues fn. The task runs under a context detached from ctx's
// cancellation but carrying its values (request id, logger), bounded by the
// configured task timeout.
func (r *Runner) Submit(ctx context.Context, name string, fn Func) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		metrics.TasksDropped.WithLabelValues(name).Inc()
		return ErrRunnerClosed
	}

	select {
	case r.queue <- task{name: name, ctx: context.WithoutCancel(ctx), fn: fn}:
		metrics.TasksSubmitted.WithLabelValues(name).Inc()
		metrics.TaskQueueDepth.Set(float64(len(r.queue)))
		return nil
	default:
		metrics.TasksDropped.WithLabelValues(name).Inc()
		r.dropWarn.Do(func() {
			logging.Ctx(ctx).Warn().Str("task", name).Int("queue_size", cap(r.queue)).
				Msg("Background task queue full, dropping task")
		})
		return ErrQueueFull
	}
}

// Go submits fn and only logs a rejection. It is the fire-and-forget form
// used on the request path.
func (r *Runner) Go(ctx context.Context, name string, fn Func) {
	if r == nil {
		return
	}
	if err := r.Submit(ctx, name, fn); err != nil && !errors.Is(err, ErrQueueFull) {
		logging.Ctx(ctx).Debug().Err(err).Str("task", name).Msg("Background task rejected")
	}
}

// Pending returns the number of queued tasks.
func (r *Runner) Pending() int {
	return len(r.queue)
}

// RunWithContext runs the workers until ctx is canceled. It then refuses new
// tasks and drains the queue for at most DrainTimeout before returning
// ctx.Err().
func (r *Runner) RunWithContext(ctx context.Context) error {
	r.mu.Lock()
	r.closed = false
	r.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < r.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(ctx)
		}()
	}
	wg.Wait()

	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.drain()
	return ctx.Err()
}

func (r *Runner) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-r.queue:
			metrics.TaskQueueDepth.Set(float64(len(r.queue)))
			r.run(t)
		}
	}
}

// drain runs whatever is still queued, in parallel, until the queue is
// empty or the drain deadline passes. Anything left is counted as dropped.
func (r *Runner) drain() {
	deadline := time.Now().Add(r.config.DrainTimeout)

	var wg sync.WaitGroup
	for i := 0; i < r.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				select {
				case t := <-r.queue:
					r.run(t)
				default:
					return
				}
			}
		}()
	}
	wg.Wait()

	left := 0
	for {
		select {
		case t := <-r.queue:
			metrics.TasksDropped.WithLabelValues(t.name).Inc()
			left++
		default:
			metrics.TaskQueueDepth.Set(0)
			if left > 0 {
				logging.Warn().Int("dropped", left).Msg("Background tasks abandoned at shutdown")
			}
			return
		}
	}
}

// run executes one task with its own timeout and error boundary.
func (r *Runner) run(t task) {
	ctx, cancel := context.WithTimeout(t.ctx, r.config.TaskTimeout)
	defer cancel()

	start := time.Now()
	err := safeCall(ctx, t.fn)
	if err == nil {
		return
	}

	reason := "error"
	var p *panicError
	switch {
	case errors.As(err, &p):
		reason = "panic"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	}
	metrics.TasksFailed.WithLabelValues(t.name, reason).Inc()

	logging.Ctx(t.ctx).Warn().
		Err(err).
		Str("task", t.name).
		Str("reason", reason).
		Dur("elapsed", time.Since(start)).
		Msg("Background task failed")
}

type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("task panic: %v", p.value)
}

func safeCall(ctx context.Context, fn Func) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &panicError{value: v}
		}
	}()
	return fn(ctx)
}
