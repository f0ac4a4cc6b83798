// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package audit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/metrics"
)

// Drop reasons reported to metrics.
const (
	DropBufferFull  = "buffer_full"
	DropWriteFailed = "write_failed"
)

// Config holds configuration for the audit logger.
type Config struct {
	// Enabled controls whether audit logging is active.
	Enabled bool `json:"enabled"`

	// BufferSize is the size of the async write buffer.
	BufferSize int `json:"buffer_size"`

	// BatchSize caps how many buffered events go to one SaveBatch call.
	BatchSize int `json:"batch_size"`

	// FlushInterval bounds how long a partial batch waits.
	FlushInterval time.Duration `json:"flush_interval"`

	// WriteTimeout bounds a single SaveBatch call.
	WriteTimeout time.Duration `json:"write_timeout"`

	// LogToStdout also writes events to the application log.
	LogToStdout bool `json:"log_to_stdout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		BufferSize:    1000,
		BatchSize:     100,
		FlushInterval: time.Second,
		WriteTimeout:  5 * time.Second,
	}
}

// Logger is the fire-and-forget audit writer. Log never blocks: events are
// buffered and persisted by RunWithContext, and dropped (and counted) when
// the buffer is full or the store fails.
type Logger struct {
	config    *Config
	store     Store
	eventChan chan Event

	mu      sync.RWMutex
	enabled bool

	dropWarn  rate.Sometimes
	writeWarn rate.Sometimes
}

// NewLogger creates a new audit logger. Nothing is persisted until
// RunWithContext is running.
func NewLogger(store Store, config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = defaults.FlushInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	return &Logger{
		config:    config,
		store:     store,
		eventChan: make(chan Event, config.BufferSize),
		enabled:   config.Enabled,
		dropWarn:  rate.Sometimes{Interval: 10 * time.Second},
		writeWarn: rate.Sometimes{Interval: 10 * time.Second},
	}
}

// Log records an audit event. It fills in ID and Timestamp when unset.
func (l *Logger) Log(event Event) {
	if l == nil || !l.Enabled() {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case l.eventChan <- event:
	default:
		metrics.RecordAuditDrop(DropBufferFull, 1)
		l.dropWarn.Do(func() {
			logging.Warn().Str("event_id", event.ID).Int("buffer_size", cap(l.eventChan)).
				Msg("Audit event buffer full, dropping event")
		})
	}
}

// RunWithContext persists buffered events until ctx is canceled, then drains
// what is left in the buffer and returns ctx.Err().
func (l *Logger) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, l.config.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		l.writeBatch(batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			l.drain(batch)
			return ctx.Err()
		case event := <-l.eventChan:
			batch = append(batch, event)
			if len(batch) >= l.config.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// drain writes the pending batch plus everything still buffered.
func (l *Logger) drain(batch []Event) {
	for {
		select {
		case event := <-l.eventChan:
			batch = append(batch, event)
			if len(batch) >= l.config.BatchSize {
				l.writeBatch(batch)
				batch = batch[:0]
			}
		default:
			if len(batch) > 0 {
				l.writeBatch(batch)
			}
			return
		}
	}
}

// writeBatch persists a batch. Failures, including panics in the store, are
// logged and counted; they never propagate.
func (l *Logger) writeBatch(batch []Event) {
	if l.config.LogToStdout {
		for i := range batch {
			l.logToStdout(&batch[i])
		}
	}
	if l.store == nil {
		return
	}

	if err := l.save(batch); err != nil {
		metrics.RecordAuditDrop(DropWriteFailed, len(batch))
		l.writeWarn.Do(func() {
			logging.Error().Err(err).Int("events", len(batch)).Msg("Failed to save audit events")
		})
		return
	}
	metrics.AuditEventsWritten.Add(float64(len(batch)))
}

func (l *Logger) save(batch []Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audit store panic: %v", r)
		}
	}()

	// Detached from the request that produced the events.
	ctx, cancel := context.WithTimeout(context.Background(), l.config.WriteTimeout)
	defer cancel()
	return l.store.SaveBatch(ctx, batch)
}

// logToStdout writes an event to the application log in JSON format.
func (l *Logger) logToStdout(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal audit event")
		return
	}
	logging.Info().RawJSON("event", data).Msg("Audit event")
}

// Query retrieves events matching the filter.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Count returns the number of events matching the filter.
func (l *Logger) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return l.store.Count(ctx, filter)
}

// SetEnabled enables or disables audit logging.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// Enabled returns whether audit logging is enabled.
func (l *Logger) Enabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled
}

// Pending returns the number of buffered events not yet written.
func (l *Logger) Pending() int {
	return len(l.eventChan)
}

// SourceFromRequest creates a Source from an HTTP request. The first
// X-Forwarded-For hop wins over X-Real-IP and RemoteAddr.
func SourceFromRequest(r *http.Request) Source {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		ip = strings.TrimSpace(first)
	} else if xri := r.Header.Get("X-Real-IP"); xri != "" {
		ip = xri
	}

	return Source{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}
