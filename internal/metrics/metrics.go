// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being processed",
		},
	)

	// Authorization Metrics
	AuthorizationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_outcomes_total",
			Help: "Authorization decisions by outcome code",
		},
		[]string{"code"}, // "granted", "guest", or a denial code
	)

	AuthorizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "authorization_duration_seconds",
			Help:    "Time spent resolving sessions and checking gates",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
		},
	)

	// Session Metrics
	SessionRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_refreshes_total",
			Help: "Background session TTL refreshes",
		},
		[]string{"result"}, // "success", "failure"
	)

	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_created_total",
			Help: "Sessions created by successful logins",
		},
	)

	SessionsCleanedUp = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_cleaned_up_total",
			Help: "Expired sessions removed by the cleanup service",
		},
	)

	// Audit Metrics
	AuditEventsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_events_written_total",
			Help: "Audit events persisted to the audit store",
		},
	)

	AuditEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_dropped_total",
			Help: "Audit events dropped before reaching the store",
		},
		[]string{"reason"}, // "buffer_full", "write_failed"
	)

	// Background Task Metrics
	TasksSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_tasks_submitted_total",
			Help: "Background tasks accepted by the runner",
		},
		[]string{"task"},
	)

	TasksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_tasks_dropped_total",
			Help: "Background tasks rejected because the queue was full or closed",
		},
		[]string{"task"},
	)

	TasksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_tasks_failed_total",
			Help: "Background tasks that returned an error or panicked",
		},
		[]string{"task", "reason"}, // reason: "error", "panic", "timeout"
	)

	TaskQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "background_task_queue_depth",
			Help: "Tasks waiting in the runner queue",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordAuthorization records one authorization decision.
func RecordAuthorization(code string, duration time.Duration) {
	AuthorizationOutcomes.WithLabelValues(code).Inc()
	AuthorizationDuration.Observe(duration.Seconds())
}

// RecordSessionRefresh records the result of a background refresh.
func RecordSessionRefresh(err error) {
	if err != nil {
		SessionRefreshes.WithLabelValues("failure").Inc()
		return
	}
	SessionRefreshes.WithLabelValues("success").Inc()
}

// RecordAuditDrop records audit events lost before persistence.
func RecordAuditDrop(reason string, count int) {
	AuditEventsDropped.WithLabelValues(reason).Add(float64(count))
}
