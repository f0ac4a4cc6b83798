// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PermissionCacheHits counts permission-set lookups served from cache.
	PermissionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authz_permission_cache_hits_total",
			Help: "Total number of permission set lookups served from cache",
		},
	)

	// PermissionCacheMisses counts permission-set lookups resolved by Casbin.
	PermissionCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authz_permission_cache_misses_total",
			Help: "Total number of permission set lookups resolved by the policy engine",
		},
	)
)

// RecordPermissionCacheHit records a cache hit.
func RecordPermissionCacheHit() {
	PermissionCacheHits.Inc()
}

// RecordPermissionCacheMiss records a cache miss.
func RecordPermissionCacheMiss() {
	PermissionCacheMisses.Inc()
}
