// Package metrics holds the process-wide Prometheus collectors, registered on the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session manager metrics
var (
	// OperationsTotal counts completed manager operations by operation and result code.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sso_operations_total",
			Help: "Completed session manager operations by operation and result code",
		},
		[]string{"operation", "code"},
	)

	// OperationDuration tracks task latency from scheduling to delivery.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sso_operation_duration_seconds",
			Help:    "Session manager operation duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	// InflightTasks is the number of scheduled tasks that have not delivered yet.
	InflightTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sso_inflight_tasks",
			Help: "Session manager tasks currently in flight",
		},
	)
)

// Auth API metrics
var (
	// AuthAPIRequestsTotal counts outbound auth API calls by endpoint and outcome (ok/server/transport).
	AuthAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sso_auth_api_requests_total",
			Help: "Outbound auth API requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	// AuthAPIRequestDuration tracks outbound auth API latency.
	AuthAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sso_auth_api_request_duration_seconds",
			Help:    "Outbound auth API request duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)
)

// Credential cache metrics
var (
	// CredCacheSyncFailures counts best-effort cache sync failures by operation.
	CredCacheSyncFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sso_credcache_sync_failures_total",
			Help: "Credential cache sync failures by operation",
		},
		[]string{"operation"},
	)

	// CredCachePurgedTotal counts stale entries removed by reconcile.
	CredCachePurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sso_credcache_purged_total",
			Help: "Stale credential cache entries purged by reconcile",
		},
	)
)

// RPC gateway metrics
var (
	// RPCConnectionsCurrent is the number of open RPC connections.
	RPCConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sso_rpc_connections_current",
			Help: "Currently open RPC gateway connections",
		},
	)

	// RPCCallsTotal counts inbound RPC calls by method.
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sso_rpc_calls_total",
			Help: "Inbound RPC calls by method",
		},
		[]string{"method"},
	)

	// RPCDroppedFrames counts outbound frames dropped because the send queue was full or closed.
	RPCDroppedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sso_rpc_dropped_frames_total",
			Help: "Outbound RPC frames dropped on a full or closed send queue",
		},
	)
)
