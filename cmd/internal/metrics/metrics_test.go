package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		OperationsTotal,
		OperationDuration,
		InflightTasks,
		AuthAPIRequestsTotal,
		AuthAPIRequestDuration,
		CredCacheSyncFailures,
		CredCachePurgedTotal,
		RPCConnectionsCurrent,
		RPCCallsTotal,
		RPCDroppedFrames,
	}

	for i, c := range collectors {
		desc := make(chan *prometheus.Desc, 4)
		c.Describe(desc)
		close(desc)
		if <-desc == nil {
			t.Fatalf("collector %d has no descriptor", i)
		}
	}
}

func TestCounterVecIncrements(t *testing.T) {
	tests := []struct {
		name   string
		metric *prometheus.CounterVec
		labels prometheus.Labels
	}{
		{"operations", OperationsTotal, prometheus.Labels{"operation": "test_op", "code": "ok"}},
		{"auth_api", AuthAPIRequestsTotal, prometheus.Labels{"endpoint": "test", "outcome": "ok"}},
		{"credcache", CredCacheSyncFailures, prometheus.Labels{"operation": "test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(tt.metric.With(tt.labels))
			tt.metric.With(tt.labels).Inc()
			after := testutil.ToFloat64(tt.metric.With(tt.labels))
			if after != before+1 {
				t.Fatalf("expected %v, got %v", before+1, after)
			}
		})
	}
}
