package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors shared by the sync loop, the bulk
// syncer, the replication worker and the HTTP layer.
type Metrics struct {
	OutboxPending     prometheus.Gauge
	SyncDispatches    *prometheus.CounterVec
	SyncCycleDuration prometheus.Histogram

	BulkSyncResults *prometheus.CounterVec

	ReplicationEvents       *prometheus.CounterVec
	WorkerMessagesProcessed *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers all collectors on reg. A nil registerer falls
// back to the default one.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_pending_entries",
			Help:      "Number of outbox entries currently pending or syncing.",
		}),
		SyncDispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_dispatches_total",
			Help:      "Outbox dispatch attempts by entity type and outcome.",
		}, []string{"entity_type", "outcome"}),
		SyncCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_cycle_duration_seconds",
			Help:      "Duration of a full outbox drain cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		BulkSyncResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_sync_results_total",
			Help:      "Initial bulk sync results by entity type and status.",
		}, []string{"entity_type", "status"}),
		ReplicationEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replication_events_total",
			Help:      "Replication decisions by direction and outcome.",
		}, []string{"direction", "outcome"}),
		WorkerMessagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_messages_processed_total",
			Help:      "Stream messages processed by the replication worker.",
		}, []string{"stream", "result"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path and status code.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and path.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	reg.MustRegister(
		m.OutboxPending,
		m.SyncDispatches,
		m.SyncCycleDuration,
		m.BulkSyncResults,
		m.ReplicationEvents,
		m.WorkerMessagesProcessed,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}
