// Package metrics wires the ingest pipeline's Prometheus
// instrumentation, grounded on the teacher's internal/metrics package
// idiom (promauto-registered counters/gauges with a small set of
// recording helper methods) but scoped to one Handle instance rather
// than package-level globals, so multiple Handles in one process (or
// in tests) don't collide on metric registration.
package metrics

import (
	stderrors "errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/auxoncorp/modality-tracing-go/pkg/errors"
)

// Metrics holds one Handle's counters and gauges.
type Metrics struct {
	QueueDepth    prometheus.Gauge
	RecordsSent   prometheus.Counter
	RecordsDropped *prometheus.CounterVec
	TimelineBinds *prometheus.CounterVec
	LRUEvictions  prometheus.Counter
}

// New registers a fresh metric set against reg. Passing nil builds the
// collectors without registering them anywhere.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "modality_tracing_queue_depth",
			Help: "Current number of envelopes buffered in the ingest queue",
		}),
		RecordsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "modality_tracing_records_sent_total",
			Help: "Total number of records successfully transmitted to the remote session",
		}),
		RecordsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "modality_tracing_records_dropped_total",
			Help: "Total number of records dropped by the ingest consumer, by error kind",
		}, []string{"kind"}),
		TimelineBinds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "modality_tracing_timeline_binds_total",
			Help: "Total number of timeline binder outcomes, by outcome",
		}, []string{"outcome"}),
		LRUEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "modality_tracing_timeline_lru_evictions_total",
			Help: "Total number of timeline LRU slots reused via eviction",
		}),
	}
}

// CountDrop increments RecordsDropped, labeled by the error's Kind
// when it's one of this module's typed errors, or "unknown" otherwise.
func (m *Metrics) CountDrop(err error) {
	kind := "unknown"
	var appErr *apperrors.Error
	if stderrors.As(err, &appErr) {
		kind = string(appErr.Kind)
	}
	m.RecordsDropped.WithLabelValues(kind).Inc()
}
