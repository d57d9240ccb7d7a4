// Package metrics defines the Prometheus collectors exported by the store.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docstore"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// bulkBatches counts bulk writes.
	// Labels: mode (generate, import), status (ok, error)
	bulkBatches *prometheus.CounterVec

	// bulkItems counts per-item results.
	// Labels: mode, result (ok, noop, or the error name)
	bulkItems *prometheus.CounterVec

	bulkDuration *prometheus.HistogramVec
	batchSize    prometheus.Histogram
	lastSeq      prometheus.Gauge

	// httpRequests counts handled requests.
	// Labels: method, route, code
	httpRequests *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		bulkBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "batches_total",
			Help:      "Bulk write requests by mode and status",
		}, []string{"mode", "status"}),
		bulkItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "items_total",
			Help:      "Bulk write items by mode and result",
		}, []string{"mode", "result"}),
		bulkDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "duration_seconds",
			Help:      "Bulk write latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "batch_size",
			Help:      "Number of documents per bulk write",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}),
		lastSeq: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "changes",
			Name:      "last_seq",
			Help:      "Highest sequence number assigned",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordBatch records a finished bulk write.
func (m *Metrics) RecordBatch(mode string, size int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}

	m.bulkBatches.WithLabelValues(mode, status).Inc()
	m.bulkDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	m.batchSize.Observe(float64(size))
}

// RecordItem records one item result.
func (m *Metrics) RecordItem(mode, result string) {
	if m == nil {
		return
	}

	m.bulkItems.WithLabelValues(mode, result).Inc()
}

// SetLastSeq publishes the newest sequence.
func (m *Metrics) SetLastSeq(seq int64) {
	if m == nil {
		return
	}

	m.lastSeq.Set(float64(seq))
}

// RecordRequest records one handled HTTP request.
func (m *Metrics) RecordRequest(method, route, code string) {
	if m == nil {
		return
	}

	m.httpRequests.WithLabelValues(method, route, code).Inc()
}
