// Package metrics declares the Prometheus collectors exposed by the server's
// side HTTP listener and the small helpers used to update them from the
// request path without adding measurable overhead to it.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsActive tracks currently open client connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "minidb_connections_active",
		Help: "Number of client connections currently open.",
	})

	// RequestsTotal counts completed requests by operation and outcome.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minidb_requests_total",
		Help: "Total number of completed requests by operation and status.",
	}, []string{"operation", "status"})

	// RequestDuration measures the time spent handling one request line:
	// decoding it, resolving its collection, executing the operation, and
	// updating the per-collection gauges.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "minidb_request_duration_seconds",
		Help:    "Time spent handling one request line, from decode to response.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// Documents reports the current document count per collection.
	Documents = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "minidb_documents",
		Help: "Current document count per collection.",
	}, []string{"database"})

	// StoreCapacity reports the current bucket array capacity per
	// collection, observing rehash events as step changes.
	StoreCapacity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "minidb_store_capacity",
		Help: "Current store bucket array capacity per collection.",
	}, []string{"database"})
)

// Handler returns the HTTP handler serving the Prometheus text exposition
// format, mounted on the side metrics listener at GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer times one operation and records it to RequestDuration on Observe.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() Timer {
	return Timer{start: time.Now()}
}

// ObserveSeconds records the elapsed time since NewTimer against the given
// operation label.
func (t Timer) ObserveSeconds(operation string) {
	RequestDuration.WithLabelValues(operation).Observe(time.Since(t.start).Seconds())
}

// ObserveCollection sets the per-collection document-count and
// store-capacity gauges for database. Called after the collection lock has
// been released, so gauge updates never add to the time a request holds it.
func ObserveCollection(database string, documentCount, storeCapacity int) {
	Documents.WithLabelValues(database).Set(float64(documentCount))
	StoreCapacity.WithLabelValues(database).Set(float64(storeCapacity))
}
