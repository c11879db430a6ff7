package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors. Each Metrics owns its
// registry so several servers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// previewDuration measures end-to-end preview latency.
	// Labels: axis
	previewDuration *prometheus.HistogramVec

	// transformsApplied counts transforms run by the pipeline.
	// Labels: transform (canonical name)
	transformsApplied *prometheus.CounterVec

	// transformDuration measures the time spent in each transform.
	// Labels: transform
	transformDuration *prometheus.HistogramVec

	// volumesLoaded counts volumes placed in the store.
	// Labels: source (upload, bids)
	volumesLoaded *prometheus.CounterVec

	// requestErrors counts error responses.
	// Labels: kind (not_found, invalid_input, upstream_parse, pipeline, internal)
	requestErrors *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		previewDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "augplayground",
			Name:      "preview_duration_seconds",
			Help:      "Preview request latency in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"axis"}),
		transformsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "augplayground",
			Subsystem: "pipeline",
			Name:      "transforms_total",
			Help:      "Total transforms applied",
		}, []string{"transform"}),
		transformDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "augplayground",
			Subsystem: "pipeline",
			Name:      "transform_duration_seconds",
			Help:      "Time spent applying a single transform",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transform"}),
		volumesLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "augplayground",
			Name:      "volumes_loaded_total",
			Help:      "Total volumes loaded into the store",
		}, []string{"source"}),
		requestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "augplayground",
			Name:      "request_errors_total",
			Help:      "Total error responses by error kind",
		}, []string{"kind"}),
	}
}

// TransformApplied records one pipeline step
func (m *Metrics) TransformApplied(name string, elapsed time.Duration) {
	m.transformsApplied.WithLabelValues(name).Inc()
	m.transformDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// ObservePreview records a preview's latency
func (m *Metrics) ObservePreview(axis string, elapsed time.Duration) {
	m.previewDuration.WithLabelValues(axis).Observe(elapsed.Seconds())
}

// VolumeLoaded counts a stored volume by source
func (m *Metrics) VolumeLoaded(source string) {
	m.volumesLoaded.WithLabelValues(source).Inc()
}

// RequestFailed counts an error response by kind
func (m *Metrics) RequestFailed(kind string) {
	m.requestErrors.WithLabelValues(kind).Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
