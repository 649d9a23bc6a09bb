// Package metrics exposes Prometheus collectors for the scoring service.
//
// Every method is safe on a nil *Metrics, so callers that do not care about
// metrics (tests, the predict command) can pass nil.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spoof"

// Metrics owns a private registry so parallel tests never collide on the
// global one.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	uploads         *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	bonafideScore   prometheus.Histogram
	inFlight        prometheus.Gauge
	cleanupFailures prometheus.Counter
	batchSize       prometheus.Histogram
}

// New registers all collectors, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Scored uploads by mode (single, batch, cli) and outcome.",
		}, []string{"mode", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),
		bonafideScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bonafide_score",
			Help:      "Distribution of raw bonafide scores.",
			Buckets:   prometheus.LinearBuckets(-5, 1, 11),
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uploads_in_flight",
			Help:      "Uploads currently being decoded or scored.",
		}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "temp_cleanup_failures_total",
			Help:      "Temp file scopes that could not be fully removed.",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_files",
			Help:      "Number of files per batch request.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
	}
	m.registry.MustRegister(
		m.httpRequests,
		m.uploads,
		m.stageDuration,
		m.bonafideScore,
		m.inFlight,
		m.cleanupFailures,
		m.batchSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
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

func (m *Metrics) ObserveHTTP(method, route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveUpload(mode, outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) ObserveScore(score float64) {
	if m == nil {
		return
	}
	m.bonafideScore.Observe(score)
}

func (m *Metrics) ObserveBatch(files int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(files))
}

// InFlight adjusts the in-flight gauge by delta.
func (m *Metrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.inFlight.Add(delta)
}

func (m *Metrics) CleanupFailed() {
	if m == nil {
		return
	}
	m.cleanupFailures.Inc()
}
