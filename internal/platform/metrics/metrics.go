package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the livestream gateway.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	errorsTotal         prometheus.Counter
	streamsStartedTotal prometheus.Counter
	streamsStoppedTotal prometheus.Counter
	streamsFailedTotal  prometheus.Counter
	startFailuresTotal  prometheus.Counter
	activeStreams       prometheus.Gauge
	playlistReady       prometheus.Histogram
	overlaysCreated     prometheus.Counter
	overlaysDeleted     prometheus.Counter
}

// New creates and registers Prometheus metrics for the gateway.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livestream_requests_total",
			Help: "Total number of HTTP requests by route pattern and status class",
		}, []string{"route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "livestream_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"route"}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livestream_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		streamsStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livestream_streams_started_total",
			Help: "Total number of transcoder processes launched",
		}),
		streamsStoppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livestream_streams_stopped_total",
			Help: "Total number of streams stopped on request or at shutdown",
		}),
		streamsFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livestream_streams_failed_total",
			Help: "Total number of streams whose transcoder exited unexpectedly",
		}),
		startFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livestream_start_failures_total",
			Help: "Total number of start requests that failed after validation",
		}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "livestream_active_streams",
			Help: "Number of streams currently registered",
		}),
		playlistReady: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "livestream_playlist_ready_seconds",
			Help:    "Time from transcoder launch until the first playlist is written",
			Buckets: []float64{0.5, 1, 2, 4, 6, 10, 20, 30, 60},
		}),
		overlaysCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livestream_overlays_created_total",
			Help: "Total number of overlays created",
		}),
		overlaysDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livestream_overlays_deleted_total",
			Help: "Total number of overlays deleted",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.errorsTotal,
		m.streamsStartedTotal,
		m.streamsStoppedTotal,
		m.streamsFailedTotal,
		m.startFailuresTotal,
		m.activeStreams,
		m.playlistReady,
		m.overlaysCreated,
		m.overlaysDeleted,
	)

	return m
}

// ObserveRequest records one finished request. route is the matched
// pattern, never the raw path, so stream ids do not explode cardinality.
func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(route, statusClass(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
	if status >= 400 {
		m.errorsTotal.Inc()
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// IncStreamsStarted increments the launched transcoder counter.
func (m *Metrics) IncStreamsStarted() {
	m.streamsStartedTotal.Inc()
}

// IncStreamsStopped increments the stopped stream counter.
func (m *Metrics) IncStreamsStopped() {
	m.streamsStoppedTotal.Inc()
}

// IncStreamsFailed increments the failed stream counter.
func (m *Metrics) IncStreamsFailed() {
	m.streamsFailedTotal.Inc()
}

// IncStartFailures increments the start failure counter.
func (m *Metrics) IncStartFailures() {
	m.startFailuresTotal.Inc()
}

// SetActiveStreams sets the active streams gauge.
func (m *Metrics) SetActiveStreams(n int) {
	m.activeStreams.Set(float64(n))
}

// ObservePlaylistReady records how long a stream took to produce its playlist.
func (m *Metrics) ObservePlaylistReady(d time.Duration) {
	m.playlistReady.Observe(d.Seconds())
}

// AddOverlaysCreated adds n to the created overlays counter.
func (m *Metrics) AddOverlaysCreated(n int) {
	m.overlaysCreated.Add(float64(n))
}

// AddOverlaysDeleted adds n to the deleted overlays counter.
func (m *Metrics) AddOverlaysDeleted(n int) {
	m.overlaysDeleted.Add(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active streams).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
