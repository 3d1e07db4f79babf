package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for scans, sessions, the backend
// client and the HTTP API. All methods are safe on a nil receiver so
// components can run without metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Scan metrics
	ScansTotal    *prometheus.CounterVec
	ScanRetries   prometheus.Counter
	ScanFields    prometheus.Histogram
	ScanDuration  prometheus.Histogram
	FramesSkipped prometheus.Counter

	// Session metrics
	SessionsActive     prometheus.Gauge
	SessionEvents      *prometheus.CounterVec
	DispatchesConsumed *prometheus.CounterVec

	// Backend metrics
	BackendCalls    *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec
}

// NewMetrics registers collectors with reg. Pass prometheus.NewRegistry() in
// tests to avoid duplicate registration on the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscan_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobscan_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscan_scans_total",
				Help: "Total number of page scans by outcome",
			},
			[]string{"outcome"},
		),
		ScanRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "jobscan_scan_retries_total",
				Help: "Scan attempts repeated because no fields were found",
			},
		),
		ScanFields: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobscan_scan_fields",
				Help:    "Number of form fields found per scan",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
			},
		),
		ScanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobscan_scan_duration_seconds",
				Help:    "Single extraction pass duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		FramesSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "jobscan_frames_skipped_total",
				Help: "Frames that failed or never replied during multi-frame scans",
			},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobscan_sessions_active",
				Help: "Number of stored application sessions",
			},
		),
		SessionEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscan_session_events_total",
				Help: "Session lifecycle events",
			},
			[]string{"event"},
		),
		DispatchesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscan_dispatches_total",
				Help: "SPA dispatch hand-offs by result",
			},
			[]string{"result"},
		),

		BackendCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscan_backend_calls_total",
				Help: "Calls to the matching backend",
			},
			[]string{"operation", "status"},
		),
		BackendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobscan_backend_duration_seconds",
				Help:    "Matching backend call duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
	}
}

// RecordHTTPRequest records an API request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordScan records the outcome of one extraction pass.
func (m *Metrics) RecordScan(outcome string, fields int, duration time.Duration) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(outcome).Inc()
	m.ScanFields.Observe(float64(fields))
	m.ScanDuration.Observe(duration.Seconds())
}

// IncScanRetry counts a hydration retry.
func (m *Metrics) IncScanRetry() {
	if m == nil {
		return
	}
	m.ScanRetries.Inc()
}

// IncFrameSkipped counts a frame dropped from aggregation.
func (m *Metrics) IncFrameSkipped() {
	if m == nil {
		return
	}
	m.FramesSkipped.Inc()
}

// SetSessionsActive sets the stored session gauge.
func (m *Metrics) SetSessionsActive(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

// IncSessionEvent counts created, updated, evicted, expired or skipped sessions.
func (m *Metrics) IncSessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

// IncDispatch counts dispatch hand-offs by result (linked, expired, mismatch).
func (m *Metrics) IncDispatch(result string) {
	if m == nil {
		return
	}
	m.DispatchesConsumed.WithLabelValues(result).Inc()
}

// RecordBackendCall records a matching backend call.
func (m *Metrics) RecordBackendCall(operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.BackendCalls.WithLabelValues(operation, status).Inc()
	m.BackendDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
