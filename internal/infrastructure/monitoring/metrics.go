package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bloom"

var latencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}

// Metrics holds all Prometheus metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsClosed *prometheus.CounterVec
	FilesStored    prometheus.Counter
	BytesStored    prometheus.Counter
	FilesRejected  *prometheus.CounterVec

	// Extraction metrics
	Extractions       *prometheus.CounterVec
	ExtractionsFailed *prometheus.CounterVec

	// Provider metrics
	ProviderCalls    *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	ProviderAttempts prometheus.Histogram
	ProviderRetries  prometheus.Counter
	BreakerState     *prometheus.GaugeVec

	// Analysis metrics
	Analyses         *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec

	startTime time.Time
	snapshot  Snapshot
	mu        sync.RWMutex
}

// Snapshot holds running totals for the JSON health endpoint.
type Snapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	ActiveSessions int64   `json:"active_sessions"`
	ProviderCalls  int64   `json:"provider_calls"`
	ProviderFails  int64   `json:"provider_failures"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	totalDuration  float64
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: latencyBuckets,
		}, []string{"method", "route"}),
		RequestSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 7),
		}, []string{"method", "route"}),

		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sessions_active",
			Help: "Number of live upload sessions",
		}),
		SessionsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_closed_total",
			Help: "Sessions removed, by reason",
		}, []string{"reason"}),
		FilesStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "files_stored_total",
			Help: "Files accepted into a session",
		}),
		BytesStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "files_stored_bytes_total",
			Help: "Bytes accepted into sessions",
		}),
		FilesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "files_rejected_total",
			Help: "Uploads refused, by reason",
		}, []string{"reason"}),

		Extractions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "extractions_total",
			Help: "Files normalized, by result kind and detected type",
		}, []string{"kind", "mime"}),
		ExtractionsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "extraction_failures_total",
			Help: "Files that could not be extracted, by detected type",
		}, []string{"mime"}),

		ProviderCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "provider_calls_total",
			Help: "Completion provider calls, by operation and outcome",
		}, []string{"operation", "outcome"}),
		ProviderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "provider_call_duration_seconds",
			Help:    "Provider call duration including retries",
			Buckets: latencyBuckets,
		}, []string{"operation"}),
		ProviderAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "provider_call_attempts",
			Help:    "Attempts made per provider call",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		ProviderRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "provider_retries_total",
			Help: "Provider attempts after the first",
		}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "provider_breaker_state",
			Help: "1 for the circuit breaker's current state",
		}, []string{"state"}),

		Analyses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "analyses_total",
			Help: "Finished analysis runs, by task and terminal state",
		}, []string{"task", "state"}),
		AnalysisDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "analysis_duration_seconds",
			Help:    "Analysis run duration",
			Buckets: latencyBuckets,
		}, []string{"task"}),
	}

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: "uptime_seconds",
		Help: "Backend uptime in seconds",
	}, func() float64 { return time.Since(m.startTime).Seconds() })

	m.BreakerState.WithLabelValues("closed").Set(1)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration, reqSize int64) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, route).Observe(float64(reqSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

func (m *Metrics) SessionOpened() {
	m.SessionsActive.Inc()
	m.mu.Lock()
	m.snapshot.ActiveSessions++
	m.mu.Unlock()
}

func (m *Metrics) SessionClosed(reason string) {
	m.SessionsActive.Dec()
	m.SessionsClosed.WithLabelValues(reason).Inc()
	m.mu.Lock()
	m.snapshot.ActiveSessions--
	m.mu.Unlock()
}

func (m *Metrics) FileStored(bytes int64) {
	m.FilesStored.Inc()
	m.BytesStored.Add(float64(bytes))
}

func (m *Metrics) FileRejected(reason string) {
	m.FilesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) Extracted(kind, mime string) {
	m.Extractions.WithLabelValues(kind, mime).Inc()
}

func (m *Metrics) ExtractionFailed(mime string) {
	m.ExtractionsFailed.WithLabelValues(mime).Inc()
}

// CompletionFinished records one provider call, retries included.
func (m *Metrics) CompletionFinished(operation, outcome string, attempts int, elapsed time.Duration) {
	m.ProviderCalls.WithLabelValues(operation, outcome).Inc()
	m.ProviderDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if attempts > 0 {
		m.ProviderAttempts.Observe(float64(attempts))
	}
	m.mu.Lock()
	m.snapshot.ProviderCalls++
	if outcome != "success" {
		m.snapshot.ProviderFails++
	}
	m.mu.Unlock()
}

func (m *Metrics) RetryAttempted() {
	m.ProviderRetries.Inc()
}

// BreakerStateChanged marks state as the only active breaker state.
func (m *Metrics) BreakerStateChanged(state string) {
	for _, s := range []string{"closed", "half-open", "open"} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.BreakerState.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) AnalysisFinished(task, state string, elapsed time.Duration) {
	m.Analyses.WithLabelValues(task, state).Inc()
	m.AnalysisDuration.WithLabelValues(task).Observe(elapsed.Seconds())
}

// Snapshot returns the running totals.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()

	if s.TotalRequests > 0 {
		s.AvgLatencyMs = s.totalDuration / float64(s.TotalRequests) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
