package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets     = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	dispatchDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets         = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the engine.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Process metrics
	ProcessInitiationsTotal *prometheus.CounterVec
	ProcessDecisionsTotal   *prometheus.CounterVec
	ProcessAutoApprovals    *prometheus.CounterVec
	ProcessActive           *prometheus.GaugeVec

	// Dispatch metrics
	DispatchesTotal  *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec

	// Ledger metrics
	LedgerRecordsTotal *prometheus.CounterVec
	ClosingRunsTotal   *prometheus.CounterVec

	// System metrics
	DefinitionsLoaded prometheus.Gauge
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringi_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ringi_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ringi_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ringi_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Processes
		ProcessInitiationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringi_process_initiations_total",
			Help: "Total number of initiated approval processes.",
		}, []string{"workflow_type", "approval_level"}),
		ProcessDecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringi_process_decisions_total",
			Help: "Total number of approval decisions.",
		}, []string{"workflow_type", "decision"}),
		ProcessAutoApprovals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringi_process_auto_approvals_total",
			Help: "Total number of auto-approved processes.",
		}, []string{"workflow_type"}),
		ProcessActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ringi_process_active",
			Help: "Number of processes awaiting a decision.",
		}, []string{"workflow_type"}),

		// Dispatch
		DispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringi_dispatches_total",
			Help: "Total number of post-approval dispatch attempts.",
		}, []string{"workflow_type", "outcome"}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ringi_dispatch_duration_seconds",
			Help:    "Dispatch action duration in seconds.",
			Buckets: dispatchDurationBuckets,
		}, []string{"workflow_type"}),

		// Ledger
		LedgerRecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringi_ledger_records_total",
			Help: "Total number of ledger records created.",
		}, []string{"kind"}),
		ClosingRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringi_closing_runs_total",
			Help: "Total number of monthly closing runs.",
		}, []string{"outcome"}),

		// System
		DefinitionsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ringi_definitions_loaded",
			Help: "Number of loaded workflow definitions.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Processes
		m.ProcessInitiationsTotal,
		m.ProcessDecisionsTotal,
		m.ProcessAutoApprovals,
		m.ProcessActive,
		// Dispatch
		m.DispatchesTotal,
		m.DispatchDuration,
		// Ledger
		m.LedgerRecordsTotal,
		m.ClosingRunsTotal,
		// System
		m.DefinitionsLoaded,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordProcessInitiation records an initiated process.
func (m *Metrics) RecordProcessInitiation(workflowType, approvalLevel string) {
	m.ProcessInitiationsTotal.WithLabelValues(workflowType, approvalLevel).Inc()
	m.ProcessActive.WithLabelValues(workflowType).Inc()
}

// RecordProcessDecision records an approval or rejection.
func (m *Metrics) RecordProcessDecision(workflowType, decision string) {
	m.ProcessDecisionsTotal.WithLabelValues(workflowType, decision).Inc()
	m.ProcessActive.WithLabelValues(workflowType).Dec()
}

// RecordAutoApproval records an auto-approved process.
func (m *Metrics) RecordAutoApproval(workflowType string) {
	m.ProcessAutoApprovals.WithLabelValues(workflowType).Inc()
}

// RecordDispatch records a dispatch attempt. Outcome is "success" or "failure".
func (m *Metrics) RecordDispatch(workflowType, outcome string, duration time.Duration) {
	m.DispatchesTotal.WithLabelValues(workflowType, outcome).Inc()
	m.DispatchDuration.WithLabelValues(workflowType).Observe(duration.Seconds())
}

// RecordLedgerRecord records a created ledger record. Kind is "expense",
// "contract", or "invoice".
func (m *Metrics) RecordLedgerRecord(kind string) {
	m.LedgerRecordsTotal.WithLabelValues(kind).Inc()
}

// RecordClosingRun records a monthly closing run. Outcome is "closed" or
// "skipped".
func (m *Metrics) RecordClosingRun(outcome string) {
	m.ClosingRunsTotal.WithLabelValues(outcome).Inc()
}

// SetDefinitionsLoaded sets the number of loaded workflow definitions.
func (m *Metrics) SetDefinitionsLoaded(count float64) {
	m.DefinitionsLoaded.Set(count)
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
