package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := InitMetrics(reg)
	return m, reg
}

func TestInitMetrics_registersAllMetrics(t *testing.T) {
	m, reg := newTestMetrics(t)
	if m == nil {
		t.Fatal("InitMetrics returned nil")
	}

	// Record a value for each metric so they appear in Gather.
	m.RecordHTTPRequest("GET", "/processes", 200, time.Millisecond, 0, 100)
	m.RecordProcessInitiation("expense_approval", "manager")
	m.RecordProcessDecision("expense_approval", "approved")
	m.RecordAutoApproval("expense_approval")
	m.RecordDispatch("expense_approval", "success", time.Millisecond)
	m.RecordLedgerRecord("expense")
	m.RecordClosingRun("closed")
	m.SetDefinitionsLoaded(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	expected := []string{
		"ringi_http_requests_total",
		"ringi_http_request_duration_seconds",
		"ringi_http_request_size_bytes",
		"ringi_http_response_size_bytes",
		"ringi_process_initiations_total",
		"ringi_process_decisions_total",
		"ringi_process_auto_approvals_total",
		"ringi_process_active",
		"ringi_dispatches_total",
		"ringi_dispatch_duration_seconds",
		"ringi_ledger_records_total",
		"ringi_closing_runs_total",
		"ringi_definitions_loaded",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordHTTPRequest("GET", "/processes/{processId}", 200, 50*time.Millisecond, 0, 1024)
	m.RecordHTTPRequest("GET", "/processes/{processId}", 200, 100*time.Millisecond, 0, 2048)
	m.RecordHTTPRequest("POST", "/processes", 500, 200*time.Millisecond, 512, 256)

	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/processes/{processId}", "200"))
	if val != 2 {
		t.Errorf("GET requests = %v, want 2", val)
	}
	val = testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/processes", "500"))
	if val != 1 {
		t.Errorf("POST requests = %v, want 1", val)
	}
}

func TestRecordProcessLifecycle(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordProcessInitiation("expense_approval", "manager")
	m.RecordProcessInitiation("expense_approval", "director")
	m.RecordProcessDecision("expense_approval", "approved")

	active := testutil.ToFloat64(m.ProcessActive.WithLabelValues("expense_approval"))
	if active != 1 {
		t.Errorf("active = %v, want 1 (two started, one decided)", active)
	}

	decisions := testutil.ToFloat64(m.ProcessDecisionsTotal.WithLabelValues("expense_approval", "approved"))
	if decisions != 1 {
		t.Errorf("approved decisions = %v, want 1", decisions)
	}
}

func TestRecordDispatch_outcomes(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordDispatch("contract_approval", "success", time.Millisecond)
	m.RecordDispatch("contract_approval", "failure", time.Millisecond)
	m.RecordDispatch("contract_approval", "failure", time.Millisecond)

	success := testutil.ToFloat64(m.DispatchesTotal.WithLabelValues("contract_approval", "success"))
	failure := testutil.ToFloat64(m.DispatchesTotal.WithLabelValues("contract_approval", "failure"))
	if success != 1 || failure != 2 {
		t.Errorf("success = %v failure = %v, want 1 and 2", success, failure)
	}
}

func TestMetricsMiddleware_usesRoutePattern(t *testing.T) {
	m, _ := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Get("/processes/{processId}", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	for _, id := range []string{"p-1", "p-2", "p-3"} {
		req := httptest.NewRequest(http.MethodGet, "/processes/"+id, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
	}

	// All three requests collapse into the single route pattern label.
	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/processes/{processId}", "200"))
	if val != 3 {
		t.Errorf("pattern-labelled requests = %v, want 3", val)
	}
}

func TestMetricsMiddleware_capturesStatus(t *testing.T) {
	m, _ := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/boom", "500"))
	if val != 1 {
		t.Errorf("500 requests = %v, want 1", val)
	}
}

func TestHandler_servesMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output should include default Go collector metrics")
	}
}

func TestRoutePattern_fallbackToPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/raw/path", nil)
	if got := routePattern(req); got != "/raw/path" {
		t.Errorf("routePattern = %q, want /raw/path", got)
	}
}
