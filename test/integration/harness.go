// Package integration provides a reusable test harness for end-to-end
// testing of the Ringi approval workflow server. It starts a full HTTP
// server with in-memory stores and the built-in workflow definitions.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ringihq/ringi/internal/definition"
	"github.com/ringihq/ringi/internal/dispatch"
	"github.com/ringihq/ringi/internal/idempotency"
	"github.com/ringihq/ringi/internal/ledger"
	"github.com/ringihq/ringi/internal/observability"
	"github.com/ringihq/ringi/internal/transport"
	"github.com/ringihq/ringi/internal/workflow"
	"github.com/ringihq/ringi/model"
)

// TestHarness encapsulates a fully wired server instance for integration
// testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server

	// Internal components exposed for advanced test scenarios.
	Registry *definition.Registry
	Store    *workflow.MemoryProcessStore
	Engine   *workflow.Engine
	Guard    *idempotency.MemoryGuard
	Ledger   *ledger.MemoryGateway
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	definitions []model.WorkflowDefinition
}

// WithDefinitions replaces the built-in workflow definitions.
func WithDefinitions(defs ...model.WorkflowDefinition) HarnessOption {
	return func(c *harnessConfig) {
		c.definitions = defs
	}
}

// NewTestHarness creates and starts a full server instance. The server is
// automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{}
	for _, opt := range opts {
		opt(hc)
	}
	if len(hc.definitions) == 0 {
		hc.definitions = definition.Builtin()
	}

	h := &TestHarness{t: t}

	// Step 1: Registry and stores.
	h.Registry = definition.NewRegistry(hc.definitions)
	h.Store = workflow.NewMemoryProcessStore()
	h.Guard = idempotency.NewMemoryGuard()
	h.Ledger = ledger.NewMemoryGateway(h.Guard, nil)

	// Step 2: Dispatch handlers feed approved processes into the ledger.
	dispatcher := dispatch.NewRegistry(nil)
	dispatcher.Register("expense_approval", func(ctx context.Context, processID string, payload map[string]any) error {
		_, err := h.Ledger.RegisterExpense(ctx, processID, payload)
		return err
	})
	dispatcher.Register("contract_approval", func(ctx context.Context, processID string, payload map[string]any) error {
		_, err := h.Ledger.RegisterContract(ctx, processID, payload)
		return err
	})

	// Step 3: Engine and router.
	h.Engine = workflow.NewEngine(h.Registry, h.Store, dispatcher)

	router := transport.NewRouter(transport.Dependencies{
		Engine: h.Engine,
		Ledger: h.Ledger,
		Checks: observability.ReadinessChecks{
			DefinitionsLoaded: func() bool { return h.Registry.Len() > 0 },
			ProcessStore:      h.Store,
		},
	})

	// Step 4: Start test server.
	h.server = httptest.NewServer(router)
	t.Cleanup(func() {
		h.server.Close()
	})

	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// --- HTTP client helpers ---

// GET performs a GET request.
func (h *TestHarness) GET(path string) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil)
}

// POST performs a POST request with a JSON body.
func (h *TestHarness) POST(path string, body any) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body)
}

func (h *TestHarness) doRequest(method, path string, body any) *http.Response {
	h.t.Helper()

	url := h.server.URL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses
// the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// --- Fixtures ---

// ExpenseRequest returns an initiation body for an expense approval.
func ExpenseRequest(amount float64) map[string]any {
	return map[string]any{
		"workflow_type": "expense_approval",
		"initiator":     "alice",
		"payload": map[string]any{
			"amount":      amount,
			"description": "team offsite",
		},
	}
}

// ContractRequest returns an initiation body for a contract approval.
func ContractRequest(amount float64) map[string]any {
	return map[string]any{
		"workflow_type": "contract_approval",
		"initiator":     "bob",
		"payload": map[string]any{
			"amount":        amount,
			"counterparty":  "Acme GmbH",
			"contract_name": "support retainer",
		},
	}
}

// FormatJSON converts a value to indented JSON for test output.
func FormatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
