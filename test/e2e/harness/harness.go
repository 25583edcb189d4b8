// Package harness provides testing utilities for end-to-end daemon tests.
//
// A Harness boots a real studiod daemon on an ephemeral port and drives it
// over HTTP, so tests exercise the full stack: router, middleware, engine,
// processors and the optional SQLite store.
package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/unified-data-studio/engine/internal/config"
	"github.com/unified-data-studio/engine/internal/daemon"
	"github.com/unified-data-studio/engine/internal/persist"
	"github.com/unified-data-studio/engine/pkg/workflow"
)

// WorkflowResponse is the execute-workflow response envelope.
type WorkflowResponse struct {
	Status          string                 `json:"status"`
	WorkflowID      string                 `json:"workflow_id"`
	ExecutionTimeMS int64                  `json:"execution_time_ms"`
	Results         map[string]interface{} `json:"results"`
	Errors          map[string]string      `json:"errors"`
	Timestamp       string                 `json:"timestamp"`
}

// ErrorResponse is the envelope returned for rejected requests.
type ErrorResponse struct {
	Status     string `json:"status"`
	Error      string `json:"error"`
	WorkflowID string `json:"workflow_id"`
	Timestamp  string `json:"timestamp"`
}

// HealthResponse is the health endpoint envelope.
type HealthResponse struct {
	Status      string          `json:"status"`
	Service     string          `json:"service"`
	Version     string          `json:"version"`
	Timestamp   string          `json:"timestamp"`
	Persistence *persist.Health `json:"persistence"`
}

// ListResponse is the workflow list envelope.
type ListResponse struct {
	Status    string                `json:"status"`
	Workflows []*workflow.Execution `json:"workflows"`
	Count     int                   `json:"count"`
	Timestamp string                `json:"timestamp"`
}

type executeRequest struct {
	Name       string                 `json:"name"`
	Steps      []workflow.Step        `json:"steps"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// Harness runs a studiod daemon for the duration of one test.
type Harness struct {
	t       *testing.T
	cfg     *config.Config
	apiKey  string
	timeout time.Duration
	baseURL string
	client  *http.Client
	dbPath  string
}

// New boots a daemon on an ephemeral port and returns a harness bound to
// it. Cleanup is registered via t.Cleanup, so tests never shut the daemon
// down themselves.
//
// Example:
//
//	h := harness.New(t, harness.WithPersistence())
//	result := h.Execute("demo", steps)
func New(t *testing.T, opts ...Option) *Harness {
	t.Helper()

	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	cfg.Log.Level = "error"

	h := &Harness{
		t:       t,
		cfg:     cfg,
		timeout: 30 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(h); err != nil {
			t.Fatalf("apply harness option: %v", err)
		}
	}

	h.client = &http.Client{Timeout: h.timeout}

	d, err := daemon.New(cfg, daemon.Options{Version: "e2e"})
	if err != nil {
		t.Fatalf("create daemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Start(ctx)
	}()

	t.Cleanup(func() {
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := d.Shutdown(shutdownCtx); err != nil {
			t.Errorf("shutdown daemon: %v", err)
		}

		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("daemon exited with error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("daemon did not exit after shutdown")
		}
	})

	var addr string
	for i := 0; i < 200; i++ {
		if addr = d.Addr(); addr != "" {
			break
		}
		select {
		case err := <-errCh:
			t.Fatalf("daemon exited before binding: %v", err)
		case <-time.After(10 * time.Millisecond):
		}
	}
	if addr == "" {
		t.Fatal("daemon never bound a listener")
	}

	h.baseURL = "http://" + addr
	return h
}

// BaseURL returns the daemon's base URL, for tests that build raw
// requests without the harness helpers.
func (h *Harness) BaseURL() string {
	return h.baseURL
}

// Client returns the harness HTTP client. Requests built by hand do not
// carry the API key; use Do for that.
func (h *Harness) Client() *http.Client {
	return h.client
}

// DBPath returns the SQLite file path when WithPersistence is set.
func (h *Harness) DBPath() string {
	return h.dbPath
}

// Do sends a request through the harness client with the configured API
// key attached. The caller owns the response body.
func (h *Harness) Do(method, path string, body interface{}) *http.Response {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, h.baseURL+path, reader)
	if err != nil {
		h.t.Fatalf("build %s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.apiKey != "" {
		req.Header.Set("X-API-Key", h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// decodeJSON reads and decodes a response body, then closes it.
func (h *Harness) decodeJSON(resp *http.Response, out interface{}) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		h.t.Fatalf("decode response: %v\nBody: %s", err, data)
	}
}

// fatalStatus fails the test with the response status and body.
func (h *Harness) fatalStatus(resp *http.Response, context string, want int) {
	h.t.Helper()
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	h.t.Fatalf("%s returned %d, want %d\nBody: %s", context, resp.StatusCode, want, body)
}

// Execute submits a workflow and returns the response envelope. The
// request must be accepted; use ExecuteExpectError for rejection paths.
// Step failures do not reject the request, so the returned envelope may
// still report a failed status.
func (h *Harness) Execute(name string, steps []workflow.Step) *WorkflowResponse {
	h.t.Helper()

	resp := h.Do(http.MethodPost, "/execute-workflow", executeRequest{Name: name, Steps: steps})
	if resp.StatusCode != http.StatusOK {
		h.fatalStatus(resp, "execute-workflow", http.StatusOK)
	}

	var result WorkflowResponse
	h.decodeJSON(resp, &result)
	return &result
}

// ExecuteExpectError submits a workflow expecting the request itself to
// be rejected with the given HTTP status.
func (h *Harness) ExecuteExpectError(name string, steps []workflow.Step, wantStatus int) *ErrorResponse {
	h.t.Helper()

	resp := h.Do(http.MethodPost, "/execute-workflow", executeRequest{Name: name, Steps: steps})
	if resp.StatusCode != wantStatus {
		h.fatalStatus(resp, "execute-workflow", wantStatus)
	}

	var envelope ErrorResponse
	h.decodeJSON(resp, &envelope)
	return &envelope
}

// GetWorkflow fetches an execution snapshot by id.
func (h *Harness) GetWorkflow(id string) *workflow.Execution {
	h.t.Helper()

	resp := h.Do(http.MethodGet, "/workflows/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		h.fatalStatus(resp, "get workflow", http.StatusOK)
	}

	var execution workflow.Execution
	h.decodeJSON(resp, &execution)
	return &execution
}

// ListWorkflows fetches executions matching the query parameters.
func (h *Harness) ListWorkflows(query url.Values) *ListResponse {
	h.t.Helper()

	path := "/workflows"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp := h.Do(http.MethodGet, path, nil)
	if resp.StatusCode != http.StatusOK {
		h.fatalStatus(resp, "list workflows", http.StatusOK)
	}

	var list ListResponse
	h.decodeJSON(resp, &list)
	return &list
}

// CancelExpectError cancels a workflow expecting rejection with the
// given HTTP status.
func (h *Harness) CancelExpectError(id string, wantStatus int) *ErrorResponse {
	h.t.Helper()

	resp := h.Do(http.MethodDelete, "/workflows/"+id, nil)
	if resp.StatusCode != wantStatus {
		h.fatalStatus(resp, "cancel workflow", wantStatus)
	}

	var envelope ErrorResponse
	h.decodeJSON(resp, &envelope)
	return &envelope
}

// Health fetches the health endpoint.
func (h *Harness) Health() *HealthResponse {
	h.t.Helper()

	resp := h.Do(http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		h.fatalStatus(resp, "health", http.StatusOK)
	}

	var health HealthResponse
	h.decodeJSON(resp, &health)
	return &health
}

// LoadDefinition loads a workflow definition from a YAML file path. The
// path is relative to the test file location.
//
// Example:
//
//	def := h.LoadDefinition("testdata/pipeline.yaml")
//	result := h.Execute(def.Name, def.Steps)
func (h *Harness) LoadDefinition(path string) *workflow.Definition {
	h.t.Helper()

	def, err := workflow.LoadDefinition(path)
	if err != nil {
		h.t.Fatalf("load workflow definition %q: %v", path, err)
	}
	return def
}
