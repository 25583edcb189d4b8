package e2e

import (
	"net/http"
	"strings"
	"testing"

	"github.com/unified-data-studio/engine/pkg/workflow"
	"github.com/unified-data-studio/engine/test/e2e/harness"
)

func TestGraphErrorsRejectTheRequest(t *testing.T) {
	h := harness.New(t)

	tests := []struct {
		name        string
		steps       []workflow.Step
		wantContain string
	}{
		{
			name:        "empty steps",
			steps:       []workflow.Step{},
			wantContain: "at least one step",
		},
		{
			name: "unknown dependency",
			steps: []workflow.Step{
				{ID: "a", Operation: "delay", Dependencies: []string{"ghost"}},
			},
			wantContain: "non-existent step",
		},
		{
			name: "cycle",
			steps: []workflow.Step{
				{ID: "a", Operation: "delay", Dependencies: []string{"b"}},
				{ID: "b", Operation: "delay", Dependencies: []string{"a"}},
			},
			wantContain: "circular dependency",
		},
		{
			name: "duplicate step id",
			steps: []workflow.Step{
				{ID: "a", Operation: "delay"},
				{ID: "a", Operation: "delay"},
			},
			wantContain: "duplicate step id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope := h.ExecuteExpectError(tt.name, tt.steps, http.StatusBadRequest)

			if envelope.Status != "error" {
				t.Errorf("expected error status, got %q", envelope.Status)
			}
			if !strings.Contains(envelope.Error, tt.wantContain) {
				t.Errorf("expected error containing %q, got: %s", tt.wantContain, envelope.Error)
			}
			if envelope.Timestamp == "" {
				t.Error("expected a timestamp on the error envelope")
			}
		})
	}
}

func TestUnknownOperationIsAStepFailure(t *testing.T) {
	h := harness.New(t)

	// An unregistered operation fails its own step at execution time; the
	// request itself is accepted and the sibling still runs.
	result := h.Execute("unknown-op", []workflow.Step{
		{
			ID:        "broken",
			Operation: "teleport",
		},
		{
			ID:        "fine",
			Operation: "delay",
			Parameters: map[string]interface{}{
				"duration_ms": 1,
			},
		},
	})

	h.AssertFailed(t, result)
	h.AssertStepError(t, result, "broken", "unknown operation")

	fine := h.StepResult(t, result, "fine")
	if fine["status"] != "completed" {
		t.Errorf("expected sibling to complete, got %v", fine["status"])
	}
}

func TestCancelSemantics(t *testing.T) {
	h := harness.New(t)

	result := h.Execute("already-done", []workflow.Step{{
		ID:        "noop",
		Operation: "delay",
		Parameters: map[string]interface{}{
			"duration_ms": 1,
		},
	}})
	h.AssertCompleted(t, result)

	envelope := h.CancelExpectError(result.WorkflowID, http.StatusConflict)
	if !strings.Contains(envelope.Error, "already") {
		t.Errorf("expected terminal-state error, got: %s", envelope.Error)
	}

	envelope = h.CancelExpectError("00000000-0000-0000-0000-000000000000", http.StatusNotFound)
	if !strings.Contains(envelope.Error, "not found") {
		t.Errorf("expected not-found error, got: %s", envelope.Error)
	}
}

func TestUnknownWorkflowLookup(t *testing.T) {
	h := harness.New(t)

	resp := h.Do(http.MethodGet, "/workflows/does-not-exist", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown workflow, got %d", resp.StatusCode)
	}
}

func TestAPIKeyEnforcement(t *testing.T) {
	h := harness.New(t, harness.WithAPIKey("e2e-secret"))

	// Health stays open so probes work without credentials.
	resp, err := h.Client().Get(h.BaseURL() + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected open health endpoint, got %d", resp.StatusCode)
	}

	// Everything else requires the key.
	resp, err = h.Client().Get(h.BaseURL() + "/workflows")
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, h.BaseURL()+"/workflows", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-API-Key", "wrong-key")
	resp, err = h.Client().Do(req)
	if err != nil {
		t.Fatalf("wrong-key request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong key, got %d", resp.StatusCode)
	}

	// Harness helpers attach the right key.
	list := h.ListWorkflows(nil)
	if list.Status != "success" {
		t.Errorf("expected authorized list to succeed, got %q", list.Status)
	}
}

func TestRateLimitOverHTTP(t *testing.T) {
	h := harness.New(t, harness.WithRateLimit(2, 60000))

	for i := 0; i < 2; i++ {
		resp := h.Do(http.MethodGet, "/operations", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d should pass, got %d", i+1, resp.StatusCode)
		}
	}

	resp := h.Do(http.MethodGet, "/operations", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429 after the limit, got %d", resp.StatusCode)
	}
}
