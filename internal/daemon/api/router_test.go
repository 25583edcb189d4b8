// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/unified-data-studio/engine/internal/persist"
	"github.com/unified-data-studio/engine/pkg/formula"
	"github.com/unified-data-studio/engine/pkg/operation"
	"github.com/unified-data-studio/engine/pkg/stats"
	"github.com/unified-data-studio/engine/pkg/workflow"
)

func setupRouter(t *testing.T) (*Router, *workflow.Engine) {
	t.Helper()

	registry, err := operation.NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("Failed to create registry: %v", err)
	}

	statsProcessor := stats.NewProcessor()
	formulaProcessor := formula.NewProcessor()
	if err := operation.RegisterProcessors(registry, statsProcessor, formulaProcessor); err != nil {
		t.Fatalf("Failed to register processors: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := workflow.NewEngine(registry).WithLogger(logger)

	router := NewRouter(Config{Version: "test"}, engine, statsProcessor, formulaProcessor, logger)
	return router, engine
}

func doRequest(t *testing.T, router *Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestRouter_Root(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doRequest(t, router, "GET", "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	var info struct {
		Service   string   `json:"service"`
		Version   string   `json:"version"`
		Endpoints []string `json:"endpoints"`
	}
	decodeBody(t, rec, &info)

	if info.Service != "unified-data-studio" {
		t.Errorf("got service %q, want unified-data-studio", info.Service)
	}
	if info.Version != "test" {
		t.Errorf("got version %q, want test", info.Version)
	}
	if len(info.Endpoints) == 0 {
		t.Error("expected endpoint list to be populated")
	}
}

func TestRouter_RootRejectsOtherPaths(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doRequest(t, router, "GET", "/no-such-endpoint", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRouter_Health(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doRequest(t, router, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d. Body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var health healthResponse
	decodeBody(t, rec, &health)

	if health.Status != "healthy" {
		t.Errorf("got status %q, want healthy", health.Status)
	}
	if health.Service != "unified-data-studio" {
		t.Errorf("got service %q, want unified-data-studio", health.Service)
	}
	if health.Persistence != nil {
		t.Error("expected no persistence section without a store")
	}
}

type fakeChecker struct {
	health *persist.Health
	err    error
}

func (f *fakeChecker) HealthCheck(ctx context.Context) (*persist.Health, error) {
	return f.health, f.err
}

func TestRouter_HealthWithPersistence(t *testing.T) {
	tests := []struct {
		name       string
		checker    *fakeChecker
		wantStatus string
		wantDB     string
	}{
		{
			name: "healthy store",
			checker: &fakeChecker{
				health: &persist.Health{Status: "healthy", Database: "SQLite", WorkflowCount: 3},
			},
			wantStatus: "healthy",
			wantDB:     "SQLite",
		},
		{
			name:       "failing store degrades service",
			checker:    &fakeChecker{err: errors.New("database is locked")},
			wantStatus: "degraded",
			wantDB:     "SQLite",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupRouter(t)
			router.SetPersistence(tt.checker)

			rec := doRequest(t, router, "GET", "/health", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
			}

			var health healthResponse
			decodeBody(t, rec, &health)

			if health.Status != tt.wantStatus {
				t.Errorf("got status %q, want %q", health.Status, tt.wantStatus)
			}
			if health.Persistence == nil {
				t.Fatal("expected persistence section")
			}
			if health.Persistence.Database != tt.wantDB {
				t.Errorf("got database %q, want %q", health.Persistence.Database, tt.wantDB)
			}
		})
	}
}

func TestRouter_ExecuteWorkflow(t *testing.T) {
	router, _ := setupRouter(t)

	body := `{
		"name": "stats-pipeline",
		"steps": [
			{"id": "sum", "operation": "statistics", "data": [1, 2, 3, 4, 5], "parameters": {"operation": "sum"}},
			{"id": "double", "operation": "expression", "dependencies": ["sum"], "parameters": {"expression": "input[0].sum * 2"}}
		]
	}`

	rec := doRequest(t, router, "POST", "/execute-workflow", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d. Body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var response workflowResponse
	decodeBody(t, rec, &response)

	if response.Status != "completed" {
		t.Errorf("got status %q, want completed. Errors: %v", response.Status, response.Errors)
	}
	if response.WorkflowID == "" {
		t.Error("expected a workflow id")
	}
	if len(response.Results) != 2 {
		t.Errorf("got %d results, want 2", len(response.Results))
	}

	double, ok := response.Results["double"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected double result map, got %T", response.Results["double"])
	}
	if double["result"] != float64(30) {
		t.Errorf("got doubled sum %v, want 30", double["result"])
	}
}

func TestRouter_ExecuteWorkflowErrors(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		wantStatus     int
		wantErrContain string
	}{
		{
			name:           "malformed JSON",
			body:           `{"name": "broken"`,
			wantStatus:     http.StatusBadRequest,
			wantErrContain: "invalid request body",
		},
		{
			name:           "missing name",
			body:           `{"steps": [{"id": "a", "operation": "delay"}]}`,
			wantStatus:     http.StatusBadRequest,
			wantErrContain: "workflow name is required",
		},
		{
			name:           "empty steps",
			body:           `{"name": "empty", "steps": []}`,
			wantStatus:     http.StatusBadRequest,
			wantErrContain: "at least one step",
		},
		{
			name:           "unknown dependency",
			body:           `{"name": "dangling", "steps": [{"id": "a", "operation": "delay", "dependencies": ["ghost"]}]}`,
			wantStatus:     http.StatusBadRequest,
			wantErrContain: "non-existent step",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupRouter(t)

			rec := doRequest(t, router, "POST", "/execute-workflow", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("got status %d, want %d. Body: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantErrContain) {
				t.Errorf("expected error containing %q, got %s", tt.wantErrContain, rec.Body.String())
			}
		})
	}
}

func TestRouter_ExecuteWorkflowStepFailureStillSucceeds(t *testing.T) {
	router, _ := setupRouter(t)

	body := `{
		"name": "partial",
		"steps": [
			{"id": "bad", "operation": "statistics", "data": [], "parameters": {"operation": "mean"}}
		]
	}`

	rec := doRequest(t, router, "POST", "/execute-workflow", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d. Body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var response workflowResponse
	decodeBody(t, rec, &response)

	if response.Status != "failed" {
		t.Errorf("got status %q, want failed", response.Status)
	}
	if _, ok := response.Errors["bad"]; !ok {
		t.Errorf("expected error recorded for step bad, got %v", response.Errors)
	}
}

func TestRouter_GetWorkflow(t *testing.T) {
	router, engine := setupRouter(t)

	result, err := engine.Submit(context.Background(), "lookup-target", []workflow.Step{
		{ID: "wait", Operation: "delay", Parameters: map[string]interface{}{"duration_ms": float64(1)}},
	}, nil)
	if err != nil {
		t.Fatalf("Failed to submit workflow: %v", err)
	}

	rec := doRequest(t, router, "GET", "/workflows/"+result.WorkflowID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d. Body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var execution workflow.Execution
	decodeBody(t, rec, &execution)

	if execution.ID != result.WorkflowID {
		t.Errorf("got id %q, want %q", execution.ID, result.WorkflowID)
	}
	if execution.Name != "lookup-target" {
		t.Errorf("got name %q, want lookup-target", execution.Name)
	}
}

func TestRouter_GetWorkflowNotFound(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doRequest(t, router, "GET", "/workflows/no-such-id", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusNotFound)
	}
	if !strings.Contains(rec.Body.String(), "not found") {
		t.Errorf("expected not found error, got %s", rec.Body.String())
	}
}

func TestRouter_ListWorkflows(t *testing.T) {
	router, engine := setupRouter(t)

	for i := 0; i < 3; i++ {
		_, err := engine.Submit(context.Background(), "list-target", []workflow.Step{
			{ID: "wait", Operation: "delay", Parameters: map[string]interface{}{"duration_ms": float64(1)}},
		}, nil)
		if err != nil {
			t.Fatalf("Failed to submit workflow: %v", err)
		}
	}

	rec := doRequest(t, router, "GET", "/workflows?status=completed", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d. Body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var response listResponse
	decodeBody(t, rec, &response)

	if response.Count != 3 {
		t.Errorf("got count %d, want 3", response.Count)
	}

	rec = doRequest(t, router, "GET", "/workflows?limit=1", "")
	decodeBody(t, rec, &response)
	if response.Count != 1 {
		t.Errorf("got count %d with limit=1, want 1", response.Count)
	}
}

func TestRouter_ListWorkflowsBadQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "unknown status", query: "?status=sleeping"},
		{name: "negative limit", query: "?limit=-5"},
		{name: "non-numeric offset", query: "?offset=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupRouter(t)

			rec := doRequest(t, router, "GET", "/workflows"+tt.query, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("got status %d, want %d. Body: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
			}
		})
	}
}

func TestRouter_CancelWorkflow(t *testing.T) {
	router, engine := setupRouter(t)

	result, err := engine.Submit(context.Background(), "cancel-target", []workflow.Step{
		{ID: "wait", Operation: "delay", Parameters: map[string]interface{}{"duration_ms": float64(1)}},
	}, nil)
	if err != nil {
		t.Fatalf("Failed to submit workflow: %v", err)
	}

	// Submit runs synchronously, so the workflow is already terminal.
	rec := doRequest(t, router, "DELETE", "/workflows/"+result.WorkflowID, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("got status %d, want %d. Body: %s", rec.Code, http.StatusConflict, rec.Body.String())
	}

	rec = doRequest(t, router, "DELETE", "/workflows/no-such-id", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRouter_Operations(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doRequest(t, router, "GET", "/operations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	var response operationsResponse
	decodeBody(t, rec, &response)

	if response.Count != len(response.Operations) {
		t.Errorf("count %d does not match %d operations", response.Count, len(response.Operations))
	}

	want := map[string]bool{"statistics": false, "advanced_formula": false, "jq": false}
	for _, name := range response.Operations {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("expected operation %q in %v", name, response.Operations)
		}
	}
}

func TestRouter_ProcessData(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		wantStatus     int
		wantErrContain string
		checkResult    func(t *testing.T, result map[string]interface{})
	}{
		{
			name:       "mean",
			body:       `{"data": [1, 2, 3, 4, 5], "operation": "mean"}`,
			wantStatus: http.StatusOK,
			checkResult: func(t *testing.T, result map[string]interface{}) {
				if result["mean"] != float64(3) {
					t.Errorf("got mean %v, want 3", result["mean"])
				}
			},
		},
		{
			name:       "percentiles with parameters",
			body:       `{"data": [1, 2, 3, 4, 5, 6, 7, 8, 9, 10], "operation": "percentiles", "parameters": {"percentiles": [50]}}`,
			wantStatus: http.StatusOK,
			checkResult: func(t *testing.T, result map[string]interface{}) {
				if _, ok := result["p50"]; !ok {
					t.Errorf("expected p50 in result, got %v", result)
				}
			},
		},
		{
			name:           "empty data",
			body:           `{"data": [], "operation": "mean"}`,
			wantStatus:     http.StatusBadRequest,
			wantErrContain: "empty",
		},
		{
			name:           "unknown operation",
			body:           `{"data": [1], "operation": "teleport"}`,
			wantStatus:     http.StatusBadRequest,
			wantErrContain: "unknown operation",
		},
		{
			name:           "malformed JSON",
			body:           `{"data": [1,`,
			wantStatus:     http.StatusBadRequest,
			wantErrContain: "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupRouter(t)

			rec := doRequest(t, router, "POST", "/process-data", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d. Body: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}

			if tt.wantErrContain != "" {
				if !strings.Contains(rec.Body.String(), tt.wantErrContain) {
					t.Errorf("expected error containing %q, got %s", tt.wantErrContain, rec.Body.String())
				}
				return
			}

			var response dataResponse
			decodeBody(t, rec, &response)
			if response.Status != "success" {
				t.Errorf("got status %q, want success", response.Status)
			}
			if tt.checkResult != nil {
				tt.checkResult(t, response.Result)
			}
		})
	}
}

func TestRouter_AdvancedFormula(t *testing.T) {
	router, _ := setupRouter(t)

	body := `{
		"formula_type": "VLOOKUP",
		"data": [{"product_id": 1}, {"product_id": 2}],
		"parameters": {
			"input_columns": ["product_id"],
			"lookup_table": [{"id": 1, "name": "Keyboard"}, {"id": 2, "name": "Mouse"}],
			"lookup_key": "id",
			"return_column": "name"
		},
		"output_config": {"output_column": "product_name"}
	}`

	rec := doRequest(t, router, "POST", "/advanced-formula", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d. Body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var result formula.Result
	decodeBody(t, rec, &result)

	if result.Status != "success" {
		t.Errorf("got status %q, want success", result.Status)
	}
	if result.FormulaType != "VLOOKUP" {
		t.Errorf("got formula type %q, want VLOOKUP", result.FormulaType)
	}
	if len(result.Data) != 2 {
		t.Fatalf("got %d rows, want 2", len(result.Data))
	}
	if result.Data[0]["product_name"] != "Keyboard" {
		t.Errorf("got product_name %v, want Keyboard", result.Data[0]["product_name"])
	}
}

func TestRouter_AdvancedFormulaValidation(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		wantErrContain string
	}{
		{
			name:           "unsupported formula",
			body:           `{"formula_type": "XLOOKUP", "data": [], "parameters": {"input_columns": ["a"]}}`,
			wantErrContain: "Formula validation failed",
		},
		{
			name:           "missing input columns",
			body:           `{"formula_type": "TEXTJOIN", "data": [], "parameters": {}}`,
			wantErrContain: "input column",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupRouter(t)

			rec := doRequest(t, router, "POST", "/advanced-formula", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("got status %d, want %d. Body: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantErrContain) {
				t.Errorf("expected error containing %q, got %s", tt.wantErrContain, rec.Body.String())
			}
		})
	}
}

func TestRouter_SupportedFormulas(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doRequest(t, router, "GET", "/supported-formulas", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	var response formulasResponse
	decodeBody(t, rec, &response)

	if response.Count != len(response.Formulas) {
		t.Errorf("count %d does not match %d formulas", response.Count, len(response.Formulas))
	}

	found := false
	for _, info := range response.Formulas {
		if info.Name == "VLOOKUP" {
			found = true
			if len(info.RequiredParams) == 0 {
				t.Error("expected VLOOKUP to declare required params")
			}
		}
	}
	if !found {
		t.Errorf("expected VLOOKUP in formulas, got %v", response.Formulas)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router, _ := setupRouter(t)
	router.SetMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("# metrics"))
	}))

	rec := doRequest(t, router, "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("got status %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "# metrics") {
		t.Errorf("expected metrics body, got %s", rec.Body.String())
	}
}
