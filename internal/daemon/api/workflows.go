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
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/unified-data-studio/engine/internal/daemon/httputil"
	"github.com/unified-data-studio/engine/internal/log"
	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
	"github.com/unified-data-studio/engine/pkg/workflow"
)

// executeRequest is the body of POST /execute-workflow.
type executeRequest struct {
	Name       string                 `json:"name"`
	Steps      []workflow.Step        `json:"steps"`
	Parameters map[string]interface{} `json:"parameters"`
}

// workflowResponse is the body returned after a workflow run.
type workflowResponse struct {
	Status          string                 `json:"status"`
	WorkflowID      string                 `json:"workflow_id"`
	ExecutionTimeMS int64                  `json:"execution_time_ms"`
	Results         map[string]interface{} `json:"results"`
	Errors          map[string]string      `json:"errors,omitempty"`
	Timestamp       string                 `json:"timestamp"`
}

// errorResponse is the uniform error body for all endpoints.
type errorResponse struct {
	Status     string `json:"status"`
	Error      string `json:"error"`
	WorkflowID string `json:"workflow_id,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// writeError writes the uniform error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	httputil.WriteJSON(w, status, errorResponse{
		Status:    "error",
		Error:     message,
		Timestamp: timestamp(),
	})
}

// writeEngineError maps engine error types onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, workflowID string, err error) {
	status := http.StatusInternalServerError

	var graphErr *enginerrors.GraphError
	var validationErr *enginerrors.ValidationError
	var unknownOpErr *enginerrors.UnknownOperationError
	var notFoundErr *enginerrors.NotFoundError
	var terminalErr *enginerrors.TerminalStateError
	switch {
	case errors.As(err, &graphErr), errors.As(err, &validationErr), errors.As(err, &unknownOpErr):
		status = http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
	case errors.As(err, &terminalErr):
		status = http.StatusConflict
	}

	httputil.WriteJSON(w, status, errorResponse{
		Status:     "error",
		Error:      err.Error(),
		WorkflowID: workflowID,
		Timestamp:  timestamp(),
	})
}

// handleExecuteWorkflow handles POST /execute-workflow. The workflow runs to
// completion before the response is written; a workflow whose steps failed
// still returns 200 with the failure recorded per step.
func (r *Router) handleExecuteWorkflow(w http.ResponseWriter, req *http.Request) {
	var body executeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "workflow name is required")
		return
	}

	result, err := r.engine.Submit(req.Context(), body.Name, body.Steps, body.Parameters)
	if err != nil {
		// A graph rejection still registers a failed execution; point the
		// error envelope at it so clients can fetch the record.
		id := ""
		if result != nil {
			id = result.WorkflowID
		}
		writeEngineError(w, id, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, workflowResponse{
		Status:          string(result.Status),
		WorkflowID:      result.WorkflowID,
		ExecutionTimeMS: result.ExecutionTimeMS,
		Results:         result.Results,
		Errors:          result.Errors,
		Timestamp:       timestamp(),
	})
}

// listResponse is the body of GET /workflows.
type listResponse struct {
	Status    string                `json:"status"`
	Workflows []*workflow.Execution `json:"workflows"`
	Count     int                   `json:"count"`
	Timestamp string                `json:"timestamp"`
}

// handleListWorkflows handles GET /workflows with optional status, name,
// limit and offset query parameters.
func (r *Router) handleListWorkflows(w http.ResponseWriter, req *http.Request) {
	query := &workflow.Query{}

	if raw := req.URL.Query().Get("status"); raw != "" {
		status := workflow.Status(raw)
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, "invalid status filter: "+raw)
			return
		}
		query.Status = &status
	}
	query.Name = req.URL.Query().Get("name")

	var err error
	if query.Limit, err = queryInt(req, "limit"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if query.Offset, err = queryInt(req, "offset"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	executions, err := r.engine.List(req.Context(), query)
	if err != nil {
		writeEngineError(w, "", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listResponse{
		Status:    "success",
		Workflows: executions,
		Count:     len(executions),
		Timestamp: timestamp(),
	})
}

// queryInt parses a non-negative integer query parameter, defaulting to 0.
func queryInt(req *http.Request, key string) (int, error) {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, &enginerrors.ValidationError{
			Field:   key,
			Message: "must be a non-negative integer",
		}
	}
	return value, nil
}

// handleGetWorkflow handles GET /workflows/{id}.
func (r *Router) handleGetWorkflow(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	execution, err := r.engine.Get(req.Context(), id)
	if err != nil {
		writeEngineError(w, id, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, execution)
}

// cancelResponse is the body of DELETE /workflows/{id}.
type cancelResponse struct {
	Status     string `json:"status"`
	WorkflowID string `json:"workflow_id"`
	Timestamp  string `json:"timestamp"`
}

// handleCancelWorkflow handles DELETE /workflows/{id}.
func (r *Router) handleCancelWorkflow(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	if err := r.engine.Cancel(req.Context(), id); err != nil {
		writeEngineError(w, id, err)
		return
	}

	r.logger.Info("workflow cancelled", log.String("workflow_id", id))
	httputil.WriteJSON(w, http.StatusOK, cancelResponse{
		Status:     "cancelled",
		WorkflowID: id,
		Timestamp:  timestamp(),
	})
}

// operationsResponse is the body of GET /operations.
type operationsResponse struct {
	Status     string   `json:"status"`
	Operations []string `json:"operations"`
	Count      int      `json:"count"`
	Timestamp  string   `json:"timestamp"`
}

// handleOperations handles GET /operations.
func (r *Router) handleOperations(w http.ResponseWriter, req *http.Request) {
	names := r.engine.Operations()
	httputil.WriteJSON(w, http.StatusOK, operationsResponse{
		Status:     "success",
		Operations: names,
		Count:      len(names),
		Timestamp:  timestamp(),
	})
}
