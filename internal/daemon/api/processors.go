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
	"fmt"
	"net/http"
	"time"

	"github.com/unified-data-studio/engine/internal/daemon/httputil"
	"github.com/unified-data-studio/engine/pkg/formula"
)

// dataRequest is the body of POST /process-data.
type dataRequest struct {
	Data       []float64              `json:"data"`
	Operation  string                 `json:"operation"`
	Parameters map[string]interface{} `json:"parameters"`
}

// dataResponse is the body returned for a successful data operation.
type dataResponse struct {
	Status           string                 `json:"status"`
	Result           map[string]interface{} `json:"result"`
	ProcessingTimeMS int64                  `json:"processing_time_ms"`
	Timestamp        string                 `json:"timestamp"`
}

// handleProcessData handles POST /process-data, running a single statistical
// operation without the workflow machinery.
func (r *Router) handleProcessData(w http.ResponseWriter, req *http.Request) {
	var body dataRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	start := time.Now()
	result, err := r.stats.Process(body.Data, body.Operation, body.Parameters)
	if err != nil {
		writeEngineError(w, "", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, dataResponse{
		Status:           "success",
		Result:           result,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		Timestamp:        timestamp(),
	})
}

// handleAdvancedFormula handles POST /advanced-formula. Requests are
// validated before evaluation so malformed input never reaches a formula.
func (r *Router) handleAdvancedFormula(w http.ResponseWriter, req *http.Request) {
	var body formula.Request
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := r.formulas.Validate(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Formula validation failed: %v", err))
		return
	}

	result, err := r.formulas.Process(body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// formulasResponse is the body of GET /supported-formulas.
type formulasResponse struct {
	Status    string         `json:"status"`
	Formulas  []formula.Info `json:"formulas"`
	Count     int            `json:"count"`
	Timestamp string         `json:"timestamp"`
}

// handleSupportedFormulas handles GET /supported-formulas.
func (r *Router) handleSupportedFormulas(w http.ResponseWriter, req *http.Request) {
	names := r.formulas.FormulaNames()
	infos := make([]formula.Info, 0, len(names))
	for _, name := range names {
		if info, ok := r.formulas.FormulaInfo(name); ok {
			infos = append(infos, info)
		}
	}

	httputil.WriteJSON(w, http.StatusOK, formulasResponse{
		Status:    "success",
		Formulas:  infos,
		Count:     len(infos),
		Timestamp: timestamp(),
	})
}
