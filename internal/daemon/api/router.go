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

// Package api provides the HTTP API for the daemon.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/unified-data-studio/engine/internal/daemon/httputil"
	"github.com/unified-data-studio/engine/internal/log"
	"github.com/unified-data-studio/engine/internal/persist"
	"github.com/unified-data-studio/engine/pkg/formula"
	"github.com/unified-data-studio/engine/pkg/stats"
	"github.com/unified-data-studio/engine/pkg/workflow"
)

// serviceName identifies the daemon on info and health responses.
const serviceName = "unified-data-studio"

// Config holds configuration for the API router.
type Config struct {
	Version   string
	Commit    string
	BuildDate string
}

// PersistenceChecker reports SQLite store health for the health endpoint.
type PersistenceChecker interface {
	HealthCheck(ctx context.Context) (*persist.Health, error)
}

// Router wraps an http.ServeMux with the daemon's endpoints.
type Router struct {
	mux         *http.ServeMux
	config      Config
	engine      *workflow.Engine
	stats       *stats.Processor
	formulas    *formula.Processor
	persistence PersistenceChecker
	logger      *slog.Logger
}

// NewRouter creates a new HTTP router with all API endpoints.
func NewRouter(cfg Config, engine *workflow.Engine, statsProcessor *stats.Processor, formulaProcessor *formula.Processor, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		mux:      http.NewServeMux(),
		config:   cfg,
		engine:   engine,
		stats:    statsProcessor,
		formulas: formulaProcessor,
		logger:   logger,
	}

	r.mux.HandleFunc("GET /{$}", r.handleRoot)
	r.mux.HandleFunc("GET /health", r.handleHealth)

	r.mux.HandleFunc("POST /execute-workflow", r.handleExecuteWorkflow)
	r.mux.HandleFunc("GET /workflows", r.handleListWorkflows)
	r.mux.HandleFunc("GET /workflows/{id}", r.handleGetWorkflow)
	r.mux.HandleFunc("DELETE /workflows/{id}", r.handleCancelWorkflow)
	r.mux.HandleFunc("GET /operations", r.handleOperations)

	r.mux.HandleFunc("POST /process-data", r.handleProcessData)
	r.mux.HandleFunc("POST /advanced-formula", r.handleAdvancedFormula)
	r.mux.HandleFunc("GET /supported-formulas", r.handleSupportedFormulas)

	return r
}

// SetPersistence wires the SQLite store into the health endpoint.
func (r *Router) SetPersistence(checker PersistenceChecker) {
	r.persistence = checker
}

// SetMetricsHandler registers the Prometheus metrics endpoint.
func (r *Router) SetMetricsHandler(handler http.Handler) {
	if handler != nil {
		r.mux.Handle("GET /metrics", handler)
	}
}

// statusRecorder captures the response status and size for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Write(p []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(p)
	sr.bytes += int64(n)
	return n, err
}

// ServeHTTP implements http.Handler, logging every request.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	logReq := &log.HTTPRequest{
		Method:     req.Method,
		Path:       req.URL.Path,
		RemoteAddr: req.RemoteAddr,
		RequestID:  uuid.NewString(),
	}
	log.LogHTTPRequest(r.logger, logReq)

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	r.mux.ServeHTTP(recorder, req)

	log.LogHTTPResponse(r.logger, logReq, &log.HTTPResponse{
		Status:     recorder.status,
		DurationMs: time.Since(start).Milliseconds(),
		Bytes:      recorder.bytes,
	})
}

// Mux returns the underlying ServeMux for registering additional routes.
func (r *Router) Mux() *http.ServeMux {
	return r.mux
}

// infoResponse is the service descriptor served at the root.
type infoResponse struct {
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
	Timestamp string   `json:"timestamp"`
}

// handleRoot handles GET / for basic connectivity.
func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, infoResponse{
		Service: serviceName,
		Version: r.config.Version,
		Endpoints: []string{
			"GET /health",
			"POST /execute-workflow",
			"GET /workflows",
			"GET /workflows/{id}",
			"DELETE /workflows/{id}",
			"GET /operations",
			"POST /process-data",
			"POST /advanced-formula",
			"GET /supported-formulas",
			"GET /metrics",
		},
		Timestamp: timestamp(),
	})
}

// healthResponse reports service and persistence health.
type healthResponse struct {
	Status      string          `json:"status"`
	Service     string          `json:"service"`
	Version     string          `json:"version"`
	Timestamp   string          `json:"timestamp"`
	Persistence *persist.Health `json:"persistence,omitempty"`
}

// handleHealth handles GET /health.
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	response := healthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Version:   r.config.Version,
		Timestamp: timestamp(),
	}

	if r.persistence != nil {
		health, err := r.persistence.HealthCheck(req.Context())
		if err != nil {
			response.Status = "degraded"
			response.Persistence = &persist.Health{Status: "unhealthy", Database: "SQLite"}
			r.logger.Warn("persistence health check failed", log.Error(err))
		} else {
			response.Persistence = health
		}
	}

	httputil.WriteJSON(w, http.StatusOK, response)
}

// timestamp returns the RFC 3339 encoding of the current time.
func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
