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

package log

import (
	"log/slog"
)

// HTTPRequest represents an HTTP request for logging purposes.
type HTTPRequest struct {
	// Method is the HTTP method (GET, POST, ...).
	Method string

	// Path is the request path.
	Path string

	// RemoteAddr is the remote address of the client.
	RemoteAddr string

	// RequestID is the unique ID for this specific request.
	RequestID string
}

// HTTPResponse represents an HTTP response for logging purposes.
type HTTPResponse struct {
	// Status is the HTTP status code written to the client.
	Status int

	// DurationMs is the duration of the request in milliseconds.
	DurationMs int64

	// Bytes is the number of response body bytes written.
	Bytes int64
}

// LogHTTPRequest logs an incoming HTTP request.
func LogHTTPRequest(logger *slog.Logger, req *HTTPRequest) {
	attrs := []any{
		EventKey, "http_request",
		"method", req.Method,
		"path", req.Path,
		"remote", req.RemoteAddr,
	}

	if req.RequestID != "" {
		attrs = append(attrs, "request_id", req.RequestID)
	}

	logger.Debug("http request received", attrs...)
}

// LogHTTPResponse logs a completed HTTP request with its response outcome.
func LogHTTPResponse(logger *slog.Logger, req *HTTPRequest, resp *HTTPResponse) {
	attrs := []any{
		EventKey, "http_response",
		"method", req.Method,
		"path", req.Path,
		"status", resp.Status,
		DurationKey, resp.DurationMs,
		"bytes", resp.Bytes,
	}

	if req.RequestID != "" {
		attrs = append(attrs, "request_id", req.RequestID)
	}

	if resp.Status >= 500 {
		logger.Error("http request failed", attrs...)
		return
	}
	logger.Info("http request completed", attrs...)
}
