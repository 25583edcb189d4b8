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
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/unified-data-studio/engine/internal/metrics"
)

// APIKeyAuth returns middleware that enforces the configured API key on
// every request except GET /health, which stays open for probes. An empty
// key disables authentication.
func APIKeyAuth(key string, next http.Handler) http.Handler {
	if key == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodGet && req.URL.Path == "/health" {
			next.ServeHTTP(w, req)
			return
		}

		provided := extractAPIKey(req)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}

		next.ServeHTTP(w, req)
	})
}

// extractAPIKey reads the API key from the X-API-Key header, falling back
// to an Authorization bearer token.
func extractAPIKey(req *http.Request) string {
	if key := req.Header.Get("X-API-Key"); key != "" {
		return key
	}

	auth := req.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}
	return ""
}

// RateLimit returns middleware applying a global token bucket of requests
// per window. A non-positive request count disables limiting. Rejections
// are counted in the rate limit metric.
func RateLimit(requests int, window time.Duration, next http.Handler) http.Handler {
	if requests <= 0 {
		return next
	}
	if window <= 0 {
		window = time.Minute
	}

	limiter := rate.NewLimiter(rate.Limit(float64(requests)/window.Seconds()), requests)

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !limiter.Allow() {
			metrics.RecordRateLimitRejection()
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, req)
	})
}

// CORS returns middleware handling cross-origin requests. An empty origin
// list allows any origin; otherwise only listed origins are echoed back.
// Preflight requests are answered without reaching the next handler.
func CORS(origins []string, next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		origin := req.Header.Get("Origin")
		if origin != "" {
			switch {
			case len(allowed) == 0 || allowed["*"]:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
		}

		if req.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, req)
	})
}
