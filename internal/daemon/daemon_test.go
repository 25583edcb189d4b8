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

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/unified-data-studio/engine/internal/config"
)

// startDaemon boots a daemon on an ephemeral port and returns its base URL.
func startDaemon(t *testing.T, cfg *config.Config) string {
	t.Helper()

	d, err := New(cfg, Options{Version: "test"})
	if err != nil {
		t.Fatalf("Failed to create daemon: %v", err)
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
			t.Errorf("Shutdown failed: %v", err)
		}

		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Start returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Start did not return after shutdown")
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

	return "http://" + addr
}

func TestDaemon_HealthAndWorkflowRoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	cfg.Persistence.Path = filepath.Join(t.TempDir(), "studio.db")

	base := startDaemon(t, cfg)

	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status      string `json:"status"`
		Service     string `json:"service"`
		Persistence *struct {
			Database string `json:"database"`
		} `json:"persistence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}

	if health.Status != "healthy" {
		t.Errorf("got status %q, want healthy", health.Status)
	}
	if health.Persistence == nil || health.Persistence.Database != "SQLite" {
		t.Errorf("expected SQLite persistence in health, got %+v", health.Persistence)
	}

	body := `{
		"name": "round-trip",
		"steps": [
			{"id": "sum", "operation": "statistics", "data": [2, 4, 6], "parameters": {"operation": "sum"}}
		]
	}`
	resp, err = http.Post(base+"/execute-workflow", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Execute request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result struct {
		Status     string `json:"status"`
		WorkflowID string `json:"workflow_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.Status != "completed" {
		t.Errorf("got status %q, want completed", result.Status)
	}

	// The persistence sink saw the same run the engine reported.
	resp, err = http.Get(base + "/workflows/" + result.WorkflowID)
	if err != nil {
		t.Fatalf("Get workflow failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestDaemon_APIKeyGuardsEndpoints(t *testing.T) {
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	cfg.Security.APIKey = "test-secret"

	base := startDaemon(t, cfg)

	// Health stays open for probes.
	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health: got status %d, want %d", resp.StatusCode, http.StatusOK)
	}

	resp, err = http.Get(base + "/workflows")
	if err != nil {
		t.Fatalf("List request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated list: got status %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	req, err := http.NewRequest("GET", base+"/workflows", nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("X-API-Key", "test-secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Authenticated list failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authenticated list: got status %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestDaemon_StartTwiceFails(t *testing.T) {
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"

	d, err := New(cfg, Options{Version: "test"})
	if err != nil {
		t.Fatalf("Failed to create daemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Start(ctx)
	}()

	for i := 0; i < 200 && d.Addr() == ""; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if d.Addr() == "" {
		t.Fatal("daemon never bound a listener")
	}

	if err := d.Start(ctx); err == nil || !strings.Contains(err.Error(), "already started") {
		t.Errorf("second Start: got %v, want already started error", err)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := d.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	<-errCh
}
