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

// Package daemon wires the workflow engine, processors, persistence and
// tracing into the studiod HTTP service.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/unified-data-studio/engine/internal/config"
	"github.com/unified-data-studio/engine/internal/daemon/api"
	internallog "github.com/unified-data-studio/engine/internal/log"
	"github.com/unified-data-studio/engine/internal/metrics"
	"github.com/unified-data-studio/engine/internal/persist"
	"github.com/unified-data-studio/engine/internal/tracing"
	"github.com/unified-data-studio/engine/pkg/formula"
	"github.com/unified-data-studio/engine/pkg/operation"
	"github.com/unified-data-studio/engine/pkg/stats"
	"github.com/unified-data-studio/engine/pkg/workflow"
)

const (
	// shutdownTimeout bounds the HTTP server drain at shutdown.
	shutdownTimeout = 10 * time.Second

	// providerShutdownTimeout bounds telemetry flush at shutdown.
	providerShutdownTimeout = 5 * time.Second

	// cleanupInterval is how often old workflow records are pruned.
	cleanupInterval = time.Hour
)

// Options contains daemon options set at build time.
type Options struct {
	Version   string
	Commit    string
	BuildDate string
}

// Daemon is the main studiod daemon.
type Daemon struct {
	cfg      *config.Config
	opts     Options
	logger   *slog.Logger
	engine   *workflow.Engine
	stats    *stats.Processor
	formulas *formula.Processor
	store    *persist.Store
	provider *tracing.Provider
	server   *http.Server
	ln       net.Listener

	cleanupStop chan struct{}
	cleanupDone chan struct{}

	mu      sync.Mutex
	started bool
}

// New creates a new daemon instance. The engine, processors and optional
// SQLite store are built here; the listener and telemetry provider are
// created when Start runs.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	logger := internallog.WithComponent(internallog.New(&internallog.Config{
		Level:  cfg.Log.Level,
		Format: internallog.Format(cfg.Log.Format),
	}), "daemon")

	registry, err := operation.NewBuiltinRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to create operation registry: %w", err)
	}

	statsProcessor := stats.NewProcessor()
	formulaProcessor := formula.NewProcessor()
	if err := operation.RegisterProcessors(registry, statsProcessor, formulaProcessor); err != nil {
		return nil, fmt.Errorf("failed to register processors: %w", err)
	}

	sinks := []workflow.Sink{metrics.NewSink()}

	var store *persist.Store
	if cfg.Persistence.Path != "" {
		store, err = persist.Open(persist.Config{Path: cfg.Persistence.Path})
		if err != nil {
			return nil, fmt.Errorf("failed to open workflow store: %w", err)
		}
		sinks = append(sinks, store)
		logger.Info("workflow persistence enabled",
			slog.String("path", cfg.Persistence.Path))
	}

	engine := workflow.NewEngine(registry).
		WithLogger(internallog.WithComponent(logger, "engine")).
		WithSinks(sinks...)

	return &Daemon{
		cfg:      cfg,
		opts:     opts,
		logger:   logger,
		engine:   engine,
		stats:    statsProcessor,
		formulas: formulaProcessor,
		store:    store,
	}, nil
}

// Start runs the daemon until ctx is cancelled or the server fails. It
// binds the listener, wires the router and middleware, and starts the
// background cleanup loop when persistence is configured.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return fmt.Errorf("daemon already started")
	}
	d.started = true
	d.mu.Unlock()

	provider, err := tracing.NewProvider(ctx, tracing.Config{
		ServiceVersion: d.opts.Version,
		Exporter:       d.cfg.Tracing.Exporter,
		Endpoint:       d.cfg.Tracing.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to create telemetry provider: %w", err)
	}
	d.engine.WithTracer(provider.Tracer("workflow"))

	ln, err := net.Listen("tcp", d.cfg.Listen)
	if err != nil {
		provider.Shutdown(ctx)
		return fmt.Errorf("failed to listen on %s: %w", d.cfg.Listen, err)
	}

	d.mu.Lock()
	d.provider = provider
	d.ln = ln
	d.mu.Unlock()

	router := api.NewRouter(api.Config{
		Version:   d.opts.Version,
		Commit:    d.opts.Commit,
		BuildDate: d.opts.BuildDate,
	}, d.engine, d.stats, d.formulas, internallog.WithComponent(d.logger, "api"))
	router.SetMetricsHandler(provider.MetricsHandler())
	if d.store != nil {
		router.SetPersistence(d.store)
	}

	// Middleware order matters: CORS answers preflight before auth runs,
	// and the rate limiter counts requests whether or not they carry a key.
	var handler http.Handler = router
	handler = api.APIKeyAuth(d.cfg.Security.APIKey, handler)
	handler = api.RateLimit(d.cfg.Security.RateLimitRequests,
		time.Duration(d.cfg.Security.RateLimitWindowMS)*time.Millisecond, handler)
	handler = api.CORS(d.cfg.Security.CORSOrigins, handler)

	d.server = &http.Server{
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if d.store != nil && d.cfg.Persistence.CleanupDays > 0 {
		d.cleanupStop = make(chan struct{})
		d.cleanupDone = make(chan struct{})
		go d.cleanupLoop()
	}

	d.logger.Info("studiod starting",
		slog.String("version", d.opts.Version),
		slog.String("listen_addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := d.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// cleanupLoop prunes finished workflow records older than the configured
// retention until the daemon shuts down.
func (d *Daemon) cleanupLoop() {
	defer close(d.cleanupDone)

	retention := time.Duration(d.cfg.Persistence.CleanupDays) * 24 * time.Hour
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.cleanupStop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			removed, err := d.store.Cleanup(ctx, retention)
			cancel()
			if err != nil {
				d.logger.Error("workflow cleanup failed", internallog.Error(err))
				continue
			}
			if removed > 0 {
				d.logger.Info("pruned old workflow records",
					slog.Int64("removed", removed))
			}
		}
	}
}

// Addr returns the bound listen address, or empty before Start.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ln == nil {
		return ""
	}
	return d.ln.Addr().String()
}

// Shutdown gracefully shuts down the daemon.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}

	d.logger.Info("graceful shutdown initiated")

	if d.server != nil {
		d.server.SetKeepAlivesEnabled(false)

		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := d.server.Shutdown(shutdownCtx); err != nil {
			d.logger.Error("HTTP server shutdown error", internallog.Error(err))
		}
	}

	if d.cleanupStop != nil {
		close(d.cleanupStop)
		<-d.cleanupDone
		d.cleanupStop = nil
	}

	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Error("workflow store close error", internallog.Error(err))
		}
	}

	if d.provider != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, providerShutdownTimeout)
		defer cancel()
		if err := d.provider.Shutdown(shutdownCtx); err != nil {
			d.logger.Error("telemetry provider shutdown error", internallog.Error(err))
		}
	}

	d.started = false
	return nil
}
