// Package workflow implements a dependency-graph workflow execution engine.
//
// A workflow is a named set of steps, each naming a registered operation
// handler and declaring the steps it depends on. Submission validates the
// graph (non-empty, resolvable dependencies, acyclic), computes a
// deterministic topological order, and executes the steps in that order,
// feeding dependency outputs forward. Step failures are recorded, never
// raised: the full schedule always runs and the final status reflects
// whether the errors map is empty.
//
// Executions are retained in a Store and stay queryable after completion.
// Cancellation is cooperative: it marks the record terminal and the run loop
// observes it between steps; an in-flight handler is not preempted.
package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
	"github.com/unified-data-studio/engine/pkg/operation"
)

const instrumentationName = "github.com/unified-data-studio/engine/pkg/workflow"

// Engine coordinates workflow execution: it validates submitted graphs,
// schedules steps, drives the executor, owns lifecycle transitions, and
// serves the concurrently-queryable registry of executions.
type Engine struct {
	store    Store
	registry *operation.Registry
	executor *Executor
	logger   *slog.Logger
	sinks    []Sink
	tracer   trace.Tracer

	// mu serializes read-modify-write transactions against the store so
	// concurrent cancel calls and the run loop never interleave partial
	// updates. Handler invocation happens outside this lock.
	mu sync.Mutex
}

// NewEngine creates an engine backed by an in-memory store and the given
// operation registry.
func NewEngine(registry *operation.Registry) *Engine {
	return &Engine{
		store:    NewMemoryStore(),
		registry: registry,
		executor: NewExecutor(registry),
		logger:   slog.Default(),
		tracer:   otel.Tracer(instrumentationName),
	}
}

// WithStore replaces the execution store.
func (e *Engine) WithStore(store Store) *Engine {
	if store != nil {
		e.store = store
	}
	return e
}

// WithLogger sets a custom logger for the engine and its executor.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	if logger != nil {
		e.logger = logger
		e.executor.WithLogger(logger)
	}
	return e
}

// WithSinks registers lifecycle sinks notified on workflow started, step
// finished, and workflow finalized.
func (e *Engine) WithSinks(sinks ...Sink) *Engine {
	e.sinks = append(e.sinks, sinks...)
	return e
}

// WithTracer overrides the tracer used for run and step spans. By default
// the engine picks up the globally registered provider.
func (e *Engine) WithTracer(tracer trace.Tracer) *Engine {
	if tracer != nil {
		e.tracer = tracer
	}
	return e
}

// WithDefaultTimeout overrides the default per-attempt handler bound applied
// to steps without their own timeout_ms.
func (e *Engine) WithDefaultTimeout(timeout time.Duration) *Engine {
	e.executor.WithDefaultTimeout(timeout)
	return e
}

// Submit registers and synchronously runs a workflow, returning its derived
// result. Step-level failures are captured in the result, never raised; the
// returned error is non-nil only when graph validation rejects the step set.
// In that case the execution is still registered as failed with one
// synthetic error entry under "workflow", and the returned result describes
// it.
//
// The parameters argument is carried for wire parity with the original
// service contract; the engine does not consume it. Handlers receive
// per-step parameters only.
func (e *Engine) Submit(ctx context.Context, name string, steps []Step, parameters map[string]interface{}) (*Result, error) {
	_ = parameters

	exec := &Execution{
		ID:        uuid.NewString(),
		Name:      name,
		Steps:     append([]Step(nil), steps...),
		Status:    StatusPending,
		Results:   make(map[string]interface{}),
		Errors:    make(map[string]string),
		StartTime: time.Now(),
	}

	if err := e.store.Create(ctx, exec); err != nil {
		return nil, err
	}

	e.logger.Info("starting workflow execution",
		"workflow", name,
		"workflow_id", exec.ID,
		"steps", len(steps))
	e.notify(ctx, newEvent(EventWorkflowStarted, exec.Clone(), nil))

	ctx, span := e.tracer.Start(ctx, "workflow.execute",
		trace.WithAttributes(
			attribute.String("workflow.id", exec.ID),
			attribute.String("workflow.name", name),
			attribute.Int("workflow.steps", len(steps)),
		))
	defer span.End()

	if err := Validate(exec.Steps); err != nil {
		snapshot, recordErr := e.mutate(ctx, exec.ID, func(rec *Execution) error {
			rec.Status = StatusFailed
			rec.Errors["workflow"] = err.Error()
			finalize(rec)
			return nil
		})
		if recordErr != nil {
			return nil, recordErr
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("workflow validation failed",
			"workflow_id", exec.ID,
			"error", err)
		e.notify(ctx, newEvent(EventWorkflowFinished, snapshot, nil))
		return newResult(snapshot), err
	}

	if _, err := e.mutate(ctx, exec.ID, func(rec *Execution) error {
		rec.Status = StatusRunning
		return nil
	}); err != nil {
		return nil, err
	}

	snapshot := e.run(ctx, exec)

	span.SetAttributes(
		attribute.String("workflow.status", string(snapshot.Status)),
		attribute.Int("workflow.failed_steps", len(snapshot.Errors)),
	)
	if snapshot.Status == StatusFailed {
		span.SetStatus(codes.Error, "one or more steps failed")
	}

	e.logger.Info("workflow execution finished",
		"workflow_id", exec.ID,
		"status", string(snapshot.Status),
		"duration_ms", snapshot.TotalDurationMS,
		"successful_steps", len(snapshot.Results),
		"failed_steps", len(snapshot.Errors))

	return newResult(snapshot), nil
}

// run executes the full schedule against the registered execution and
// returns the terminal snapshot.
func (e *Engine) run(ctx context.Context, exec *Execution) *Execution {
	// Validation has already passed, so the scheduler's own cycle check
	// fires only for callers driving the scheduler directly.
	order, err := topologicalOrder(exec.Steps)
	if err != nil {
		snapshot, _ := e.mutate(ctx, exec.ID, func(rec *Execution) error {
			rec.Status = StatusFailed
			rec.Errors["workflow"] = err.Error()
			finalize(rec)
			return nil
		})
		e.notify(ctx, newEvent(EventWorkflowFinished, snapshot, nil))
		return snapshot
	}

	stepsByID := make(map[string]*Step, len(exec.Steps))
	for i := range exec.Steps {
		stepsByID[exec.Steps[i].ID] = &exec.Steps[i]
	}

	// Local mirror of recorded outputs for dependency input resolution.
	results := make(map[string]interface{}, len(order))

	for _, stepID := range order {
		step := stepsByID[stepID]

		var cancelled bool
		if _, err := e.mutate(ctx, exec.ID, func(rec *Execution) error {
			if rec.Status == StatusCancelled {
				cancelled = true
				return nil
			}
			rec.CurrentStep = stepID
			return nil
		}); err != nil {
			e.logger.Error("failed to update execution record",
				"workflow_id", exec.ID,
				"step_id", stepID,
				"error", err)
		}
		if cancelled {
			e.logger.Info("workflow cancelled, stopping dispatch",
				"workflow_id", exec.ID,
				"next_step", stepID)
			break
		}

		stepResult := e.executeStep(ctx, exec.ID, step, results)

		snapshot, err := e.mutate(ctx, exec.ID, func(rec *Execution) error {
			if stepResult.Status == StepStatusSuccess {
				rec.Results[stepID] = stepResult.Output
			} else {
				rec.Errors[stepID] = stepResult.Error
			}
			return nil
		})
		if err != nil {
			e.logger.Error("failed to record step outcome",
				"workflow_id", exec.ID,
				"step_id", stepID,
				"error", err)
			continue
		}

		if stepResult.Status == StepStatusSuccess {
			results[stepID] = stepResult.Output
			e.notify(ctx, newEvent(EventStepCompleted, snapshot, stepResult))
		} else {
			e.logger.Warn("step failed",
				"workflow_id", exec.ID,
				"step_id", stepID,
				"operation", step.Operation,
				"attempts", stepResult.Attempts,
				"error", stepResult.Error)
			e.notify(ctx, newEvent(EventStepFailed, snapshot, stepResult))
		}
	}

	// Terminal transition is a compare-and-set: a cancel recorded while the
	// loop ran keeps its status and end time.
	var transitioned bool
	snapshot, err := e.mutate(ctx, exec.ID, func(rec *Execution) error {
		if rec.Status != StatusRunning {
			return nil
		}
		if len(rec.Errors) > 0 {
			rec.Status = StatusFailed
		} else {
			rec.Status = StatusCompleted
		}
		finalize(rec)
		transitioned = true
		return nil
	})
	if err != nil {
		e.logger.Error("failed to finalize execution",
			"workflow_id", exec.ID,
			"error", err)
		return exec
	}

	if transitioned {
		e.notify(ctx, newEvent(EventWorkflowFinished, snapshot, nil))
	}
	return snapshot
}

// executeStep runs one step inside its own span.
func (e *Engine) executeStep(ctx context.Context, workflowID string, step *Step, results map[string]interface{}) *StepResult {
	stepCtx, span := e.tracer.Start(ctx, "step.execute",
		trace.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("step.id", step.ID),
			attribute.String("step.operation", step.Operation),
		))
	defer span.End()

	stepResult := e.executor.Execute(stepCtx, step, results)

	span.SetAttributes(attribute.Int("step.attempts", stepResult.Attempts))
	if stepResult.Status == StepStatusFailed {
		span.SetStatus(codes.Error, stepResult.Error)
	}

	return stepResult
}

// Get returns a snapshot of the execution with the given id, or a
// NotFoundError. Repeated reads of a terminal execution return identical
// snapshots.
func (e *Engine) Get(ctx context.Context, id string) (*Execution, error) {
	return e.store.Get(ctx, id)
}

// List returns snapshots of executions matching the query, newest first.
func (e *Engine) List(ctx context.Context, query *Query) ([]*Execution, error) {
	return e.store.List(ctx, query)
}

// Cancel marks a pending or running execution cancelled, recording the end
// time immediately. It returns a NotFoundError for unknown ids and a
// TerminalStateError when the execution already finished. An in-flight
// handler is not preempted; the run loop stops dispatching once it observes
// the cancelled status.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	snapshot, err := e.mutate(ctx, id, func(rec *Execution) error {
		if rec.Status.IsTerminal() {
			return &enginerrors.TerminalStateError{
				ID:     id,
				Status: string(rec.Status),
			}
		}
		rec.Status = StatusCancelled
		finalize(rec)
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("workflow cancelled",
		"workflow_id", id,
		"current_step", snapshot.CurrentStep)
	e.notify(ctx, newEvent(EventWorkflowFinished, snapshot, nil))
	return nil
}

// Operations returns the registered operation names, sorted.
func (e *Engine) Operations() []string {
	return e.registry.Names()
}

// mutate atomically applies fn to the stored record and returns the updated
// snapshot. All engine-side writes funnel through here so read-modify-write
// sequences never interleave.
func (e *Engine) mutate(ctx context.Context, id string, fn func(*Execution) error) (*Execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	if err := e.store.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// notify fans an event out to every sink. Sink errors are logged and never
// affect the run.
func (e *Engine) notify(ctx context.Context, event *Event) {
	for _, sink := range e.sinks {
		if err := sink.OnEvent(ctx, event); err != nil {
			e.logger.Warn("event sink failed",
				"event", string(event.Type),
				"workflow_id", event.Execution.ID,
				"error", err)
		}
	}
}

// finalize stamps the terminal timing fields.
func finalize(rec *Execution) {
	now := time.Now()
	rec.EndTime = &now
	rec.TotalDurationMS = now.Sub(rec.StartTime).Milliseconds()
}
