package workflow

import (
	"context"
	"log/slog"
	"time"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
	"github.com/unified-data-studio/engine/pkg/operation"
)

// DefaultStepTimeout bounds a single handler attempt when the step does not
// declare its own timeout_ms.
const DefaultStepTimeout = 30 * time.Second

// Executor runs individual workflow steps: it resolves the step's input,
// looks up the handler, and drives the attempt/retry loop. Failures are
// recorded on the returned StepResult, never raised, so one step's failure
// cannot abort the surrounding run.
type Executor struct {
	registry       *operation.Registry
	logger         *slog.Logger
	defaultTimeout time.Duration
}

// NewExecutor creates a step executor backed by the given operation registry.
func NewExecutor(registry *operation.Registry) *Executor {
	return &Executor{
		registry:       registry,
		logger:         slog.Default(),
		defaultTimeout: DefaultStepTimeout,
	}
}

// WithLogger sets a custom logger for the executor.
func (e *Executor) WithLogger(logger *slog.Logger) *Executor {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// WithDefaultTimeout overrides the default per-attempt handler bound.
func (e *Executor) WithDefaultTimeout(timeout time.Duration) *Executor {
	if timeout > 0 {
		e.defaultTimeout = timeout
	}
	return e
}

// Execute runs one step to completion. The input and handler are resolved
// once and reused across every retry attempt; the retry budget adds
// step.RetryCount attempts after the first failure, with no implicit
// backoff. Each attempt runs under its own timeout. Attempts stop early when
// the submit context is cancelled.
func (e *Executor) Execute(ctx context.Context, step *Step, resultsSoFar map[string]interface{}) *StepResult {
	result := &StepResult{
		StepID:    step.ID,
		Operation: step.Operation,
		StartedAt: time.Now(),
	}

	input := resolveInput(step, resultsSoFar)

	handler, err := e.registry.Lookup(step.Operation)
	if err != nil {
		// Nothing was invoked; the recorded message keeps the
		// "unknown operation" marker callers match on.
		return e.finish(result, nil, err)
	}

	timeout := step.Timeout()
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	maxAttempts := step.RetryCount + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		output, err := e.attempt(ctx, handler, step, input, timeout)
		if err == nil {
			return e.finish(result, output, nil)
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if attempt < maxAttempts {
			e.logger.Debug("step attempt failed, retrying",
				"step_id", step.ID,
				"operation", step.Operation,
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"error", err)
		}
	}

	return e.finish(result, nil, &enginerrors.StepError{
		StepID:    step.ID,
		Operation: step.Operation,
		Err:       lastErr,
	})
}

// attempt invokes the handler once under a per-attempt timeout. The handler
// runs on its own goroutine so even a handler that ignores its context
// cannot block the run past the bound.
func (e *Executor) attempt(ctx context.Context, handler operation.Handler, step *Step, input interface{}, timeout time.Duration) (interface{}, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		output interface{}
		err    error
	}

	done := make(chan outcome, 1)
	go func() {
		output, err := handler.Execute(attemptCtx, input, step.Parameters)
		done <- outcome{output: output, err: err}
	}()

	select {
	case res := <-done:
		return res.output, res.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &enginerrors.TimeoutError{
			Operation: step.Operation,
			Duration:  timeout,
			Cause:     attemptCtx.Err(),
		}
	}
}

// finish stamps the result with its outcome and timing.
func (e *Executor) finish(result *StepResult, output interface{}, err error) *StepResult {
	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)

	if err != nil {
		result.Status = StepStatusFailed
		result.Error = err.Error()
		return result
	}

	result.Status = StepStatusSuccess
	result.Output = output
	return result
}

// resolveInput picks the step's effective input: its own payload when it
// declares no dependencies, otherwise the dependency outputs recorded so
// far, collected in dependency declaration order. Outputs missing because a
// dependency failed are omitted, never substituted.
func resolveInput(step *Step, resultsSoFar map[string]interface{}) interface{} {
	if len(step.Dependencies) == 0 {
		return step.Data
	}

	inputs := make([]interface{}, 0, len(step.Dependencies))
	for _, dep := range step.Dependencies {
		if output, ok := resultsSoFar[dep]; ok {
			inputs = append(inputs, output)
		}
	}
	return inputs
}
