package workflow

import (
	"time"
)

// Status represents the lifecycle state of a workflow execution.
type Status string

// Workflow statuses, lowercase on the wire.
const (
	// StatusPending indicates the execution is registered but validation has
	// not passed yet.
	StatusPending Status = "pending"
	// StatusRunning indicates steps are being dispatched.
	StatusRunning Status = "running"
	// StatusCompleted indicates every attempted step succeeded.
	StatusCompleted Status = "completed"
	// StatusFailed indicates at least one step was recorded in Errors, or
	// validation rejected the graph.
	StatusFailed Status = "failed"
	// StatusCancelled indicates the execution was cancelled before finishing.
	StatusCancelled Status = "cancelled"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusRunning:   true,
	StatusCompleted: true,
	StatusFailed:    true,
	StatusCancelled: true,
}

// IsValid checks if a status is valid.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal returns true if the status is terminal (no further transitions).
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Step is one unit of work in a workflow: a named operation applied to an
// input payload, gated on the completion of its dependencies. Steps are
// immutable once submitted.
type Step struct {
	// ID uniquely identifies the step within its workflow.
	ID string `json:"id" yaml:"id"`

	// Operation names the registered handler that executes this step.
	Operation string `json:"operation" yaml:"operation"`

	// Dependencies lists the ids of steps that must be attempted first.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	// Data is the step's own input payload, used when the step has no
	// dependencies. Its shape is operation-specific and opaque to the engine.
	Data interface{} `json:"data,omitempty" yaml:"data,omitempty"`

	// Parameters carries handler-specific options.
	Parameters map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// TimeoutMS bounds each handler attempt in milliseconds. Zero means the
	// executor default applies.
	TimeoutMS int64 `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`

	// RetryCount is the number of additional attempts after a failure.
	RetryCount int `json:"retry_count,omitempty" yaml:"retry_count,omitempty"`
}

// Timeout returns the per-attempt handler bound, or zero when the executor
// default applies.
func (s *Step) Timeout() time.Duration {
	if s.TimeoutMS <= 0 {
		return 0
	}
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// Execution is the engine's record of one submitted workflow. It is owned
// and mutated through the store; readers always receive deep-copied
// snapshots.
type Execution struct {
	// ID is the generated workflow id (UUID v4).
	ID string `json:"id"`

	// Name is the caller-supplied workflow name.
	Name string `json:"name"`

	// Steps holds the submitted steps in declaration order.
	Steps []Step `json:"steps"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// CurrentStep is the id of the most recently dispatched step. It is
	// retained after the run finishes.
	CurrentStep string `json:"current_step,omitempty"`

	// Results maps step id to handler output for successful steps.
	Results map[string]interface{} `json:"results"`

	// Errors maps step id to failure message for failed steps. A workflow
	// rejected by validation carries one synthetic entry under "workflow".
	Errors map[string]string `json:"errors"`

	// StartTime is when the execution was created.
	StartTime time.Time `json:"start_time"`

	// EndTime is when the execution reached a terminal status.
	EndTime *time.Time `json:"end_time,omitempty"`

	// TotalDurationMS is the wall-clock run time, 0 until finalized.
	TotalDurationMS int64 `json:"total_duration_ms"`
}

// Clone returns a deep copy of the execution. Map values are shared: handler
// outputs are treated as immutable once recorded.
func (e *Execution) Clone() *Execution {
	if e == nil {
		return nil
	}

	clone := *e

	clone.Steps = make([]Step, len(e.Steps))
	copy(clone.Steps, e.Steps)

	clone.Results = make(map[string]interface{}, len(e.Results))
	for id, output := range e.Results {
		clone.Results[id] = output
	}

	clone.Errors = make(map[string]string, len(e.Errors))
	for id, msg := range e.Errors {
		clone.Errors[id] = msg
	}

	if e.EndTime != nil {
		end := *e.EndTime
		clone.EndTime = &end
	}

	return &clone
}

// Result summarizes a finished run. It is derived from the execution record
// and immutable.
type Result struct {
	WorkflowID      string                 `json:"workflow_id"`
	Status          Status                 `json:"status"`
	Results         map[string]interface{} `json:"results"`
	Errors          map[string]string      `json:"errors"`
	ExecutionTimeMS int64                  `json:"execution_time_ms"`
	StepCount       int                    `json:"step_count"`
	SuccessfulSteps int                    `json:"successful_steps"`
	FailedSteps     int                    `json:"failed_steps"`
}

// newResult derives the immutable summary from a terminal execution snapshot.
func newResult(exec *Execution) *Result {
	return &Result{
		WorkflowID:      exec.ID,
		Status:          exec.Status,
		Results:         exec.Results,
		Errors:          exec.Errors,
		ExecutionTimeMS: exec.TotalDurationMS,
		StepCount:       len(exec.Steps),
		SuccessfulSteps: len(exec.Results),
		FailedSteps:     len(exec.Errors),
	}
}

// StepStatus represents the outcome of one step attempt sequence.
type StepStatus string

const (
	// StepStatusSuccess indicates the step's output was recorded in Results.
	StepStatusSuccess StepStatus = "success"
	// StepStatusFailed indicates the step's failure was recorded in Errors.
	StepStatusFailed StepStatus = "failed"
)

// StepResult records the outcome of executing one step, including how many
// attempts the retry budget consumed. It feeds sinks and metrics; the
// engine's own bookkeeping lives in the Execution maps.
type StepResult struct {
	// StepID is the id of the executed step.
	StepID string

	// Operation is the handler name the step invoked.
	Operation string

	// Status is success or failed.
	Status StepStatus

	// Output is the handler output (nil on failure).
	Output interface{}

	// Error is the failure message (empty on success).
	Error string

	// Attempts is the number of handler invocations performed.
	Attempts int

	// StartedAt is when the first attempt began.
	StartedAt time.Time

	// CompletedAt is when the final attempt finished.
	CompletedAt time.Time

	// Duration spans all attempts.
	Duration time.Duration
}
