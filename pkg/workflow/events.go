package workflow

import (
	"context"
	"time"
)

// EventType represents the type of execution event.
type EventType string

const (
	// EventWorkflowStarted is emitted when an execution is registered.
	EventWorkflowStarted EventType = "workflow_started"

	// EventStepCompleted is emitted when a step's output is recorded.
	EventStepCompleted EventType = "step_completed"

	// EventStepFailed is emitted when a step's failure is recorded.
	EventStepFailed EventType = "step_failed"

	// EventWorkflowFinished is emitted when an execution reaches a terminal
	// status, including cancellation.
	EventWorkflowFinished EventType = "workflow_finished"
)

// Event describes one execution lifecycle transition. The attached execution
// is a snapshot taken at emit time; sinks may retain it without copying.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Execution *Execution  `json:"execution"`
	Step      *StepResult `json:"step,omitempty"`
}

// Sink receives execution lifecycle events. Implementations must be safe for
// concurrent use. A sink error is logged by the engine and never affects the
// run.
type Sink interface {
	OnEvent(ctx context.Context, event *Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event *Event) error

// OnEvent implements Sink.
func (f SinkFunc) OnEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// newEvent stamps an event with the current time.
func newEvent(eventType EventType, execution *Execution, step *StepResult) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Execution: execution,
		Step:      step,
	}
}
