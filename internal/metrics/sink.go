package metrics

import (
	"context"

	"github.com/unified-data-studio/engine/pkg/workflow"
)

// Sink translates workflow lifecycle events into Prometheus metrics.
// Register it on the engine alongside other sinks; it never returns an
// error.
type Sink struct{}

// NewSink creates a metrics sink.
func NewSink() *Sink {
	return &Sink{}
}

// OnEvent implements workflow.Sink.
func (s *Sink) OnEvent(ctx context.Context, event *workflow.Event) error {
	switch event.Type {
	case workflow.EventStepCompleted, workflow.EventStepFailed:
		if event.Step != nil {
			RecordStep(event.Step.Operation, string(event.Step.Status), event.Step.Duration.Seconds())
		}

	case workflow.EventWorkflowFinished:
		RecordWorkflow(string(event.Execution.Status))
	}

	return nil
}
