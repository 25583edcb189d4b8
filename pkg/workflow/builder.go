package workflow

import "time"

// Builder provides fluent construction of a workflow step set.
//
// Example:
//
//	steps, err := workflow.NewBuilder("pipeline").
//		Step("load", "validate_schema").
//			Data(records).
//			Done().
//		Step("summary", "statistical_analysis").
//			DependsOn("load").
//			Param("operation", "summary").
//			Done().
//		Build()
type Builder struct {
	name  string
	steps []Step
}

// NewBuilder starts a workflow definition with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Name returns the workflow name the builder was created with.
func (b *Builder) Name() string {
	return b.name
}

// Step starts defining a new step bound to the named operation. Finish the
// step with Done() to return to the workflow builder.
func (b *Builder) Step(id, operation string) *StepBuilder {
	return &StepBuilder{
		builder: b,
		step: Step{
			ID:        id,
			Operation: operation,
		},
	}
}

// Add appends an already constructed step.
func (b *Builder) Add(step Step) *Builder {
	b.steps = append(b.steps, step)
	return b
}

// Build validates the accumulated graph and returns the steps in
// declaration order. The builder can keep being extended and rebuilt.
func (b *Builder) Build() ([]Step, error) {
	steps := append([]Step(nil), b.steps...)
	if err := Validate(steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// StepBuilder provides fluent configuration of a single step.
type StepBuilder struct {
	builder *Builder
	step    Step
}

// Data sets the step's inline input, used when the step has no
// dependencies.
func (s *StepBuilder) Data(data interface{}) *StepBuilder {
	s.step.Data = data
	return s
}

// Param sets a single operation parameter.
//
// Example:
//
//	.Step("summary", "statistical_analysis").
//		Param("operation", "percentiles").
//		Param("percentiles", []float64{50, 95, 99}).
//		Done()
func (s *StepBuilder) Param(key string, value interface{}) *StepBuilder {
	if s.step.Parameters == nil {
		s.step.Parameters = make(map[string]interface{})
	}
	s.step.Parameters[key] = value
	return s
}

// Params merges the given map into the step's operation parameters.
func (s *StepBuilder) Params(params map[string]interface{}) *StepBuilder {
	for key, value := range params {
		s.Param(key, value)
	}
	return s
}

// DependsOn appends dependencies on previously declared steps. The listed
// order determines the order of inputs fed to the operation handler.
func (s *StepBuilder) DependsOn(ids ...string) *StepBuilder {
	s.step.Dependencies = append(s.step.Dependencies, ids...)
	return s
}

// Timeout bounds each execution attempt of the step's handler. Durations
// of a millisecond or more are preserved; anything smaller falls back to
// the engine default.
func (s *StepBuilder) Timeout(d time.Duration) *StepBuilder {
	s.step.TimeoutMS = d.Milliseconds()
	return s
}

// Retries sets how many additional attempts follow a failed first attempt.
func (s *StepBuilder) Retries(n int) *StepBuilder {
	s.step.RetryCount = n
	return s
}

// Done finishes the step and returns the workflow builder.
func (s *StepBuilder) Done() *Builder {
	s.builder.steps = append(s.builder.steps, s.step)
	return s.builder
}
