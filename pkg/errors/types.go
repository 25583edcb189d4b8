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

package errors

import (
	"fmt"
	"time"
)

// GraphKind classifies structural workflow graph failures.
type GraphKind string

const (
	// GraphEmpty means the workflow declared no steps.
	GraphEmpty GraphKind = "empty"

	// GraphUnknownDependency means a step depends on an id that is not a
	// declared step.
	GraphUnknownDependency GraphKind = "unknown_dependency"

	// GraphCycle means the dependency relation contains a cycle.
	GraphCycle GraphKind = "cycle"

	// GraphDuplicateStep means two steps share the same id.
	GraphDuplicateStep GraphKind = "duplicate_step"
)

// GraphError represents a structural problem with a workflow's step graph.
// Graph errors are raised by validation before any step executes; a workflow
// rejected this way records exactly one synthetic error entry.
type GraphError struct {
	// Kind identifies the structural failure
	Kind GraphKind

	// StepID is the step where the problem was detected (if applicable)
	StepID string

	// DependencyID is the offending dependency reference (if applicable)
	DependencyID string
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	switch e.Kind {
	case GraphEmpty:
		return "workflow must have at least one step"
	case GraphUnknownDependency:
		return fmt.Sprintf("step %q depends on non-existent step %q", e.StepID, e.DependencyID)
	case GraphDuplicateStep:
		return fmt.Sprintf("duplicate step id %q", e.StepID)
	default:
		return "circular dependency detected in workflow"
	}
}

// UnknownOperationError means a step named an operation with no registered
// handler. The message deliberately contains "unknown operation" so callers
// inspecting recorded step failures can match on it.
type UnknownOperationError struct {
	// Name is the operation name that was not found
	Name string
}

// Error implements the error interface.
func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation: %s", e.Name)
}

// StepError wraps a handler failure with the step id and operation name so a
// recorded error identifies both the step and the handler that produced it.
type StepError struct {
	// StepID is the failing step's id
	StepID string

	// Operation is the handler name the step invoked
	Operation string

	// Err is the underlying handler error
	Err error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %q (%s): %v", e.StepID, e.Operation, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *StepError) Unwrap() error {
	return e.Err
}

// TerminalStateError means a lifecycle operation was invoked on a workflow
// that has already reached a terminal status (completed, failed, cancelled).
type TerminalStateError struct {
	// ID is the workflow id
	ID string

	// Status is the terminal status the workflow holds
	Status string
}

// Error implements the error interface.
func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("workflow %s is already %s", e.ID, e.Status)
}

// ValidationError represents user input validation failures.
// Use this for invalid requests, malformed definitions, or constraint
// violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a resource not found error.
// Use this when a requested resource does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "workflow", "operation")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid
// config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "listen.addr")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeouts.
// Use this when a handler exceeds its configured execution bound.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "delay", "statistics")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
