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

// ErrorClassifier defines methods for programmatic error handling.
// Errors that implement this interface can be classified by category for
// HTTP status mapping, retry decisions, or specific handling paths.
type ErrorClassifier interface {
	error

	// ErrorType returns a string identifying the error category.
	// Examples: "validation", "not_found", "timeout", "graph"
	ErrorType() string

	// IsRetryable returns true if the operation may succeed on retry.
	IsRetryable() bool
}

// ErrorType implements ErrorClassifier.
func (e *GraphError) ErrorType() string { return "graph" }

// IsRetryable implements ErrorClassifier. A structurally invalid graph never
// becomes valid by retrying.
func (e *GraphError) IsRetryable() bool { return false }

// ErrorType implements ErrorClassifier.
func (e *UnknownOperationError) ErrorType() string { return "unknown_operation" }

// IsRetryable implements ErrorClassifier.
func (e *UnknownOperationError) IsRetryable() bool { return false }

// ErrorType implements ErrorClassifier.
func (e *StepError) ErrorType() string { return "step" }

// IsRetryable implements ErrorClassifier. A step failure is retryable when
// its underlying cause is.
func (e *StepError) IsRetryable() bool {
	var classifier ErrorClassifier
	if As(e.Err, &classifier) {
		return classifier.IsRetryable()
	}
	return false
}

// ErrorType implements ErrorClassifier.
func (e *TerminalStateError) ErrorType() string { return "terminal_state" }

// IsRetryable implements ErrorClassifier.
func (e *TerminalStateError) IsRetryable() bool { return false }

// ErrorType implements ErrorClassifier.
func (e *ValidationError) ErrorType() string { return "validation" }

// IsRetryable implements ErrorClassifier.
func (e *ValidationError) IsRetryable() bool { return false }

// ErrorType implements ErrorClassifier.
func (e *NotFoundError) ErrorType() string { return "not_found" }

// IsRetryable implements ErrorClassifier.
func (e *NotFoundError) IsRetryable() bool { return false }

// ErrorType implements ErrorClassifier.
func (e *ConfigError) ErrorType() string { return "config" }

// IsRetryable implements ErrorClassifier.
func (e *ConfigError) IsRetryable() bool { return false }

// ErrorType implements ErrorClassifier.
func (e *TimeoutError) ErrorType() string { return "timeout" }

// IsRetryable implements ErrorClassifier. Timeouts are transient.
func (e *TimeoutError) IsRetryable() bool { return true }
