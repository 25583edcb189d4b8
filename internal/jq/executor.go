// Package jq evaluates jq queries against workflow step payloads.
package jq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

const (
	// DefaultTimeout bounds a single query evaluation (1 second)
	DefaultTimeout = 1 * time.Second

	// DefaultMaxInputSize caps the serialized input payload (10MB)
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// Executor evaluates jq queries with timeout and input size limits.
type Executor struct {
	timeout      time.Duration
	maxInputSize int64
}

// NewExecutor creates a query executor. Zero values select the defaults.
func NewExecutor(timeout time.Duration, maxInputSize int64) *Executor {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if maxInputSize == 0 {
		maxInputSize = DefaultMaxInputSize
	}

	return &Executor{
		timeout:      timeout,
		maxInputSize: maxInputSize,
	}
}

// Execute runs a jq query against the given payload with timeout protection.
// A query producing a single value returns that value; multiple values are
// returned as an array, and no values return nil.
func (e *Executor) Execute(ctx context.Context, query string, payload interface{}) (interface{}, error) {
	if query == "" {
		// No query means identity
		return payload, nil
	}

	if err := e.checkInputSize(payload); err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, &enginerrors.ValidationError{Field: "query", Message: fmt.Sprintf("parse error: %v", err)}
	}

	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, &enginerrors.ValidationError{Field: "query", Message: fmt.Sprintf("compile error: %v", err)}
	}

	resultChan := make(chan interface{}, 1)
	errorChan := make(chan error, 1)

	go func() {
		iter := code.Run(payload)

		var results []interface{}
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}

			if err, isErr := v.(error); isErr {
				errorChan <- err
				return
			}

			results = append(results, v)
		}

		if len(results) == 0 {
			resultChan <- nil
		} else if len(results) == 1 {
			resultChan <- results[0]
		} else {
			resultChan <- results
		}
	}()

	select {
	case result := <-resultChan:
		return result, nil
	case err := <-errorChan:
		return nil, err
	case <-execCtx.Done():
		return nil, &enginerrors.TimeoutError{Operation: "jq", Duration: e.timeout, Cause: execCtx.Err()}
	}
}

// Validate compiles a query without running it. Workflow validation uses
// this to reject bad queries before any step executes.
func (e *Executor) Validate(query string) error {
	if query == "" {
		return nil
	}

	parsed, err := gojq.Parse(query)
	if err != nil {
		return &enginerrors.ValidationError{
			Field:      "query",
			Message:    fmt.Sprintf("invalid jq query: %v", err),
			Suggestion: "check the query syntax against the jq manual",
		}
	}

	if _, err := gojq.Compile(parsed); err != nil {
		return &enginerrors.ValidationError{
			Field:   "query",
			Message: fmt.Sprintf("jq compilation failed: %v", err),
		}
	}

	return nil
}

// checkInputSize rejects payloads whose JSON encoding exceeds the limit.
func (e *Executor) checkInputSize(payload interface{}) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if int64(len(encoded)) > e.maxInputSize {
		return fmt.Errorf("payload size (%d bytes) exceeds maximum (%d bytes)",
			len(encoded), e.maxInputSize)
	}

	return nil
}
