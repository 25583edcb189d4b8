// Package expreval evaluates expressions against workflow step data.
//
// Expressions use expr-lang syntax and run against an environment built
// from the step's input payload and parameters. Compiled programs are
// cached so repeated evaluations of the same expression skip compilation.
package expreval

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

// Evaluator evaluates expressions against a step environment.
// It caches compiled programs for repeated evaluations.
type Evaluator struct {
	cache map[string]*vm.Program
	mu    sync.RWMutex
}

// New creates a new expression evaluator.
func New() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*vm.Program),
	}
}

// Evaluate evaluates an expression against the given environment and
// returns whatever value the expression produces.
//
// The environment typically contains:
//   - input: the step's resolved input payload
//   - params: the step's parameter map
//
// Example:
//
//	env := map[string]interface{}{
//	    "input":  []interface{}{1.0, 2.0, 3.0},
//	    "params": map[string]interface{}{"threshold": 2.0},
//	}
//	result, err := eval.Evaluate(`includes(input, 2.0)`, env)
func (e *Evaluator) Evaluate(expression string, env map[string]interface{}) (interface{}, error) {
	if expression == "" {
		return nil, nil
	}

	program, err := e.compile(expression)
	if err != nil {
		return nil, &enginerrors.ValidationError{
			Field:      "expression",
			Message:    fmt.Sprintf("failed to compile expression: %s", err.Error()),
			Suggestion: "check expression syntax and ensure all referenced variables exist",
		}
	}

	// Merge custom functions into the environment for runtime
	// Note: "contains" is reserved in expr for string operations
	runEnv := make(map[string]interface{}, len(env)+3)
	for k, v := range env {
		runEnv[k] = v
	}
	runEnv["has"] = containsFunc
	runEnv["includes"] = containsFunc
	runEnv["length"] = lenFunc

	result, err := expr.Run(program, runEnv)
	if err != nil {
		return nil, &enginerrors.ValidationError{
			Field:      "expression",
			Message:    fmt.Sprintf("expression evaluation failed: %s", err.Error()),
			Suggestion: "verify that all referenced variables exist in the step environment",
		}
	}

	return result, nil
}

// EvaluateBool evaluates an expression that must produce a boolean.
// An empty expression defaults to true.
func (e *Evaluator) EvaluateBool(expression string, env map[string]interface{}) (bool, error) {
	if expression == "" {
		return true, nil
	}

	result, err := e.Evaluate(expression, env)
	if err != nil {
		return false, err
	}

	boolResult, ok := result.(bool)
	if !ok {
		return false, &enginerrors.ValidationError{
			Field:      "expression",
			Message:    fmt.Sprintf("expression must return boolean, got %T (%v)", result, result),
			Suggestion: "use comparison operators (==, !=, <, >, etc.) or boolean functions",
		}
	}

	return boolResult, nil
}

// Validate compiles an expression without running it.
func (e *Evaluator) Validate(expression string) error {
	if expression == "" {
		return nil
	}

	if _, err := e.compile(expression); err != nil {
		return &enginerrors.ValidationError{
			Field:      "expression",
			Message:    fmt.Sprintf("invalid expression: %s", err.Error()),
			Suggestion: "check expression syntax",
		}
	}

	return nil
}

// compile compiles an expression and caches the result.
func (e *Evaluator) compile(expression string) (*vm.Program, error) {
	// Check cache first (read lock)
	e.mu.RLock()
	if prog, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	// Environment with custom functions
	// Note: "contains" is a reserved string operator in expr, so we use "has" and "includes"
	env := map[string]interface{}{
		"has":      containsFunc,
		"includes": containsFunc,
		"length":   lenFunc,
	}

	prog, err := expr.Compile(expression,
		expr.Env(env),
		// The real environment arrives at run time
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, err
	}

	// Cache the compiled program (write lock)
	e.mu.Lock()
	e.cache[expression] = prog
	e.mu.Unlock()

	return prog, nil
}

// ClearCache clears the compiled program cache.
// This is mainly useful for testing.
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	e.cache = make(map[string]*vm.Program)
	e.mu.Unlock()
}

// CacheSize returns the number of cached programs.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
