// Package operation maps operation names to handlers and provides the
// built-in handlers every engine registers at startup.
package operation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

// Handler executes a single operation against a resolved input payload.
// Handlers must be safe for concurrent use; the engine may invoke the same
// handler for different steps at the same time.
type Handler interface {
	Execute(ctx context.Context, input interface{}, params map[string]interface{}) (interface{}, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, input interface{}, params map[string]interface{}) (interface{}, error)

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx context.Context, input interface{}, params map[string]interface{}) (interface{}, error) {
	return f(ctx, input, params)
}

// Registry maps operation names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty operation registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// NewBuiltinRegistry creates a registry with all built-in handlers
// pre-registered.
func NewBuiltinRegistry() (*Registry, error) {
	registry := NewRegistry()
	if err := RegisterBuiltins(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// Register adds a handler under the given name. Registering a name twice is
// an error so one handler cannot silently shadow another.
func (r *Registry) Register(name string, handler Handler) error {
	if name == "" {
		return &enginerrors.ValidationError{
			Field:   "name",
			Message: "operation name cannot be empty",
		}
	}
	if handler == nil {
		return &enginerrors.ValidationError{
			Field:      "handler",
			Message:    fmt.Sprintf("handler for operation %q cannot be nil", name),
			Suggestion: "pass a Handler or HandlerFunc implementation",
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return &enginerrors.ValidationError{
			Field:      "name",
			Message:    fmt.Sprintf("operation %q is already registered", name),
			Suggestion: "pick a different operation name",
		}
	}

	r.handlers[name] = handler
	return nil
}

// Lookup retrieves the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, exists := r.handlers[name]
	if !exists {
		return nil, &enginerrors.UnknownOperationError{Name: name}
	}

	return handler, nil
}

// Has reports whether an operation is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.handlers[name]
	return exists
}

// Execute looks up an operation and runs it.
func (r *Registry) Execute(ctx context.Context, name string, input interface{}, params map[string]interface{}) (interface{}, error) {
	handler, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	return handler.Execute(ctx, input, params)
}

// Names returns the registered operation names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
