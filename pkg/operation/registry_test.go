package operation

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

func echoHandler(ctx context.Context, input interface{}, params map[string]interface{}) (interface{}, error) {
	return input, nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("echo", HandlerFunc(echoHandler)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	handler, err := r.Lookup("echo")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if handler == nil {
		t.Fatal("Lookup() returned nil handler")
	}

	if !r.Has("echo") {
		t.Error("Has() = false, want true")
	}
	if r.Has("missing") {
		t.Error("Has(missing) = true, want false")
	}
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup("nope")
	if err == nil {
		t.Fatal("Lookup() expected error, got nil")
	}

	var uerr *enginerrors.UnknownOperationError
	if !errors.As(err, &uerr) {
		t.Fatalf("Lookup() error = %T, want *UnknownOperationError", err)
	}
	if uerr.Name != "nope" {
		t.Errorf("UnknownOperationError.Name = %q, want %q", uerr.Name, "nope")
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("echo", HandlerFunc(echoHandler)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err := r.Register("echo", HandlerFunc(echoHandler))
	if err == nil {
		t.Fatal("Register() expected duplicate error, got nil")
	}

	var verr *enginerrors.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Register() error = %T, want *ValidationError", err)
	}
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("", HandlerFunc(echoHandler)); err == nil {
		t.Error("Register() with empty name expected error, got nil")
	}
	if err := r.Register("echo", nil); err == nil {
		t.Error("Register() with nil handler expected error, got nil")
	}
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("echo", HandlerFunc(echoHandler)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := r.Execute(context.Background(), "echo", "hello", nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got != "hello" {
		t.Errorf("Execute() = %v, want %v", got, "hello")
	}

	_, err = r.Execute(context.Background(), "missing", nil, nil)
	var uerr *enginerrors.UnknownOperationError
	if !errors.As(err, &uerr) {
		t.Errorf("Execute() error = %T, want *UnknownOperationError", err)
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(name, HandlerFunc(echoHandler)); err != nil {
			t.Fatalf("Register(%q) error = %v", name, err)
		}
	}

	want := []string{"alpha", "mid", "zeta"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r, err := NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("NewBuiltinRegistry() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := r.Lookup("delay"); err != nil {
					t.Errorf("Lookup() error = %v", err)
					return
				}
				_ = r.Names()
				_ = r.Has("conditional")
			}
		}()
	}
	wg.Wait()
}

func TestNewBuiltinRegistry(t *testing.T) {
	r, err := NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("NewBuiltinRegistry() error = %v", err)
	}

	for _, name := range BuiltinNames() {
		if !r.Has(name) {
			t.Errorf("builtin %q not registered", name)
		}
		if !IsBuiltin(name) {
			t.Errorf("IsBuiltin(%q) = false, want true", name)
		}
	}

	if IsBuiltin("statistics") {
		t.Error("IsBuiltin(statistics) = true, want false")
	}
}
