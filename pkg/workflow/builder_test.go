package workflow

import (
	"errors"
	"reflect"
	"testing"
	"time"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

func TestBuilderBuildsSteps(t *testing.T) {
	steps, err := NewBuilder("pipeline").
		Step("load", "file_operation").
		Data("unused").
		Param("operation", "read_csv").
		Param("file_path", "/tmp/in.csv").
		Done().
		Step("totals", "data_transform").
		DependsOn("load").
		Params(map[string]interface{}{
			"operation": "aggregate",
			"function":  "sum",
		}).
		Timeout(5 * time.Second).
		Retries(2).
		Done().
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(steps) != 2 {
		t.Fatalf("len(steps) = %d, want 2", len(steps))
	}

	load := steps[0]
	if load.ID != "load" || load.Operation != "file_operation" {
		t.Errorf("steps[0] = %+v, want load/file_operation", load)
	}
	if load.Parameters["file_path"] != "/tmp/in.csv" {
		t.Errorf("Parameters = %v, want file_path set", load.Parameters)
	}

	totals := steps[1]
	if !reflect.DeepEqual(totals.Dependencies, []string{"load"}) {
		t.Errorf("Dependencies = %v, want [load]", totals.Dependencies)
	}
	if totals.Parameters["function"] != "sum" {
		t.Errorf("Parameters = %v, want function sum", totals.Parameters)
	}
	if totals.TimeoutMS != 5000 {
		t.Errorf("TimeoutMS = %d, want 5000", totals.TimeoutMS)
	}
	if totals.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", totals.RetryCount)
	}
}

func TestBuilderName(t *testing.T) {
	b := NewBuilder("reporting")
	if b.Name() != "reporting" {
		t.Errorf("Name() = %q, want %q", b.Name(), "reporting")
	}
}

func TestBuilderValidatesGraph(t *testing.T) {
	t.Run("empty builder", func(t *testing.T) {
		_, err := NewBuilder("empty").Build()
		if err == nil {
			t.Fatal("Build() should return error for empty workflow")
		}

		var graphErr *enginerrors.GraphError
		if !errors.As(err, &graphErr) {
			t.Fatalf("error type = %T, want *GraphError", err)
		}
		if graphErr.Kind != enginerrors.GraphEmpty {
			t.Errorf("Kind = %v, want %v", graphErr.Kind, enginerrors.GraphEmpty)
		}
	})

	t.Run("cycle", func(t *testing.T) {
		_, err := NewBuilder("cyclic").
			Step("a", "echo").DependsOn("b").Done().
			Step("b", "echo").DependsOn("a").Done().
			Build()
		if err == nil {
			t.Fatal("Build() should return error for cyclic graph")
		}

		var graphErr *enginerrors.GraphError
		if !errors.As(err, &graphErr) {
			t.Fatalf("error type = %T, want *GraphError", err)
		}
		if graphErr.Kind != enginerrors.GraphCycle {
			t.Errorf("Kind = %v, want %v", graphErr.Kind, enginerrors.GraphCycle)
		}
	})
}

func TestBuilderAddPrebuiltStep(t *testing.T) {
	steps, err := NewBuilder("mixed").
		Add(Step{ID: "seed", Operation: "echo", Data: 1.0}).
		Step("next", "echo").DependsOn("seed").Done().
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(steps) != 2 || steps[0].ID != "seed" || steps[1].ID != "next" {
		t.Errorf("steps = %+v, want seed then next", steps)
	}
}

func TestBuilderRemainsExtensible(t *testing.T) {
	b := NewBuilder("growing").
		Step("a", "echo").Done()

	first, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	b.Step("b", "echo").DependsOn("a").Done()

	second, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(first) != 1 {
		t.Errorf("first build len = %d, want 1 (unaffected by later steps)", len(first))
	}
	if len(second) != 2 {
		t.Errorf("second build len = %d, want 2", len(second))
	}
}
