package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

func TestParseDefinition(t *testing.T) {
	yaml := `
name: sales pipeline
description: Aggregate regional sales
version: "2.0"
parameters:
  source: warehouse
steps:
  - id: load
    operation: file_operation
    parameters:
      operation: read_csv
      file_path: /data/sales.csv
  - id: totals
    operation: data_transform
    dependencies: [load]
    parameters:
      operation: aggregate
      function: sum
    timeout_ms: 5000
    retry_count: 2
`

	def, err := ParseDefinition([]byte(yaml))
	if err != nil {
		t.Fatalf("ParseDefinition() error = %v", err)
	}

	if def.Name != "sales pipeline" {
		t.Errorf("Name = %q, want %q", def.Name, "sales pipeline")
	}
	if def.Version != "2.0" {
		t.Errorf("Version = %q, want %q", def.Version, "2.0")
	}
	if def.Parameters["source"] != "warehouse" {
		t.Errorf("Parameters = %v, want source warehouse", def.Parameters)
	}
	if len(def.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(def.Steps))
	}

	totals := def.Steps[1]
	if !reflect.DeepEqual(totals.Dependencies, []string{"load"}) {
		t.Errorf("Dependencies = %v, want [load]", totals.Dependencies)
	}
	if totals.TimeoutMS != 5000 {
		t.Errorf("TimeoutMS = %d, want 5000", totals.TimeoutMS)
	}
	if totals.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", totals.RetryCount)
	}
	if totals.Parameters["function"] != "sum" {
		t.Errorf("Parameters = %v, want function sum", totals.Parameters)
	}
}

func TestParseDefinitionDefaultsVersion(t *testing.T) {
	yaml := `
name: minimal
steps:
  - id: only
    operation: delay
`

	def, err := ParseDefinition([]byte(yaml))
	if err != nil {
		t.Fatalf("ParseDefinition() error = %v", err)
	}
	if def.Version != DefaultDefinitionVersion {
		t.Errorf("Version = %q, want %q", def.Version, DefaultDefinitionVersion)
	}
}

func TestParseDefinitionAcceptsJSON(t *testing.T) {
	doc := `{
  "name": "json pipeline",
  "steps": [
    {"id": "a", "operation": "delay", "parameters": {"duration_ms": 10}}
  ]
}`

	def, err := ParseDefinition([]byte(doc))
	if err != nil {
		t.Fatalf("ParseDefinition() error = %v", err)
	}
	if def.Name != "json pipeline" {
		t.Errorf("Name = %q, want %q", def.Name, "json pipeline")
	}
	if len(def.Steps) != 1 || def.Steps[0].Operation != "delay" {
		t.Errorf("Steps = %+v, want single delay step", def.Steps)
	}
}

func TestParseDefinitionErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{
			name:    "malformed document",
			yaml:    "name: [unclosed",
			wantSub: "failed to parse",
		},
		{
			name: "missing name",
			yaml: `
steps:
  - id: a
    operation: delay
`,
			wantSub: "workflow name is required",
		},
		{
			name: "missing step id",
			yaml: `
name: broken
steps:
  - operation: delay
`,
			wantSub: "step id is required",
		},
		{
			name: "missing operation",
			yaml: `
name: broken
steps:
  - id: a
`,
			wantSub: "step operation is required",
		},
		{
			name: "empty steps",
			yaml: `
name: broken
steps: []
`,
			wantSub: "at least one step",
		},
		{
			name: "unknown dependency",
			yaml: `
name: broken
steps:
  - id: a
    operation: delay
    dependencies: [ghost]
`,
			wantSub: "non-existent step",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(tt.yaml))
			if err == nil {
				t.Fatal("ParseDefinition() should return error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, should contain %q", err, tt.wantSub)
			}
		})
	}
}

func TestParseDefinitionWrapsGraphErrors(t *testing.T) {
	yaml := `
name: cyclic
steps:
  - id: a
    operation: delay
    dependencies: [b]
  - id: b
    operation: delay
    dependencies: [a]
`

	_, err := ParseDefinition([]byte(yaml))
	if err == nil {
		t.Fatal("ParseDefinition() should return error")
	}

	var graphErr *enginerrors.GraphError
	if !errors.As(err, &graphErr) {
		t.Fatalf("error chain should expose *GraphError, got %T", err)
	}
	if graphErr.Kind != enginerrors.GraphCycle {
		t.Errorf("Kind = %v, want %v", graphErr.Kind, enginerrors.GraphCycle)
	}
}

func TestLoadDefinition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	content := `
name: from file
steps:
  - id: a
    operation: delay
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	def, err := LoadDefinition(path)
	if err != nil {
		t.Fatalf("LoadDefinition() error = %v", err)
	}
	if def.Name != "from file" {
		t.Errorf("Name = %q, want %q", def.Name, "from file")
	}
}

func TestLoadDefinitionMissingFile(t *testing.T) {
	_, err := LoadDefinition(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("LoadDefinition() should return error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read") {
		t.Errorf("error = %q, should mention the read failure", err)
	}
}
