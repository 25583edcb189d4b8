package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

// DefaultDefinitionVersion is applied when a definition omits the version
// field.
const DefaultDefinitionVersion = "1.0"

// Definition is the file representation of a workflow. Definitions are
// written in YAML; JSON documents parse through the same path since YAML is
// a superset.
//
// The version field is optional and defaults to "1.0", so a minimal
// definition needs only a name and a steps array.
type Definition struct {
	// Name is the workflow identifier.
	Name string `yaml:"name" json:"name"`

	// Description provides human-readable context about the workflow.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Version tracks the definition schema version.
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// Parameters are workflow-level parameters forwarded on submission.
	Parameters map[string]interface{} `yaml:"parameters,omitempty" json:"parameters,omitempty"`

	// Steps are the executable units of the workflow, in declaration order.
	Steps []Step `yaml:"steps" json:"steps"`
}

// ParseDefinition parses, defaults, and validates a workflow definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse workflow definition: %w", err)
	}

	def.ApplyDefaults()

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow definition: %w", err)
	}

	return &def, nil
}

// LoadDefinition reads and parses a workflow definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow definition: %w", err)
	}
	return ParseDefinition(data)
}

// ApplyDefaults fills optional fields with their documented defaults.
func (d *Definition) ApplyDefaults() {
	if d.Version == "" {
		d.Version = DefaultDefinitionVersion
	}
}

// Validate checks the definition's structure and its step graph. Operation
// names are not resolved here; an unregistered operation surfaces as a step
// failure at execution time.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return &enginerrors.ValidationError{
			Field:   "name",
			Message: "workflow name is required",
		}
	}

	for i, step := range d.Steps {
		if step.ID == "" {
			return &enginerrors.ValidationError{
				Field:   fmt.Sprintf("steps[%d].id", i),
				Message: "step id is required",
			}
		}
		if step.Operation == "" {
			return &enginerrors.ValidationError{
				Field:      fmt.Sprintf("steps[%d].operation", i),
				Message:    "step operation is required",
				Suggestion: "set operation to a registered handler name, for example statistics",
			}
		}
	}

	return Validate(d.Steps)
}
