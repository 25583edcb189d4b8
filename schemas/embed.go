// Package schemas provides access to embedded JSON schemas.
package schemas

import (
	_ "embed"
)

// Embed the workflow JSON Schema into the binary for validation and
// tooling. The schema documents the workflow definition format the CLI
// loads and the daemon accepts, and enables IDE autocompletion and
// schema-based editors.
//
//go:embed workflow.schema.json
var workflowSchema []byte

// GetWorkflowSchema returns the embedded workflow JSON Schema as raw bytes.
func GetWorkflowSchema() []byte {
	return workflowSchema
}

// GetWorkflowSchemaString returns the embedded workflow JSON Schema as a
// string, for use cases that need the schema as text.
func GetWorkflowSchemaString() string {
	return string(workflowSchema)
}
