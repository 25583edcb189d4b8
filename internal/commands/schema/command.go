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

package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/unified-data-studio/engine/internal/commands/shared"
	"github.com/unified-data-studio/engine/schemas"
)

// NewCommand creates the schema command
func NewCommand() *cobra.Command {
	var (
		outputFormat string
		writeToFile  bool
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Output the workflow JSON Schema",
		Long: `Schema outputs the embedded JSON Schema for workflow definitions.

The schema can be used for IDE autocompletion and validation of workflow
files before submitting them to the daemon. By default it is written to
stdout in JSON format.

Use the --write flag to save the schema to ./schemas/workflow.schema.json
in the current directory.`,
		Example: `  # Output schema to stdout
  studio schema

  # Save schema to file for IDE integration
  studio schema --write

  # Output schema in YAML format
  studio schema --output yaml

  # Extract the step definition
  studio schema | jq '.definitions.step'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schemaBytes := schemas.GetWorkflowSchema()

			var output []byte
			switch outputFormat {
			case "json":
				var schemaObj interface{}
				if err := json.Unmarshal(schemaBytes, &schemaObj); err != nil {
					return fmt.Errorf("failed to parse embedded schema: %w", err)
				}
				formatted, err := json.MarshalIndent(schemaObj, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format JSON: %w", err)
				}
				output = formatted

			case "yaml":
				var schemaObj interface{}
				if err := json.Unmarshal(schemaBytes, &schemaObj); err != nil {
					return fmt.Errorf("failed to parse embedded schema: %w", err)
				}
				formatted, err := yaml.Marshal(schemaObj)
				if err != nil {
					return fmt.Errorf("failed to convert to YAML: %w", err)
				}
				output = formatted

			default:
				return &shared.ExitError{
					Code:    shared.ExitInvalidWorkflow,
					Message: fmt.Sprintf("invalid output format: %s (must be 'json' or 'yaml')", outputFormat),
				}
			}

			if writeToFile {
				destPath := filepath.Join(".", "schemas", "workflow.schema.json")

				if _, err := os.Stat(destPath); err == nil && !force {
					return &shared.ExitError{
						Code:    shared.ExitExecutionFailed,
						Message: fmt.Sprintf("file already exists: %s (use --force to overwrite)", destPath),
					}
				}

				destDir := filepath.Dir(destPath)
				if err := os.MkdirAll(destDir, 0755); err != nil {
					return &shared.ExitError{
						Code:    shared.ExitExecutionFailed,
						Message: fmt.Sprintf("failed to create directory: %s", destDir),
						Cause:   err,
					}
				}

				// The written file is always JSON regardless of --output.
				if err := os.WriteFile(destPath, schemaBytes, 0644); err != nil {
					return &shared.ExitError{
						Code:    shared.ExitExecutionFailed,
						Message: fmt.Sprintf("failed to write file: %s", destPath),
						Cause:   err,
					}
				}

				cmd.Printf("schema written to %s\n", destPath)
				return nil
			}

			cmd.Println(string(output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "json", "Output format: json (default), yaml")
	cmd.Flags().BoolVarP(&writeToFile, "write", "w", false, "Write to ./schemas/workflow.schema.json in current directory")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing file (only with --write)")

	return cmd
}
