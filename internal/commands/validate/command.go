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

package validate

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unified-data-studio/engine/internal/commands/run"
	"github.com/unified-data-studio/engine/internal/commands/shared"
	"github.com/unified-data-studio/engine/pkg/workflow"
)

// fileReport is the per-file outcome in JSON output.
type fileReport struct {
	File     string `json:"file"`
	Valid    bool   `json:"valid"`
	Workflow string `json:"workflow,omitempty"`
	Steps    int    `json:"steps,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewCommand creates the validate command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workflow...>",
		Short: "Validate workflow definition files",
		Long: `Validate parses workflow definition files and checks their step graphs
without executing anything. A definition is valid when it parses, every
step has an id and an operation, dependencies reference declared steps,
and the dependency graph has no cycles.

Operation names are not resolved; an unregistered operation is reported
at execution time, not here.`,
		Example: `  # Validate one file
  studio validate pipeline.yaml

  # Validate a tree of workflows with JSON output
  studio validate 'workflows/**/*.yaml' --json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runValidate,
	}

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	files, err := run.ExpandPaths(args)
	if err != nil {
		return err
	}

	reports := make([]fileReport, 0, len(files))
	invalid := 0
	for _, file := range files {
		report := fileReport{File: file}

		def, err := workflow.LoadDefinition(file)
		if err != nil {
			report.Error = err.Error()
			invalid++
		} else {
			report.Valid = true
			report.Workflow = def.Name
			report.Steps = len(def.Steps)
		}
		reports = append(reports, report)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal reports: %w", err)
		}
		fmt.Fprintln(out, string(data))
	} else {
		for _, report := range reports {
			if report.Valid {
				if !shared.GetQuiet() {
					fmt.Fprintf(out, "%s: valid (workflow %q, %d steps)\n",
						report.File, report.Workflow, report.Steps)
				}
			} else {
				fmt.Fprintf(out, "%s: invalid: %s\n", report.File, report.Error)
			}
		}
	}

	if invalid > 0 {
		return shared.NewInvalidWorkflowError(
			fmt.Sprintf("%d of %d files invalid", invalid, len(files)), nil)
	}
	return nil
}
