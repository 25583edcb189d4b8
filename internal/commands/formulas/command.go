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

package formulas

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unified-data-studio/engine/internal/commands/shared"
	"github.com/unified-data-studio/engine/pkg/formula"
)

// NewCommand creates the formulas command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formulas",
		Short: "List supported spreadsheet formulas",
		Long: `Formulas lists the spreadsheet-style formulas the advanced formula
processor evaluates, with their parameters and complexity.`,
		Args: cobra.NoArgs,
		RunE: runFormulas,
	}

	return cmd
}

func runFormulas(cmd *cobra.Command, args []string) error {
	processor := formula.NewProcessor()
	out := cmd.OutOrStdout()

	names := processor.FormulaNames()
	infos := make([]formula.Info, 0, len(names))
	for _, name := range names {
		if info, ok := processor.FormulaInfo(name); ok {
			infos = append(infos, info)
		}
	}

	if shared.GetJSON() {
		data, err := json.MarshalIndent(map[string]interface{}{
			"formulas": infos,
			"count":    len(infos),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal formulas: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	for _, info := range infos {
		fmt.Fprintf(out, "%s - %s\n", info.Name, info.Description)
		if !shared.GetQuiet() {
			fmt.Fprintf(out, "  complexity: %s\n", info.Complexity)
			if len(info.RequiredParams) > 0 {
				fmt.Fprintf(out, "  required:   %s\n", strings.Join(info.RequiredParams, ", "))
			}
			if len(info.OptionalParams) > 0 {
				fmt.Fprintf(out, "  optional:   %s\n", strings.Join(info.OptionalParams, ", "))
			}
		}
	}
	return nil
}
