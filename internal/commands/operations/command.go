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

package operations

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unified-data-studio/engine/internal/commands/shared"
	"github.com/unified-data-studio/engine/pkg/formula"
	"github.com/unified-data-studio/engine/pkg/operation"
	"github.com/unified-data-studio/engine/pkg/stats"
)

// NewCommand creates the operations command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operations",
		Short: "List available workflow operations",
		Long: `Operations lists every operation a workflow step may invoke, including
the statistics and advanced formula processors.`,
		Args: cobra.NoArgs,
		RunE: runOperations,
	}

	return cmd
}

func runOperations(cmd *cobra.Command, args []string) error {
	registry, err := operation.NewBuiltinRegistry()
	if err != nil {
		return fmt.Errorf("failed to create operation registry: %w", err)
	}
	if err := operation.RegisterProcessors(registry, stats.NewProcessor(), formula.NewProcessor()); err != nil {
		return fmt.Errorf("failed to register processors: %w", err)
	}

	names := registry.Names()
	out := cmd.OutOrStdout()

	if shared.GetJSON() {
		data, err := json.MarshalIndent(map[string]interface{}{
			"operations": names,
			"count":      len(names),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal operations: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	return nil
}
