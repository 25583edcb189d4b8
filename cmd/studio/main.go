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

package main

import (
	"github.com/unified-data-studio/engine/internal/cli"
	"github.com/unified-data-studio/engine/internal/commands/formulas"
	"github.com/unified-data-studio/engine/internal/commands/operations"
	"github.com/unified-data-studio/engine/internal/commands/run"
	"github.com/unified-data-studio/engine/internal/commands/schema"
	"github.com/unified-data-studio/engine/internal/commands/validate"
	versioncmd "github.com/unified-data-studio/engine/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// Set version information from build-time ldflags
	cli.SetVersion(version, commit, buildDate)

	// Create root command and add subcommands
	rootCmd := cli.NewRootCommand()

	// Core workflow commands
	rootCmd.AddCommand(run.NewCommand())
	rootCmd.AddCommand(validate.NewCommand())

	// Catalog commands
	rootCmd.AddCommand(operations.NewCommand())
	rootCmd.AddCommand(formulas.NewCommand())
	rootCmd.AddCommand(schema.NewCommand())

	// Version command
	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	// Replace the default help so --json emits machine-readable metadata
	rootCmd.SetHelpCommand(cli.NewHelpCommand(rootCmd))

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
