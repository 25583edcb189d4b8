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

package run

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/unified-data-studio/engine/internal/commands/shared"
	"github.com/unified-data-studio/engine/internal/log"
	"github.com/unified-data-studio/engine/internal/tracing"
	"github.com/unified-data-studio/engine/pkg/formula"
	"github.com/unified-data-studio/engine/pkg/operation"
	"github.com/unified-data-studio/engine/pkg/stats"
	"github.com/unified-data-studio/engine/pkg/workflow"
)

// NewCommand creates the run command
func NewCommand() *cobra.Command {
	var (
		params     []string
		watch      bool
		traceSpans bool
	)

	cmd := &cobra.Command{
		Use:   "run <workflow...>",
		Short: "Execute workflow definitions",
		Long: `Run executes one or more workflow definition files. Arguments may be
file paths or glob patterns (** matches across directories).

Each workflow runs to completion and its result is printed as JSON.
Parameters given with --param override parameters declared in the file.

Watch mode:
  --watch    Keep running and re-execute a workflow when its file changes

Tracing:
  --trace    Print OpenTelemetry spans to stdout as steps execute`,
		Example: `  # Run a single workflow
  studio run pipeline.yaml

  # Run every workflow under a directory tree
  studio run 'workflows/**/*.yaml'

  # Override a workflow parameter
  studio run pipeline.yaml --param threshold=0.75

  # Re-run on every file change
  studio run pipeline.yaml --watch`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflows(cmd, args, params, watch, traceSpans)
		},
	}

	cmd.Flags().StringSliceVarP(&params, "param", "p", nil, "Workflow parameter in key=value format")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-run workflows when their files change")
	cmd.Flags().BoolVar(&traceSpans, "trace", false, "Print spans to stdout during execution")

	return cmd
}

// executor runs workflow definition files on an in-process engine.
type executor struct {
	cmd      *cobra.Command
	engine   *workflow.Engine
	provider *tracing.Provider
	params   map[string]interface{}
}

func newExecutor(ctx context.Context, cmd *cobra.Command, params []string, traceSpans bool) (*executor, error) {
	registry, err := operation.NewBuiltinRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to create operation registry: %w", err)
	}
	if err := operation.RegisterProcessors(registry, stats.NewProcessor(), formula.NewProcessor()); err != nil {
		return nil, fmt.Errorf("failed to register processors: %w", err)
	}

	level := "warn"
	if shared.GetVerbose() {
		level = "debug"
	}
	if shared.GetQuiet() {
		level = "error"
	}
	logger := log.New(&log.Config{Level: level, Format: log.FormatText})

	engine := workflow.NewEngine(registry).WithLogger(logger)

	e := &executor{
		cmd:    cmd,
		engine: engine,
	}

	if traceSpans {
		version, _, _ := shared.GetVersion()
		provider, err := tracing.NewProvider(ctx, tracing.Config{
			ServiceVersion: version,
			Exporter:       tracing.ExporterStdout,
			Writer:         cmd.OutOrStdout(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create tracing provider: %w", err)
		}
		engine.WithTracer(provider.Tracer("studio"))
		e.provider = provider
	}

	e.params, err = parseParams(params)
	if err != nil {
		return nil, err
	}

	return e, nil
}

// close flushes any pending spans.
func (e *executor) close(ctx context.Context) {
	if e.provider != nil {
		if err := e.provider.Shutdown(ctx); err != nil {
			fmt.Fprintf(e.cmd.ErrOrStderr(), "Warning: failed to flush spans: %v\n", err)
		}
	}
}

// runFile loads, executes and reports a single workflow definition.
func (e *executor) runFile(ctx context.Context, path string) error {
	def, err := workflow.LoadDefinition(path)
	if err != nil {
		return shared.NewInvalidWorkflowError(fmt.Sprintf("invalid workflow %s", path), err)
	}

	merged := mergeParams(def.Parameters, e.params)
	result, err := e.engine.Submit(ctx, def.Name, def.Steps, merged)
	if err != nil {
		return shared.NewInvalidWorkflowError(fmt.Sprintf("invalid workflow %s", path), err)
	}

	if err := e.report(path, result); err != nil {
		return err
	}

	if result.Status != workflow.StatusCompleted {
		return shared.NewExecutionError(
			fmt.Sprintf("workflow %s %s (%d of %d steps failed)",
				def.Name, result.Status, result.FailedSteps, result.StepCount), nil)
	}
	return nil
}

// report prints the execution result. With --json the full result object is
// emitted; otherwise a summary line followed by the step results.
func (e *executor) report(path string, result *workflow.Result) error {
	out := e.cmd.OutOrStdout()

	if shared.GetJSON() {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if !shared.GetQuiet() {
		fmt.Fprintf(out, "%s: %s (workflow %s, %d/%d steps, %dms)\n",
			path, result.Status, result.WorkflowID,
			result.SuccessfulSteps, result.StepCount, result.ExecutionTimeMS)
	}

	payload := map[string]interface{}{"results": result.Results}
	if len(result.Errors) > 0 {
		payload["errors"] = result.Errors
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func runWorkflows(cmd *cobra.Command, args, params []string, watch, traceSpans bool) error {
	files, err := ExpandPaths(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	exec, err := newExecutor(ctx, cmd, params, traceSpans)
	if err != nil {
		return err
	}
	defer exec.close(ctx)

	if watch {
		return watchAndRun(ctx, cmd, exec, files)
	}

	var failed int
	var firstErr error
	for _, file := range files {
		if err := exec.runFile(ctx, file); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}

	if failed > 0 {
		if len(files) == 1 {
			return firstErr
		}
		return shared.NewExecutionError(
			fmt.Sprintf("%d of %d workflows failed", failed, len(files)), nil)
	}
	return nil
}

// ExpandPaths resolves arguments to a sorted, de-duplicated file list.
// Arguments may be literal paths or doublestar glob patterns.
func ExpandPaths(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, arg := range args {
		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			return nil, shared.NewInvalidWorkflowError(
				fmt.Sprintf("invalid glob pattern %q", arg), err)
		}
		if len(matches) == 0 {
			return nil, shared.NewInvalidWorkflowError(
				fmt.Sprintf("no workflow files match %q", arg), nil)
		}
		for _, match := range matches {
			if !seen[match] {
				seen[match] = true
				files = append(files, match)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

// parseParams converts key=value pairs into workflow parameters. Values
// that parse as JSON keep their type; everything else stays a string.
func parseParams(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	params := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, shared.NewInvalidWorkflowError(
				fmt.Sprintf("invalid parameter %q, expected key=value", pair), nil)
		}

		var parsed interface{}
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			params[key] = parsed
		} else {
			params[key] = value
		}
	}
	return params, nil
}

// mergeParams overlays CLI parameters on definition parameters.
func mergeParams(base, overrides map[string]interface{}) map[string]interface{} {
	if len(overrides) == 0 {
		return base
	}

	merged := make(map[string]interface{}, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
