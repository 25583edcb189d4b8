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

package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/unified-data-studio/engine/pkg/workflow"
)

// OnEvent implements workflow.Sink, recording execution lifecycle
// transitions as they happen. Rows are upserted so a replayed event
// overwrites rather than duplicates.
func (s *Store) OnEvent(ctx context.Context, event *workflow.Event) error {
	switch event.Type {
	case workflow.EventWorkflowStarted:
		return s.saveWorkflow(ctx, event.Execution)
	case workflow.EventStepCompleted, workflow.EventStepFailed:
		return s.saveStep(ctx, event.Execution, event.Step)
	case workflow.EventWorkflowFinished:
		return s.finishWorkflow(ctx, event.Execution)
	default:
		return nil
	}
}

func (s *Store) saveWorkflow(ctx context.Context, execution *workflow.Execution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at
	`, execution.ID, execution.Name, string(execution.Status),
		formatTime(execution.StartTime), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", execution.ID, err)
	}
	return nil
}

func (s *Store) saveStep(ctx context.Context, execution *workflow.Execution, result *workflow.StepResult) error {
	if result == nil {
		return nil
	}

	// Locate the step definition for its parameters and position.
	order := -1
	var parameters interface{}
	for i := range execution.Steps {
		if execution.Steps[i].ID == result.StepID {
			order = i
			if execution.Steps[i].Parameters != nil {
				encoded, err := json.Marshal(execution.Steps[i].Parameters)
				if err != nil {
					return fmt.Errorf("failed to encode parameters for step %s: %w", result.StepID, err)
				}
				parameters = string(encoded)
			}
			break
		}
	}

	var output interface{}
	if result.Output != nil {
		encoded, err := json.Marshal(result.Output)
		if err != nil {
			return fmt.Errorf("failed to encode output for step %s: %w", result.StepID, err)
		}
		output = string(encoded)
	}

	var stepError interface{}
	if result.Error != "" {
		stepError = result.Error
	}

	rowID := execution.ID + ":" + result.StepID
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_steps (id, workflow_id, step_order, operation, parameters, status, result, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			result = excluded.result,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`, rowID, execution.ID, order, result.Operation, parameters,
		string(result.Status), output, stepError,
		formatTime(result.StartedAt), formatTime(result.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to save step %s: %w", result.StepID, err)
	}
	return nil
}

func (s *Store) finishWorkflow(ctx context.Context, execution *workflow.Execution) error {
	var errorMessage interface{}
	if msg := summarizeErrors(execution); msg != "" {
		errorMessage = msg
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE workflows
		SET status = ?, updated_at = ?, completed_at = ?, error_message = ?
		WHERE id = ?
	`, string(execution.Status), formatTime(time.Now()),
		formatTimePtr(execution.EndTime), errorMessage, execution.ID)
	if err != nil {
		return fmt.Errorf("failed to finish workflow %s: %w", execution.ID, err)
	}
	return nil
}

// summarizeErrors produces the error_message column value for a finished
// execution. Rejected workflows carry a single synthetic error keyed
// "workflow"; otherwise failures are counted.
func summarizeErrors(execution *workflow.Execution) string {
	if execution.Status != workflow.StatusFailed {
		return ""
	}
	if msg, ok := execution.Errors["workflow"]; ok && len(execution.Errors) == 1 {
		return msg
	}
	return fmt.Sprintf("%d of %d steps failed", len(execution.Errors), len(execution.Steps))
}
