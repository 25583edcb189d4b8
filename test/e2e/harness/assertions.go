package harness

import (
	"strings"
	"testing"
)

// AssertCompleted asserts that the workflow finished with every step in
// Results and none in Errors.
func (h *Harness) AssertCompleted(t *testing.T, result *WorkflowResponse) {
	t.Helper()

	if result == nil {
		t.Fatal("result is nil")
	}

	if result.Status != "completed" {
		t.Errorf("expected status completed, got %q (errors: %v)", result.Status, result.Errors)
	}

	if len(result.Errors) > 0 {
		t.Errorf("expected no step errors, got: %v", result.Errors)
	}
}

// AssertFailed asserts that the workflow finished failed with at least
// one step error recorded.
func (h *Harness) AssertFailed(t *testing.T, result *WorkflowResponse) {
	t.Helper()

	if result == nil {
		t.Fatal("result is nil")
	}

	if result.Status != "failed" {
		t.Errorf("expected status failed, got %q", result.Status)
	}

	if len(result.Errors) == 0 {
		t.Error("expected step errors to be recorded")
	}
}

// StepResult returns a step's output as an object. Fails the test if the
// step is missing from Results or its output is not an object.
func (h *Harness) StepResult(t *testing.T, result *WorkflowResponse, stepID string) map[string]interface{} {
	t.Helper()

	if result == nil {
		t.Fatal("result is nil")
	}

	raw, ok := result.Results[stepID]
	if !ok {
		t.Fatalf("step %q not found in results (available steps: %v)", stepID, stepIDs(result))
	}

	output, ok := raw.(map[string]interface{})
	if !ok {
		t.Fatalf("step %q output is %T, want an object: %v", stepID, raw, raw)
	}
	return output
}

// AssertStepError asserts that a step failed with an error containing
// the expected string.
func (h *Harness) AssertStepError(t *testing.T, result *WorkflowResponse, stepID string, contains string) {
	t.Helper()

	if result == nil {
		t.Fatal("result is nil")
	}

	message, ok := result.Errors[stepID]
	if !ok {
		t.Fatalf("step %q not found in errors (errors: %v)", stepID, result.Errors)
	}

	if !strings.Contains(message, contains) {
		t.Errorf("step %q error does not contain %q\nGot: %s", stepID, contains, message)
	}
}

// AssertStepCount asserts the total number of attempted steps, counting
// both successes and failures.
func (h *Harness) AssertStepCount(t *testing.T, result *WorkflowResponse, expectedCount int) {
	t.Helper()

	if result == nil {
		t.Fatal("result is nil")
	}

	actualCount := len(result.Results) + len(result.Errors)
	if actualCount != expectedCount {
		t.Errorf("expected %d steps, got %d (steps: %v)", expectedCount, actualCount, stepIDs(result))
	}
}

// stepIDs returns the attempted step ids for better error messages.
func stepIDs(result *WorkflowResponse) []string {
	if result == nil {
		return nil
	}

	ids := make([]string, 0, len(result.Results)+len(result.Errors))
	for id := range result.Results {
		ids = append(ids, id)
	}
	for id := range result.Errors {
		ids = append(ids, id)
	}
	return ids
}
