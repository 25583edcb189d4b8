package workflow

import (
	"testing"
	"time"
)

func TestStatusIsValid(t *testing.T) {
	valid := []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled}
	for _, status := range valid {
		if !status.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", status)
		}
	}

	for _, status := range []Status{"", "unknown", "COMPLETED"} {
		if status.IsValid() {
			t.Errorf("IsValid(%q) = true, want false", status)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("IsTerminal(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStepTimeout(t *testing.T) {
	tests := []struct {
		name      string
		timeoutMS int64
		want      time.Duration
	}{
		{"unset", 0, 0},
		{"negative treated as unset", -5, 0},
		{"milliseconds converted", 1500, 1500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := Step{TimeoutMS: tt.timeoutMS}
			if got := step.Timeout(); got != tt.want {
				t.Errorf("Timeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecutionClone(t *testing.T) {
	end := time.Now()
	exec := &Execution{
		ID:     "exec-1",
		Name:   "original",
		Status: StatusCompleted,
		Steps: []Step{
			{ID: "a", Operation: "echo"},
		},
		Results: map[string]interface{}{"a": 1.0},
		Errors:  map[string]string{},
		EndTime: &end,
	}

	clone := exec.Clone()

	clone.Name = "changed"
	clone.Results["b"] = 2.0
	clone.Errors["a"] = "oops"
	clone.Steps[0].ID = "mutated"
	*clone.EndTime = end.Add(time.Hour)

	if exec.Name != "original" {
		t.Error("Name mutation leaked into source")
	}
	if _, ok := exec.Results["b"]; ok {
		t.Error("Results mutation leaked into source")
	}
	if len(exec.Errors) != 0 {
		t.Error("Errors mutation leaked into source")
	}
	if exec.Steps[0].ID != "a" {
		t.Error("Steps mutation leaked into source")
	}
	if !exec.EndTime.Equal(end) {
		t.Error("EndTime mutation leaked into source")
	}
}

func TestNewResultCounts(t *testing.T) {
	exec := &Execution{
		ID:     "exec-1",
		Status: StatusFailed,
		Steps: []Step{
			{ID: "a"}, {ID: "b"}, {ID: "c"},
		},
		Results:         map[string]interface{}{"a": 1.0, "b": 2.0},
		Errors:          map[string]string{"c": "boom"},
		TotalDurationMS: 42,
	}

	result := newResult(exec)

	if result.WorkflowID != "exec-1" {
		t.Errorf("WorkflowID = %q, want exec-1", result.WorkflowID)
	}
	if result.Status != StatusFailed {
		t.Errorf("Status = %v, want %v", result.Status, StatusFailed)
	}
	if result.StepCount != 3 {
		t.Errorf("StepCount = %d, want 3", result.StepCount)
	}
	if result.SuccessfulSteps != 2 {
		t.Errorf("SuccessfulSteps = %d, want 2", result.SuccessfulSteps)
	}
	if result.FailedSteps != 1 {
		t.Errorf("FailedSteps = %d, want 1", result.FailedSteps)
	}
	if result.ExecutionTimeMS != 42 {
		t.Errorf("ExecutionTimeMS = %d, want 42", result.ExecutionTimeMS)
	}
}
