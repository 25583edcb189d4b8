package operation

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestDataTransform_Filter(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		input       interface{}
		params      map[string]interface{}
		wantErr     string
		checkResult func(t *testing.T, result map[string]interface{})
	}{
		{
			name:  "keeps values above threshold",
			input: []interface{}{1.0, 5.0, 3.0, 8.0},
			params: map[string]interface{}{
				"operation": "filter",
				"threshold": 3.0,
			},
			checkResult: func(t *testing.T, result map[string]interface{}) {
				want := []interface{}{5.0, 8.0}
				if !reflect.DeepEqual(result["filtered_data"], want) {
					t.Errorf("filtered_data = %v, want %v", result["filtered_data"], want)
				}
				if result["original_count"] != 4 {
					t.Errorf("original_count = %v, want 4", result["original_count"])
				}
				if result["filtered_count"] != 2 {
					t.Errorf("filtered_count = %v, want 2", result["filtered_count"])
				}
				if result["threshold"] != 3.0 {
					t.Errorf("threshold = %v, want 3", result["threshold"])
				}
			},
		},
		{
			name:  "threshold defaults to zero",
			input: []interface{}{-1.0, 0.0, 2.0},
			params: map[string]interface{}{
				"operation": "filter",
			},
			checkResult: func(t *testing.T, result map[string]interface{}) {
				want := []interface{}{2.0}
				if !reflect.DeepEqual(result["filtered_data"], want) {
					t.Errorf("filtered_data = %v, want %v", result["filtered_data"], want)
				}
			},
		},
		{
			name:  "non-numeric elements coerce to zero",
			input: []interface{}{"text", 5.0, nil},
			params: map[string]interface{}{
				"operation": "filter",
				"threshold": -1.0,
			},
			checkResult: func(t *testing.T, result map[string]interface{}) {
				// zero > -1, so the non-numeric elements survive with their
				// original values intact
				want := []interface{}{"text", 5.0, nil}
				if !reflect.DeepEqual(result["filtered_data"], want) {
					t.Errorf("filtered_data = %v, want %v", result["filtered_data"], want)
				}
			},
		},
		{
			name:  "non-array input",
			input: "not an array",
			params: map[string]interface{}{
				"operation": "filter",
			},
			wantErr: "data must be an array",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dataTransformHandler(ctx, tt.input, tt.params)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.checkResult(t, got.(map[string]interface{}))
		})
	}
}

func TestDataTransform_Sort(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		input  interface{}
		params map[string]interface{}
		want   []interface{}
		order  string
	}{
		{
			name:  "ascending by default",
			input: []interface{}{3.0, 1.0, 2.0},
			params: map[string]interface{}{
				"operation": "sort",
			},
			want:  []interface{}{1.0, 2.0, 3.0},
			order: "asc",
		},
		{
			name:  "descending",
			input: []interface{}{3.0, 1.0, 2.0},
			params: map[string]interface{}{
				"operation": "sort",
				"order":     "desc",
			},
			want:  []interface{}{3.0, 2.0, 1.0},
			order: "desc",
		},
		{
			name:  "stable for equal keys",
			input: []interface{}{"b", 1.0, "a"},
			params: map[string]interface{}{
				"operation": "sort",
			},
			// "b" and "a" both coerce to zero and keep their relative order
			want:  []interface{}{"b", "a", 1.0},
			order: "asc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dataTransformHandler(ctx, tt.input, tt.params)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			result := got.(map[string]interface{})
			if !reflect.DeepEqual(result["sorted_data"], tt.want) {
				t.Errorf("sorted_data = %v, want %v", result["sorted_data"], tt.want)
			}
			if result["order"] != tt.order {
				t.Errorf("order = %v, want %v", result["order"], tt.order)
			}
			if result["count"] != len(tt.want) {
				t.Errorf("count = %v, want %d", result["count"], len(tt.want))
			}
		})
	}
}

func TestDataTransform_Aggregate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		input   interface{}
		params  map[string]interface{}
		wantErr string
		want    map[string]interface{}
	}{
		{
			name:  "sum",
			input: []interface{}{1.0, 2.0, 3.0, 4.0, 5.0},
			params: map[string]interface{}{
				"operation": "aggregate",
				"function":  "sum",
			},
			want: map[string]interface{}{"sum": 15.0},
		},
		{
			name:  "sum skips non-numeric elements",
			input: []interface{}{1.0, "skip", 2.0},
			params: map[string]interface{}{
				"operation": "aggregate",
				"function":  "sum",
			},
			want: map[string]interface{}{"sum": 3.0},
		},
		{
			name:  "average counts numeric elements only",
			input: []interface{}{2.0, "skip", 4.0},
			params: map[string]interface{}{
				"operation": "aggregate",
				"function":  "average",
			},
			want: map[string]interface{}{"average": 3.0, "count": 2},
		},
		{
			name:  "average of empty array is zero",
			input: []interface{}{},
			params: map[string]interface{}{
				"operation": "aggregate",
				"function":  "average",
			},
			want: map[string]interface{}{"average": 0.0, "count": 0},
		},
		{
			name:  "count includes every element",
			input: []interface{}{1.0, "text", nil},
			params: map[string]interface{}{
				"operation": "aggregate",
				"function":  "count",
			},
			want: map[string]interface{}{"count": 3},
		},
		{
			name:  "missing function parameter",
			input: []interface{}{1.0},
			params: map[string]interface{}{
				"operation": "aggregate",
			},
			wantErr: "aggregate requires 'function' parameter",
		},
		{
			name:  "unknown function",
			input: []interface{}{1.0},
			params: map[string]interface{}{
				"operation": "aggregate",
				"function":  "median",
			},
			wantErr: "unknown aggregate function: median",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dataTransformHandler(ctx, tt.input, tt.params)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("result = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDataTransform_UnknownOperation(t *testing.T) {
	_, err := dataTransformHandler(context.Background(), []interface{}{1.0}, map[string]interface{}{
		"operation": "reverse",
	})
	if err == nil || !strings.Contains(err.Error(), "unknown data transform operation: reverse") {
		t.Errorf("error = %v, want unknown operation message", err)
	}
}

func TestDataTransform_MissingOperation(t *testing.T) {
	_, err := dataTransformHandler(context.Background(), []interface{}{1.0}, map[string]interface{}{})
	if err == nil || !strings.Contains(err.Error(), "data transform requires 'operation' parameter") {
		t.Errorf("error = %v, want missing parameter message", err)
	}
}
