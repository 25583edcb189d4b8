package operation

import (
	"context"
	"fmt"
	"sort"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

// dataTransformHandler dispatches the filter, sort, and aggregate
// sub-operations over an array input.
func dataTransformHandler(ctx context.Context, input interface{}, params map[string]interface{}) (interface{}, error) {
	op, ok := stringParam(params, "operation")
	if !ok {
		return nil, &enginerrors.ValidationError{
			Field:      "operation",
			Message:    "data transform requires 'operation' parameter",
			Suggestion: "set operation to filter, sort, or aggregate",
		}
	}

	switch op {
	case "filter":
		return filterTransform(input, params)
	case "sort":
		return sortTransform(input, params)
	case "aggregate":
		return aggregateTransform(input, params)
	default:
		return nil, &enginerrors.ValidationError{
			Field:   "operation",
			Message: fmt.Sprintf("unknown data transform operation: %s", op),
		}
	}
}

// filterTransform keeps elements whose numeric coercion exceeds the
// threshold. Non-numeric elements coerce to zero, so they survive only
// when the threshold is negative. Original element values are preserved
// in the output.
func filterTransform(input interface{}, params map[string]interface{}) (interface{}, error) {
	arr, ok := asArray(input)
	if !ok {
		return nil, &enginerrors.ValidationError{
			Field:   "input",
			Message: "data must be an array",
		}
	}

	threshold := floatParam(params, "threshold", 0)

	filtered := make([]interface{}, 0, len(arr))
	for _, v := range arr {
		if coerceFloat(v) > threshold {
			filtered = append(filtered, v)
		}
	}

	return map[string]interface{}{
		"filtered_data":  filtered,
		"original_count": len(arr),
		"filtered_count": len(filtered),
		"threshold":      threshold,
	}, nil
}

// sortTransform stably sorts elements by their numeric coercion.
func sortTransform(input interface{}, params map[string]interface{}) (interface{}, error) {
	arr, ok := asArray(input)
	if !ok {
		return nil, &enginerrors.ValidationError{
			Field:   "input",
			Message: "data must be an array",
		}
	}

	order := stringParamDefault(params, "order", "asc")

	sorted := make([]interface{}, len(arr))
	copy(sorted, arr)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := coerceFloat(sorted[i]), coerceFloat(sorted[j])
		if order == "desc" {
			return a > b
		}
		return a < b
	})

	return map[string]interface{}{
		"sorted_data": sorted,
		"order":       order,
		"count":       len(sorted),
	}, nil
}

// aggregateTransform reduces an array to a summary value. Sum and average
// skip non-numeric elements; count reports every element.
func aggregateTransform(input interface{}, params map[string]interface{}) (interface{}, error) {
	arr, ok := asArray(input)
	if !ok {
		return nil, &enginerrors.ValidationError{
			Field:   "input",
			Message: "data must be an array",
		}
	}

	fn, ok := stringParam(params, "function")
	if !ok {
		return nil, &enginerrors.ValidationError{
			Field:      "function",
			Message:    "aggregate requires 'function' parameter",
			Suggestion: "set function to sum, average, or count",
		}
	}

	switch fn {
	case "sum":
		sum := 0.0
		for _, v := range arr {
			if f, ok := numeric(v); ok {
				sum += f
			}
		}
		return map[string]interface{}{"sum": sum}, nil

	case "average":
		sum := 0.0
		count := 0
		for _, v := range arr {
			if f, ok := numeric(v); ok {
				sum += f
				count++
			}
		}
		average := 0.0
		if count > 0 {
			average = sum / float64(count)
		}
		return map[string]interface{}{"average": average, "count": count}, nil

	case "count":
		return map[string]interface{}{"count": len(arr)}, nil

	default:
		return nil, &enginerrors.ValidationError{
			Field:   "function",
			Message: fmt.Sprintf("unknown aggregate function: %s", fn),
		}
	}
}
