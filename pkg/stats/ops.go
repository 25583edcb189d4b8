package stats

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

// defaultPercentiles is used when the caller does not request specific ones.
var defaultPercentiles = []float64{25, 50, 75, 90, 95, 99}

func meanOp(data []float64, params map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{
		"mean":  mean(data),
		"count": len(data),
	}, nil
}

// stdOp reports the population standard deviation (divides by n, not n-1).
func stdOp(data []float64, params map[string]interface{}) (map[string]interface{}, error) {
	m := mean(data)
	variance := 0.0
	for _, x := range data {
		d := x - m
		variance += d * d
	}
	variance /= float64(len(data))

	return map[string]interface{}{
		"std":      math.Sqrt(variance),
		"variance": variance,
		"count":    len(data),
	}, nil
}

func minMaxOp(data []float64, params map[string]interface{}) (map[string]interface{}, error) {
	min, max := bounds(data)

	return map[string]interface{}{
		"min":   min,
		"max":   max,
		"range": max - min,
		"count": len(data),
	}, nil
}

func sumOp(data []float64, params map[string]interface{}) (map[string]interface{}, error) {
	sum := 0.0
	for _, x := range data {
		sum += x
	}

	return map[string]interface{}{
		"sum":   sum,
		"count": len(data),
	}, nil
}

func productOp(data []float64, params map[string]interface{}) (map[string]interface{}, error) {
	product := 1.0
	for _, x := range data {
		product *= x
	}

	return map[string]interface{}{
		"product": product,
		"count":   len(data),
	}, nil
}

// percentilesOp reports nearest-rank percentiles over the sorted data.
// Keys are formatted as p25, p50, p99.9 and so on.
func percentilesOp(data []float64, params map[string]interface{}) (map[string]interface{}, error) {
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	requested := defaultPercentiles
	if raw, ok := params["percentiles"].([]interface{}); ok {
		values := make([]float64, 0, len(raw))
		for _, v := range raw {
			if f, ok := numericValue(v); ok {
				values = append(values, f)
			}
		}
		requested = values
	}

	results := make(map[string]interface{}, len(requested))
	for _, p := range requested {
		idx := int(math.Round(p / 100 * float64(len(sorted)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx > len(sorted)-1 {
			idx = len(sorted) - 1
		}
		key := "p" + strconv.FormatFloat(p, 'f', -1, 64)
		results[key] = sorted[idx]
	}

	return results, nil
}

func histogramOp(data []float64, params map[string]interface{}) (map[string]interface{}, error) {
	bins := wholeParam(params, "bins", 10)
	if bins < 1 {
		return nil, &enginerrors.ValidationError{
			Field:   "bins",
			Message: "bins must be a positive integer",
		}
	}

	min, max := bounds(data)
	binWidth := (max - min) / float64(bins)

	histogram := make([]int, bins)
	for _, value := range data {
		idx := 0
		if binWidth > 0 {
			idx = int(math.Floor((value - min) / binWidth))
		}
		if idx < 0 {
			idx = 0
		}
		if idx > bins-1 {
			idx = bins - 1
		}
		histogram[idx]++
	}

	binEdges := make([]float64, bins+1)
	for i := range binEdges {
		binEdges[i] = min + float64(i)*binWidth
	}

	return map[string]interface{}{
		"histogram": histogram,
		"bin_edges": binEdges,
		"bin_width": binWidth,
		"count":     len(data),
	}, nil
}

// matrixMultiplyOp multiplies two square matrices flattened row-major into
// data: the first size*size values form matrix A, the rest matrix B.
func matrixMultiplyOp(data []float64, params map[string]interface{}) (map[string]interface{}, error) {
	size := wholeParam(params, "matrix_size", 2)
	if size < 1 {
		return nil, &enginerrors.ValidationError{
			Field:   "matrix_size",
			Message: "matrix_size must be a positive integer",
		}
	}

	if len(data) != 2*size*size {
		return nil, &enginerrors.ValidationError{
			Field:   "data",
			Message: "data length must be 2 * matrix_size^2 for matrix multiplication",
		}
	}

	split := size * size
	a := data[:split]
	b := data[split:]

	result := make([]float64, size*size)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			sum := 0.0
			for k := 0; k < size; k++ {
				sum += a[i*size+k] * b[k*size+j]
			}
			result[i*size+j] = sum
		}
	}

	return map[string]interface{}{
		"result":     result,
		"dimensions": []int{size, size},
		"operation":  "matrix_multiplication",
	}, nil
}

func customOp(data []float64, params map[string]interface{}) (map[string]interface{}, error) {
	fn, ok := params["function"].(string)
	if !ok {
		// Legacy parameter name used by older clients
		fn, ok = params["operation"].(string)
	}
	if !ok {
		return nil, &enginerrors.ValidationError{
			Field:      "function",
			Message:    "custom operation requires 'function' parameter",
			Suggestion: "set function to normalize, log_transform, or exponential",
		}
	}

	switch fn {
	case "normalize":
		m := mean(data)
		variance := 0.0
		for _, x := range data {
			d := x - m
			variance += d * d
		}
		std := math.Sqrt(variance / float64(len(data)))
		if std == 0 {
			return nil, &enginerrors.ValidationError{
				Field:   "data",
				Message: "cannot normalize data with zero standard deviation",
			}
		}

		normalized := make([]float64, len(data))
		for i, x := range data {
			normalized[i] = (x - m) / std
		}

		return map[string]interface{}{
			"normalized_data": normalized,
			"mean":            m,
			"std":             std,
			"count":           len(data),
		}, nil

	case "log_transform":
		transformed := make([]float64, len(data))
		for i, x := range data {
			if x > 0 {
				transformed[i] = math.Log(x)
			} else {
				transformed[i] = math.Inf(-1)
			}
		}

		return map[string]interface{}{
			"transformed_data": transformed,
			"operation":        "log_transform",
			"count":            len(data),
		}, nil

	case "exponential":
		transformed := make([]float64, len(data))
		for i, x := range data {
			transformed[i] = math.Exp(x)
		}

		return map[string]interface{}{
			"transformed_data": transformed,
			"operation":        "exponential",
			"count":            len(data),
		}, nil

	default:
		return nil, &enginerrors.ValidationError{
			Field:   "function",
			Message: fmt.Sprintf("unknown custom operation: %s", fn),
		}
	}
}

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range data {
		sum += x
	}
	return sum / float64(len(data))
}

func bounds(data []float64) (min, max float64) {
	min = math.Inf(1)
	max = math.Inf(-1)
	for _, x := range data {
		min = math.Min(min, x)
		max = math.Max(max, x)
	}
	return min, max
}

// numericValue reports v as a float64 for JSON-decoded parameter values.
func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// wholeParam extracts a non-negative whole-number parameter, falling back
// to def when absent, non-numeric, negative, or fractional.
func wholeParam(params map[string]interface{}, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	f, ok := numericValue(v)
	if !ok || f < 0 || f != math.Trunc(f) {
		return def
	}
	return int(f)
}
