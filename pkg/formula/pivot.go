package formula

import (
	"math"
	"sort"
	"strings"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

// processPivot groups rows by the index columns and aggregates each value
// column per group. The first input column lists the index column names and
// the second lists the value column names, both comma-separated.
func (p *Processor) processPivot(request Request) ([]map[string]interface{}, error) {
	data := request.Data
	if len(data) == 0 {
		return []map[string]interface{}{}, nil
	}

	if len(request.Parameters.InputColumns) < 1 {
		return nil, &enginerrors.ValidationError{
			Field:   "input_columns",
			Message: "PIVOT requires index columns",
		}
	}
	if len(request.Parameters.InputColumns) < 2 {
		return nil, &enginerrors.ValidationError{
			Field:   "input_columns",
			Message: "PIVOT requires value columns",
		}
	}

	aggType := request.Parameters.AggregationType
	if aggType == "" {
		aggType = "sum"
	}

	indexColumns := splitColumns(request.Parameters.InputColumns[0])
	valueColumns := splitColumns(request.Parameters.InputColumns[1])

	// group key -> value column -> collected numeric values
	groups := make(map[string]map[string][]float64)

	for _, row := range data {
		groupKey := ""
		for _, col := range indexColumns {
			if value, ok := row[col]; ok {
				groupKey += stringifyValue(value) + "|"
			}
		}

		for _, col := range valueColumns {
			value, ok := numericValue(row[col])
			if !ok {
				continue
			}
			group, exists := groups[groupKey]
			if !exists {
				group = make(map[string][]float64)
				groups[groupKey] = group
			}
			group[col] = append(group[col], value)
		}
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]map[string]interface{}, 0, len(keys))
	for _, key := range keys {
		row := make(map[string]interface{})

		parts := splitGroupKey(key)
		for i, col := range indexColumns {
			if i < len(parts) {
				row[col] = parts[i]
			}
		}

		for col, values := range groups[key] {
			row[col+"_"+aggType] = aggregate(values, aggType)
		}

		results = append(results, row)
	}

	return results, nil
}

// aggregate reduces collected values. Unrecognized aggregation types fall
// back to sum.
func aggregate(values []float64, aggType string) float64 {
	switch aggType {
	case "mean", "average":
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case "count":
		return float64(len(values))
	case "min":
		min := math.Inf(1)
		for _, v := range values {
			min = math.Min(min, v)
		}
		return min
	case "max":
		max := math.Inf(-1)
		for _, v := range values {
			max = math.Max(max, v)
		}
		return max
	default:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum
	}
}

// splitColumns parses a comma-separated column list, trimming whitespace.
func splitColumns(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// splitGroupKey recovers the index values from a pipe-joined group key,
// dropping the empty tail produced by the trailing separator.
func splitGroupKey(key string) []string {
	parts := strings.Split(key, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
