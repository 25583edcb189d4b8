package formula

import (
	"fmt"
	"sort"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

// processSumifs sums the first input column over rows that satisfy every
// criteria pair. With the "group_by" optional parameter, rows are instead
// grouped by their criteria-column values and summed per group.
func (p *Processor) processSumifs(request Request) ([]map[string]interface{}, error) {
	data := request.Data
	if len(data) == 0 {
		return []map[string]interface{}{}, nil
	}

	if len(request.Parameters.InputColumns) == 0 {
		return nil, &enginerrors.ValidationError{
			Field:   "input_columns",
			Message: "SUMIFS requires a sum range column",
		}
	}
	sumColumn := request.Parameters.InputColumns[0]

	criteriaColumns := request.Parameters.CriteriaColumns
	if criteriaColumns == nil {
		return nil, &enginerrors.ValidationError{
			Field:   "criteria_columns",
			Message: "SUMIFS requires criteria columns",
		}
	}

	criteriaValues := request.Parameters.CriteriaValues
	if criteriaValues == nil {
		return nil, &enginerrors.ValidationError{
			Field:   "criteria_values",
			Message: "SUMIFS requires criteria values",
		}
	}

	if len(criteriaColumns) != len(criteriaValues) {
		return nil, &enginerrors.ValidationError{
			Field:   "parameters",
			Message: "criteria columns and values must have the same length",
		}
	}

	if hasOptionalParam(request.Parameters.OptionalParams, "group_by") {
		return sumifsGrouped(data, sumColumn, criteriaColumns), nil
	}

	return sumifsFiltered(data, sumColumn, criteriaColumns, criteriaValues), nil
}

// sumifsFiltered sums rows matching every criteria pair into a single
// summary row.
func sumifsFiltered(data []map[string]interface{}, sumColumn string, criteriaColumns []string, criteriaValues []interface{}) []map[string]interface{} {
	totalSum := 0.0
	matchingRows := 0

	for _, row := range data {
		matches := true
		for i, col := range criteriaColumns {
			if !criteriaMatch(row[col], criteriaValues[i]) {
				matches = false
				break
			}
		}
		if !matches {
			continue
		}

		if value, ok := numericValue(row[sumColumn]); ok {
			totalSum += value
			matchingRows++
		}
	}

	return []map[string]interface{}{{
		"sum_result":       totalSum,
		"count_result":     float64(matchingRows),
		"criteria_applied": fmt.Sprintf("%d criteria", len(criteriaColumns)),
	}}
}

// sumifsGrouped groups every row by its criteria-column values and reports
// the sum and row count per group. Non-numeric sum values contribute zero
// but still count. Output rows are sorted by group key for determinism.
func sumifsGrouped(data []map[string]interface{}, sumColumn string, criteriaColumns []string) []map[string]interface{} {
	type groupTotals struct {
		sum   float64
		count int
	}
	groups := make(map[string]*groupTotals)

	for _, row := range data {
		groupKey := ""
		for _, col := range criteriaColumns {
			if value, ok := row[col]; ok {
				groupKey += stringifyValue(value) + "|"
			}
		}

		value, _ := numericValue(row[sumColumn])

		totals, exists := groups[groupKey]
		if !exists {
			totals = &groupTotals{}
			groups[groupKey] = totals
		}
		totals.sum += value
		totals.count++
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]map[string]interface{}, 0, len(keys))
	for _, key := range keys {
		totals := groups[key]
		results = append(results, map[string]interface{}{
			"group_key":    key,
			"sum_result":   totals.sum,
			"count_result": float64(totals.count),
		})
	}

	return results
}
