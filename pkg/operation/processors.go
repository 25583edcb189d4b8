package operation

import (
	"context"
	"encoding/json"
	"fmt"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
	"github.com/unified-data-studio/engine/pkg/formula"
	"github.com/unified-data-studio/engine/pkg/stats"
)

// RegisterProcessors installs the statistics and advanced formula
// processors as workflow operations. The daemon serves the same processors
// directly over HTTP; registering them here lets workflow steps invoke them
// with identical semantics.
func RegisterProcessors(r *Registry, statsProcessor *stats.Processor, formulaProcessor *formula.Processor) error {
	if err := r.Register("statistics", NewStatisticsHandler(statsProcessor)); err != nil {
		return err
	}
	return r.Register("advanced_formula", NewFormulaHandler(formulaProcessor))
}

// NewStatisticsHandler adapts a stats processor into a workflow operation.
// The step input must be a numeric array; parameters.operation names the
// statistic and the remaining parameters configure it.
func NewStatisticsHandler(processor *stats.Processor) Handler {
	return HandlerFunc(func(ctx context.Context, input interface{}, params map[string]interface{}) (interface{}, error) {
		op, ok := stringParam(params, "operation")
		if !ok {
			return nil, &enginerrors.ValidationError{
				Field:      "operation",
				Message:    "statistics requires 'operation' parameter",
				Suggestion: fmt.Sprintf("set operation to one of: %v", processor.Operations()),
			}
		}

		data, err := numericInput(input)
		if err != nil {
			return nil, err
		}

		return processor.Process(data, op, params)
	})
}

// NewFormulaHandler adapts the advanced formula processor into a workflow
// operation. The step parameters mirror the HTTP request body
// (formula_type, parameters, output_config, optionally data); step input
// rows, when present, replace any inline data.
func NewFormulaHandler(processor *formula.Processor) Handler {
	return HandlerFunc(func(ctx context.Context, input interface{}, params map[string]interface{}) (interface{}, error) {
		request, err := formulaRequest(input, params)
		if err != nil {
			return nil, err
		}

		return processor.Process(*request)
	})
}

// numericInput converts a step input into a float64 slice.
func numericInput(input interface{}) ([]float64, error) {
	switch v := input.(type) {
	case []float64:
		return v, nil

	case []interface{}:
		data := make([]float64, 0, len(v))
		for i, element := range v {
			f, ok := numeric(element)
			if !ok {
				return nil, &enginerrors.ValidationError{
					Field:   "data",
					Message: fmt.Sprintf("data[%d] is not numeric", i),
				}
			}
			data = append(data, f)
		}
		return data, nil

	default:
		return nil, &enginerrors.ValidationError{
			Field:      "data",
			Message:    "statistics input must be an array of numbers",
			Suggestion: "provide numeric data on the step or depend on a step that produces it",
		}
	}
}

// formulaRequest builds a formula request from step parameters, then
// overlays the resolved step input as the row set.
func formulaRequest(input interface{}, params map[string]interface{}) (*formula.Request, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, &enginerrors.ValidationError{
			Field:   "parameters",
			Message: fmt.Sprintf("formula parameters are not serializable: %v", err),
		}
	}

	var request formula.Request
	if err := json.Unmarshal(raw, &request); err != nil {
		return nil, &enginerrors.ValidationError{
			Field:   "parameters",
			Message: fmt.Sprintf("malformed formula parameters: %v", err),
		}
	}

	rows, err := formulaRows(input)
	if err != nil {
		return nil, err
	}
	if rows != nil {
		request.Data = rows
	}

	if request.FormulaType == "" {
		return nil, &enginerrors.ValidationError{
			Field:      "formula_type",
			Message:    "advanced formula requires 'formula_type' parameter",
			Suggestion: "set formula_type to SUMIFS, PIVOT, TEXT_JOIN, or VLOOKUP",
		}
	}

	return &request, nil
}

// formulaRows converts a step input into a row set. A nil input reports nil
// rows so inline request data survives.
func formulaRows(input interface{}) ([]map[string]interface{}, error) {
	switch v := input.(type) {
	case nil:
		return nil, nil

	case []map[string]interface{}:
		return v, nil

	case []interface{}:
		rows := make([]map[string]interface{}, 0, len(v))
		for i, element := range v {
			row, ok := element.(map[string]interface{})
			if !ok {
				return nil, &enginerrors.ValidationError{
					Field:   "data",
					Message: fmt.Sprintf("data[%d] is not a row of column values", i),
				}
			}
			rows = append(rows, row)
		}
		return rows, nil

	default:
		return nil, &enginerrors.ValidationError{
			Field:      "data",
			Message:    "advanced formula input must be an array of rows",
			Suggestion: "provide row objects keyed by column name",
		}
	}
}
