// Package formula evaluates spreadsheet-style formulas (SUMIFS, PIVOT,
// TEXT_JOIN, VLOOKUP) over row sets.
//
// A row set is a slice of column-keyed maps, the shape produced by
// decoding a JSON array of objects. Formula names are case-insensitive.
package formula

import (
	"fmt"
	"sort"
	"strings"
	"time"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

// Request describes one formula evaluation.
type Request struct {
	FormulaType  string                   `json:"formula_type"`
	Data         []map[string]interface{} `json:"data"`
	Parameters   Parameters               `json:"parameters"`
	OutputConfig OutputConfig             `json:"output_config"`
}

// Parameters carries the formula-specific inputs. Which fields are required
// depends on the formula type; Validate reports what is missing.
type Parameters struct {
	InputColumns    []string                 `json:"input_columns"`
	CriteriaColumns []string                 `json:"criteria_columns,omitempty"`
	CriteriaValues  []interface{}            `json:"criteria_values,omitempty"`
	Separator       *string                  `json:"separator,omitempty"`
	AggregationType string                   `json:"aggregation_type,omitempty"`
	LookupTable     []map[string]interface{} `json:"lookup_table,omitempty"`
	LookupKey       string                   `json:"lookup_key,omitempty"`
	ReturnColumn    string                   `json:"return_column,omitempty"`
	OptionalParams  []string                 `json:"optional_params,omitempty"`
}

// OutputConfig controls how results are shaped.
type OutputConfig struct {
	OutputColumn    string `json:"output_column"`
	IncludeMetadata bool   `json:"include_metadata"`
	SampleSize      int    `json:"sample_size,omitempty"`
}

// Result is a completed formula evaluation.
type Result struct {
	Status           string                   `json:"status"`
	Data             []map[string]interface{} `json:"data"`
	Metadata         map[string]interface{}   `json:"metadata"`
	ProcessingTimeMS int64                    `json:"processing_time_ms"`
	FormulaType      string                   `json:"formula_type"`
}

// Info describes a supported formula for the catalog endpoint.
type Info struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Complexity     string   `json:"complexity"`
	RequiredParams []string `json:"required_params"`
	OptionalParams []string `json:"optional_params"`
	Examples       []string `json:"examples"`
}

// Processor evaluates formulas and serves the formula catalog.
type Processor struct {
	supported map[string]Info
}

// NewProcessor creates a processor with the formula catalog registered.
func NewProcessor() *Processor {
	p := &Processor{
		supported: make(map[string]Info),
	}

	p.supported["SUMIFS"] = Info{
		Name:           "SUMIFS",
		Description:    "Sums values based on multiple criteria conditions",
		Complexity:     "Advanced",
		RequiredParams: []string{"sum_range", "criteria_ranges", "criteria_values"},
		OptionalParams: []string{"group_by", "output_format"},
		Examples: []string{
			"Sum sales where Region = 'North' AND Product = 'Electronics'",
			"Sum revenue where Status = 'Completed' AND Date >= '2024-01-01'",
			"Sum amounts by Department AND Month",
		},
	}

	p.supported["PIVOT"] = Info{
		Name:           "PIVOT",
		Description:    "Creates summary tables with aggregations",
		Complexity:     "Advanced",
		RequiredParams: []string{"index_columns", "value_columns"},
		OptionalParams: []string{"aggregation_type", "fill_value", "sort_by"},
		Examples: []string{
			"Pivot sales by Region and Product with SUM aggregation",
			"Pivot revenue by Department and Month with AVERAGE aggregation",
			"Pivot counts by Status and Category",
		},
	}

	p.supported["TEXT_JOIN"] = Info{
		Name:           "TEXT_JOIN",
		Description:    "Combines multiple text columns with custom separators",
		Complexity:     "Intermediate",
		RequiredParams: []string{"text_columns"},
		OptionalParams: []string{"separator", "ignore_empty", "case_sensitive"},
		Examples: []string{
			"Join First Name + Last Name with space separator",
			"Join Address components with comma separator",
			"Join multiple tags with pipe separator",
		},
	}

	p.supported["VLOOKUP"] = Info{
		Name:           "VLOOKUP",
		Description:    "Finds values in reference tables based on lookup keys",
		Complexity:     "Advanced",
		RequiredParams: []string{"lookup_value", "lookup_table", "return_column"},
		OptionalParams: []string{"match_type", "error_handling", "default_value"},
		Examples: []string{
			"Find product name using product ID",
			"Find customer region using customer ID",
			"Find employee department using employee ID",
		},
	}

	return p
}

// Process evaluates the request and wraps the produced rows with status and
// timing. The returned error is a ValidationError for malformed requests.
func (p *Processor) Process(request Request) (*Result, error) {
	start := time.Now()
	formulaType := request.FormulaType

	var (
		rows []map[string]interface{}
		err  error
	)

	switch strings.ToUpper(request.FormulaType) {
	case "SUMIFS":
		rows, err = p.processSumifs(request)
	case "PIVOT":
		rows, err = p.processPivot(request)
	case "TEXT_JOIN":
		rows, err = p.processTextJoin(request)
	case "VLOOKUP":
		rows, err = p.processVlookup(request)
	default:
		return nil, &enginerrors.ValidationError{
			Field:      "formula_type",
			Message:    fmt.Sprintf("unsupported formula type: %s", formulaType),
			Suggestion: "use one of SUMIFS, PIVOT, TEXT_JOIN, VLOOKUP",
		}
	}
	if err != nil {
		return nil, err
	}

	metadata := map[string]interface{}{}
	if request.OutputConfig.IncludeMetadata {
		metadata["input_rows"] = len(request.Data)
		metadata["output_rows"] = len(rows)
	}

	return &Result{
		Status:           "success",
		Data:             rows,
		Metadata:         metadata,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		FormulaType:      formulaType,
	}, nil
}

// SupportedFormulas returns a copy of the formula catalog.
func (p *Processor) SupportedFormulas() map[string]Info {
	out := make(map[string]Info, len(p.supported))
	for name, info := range p.supported {
		out[name] = info
	}
	return out
}

// FormulaNames returns the supported formula names in sorted order.
func (p *Processor) FormulaNames() []string {
	names := make([]string, 0, len(p.supported))
	for name := range p.supported {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FormulaInfo looks up catalog information by name, case-insensitively.
func (p *Processor) FormulaInfo(name string) (Info, bool) {
	info, ok := p.supported[strings.ToUpper(name)]
	return info, ok
}

// Validate checks a request against the formula's requirements without
// evaluating it.
func (p *Processor) Validate(request *Request) error {
	name := strings.ToUpper(request.FormulaType)

	if _, ok := p.supported[name]; !ok {
		return &enginerrors.ValidationError{
			Field:   "formula_type",
			Message: fmt.Sprintf("unsupported formula: %s", request.FormulaType),
		}
	}

	if len(request.Parameters.InputColumns) == 0 {
		return &enginerrors.ValidationError{
			Field:   "input_columns",
			Message: "at least one input column is required",
		}
	}

	switch name {
	case "SUMIFS":
		if request.Parameters.CriteriaColumns == nil || request.Parameters.CriteriaValues == nil {
			return &enginerrors.ValidationError{
				Field:   "parameters",
				Message: "SUMIFS requires criteria_columns and criteria_values",
			}
		}
		if len(request.Parameters.CriteriaColumns) != len(request.Parameters.CriteriaValues) {
			return &enginerrors.ValidationError{
				Field:   "parameters",
				Message: "criteria columns and values must have the same length",
			}
		}

	case "PIVOT":
		if len(request.Parameters.InputColumns) < 2 {
			return &enginerrors.ValidationError{
				Field:   "input_columns",
				Message: "PIVOT requires at least 2 input columns (index and value columns)",
			}
		}

	case "TEXT_JOIN":
		if request.OutputConfig.OutputColumn == "" {
			return &enginerrors.ValidationError{
				Field:   "output_column",
				Message: "TEXT_JOIN requires an output column",
			}
		}

	case "VLOOKUP":
		if request.Parameters.LookupTable == nil || request.Parameters.LookupKey == "" || request.Parameters.ReturnColumn == "" {
			return &enginerrors.ValidationError{
				Field:   "parameters",
				Message: "VLOOKUP requires lookup_table, lookup_key, and return_column",
			}
		}
		if request.OutputConfig.OutputColumn == "" {
			return &enginerrors.ValidationError{
				Field:   "output_column",
				Message: "VLOOKUP requires an output column",
			}
		}
	}

	return nil
}
