// Package stats computes statistical summaries over numeric sequences.
//
// A Processor holds a registry of named operations so new statistics can be
// added without touching the dispatch path. The workflow engine exposes the
// processor as the "statistics" operation; the daemon exposes it directly
// on /process-data.
package stats

import (
	"sort"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

// OpFunc computes one statistic over a numeric sequence. Implementations
// must not mutate data.
type OpFunc func(data []float64, params map[string]interface{}) (map[string]interface{}, error)

// Processor dispatches statistical operations by name.
type Processor struct {
	ops map[string]OpFunc
}

// NewProcessor creates a processor with all built-in operations registered.
func NewProcessor() *Processor {
	p := &Processor{
		ops: make(map[string]OpFunc),
	}

	p.ops["mean"] = meanOp
	p.ops["std"] = stdOp
	p.ops["min_max"] = minMaxOp
	p.ops["sum"] = sumOp
	p.ops["product"] = productOp
	p.ops["percentiles"] = percentilesOp
	p.ops["histogram"] = histogramOp
	p.ops["matrix_multiply"] = matrixMultiplyOp
	p.ops["custom"] = customOp

	return p
}

// Process runs the named operation over data. Empty data is rejected
// before dispatch; every operation requires at least one value.
func (p *Processor) Process(data []float64, operation string, params map[string]interface{}) (map[string]interface{}, error) {
	if len(data) == 0 {
		return nil, &enginerrors.ValidationError{
			Field:   "data",
			Message: "data cannot be empty",
		}
	}

	op, exists := p.ops[operation]
	if !exists {
		return nil, &enginerrors.UnknownOperationError{Name: operation}
	}

	return op(data, params)
}

// Operations returns the registered operation names in sorted order.
func (p *Processor) Operations() []string {
	names := make([]string, 0, len(p.ops))
	for name := range p.ops {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
