package formula

import (
	"strings"

	enginerrors "github.com/unified-data-studio/engine/pkg/errors"
)

// vlookupMissingDefault is written when a lookup misses and no
// default_value optional parameter overrides it.
const vlookupMissingDefault = "Not Found"

// processVlookup resolves each row's lookup value against a reference
// table and writes the matched return column into the output column. The
// lookup value is taken from the first input column present in the row; a
// row with none of the input columns passes through unchanged.
func (p *Processor) processVlookup(request Request) ([]map[string]interface{}, error) {
	data := request.Data
	if len(data) == 0 {
		return []map[string]interface{}{}, nil
	}

	lookupTable := request.Parameters.LookupTable
	if lookupTable == nil {
		return nil, &enginerrors.ValidationError{
			Field:   "lookup_table",
			Message: "VLOOKUP requires a lookup table",
		}
	}

	lookupKey := request.Parameters.LookupKey
	if lookupKey == "" {
		return nil, &enginerrors.ValidationError{
			Field:   "lookup_key",
			Message: "VLOOKUP requires a lookup key column",
		}
	}

	returnColumn := request.Parameters.ReturnColumn
	if returnColumn == "" {
		return nil, &enginerrors.ValidationError{
			Field:   "return_column",
			Message: "VLOOKUP requires a return column",
		}
	}

	// Index the reference table by canonical key so numeric and string
	// keys never collide
	index := make(map[string]interface{}, len(lookupTable))
	for _, row := range lookupTable {
		keyValue, ok := row[lookupKey]
		if !ok {
			continue
		}
		returnValue, ok := row[returnColumn]
		if !ok {
			continue
		}
		index[canonicalKey(keyValue)] = returnValue
	}

	missingValue := missingDefault(request.Parameters.OptionalParams)

	results := make([]map[string]interface{}, 0, len(data))

	for _, row := range data {
		result := cloneRow(row)

		var lookupValue interface{}
		found := false
		for _, col := range request.Parameters.InputColumns {
			if value, ok := row[col]; ok {
				lookupValue = value
				found = true
				break
			}
		}

		if found {
			if matched, ok := index[canonicalKey(lookupValue)]; ok {
				result[request.OutputConfig.OutputColumn] = matched
			} else {
				result[request.OutputConfig.OutputColumn] = missingValue
			}
		}

		results = append(results, result)
	}

	return results, nil
}

// missingDefault extracts the value after "default_value:" from
// optional_params, falling back to the standard missing marker.
func missingDefault(params []string) string {
	for _, p := range params {
		if strings.HasPrefix(p, "default_value:") {
			parts := strings.Split(p, ":")
			if len(parts) > 1 {
				return parts[1]
			}
			return vlookupMissingDefault
		}
	}
	return vlookupMissingDefault
}
