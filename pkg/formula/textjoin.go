package formula

import "strings"

// processTextJoin concatenates the input columns of every row into the
// output column. Columns missing from a row are skipped; with the
// "ignore_empty" optional parameter, empty strings are skipped too.
func (p *Processor) processTextJoin(request Request) ([]map[string]interface{}, error) {
	data := request.Data
	if len(data) == 0 {
		return []map[string]interface{}{}, nil
	}

	separator := " "
	if request.Parameters.Separator != nil {
		separator = *request.Parameters.Separator
	}
	ignoreEmpty := hasOptionalParam(request.Parameters.OptionalParams, "ignore_empty")

	results := make([]map[string]interface{}, 0, len(data))

	for _, row := range data {
		parts := make([]string, 0, len(request.Parameters.InputColumns))
		for _, col := range request.Parameters.InputColumns {
			value, ok := row[col]
			if !ok {
				continue
			}

			text := stringifyValue(value)
			if !ignoreEmpty || text != "" {
				parts = append(parts, text)
			}
		}

		result := cloneRow(row)
		result[request.OutputConfig.OutputColumn] = strings.Join(parts, separator)
		results = append(results, result)
	}

	return results, nil
}
