package formula

import (
	"encoding/json"
	"strconv"
)

// numericValue reports v as a float64 for JSON-decoded cell values.
func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// stringifyValue renders a cell value for group keys and joined text.
// Strings pass through unquoted; numbers drop trailing zeros; everything
// else falls back to compact JSON.
func stringifyValue(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case json.Number:
		return s.String()
	case nil:
		return "null"
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

// canonicalKey renders a cell value as a type-tagged map key so that the
// string "1" and the number 1 never collide in lookup tables.
func canonicalKey(v interface{}) string {
	switch s := v.(type) {
	case string:
		return "s:" + s
	case bool:
		return "b:" + strconv.FormatBool(s)
	case nil:
		return "z:"
	default:
		if f, ok := numericValue(v); ok {
			return "n:" + strconv.FormatFloat(f, 'f', -1, 64)
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return "x:"
		}
		return "j:" + string(encoded)
	}
}

// criteriaMatch reports whether a row value satisfies a criteria value.
// Matching is strict on type family: strings match strings, numbers match
// numbers, booleans match booleans. A missing row value never matches.
func criteriaMatch(rowValue, criteria interface{}) bool {
	switch c := criteria.(type) {
	case string:
		s, ok := rowValue.(string)
		return ok && s == c
	case bool:
		b, ok := rowValue.(bool)
		return ok && b == c
	default:
		cf, ok := numericValue(criteria)
		if !ok {
			return false
		}
		rf, ok := numericValue(rowValue)
		return ok && rf == cf
	}
}

// cloneRow copies a row map one level deep.
func cloneRow(row map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(row)+1)
	for k, v := range row {
		out[k] = v
	}
	return out
}

// hasOptionalParam reports whether the flag appears in optional_params.
func hasOptionalParam(params []string, flag string) bool {
	for _, p := range params {
		if p == flag {
			return true
		}
	}
	return false
}
