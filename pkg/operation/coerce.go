package operation

import (
	"encoding/json"
	"math"
)

// numeric reports v as a float64. It accepts the number types produced by
// JSON, YAML, and jq decoding plus plain Go literals; everything else
// reports false.
func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
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

// coerceFloat returns v as a float64, treating non-numeric values as zero.
func coerceFloat(v interface{}) float64 {
	f, _ := numeric(v)
	return f
}

// asArray reports v as an element slice.
func asArray(v interface{}) ([]interface{}, bool) {
	arr, ok := v.([]interface{})
	return arr, ok
}

// stringParam extracts a string parameter. A missing key or a non-string
// value reports false.
func stringParam(params map[string]interface{}, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// stringParamDefault extracts a string parameter, falling back to def when
// absent or non-string.
func stringParamDefault(params map[string]interface{}, key, def string) string {
	if s, ok := stringParam(params, key); ok {
		return s
	}
	return def
}

// floatParam extracts a numeric parameter, falling back to def when absent
// or non-numeric.
func floatParam(params map[string]interface{}, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	f, ok := numeric(v)
	if !ok {
		return def
	}
	return f
}

// millisParam extracts a non-negative whole-number parameter, falling back
// to def when absent, non-numeric, negative, or fractional.
func millisParam(params map[string]interface{}, key string, def int64) int64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	f, ok := numeric(v)
	if !ok || f < 0 || f != math.Trunc(f) {
		return def
	}
	return int64(f)
}
