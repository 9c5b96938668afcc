// Package props implements equality matching over event property bags and
// profile traits. Property values arrive through JSON decoding and store
// round-trips, so numeric values may surface as int, int64, float64, or
// json.Number depending on the path; matching normalizes scalars before
// comparing to keep filter semantics consistent across sources.
package props

import "encoding/json"

// Match reports whether got contains every key of want with an equal
// scalar value. An empty or nil want matches anything.
func Match(got, want map[string]interface{}) bool {
	for k, wv := range want {
		gv, ok := got[k]
		if !ok || !Equal(gv, wv) {
			return false
		}
	}
	return true
}

// Equal compares two property values after scalar normalization.
// Supported value kinds are strings, numbers, booleans, and null; values
// of other kinds never compare equal.
func Equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}

	return false
}

// asFloat normalizes the numeric representations the engine encounters.
func asFloat(v interface{}) (float64, bool) {
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
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
