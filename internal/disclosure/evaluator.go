package disclosure

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Evaluate reports whether value satisfies cond. It is total: unsupported
// operators, non-numeric comparisons and mismatched shapes return false.
func Evaluate(value any, cond Condition) bool {
	switch cond.Operator {
	case OpEquals:
		return strictEqual(value, cond.Value)
	case OpNotEquals:
		return !strictEqual(value, cond.Value)
	case OpGreaterThan:
		left, ok := toNumber(value)
		if !ok {
			return false
		}
		right, ok := toNumber(cond.Value)
		return ok && left > right
	case OpLessThan:
		left, ok := toNumber(value)
		if !ok {
			return false
		}
		right, ok := toNumber(cond.Value)
		return ok && left < right
	case OpContains:
		return strings.Contains(
			strings.ToLower(stringify(value)),
			strings.ToLower(stringify(cond.Value)),
		)
	case OpInArray:
		members, ok := cond.Value.([]any)
		if !ok {
			if strs, isStrings := cond.Value.([]string); isStrings {
				for _, s := range strs {
					if strictEqual(value, s) {
						return true
					}
				}
			}
			return false
		}
		for _, member := range members {
			if strictEqual(value, member) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// strictEqual compares scalars by type and value. Every numeric kind is one
// number type, as in JSON. Maps and slices are never strictly equal.
func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, ok := numeric(a); ok {
		bn, ok := numeric(b)
		return ok && an == bn
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

// numeric returns the float64 value of Go number kinds and json.Number.
// Strings are not numbers here; see toNumber for coercion.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// toNumber coerces numbers and numeric strings. Anything else, including
// NaN, fails coercion.
func toNumber(v any) (float64, bool) {
	if n, ok := numeric(v); ok {
		return n, !math.IsNaN(n)
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func stringify(v any) string {
	if v == nil {
		return "null"
	}
	if n, ok := numeric(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			if item == nil {
				continue
			}
			parts[i] = stringify(item)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(t, ",")
	case map[string]any:
		return "[object Object]"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
