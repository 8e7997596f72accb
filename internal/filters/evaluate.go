// Evaluation of filter predicates against a flat field map.

package filters

import (
	"cmp"
	"fmt"
	"strings"
)

// Evaluate checks a 2D filter set against a field map. A nil or empty set
// matches everything. An unknown field evaluates to no-match rather than
// erroring so composed OR-queries stay resilient to unrelated vocabularies.
// Unknown operators are reported as errors.
func Evaluate(of OrFilters, fields map[string]any) (bool, error) {
	if len(of) == 0 {
		return true, nil
	}
	for _, group := range of {
		ok, err := EvaluateGroup(group, fields)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// EvaluateGroup checks a single AND-group: every predicate must hold.
func EvaluateGroup(group Filters, fields map[string]any) (bool, error) {
	for _, f := range group {
		ok, err := evaluateOne(f, fields)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// evaluateOne applies a single predicate.
func evaluateOne(f Filter, fields map[string]any) (bool, error) {
	if !f.Operator.Valid() {
		return false, fmt.Errorf("unknown filter operator %q", f.Operator)
	}
	value, ok := fields[f.Field]
	if !ok {
		// Unknown field: no match, not an error.
		return false, nil
	}
	switch f.Operator {
	case OpEqual:
		return equalValues(value, f.Value), nil
	case OpNotEqual:
		return !equalValues(value, f.Value), nil
	case OpLess:
		return compareValues(value, f.Value) < 0, nil
	case OpLessEqual:
		return compareValues(value, f.Value) <= 0, nil
	case OpGreater:
		return compareValues(value, f.Value) > 0, nil
	case OpGreaterEqual:
		return compareValues(value, f.Value) >= 0, nil
	case OpMatch:
		if f.Field != FulltextField {
			return false, fmt.Errorf("operator %q only applies to the %s field", OpMatch, FulltextField)
		}
		return matchTokens(value, f.Value), nil
	case OpIn:
		return listContains(toList(f.Value), value), nil
	case OpNotIn:
		return !listContains(toList(f.Value), value), nil
	case OpContains:
		return listContains(toList(value), f.Value), nil
	case OpNotContains:
		return !listContains(toList(value), f.Value), nil
	case OpContainsAll:
		return containsAll(toList(value), toList(f.Value)), nil
	case OpContainsAny:
		return containsAny(toList(value), toList(f.Value)), nil
	case OpContainsNone:
		return !containsAny(toList(value), toList(f.Value)), nil
	}
	return false, fmt.Errorf("unknown filter operator %q", f.Operator)
}

// equalValues compares two scalars with numeric normalization so that
// int 100 and float64 100 compare equal, as JSON round-trips produce.
func equalValues(a, b any) bool {
	if fa, aok := toFloat(a); aok {
		if fb, bok := toFloat(b); bok {
			return fa == fb
		}
		return false
	}
	if ba, aok := a.(bool); aok {
		bb, bok := b.(bool)
		return bok && ba == bb
	}
	return toString(a) == toString(b)
}

// compareValues orders two values: numerically when both are numbers,
// lexicographically otherwise. Dates stored as RFC 3339 strings order
// correctly under the lexicographic branch.
func compareValues(a, b any) int {
	if fa, aok := toFloat(a); aok {
		if fb, bok := toFloat(b); bok {
			return cmp.Compare(fa, fb)
		}
	}
	return cmp.Compare(toString(a), toString(b))
}

// matchTokens reports whether every whitespace-separated token of the
// query appears in the value, case-insensitively.
func matchTokens(value, query any) bool {
	haystack := strings.ToLower(toString(value))
	tokens := strings.Fields(strings.ToLower(toString(query)))
	if len(tokens) == 0 {
		return false
	}
	for _, tok := range tokens {
		if !strings.Contains(haystack, tok) {
			return false
		}
	}
	return true
}

func listContains(list []any, v any) bool {
	for _, item := range list {
		if equalValues(item, v) {
			return true
		}
	}
	return false
}

func containsAll(list, wanted []any) bool {
	for _, w := range wanted {
		if !listContains(list, w) {
			return false
		}
	}
	return true
}

func containsAny(list, wanted []any) bool {
	for _, w := range wanted {
		if listContains(list, w) {
			return true
		}
	}
	return false
}

// toList widens the supported slice shapes to []any. Scalars yield nil.
func toList(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	case []float64:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	case []int:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	default:
		return nil
	}
}

// toFloat normalizes the numeric types JSON and Go code produce.
func toFloat(v any) (float64, bool) {
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
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
