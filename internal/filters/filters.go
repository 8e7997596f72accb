// Package filters implements the filter algebra used to query and
// constrain nodes: tuple predicates composed with AND (1D) and OR of
// AND-groups (2D), evaluated against a flat field map.
package filters

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FulltextField is the computed full-text index field. It is the only
// field the match operator applies to.
const FulltextField = "fulltext"

// Operator is a predicate operator in a filter tuple.
type Operator string

const (
	// OpEqual matches values that compare equal.
	OpEqual Operator = "=="
	// OpNotEqual matches values that compare not equal.
	OpNotEqual Operator = "!="
	// OpLess matches values strictly less than the filter value.
	OpLess Operator = "<"
	// OpLessEqual matches values less than or equal to the filter value.
	OpLessEqual Operator = "<="
	// OpGreater matches values strictly greater than the filter value.
	OpGreater Operator = ">"
	// OpGreaterEqual matches values greater than or equal to the filter value.
	OpGreaterEqual Operator = ">="
	// OpMatch performs a token match. It only applies to the fulltext
	// field; on any other field it is an error.
	OpMatch Operator = "match"
	// OpIn matches a scalar present in the filter value list.
	OpIn Operator = "in"
	// OpNotIn matches a scalar absent from the filter value list.
	OpNotIn Operator = "not-in"
	// OpContains matches an array field containing the filter value.
	OpContains Operator = "contains"
	// OpNotContains matches an array field not containing the filter value.
	OpNotContains Operator = "not-contains"
	// OpContainsAll matches an array field containing every listed value.
	OpContainsAll Operator = "contains-all"
	// OpContainsAny matches an array field containing at least one listed value.
	OpContainsAny Operator = "contains-any"
	// OpContainsNone matches an array field containing none of the listed values.
	OpContainsNone Operator = "contains-none"
)

// knownOperators is the set of operators Evaluate understands.
var knownOperators = map[Operator]bool{
	OpEqual: true, OpNotEqual: true,
	OpLess: true, OpLessEqual: true, OpGreater: true, OpGreaterEqual: true,
	OpMatch: true, OpIn: true, OpNotIn: true,
	OpContains: true, OpNotContains: true,
	OpContainsAll: true, OpContainsAny: true, OpContainsNone: true,
}

// Valid reports whether the operator is one Evaluate understands.
func (o Operator) Valid() bool {
	return knownOperators[o]
}

// Filter is a single [field, operator, value] predicate.
// It serializes to and from the JSON 3-tuple form.
type Filter struct {
	Field    string
	Operator Operator
	Value    any
}

// MarshalJSON encodes the filter as a [field, operator, value] array.
// HTML escaping is disabled so the comparison operators stay literal
// ">" and "<" on the wire.
func (f Filter) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([3]any{f.Field, string(f.Operator), f.Value}); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON decodes a [field, operator, value] array.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var tuple []any
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	return f.fromTuple(tuple)
}

// UnmarshalYAML decodes the same 3-tuple form from YAML, used by aspect
// definition files.
func (f *Filter) UnmarshalYAML(value *yaml.Node) error {
	var tuple []any
	if err := value.Decode(&tuple); err != nil {
		return err
	}
	return f.fromTuple(tuple)
}

func (f *Filter) fromTuple(tuple []any) error {
	if len(tuple) != 3 {
		return fmt.Errorf("filter tuple must have 3 elements, got %d", len(tuple))
	}
	field, ok := tuple[0].(string)
	if !ok {
		return fmt.Errorf("filter field must be a string, got %T", tuple[0])
	}
	op, ok := tuple[1].(string)
	if !ok {
		return fmt.Errorf("filter operator must be a string, got %T", tuple[1])
	}
	f.Field = field
	f.Operator = Operator(op)
	f.Value = tuple[2]
	return nil
}

// Filters is a 1D conjunction: every predicate must hold.
type Filters []Filter

// OrFilters is a 2D disjunction of conjunctions: at least one AND-group
// must hold.
type OrFilters []Filters

// Normalize wraps a 1D filter list into the 2D form. A nil input
// normalizes to a single empty AND-group, which matches everything.
func Normalize(f Filters) OrFilters {
	return OrFilters{f}
}

// Clone returns a deep copy of the AND-group structure. Filter values are
// shared; callers must not mutate them.
func (of OrFilters) Clone() OrFilters {
	if of == nil {
		return nil
	}
	out := make(OrFilters, len(of))
	for i, group := range of {
		g := make(Filters, len(group))
		copy(g, group)
		out[i] = g
	}
	return out
}

// IsEmpty reports whether the filter set carries no predicates at all.
func (of OrFilters) IsEmpty() bool {
	for _, group := range of {
		if len(group) > 0 {
			return false
		}
	}
	return true
}
