package aspects

import (
	"context"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/arkivo/arkivo/internal/node"
	"github.com/arkivo/arkivo/internal/repo"
)

// Validator enforces aspect schemas on node properties: effective value
// resolution, type checks, regex/enum rules, referential integrity of
// uuid properties, and readonly enforcement.
type Validator struct {
	repo repo.NodeRepository
}

// NewValidator creates a Validator backed by the given repository for
// referential-integrity lookups.
func NewValidator(r repo.NodeRepository) *Validator {
	return &Validator{repo: r}
}

// Validate checks n's properties against the applied aspect schemas and
// rewrites n.Properties to the accumulated effective map. prev is the
// currently stored node on update, nil on create. All violations are
// aggregated into a single ValidationError; the call never short-circuits
// on the first failure.
func (v *Validator) Validate(ctx context.Context, n *node.Node, prev *node.Node, applied []Aspect) error {
	var violations []string

	// Aspect-level carry restrictions first.
	for _, a := range applied {
		if len(a.Filters) == 0 {
			continue
		}
		ok, err := n.Satisfies(a.Filters)
		if err != nil {
			violations = append(violations, fmt.Sprintf("aspect %s: %v", a.UUID, err))
			continue
		}
		if !ok {
			violations = append(violations, fmt.Sprintf("aspect %s: node does not satisfy the aspect's constraints", a.UUID))
		}
	}

	accumulated := node.Properties{}
	for _, a := range applied {
		for _, p := range a.Properties {
			key := a.PropertyKey(p)
			value, present := effectiveValue(key, p, n, prev)

			// Readonly properties always keep their stored value on update.
			if p.Readonly && prev != nil {
				if stored, ok := prev.Properties[key]; ok {
					value, present = stored, true
				} else {
					value, present = nil, false
				}
			}

			if !present {
				if p.Required {
					violations = append(violations, fmt.Sprintf("%s: required property is missing", key))
				}
				continue
			}

			if errs := v.checkValue(ctx, key, p, value); len(errs) > 0 {
				violations = append(violations, errs...)
				continue
			}
			accumulated[key] = value
		}
	}

	// Aspects fully own the property namespace: anything not backed by an
	// applied aspect is dropped, not flagged.
	n.Properties = accumulated

	if len(violations) > 0 {
		return node.ValidationFailed(violations...)
	}
	return nil
}

// SearchableKeys returns the property keys flagged searchable across the
// applied aspects, used when computing a node's fulltext content.
func SearchableKeys(applied []Aspect) map[string]bool {
	keys := map[string]bool{}
	for _, a := range applied {
		for _, p := range a.Properties {
			if p.Searchable {
				keys[a.PropertyKey(p)] = true
			}
		}
	}
	return keys
}

// effectiveValue resolves the value for a property: incoming update,
// else stored value, else declared default.
func effectiveValue(key string, p Property, n *node.Node, prev *node.Node) (any, bool) {
	if v, ok := n.Properties[key]; ok {
		return v, true
	}
	if prev != nil {
		if v, ok := prev.Properties[key]; ok {
			return v, true
		}
	}
	if p.DefaultValue != nil {
		return p.DefaultValue, true
	}
	return nil, false
}

// checkValue type-checks a present value and runs its declared rules.
func (v *Validator) checkValue(ctx context.Context, key string, p Property, value any) []string {
	var violations []string

	switch p.Type {
	case PropertyString, PropertyFile:
		s, ok := value.(string)
		if !ok {
			return []string{fmt.Sprintf("%s: expected a string, got %T", key, value)}
		}
		violations = append(violations, v.checkStringRules(key, p, s)...)
	case PropertyNumber:
		if _, ok := asNumber(value); !ok {
			return []string{fmt.Sprintf("%s: expected a number, got %T", key, value)}
		}
	case PropertyBoolean:
		if _, ok := value.(bool); !ok {
			return []string{fmt.Sprintf("%s: expected a boolean, got %T", key, value)}
		}
	case PropertyUUID:
		s, ok := value.(string)
		if !ok {
			return []string{fmt.Sprintf("%s: expected a uuid string, got %T", key, value)}
		}
		violations = append(violations, v.checkReference(ctx, key, p, s)...)
	case PropertyObject:
		if _, ok := value.(map[string]any); !ok {
			return []string{fmt.Sprintf("%s: expected an object, got %T", key, value)}
		}
	case PropertyArray:
		items, ok := asSlice(value)
		if !ok {
			return []string{fmt.Sprintf("%s: expected an array, got %T", key, value)}
		}
		elem := p
		elem.Type = p.ArrayType
		elem.ArrayType = ""
		for i, item := range items {
			violations = append(violations, v.checkValue(ctx, fmt.Sprintf("%s[%d]", key, i), elem, item)...)
		}
	default:
		return []string{fmt.Sprintf("%s: unknown property type %q", key, p.Type)}
	}
	return violations
}

// checkStringRules applies the declared regex and enum rules.
func (v *Validator) checkStringRules(key string, p Property, s string) []string {
	var violations []string
	if p.ValidationRegex != "" {
		re, err := regexp.Compile(p.ValidationRegex)
		if err != nil {
			violations = append(violations, fmt.Sprintf("%s: invalid validation regex: %v", key, err))
		} else if err := validation.Validate(s, validation.Match(re)); err != nil {
			violations = append(violations, fmt.Sprintf("%s: value %q does not match %q", key, s, p.ValidationRegex))
		}
	}
	if len(p.ValidationList) > 0 {
		allowed := make([]any, len(p.ValidationList))
		for i, item := range p.ValidationList {
			allowed[i] = item
		}
		if err := validation.Validate(s, validation.In(allowed...)); err != nil {
			violations = append(violations, fmt.Sprintf("%s: value %q is not one of %v", key, s, p.ValidationList))
		}
	}
	return violations
}

// checkReference resolves a uuid property value and applies the declared
// reference filters.
func (v *Validator) checkReference(ctx context.Context, key string, p Property, uuid string) []string {
	referenced, err := v.repo.GetByID(ctx, uuid)
	if err != nil {
		return []string{fmt.Sprintf("%s: referenced node %q does not exist", key, uuid)}
	}
	if len(p.ValidationFilters) == 0 {
		return nil
	}
	ok, err := referenced.Satisfies(p.ValidationFilters)
	if err != nil {
		return []string{fmt.Sprintf("%s: reference filter error: %v", key, err)}
	}
	if !ok {
		return []string{fmt.Sprintf("%s: referenced node %q does not satisfy the reference constraints", key, uuid)}
	}
	return nil
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}
