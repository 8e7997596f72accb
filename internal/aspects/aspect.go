// Package aspects implements the pluggable typed-property schema system:
// aspect definitions, the read-only configuration repository that owns
// them, and the validator enforcing schema and referential integrity on
// node properties.
package aspects

import (
	"strings"

	"github.com/arkivo/arkivo/internal/filters"
)

// PropertyType enumerates the value types an aspect property may declare.
type PropertyType string

const (
	// PropertyString holds free text.
	PropertyString PropertyType = "string"
	// PropertyNumber holds integers or floats.
	PropertyNumber PropertyType = "number"
	// PropertyBoolean holds true/false.
	PropertyBoolean PropertyType = "boolean"
	// PropertyUUID references another node by uuid.
	PropertyUUID PropertyType = "uuid"
	// PropertyObject holds an arbitrary JSON object.
	PropertyObject PropertyType = "object"
	// PropertyArray holds a list of ArrayType elements.
	PropertyArray PropertyType = "array"
	// PropertyFile references an uploaded file.
	PropertyFile PropertyType = "file"
)

// Property is one typed property declared by an aspect.
type Property struct {
	Name       string       `json:"name" yaml:"name"`
	Type       PropertyType `json:"type" yaml:"type"`
	ArrayType  PropertyType `json:"arrayType,omitempty" yaml:"arrayType,omitempty"`
	Required   bool         `json:"required,omitempty" yaml:"required,omitempty"`
	Readonly   bool         `json:"readonly,omitempty" yaml:"readonly,omitempty"`
	Searchable bool         `json:"searchable,omitempty" yaml:"searchable,omitempty"`

	// ValidationRegex constrains string values.
	ValidationRegex string `json:"validationRegex,omitempty" yaml:"validationRegex,omitempty"`
	// ValidationList enumerates the allowed values.
	ValidationList []string `json:"validationList,omitempty" yaml:"validationList,omitempty"`
	// ValidationFilters constrains which nodes a uuid property may
	// reference.
	ValidationFilters filters.OrFilters `json:"validationFilters,omitempty" yaml:"validationFilters,omitempty"`
	// DefaultValue is applied when neither the update nor the stored node
	// carries a value.
	DefaultValue any `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
}

// Aspect is a schema definition applied to nodes.
type Aspect struct {
	UUID       string     `json:"uuid" yaml:"uuid"`
	Title      string     `json:"title" yaml:"title"`
	Properties []Property `json:"properties" yaml:"properties"`

	// Filters restrict which nodes may carry this aspect.
	Filters filters.OrFilters `json:"filters,omitempty" yaml:"filters,omitempty"`
}

// PropertyKey builds the property-bag key for one of the aspect's
// properties.
func (a *Aspect) PropertyKey(p Property) string {
	return a.UUID + ":" + p.Name
}

// SplitKey splits a "aspectUuid:propName" key. ok is false when the key
// has no aspect qualifier.
func SplitKey(key string) (aspectUUID, name string, ok bool) {
	i := strings.IndexByte(key, ':')
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}
