package uodm

import (
	"fmt"

	"github.com/davrot/uodm/store"
)

// Type is the declared shape of an attribute value.
type Type int

const (
	// TypeAny accepts any supported value: a scalar or a flat dictionary.
	TypeAny Type = iota
	TypeString
	TypeNumber
	TypeBool
	// TypeMap accepts a flat dictionary of scalars.
	TypeMap
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBool:
		return "bool"
	case TypeMap:
		return "map"
	}
	return "any"
}

// Attr declares one document attribute. Mutability and shape are fixed at
// schema definition time.
type Attr struct {
	Type    Type
	Mutable bool

	// Reference names the target collection when this attribute links to
	// another document. The stored value is the target document's name.
	// Reference attributes cannot carry defaults.
	Reference string

	// Default is the value applied at creation when the attribute is not
	// supplied. HasDefault distinguishes "default is nil" from "no default".
	Default    any
	HasDefault bool
}

// Schema describes the attributes of one collection. Attribute types are not
// nested: values are scalars, or dictionaries of scalars.
type Schema struct {
	Collection string
	Attributes map[string]Attr
}

func (s Schema) validate() error {
	if s.Collection == "" {
		return fmt.Errorf("%w: schema without collection name", ErrInvalidValue)
	}
	if s.Attributes == nil {
		return fmt.Errorf("%w: schema %q declares no attributes", ErrInvalidValue, s.Collection)
	}
	for name, attr := range s.Attributes {
		if name == "" || name == store.NameField || name == "_id" {
			return fmt.Errorf("%w: %q is a reserved attribute name", ErrInvalidValue, name)
		}
		if attr.Reference != "" {
			if attr.HasDefault {
				return fmt.Errorf("%w: reference attribute %s.%s cannot have a default", ErrInvalidValue, s.Collection, name)
			}
			if attr.Type != TypeAny && attr.Type != TypeString {
				return fmt.Errorf("%w: reference attribute %s.%s must be typed string", ErrInvalidValue, s.Collection, name)
			}
			continue
		}
		if attr.HasDefault {
			if err := attr.checkShape(attr.Default); err != nil {
				return fmt.Errorf("default for %s.%s: %w", s.Collection, name, err)
			}
		}
	}
	return nil
}

// materialize builds the initial document body for a creation: supplied
// fields are validated, declared defaults fill the gaps, and every attribute
// without a default must be supplied.
func (s Schema) materialize(given Fields) (store.Fields, error) {
	for k := range given {
		if _, ok := s.Attributes[k]; !ok {
			return nil, fmt.Errorf("%s.%s: %w", s.Collection, k, ErrUnknownAttribute)
		}
	}
	out := make(store.Fields, len(s.Attributes))
	for name, attr := range s.Attributes {
		v, ok := given[name]
		switch {
		case ok:
			raw, err := attr.raw(v)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", s.Collection, name, err)
			}
			out[name] = raw
		case attr.HasDefault:
			out[name] = attr.Default
		default:
			return nil, fmt.Errorf("%s.%s: attribute required and no default declared: %w", s.Collection, name, ErrInvalidValue)
		}
	}
	return out, nil
}

// raw converts a caller-supplied value into its stored form and validates it.
// Reference attributes accept the target object or its name; everything else
// is shape-checked against the declared type.
func (a Attr) raw(value any) (any, error) {
	if a.Reference != "" {
		switch v := value.(type) {
		case *Object:
			if v.Collection() != a.Reference {
				return nil, fmt.Errorf("%w: reference to collection %q, got object from %q", ErrInvalidValue, a.Reference, v.Collection())
			}
			return v.Name(), nil
		case string:
			return v, nil
		}
		return nil, fmt.Errorf("%w: reference value must be an object or a name, got %T", ErrInvalidValue, value)
	}
	if err := a.checkShape(value); err != nil {
		return nil, err
	}
	return value, nil
}

func (a Attr) checkShape(v any) error {
	switch a.Type {
	case TypeString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: want string, got %T", ErrInvalidValue, v)
		}
	case TypeNumber:
		if !isNumber(v) {
			return fmt.Errorf("%w: want number, got %T", ErrInvalidValue, v)
		}
	case TypeBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%w: want bool, got %T", ErrInvalidValue, v)
		}
	case TypeMap:
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: want map, got %T", ErrInvalidValue, v)
		}
		return checkDict(m)
	default: // TypeAny
		if isScalar(v) {
			return nil
		}
		if m, ok := v.(map[string]any); ok {
			return checkDict(m)
		}
		return fmt.Errorf("%w: unsupported value type %T", ErrInvalidValue, v)
	}
	return nil
}

// checkDict enforces the flat-dictionary rule: no nested documents, no
// arrays, scalar values only.
func checkDict(m map[string]any) error {
	for k, v := range m {
		if !isScalar(v) {
			return fmt.Errorf("%w: dictionary entry %q holds %T, scalars only", ErrInvalidValue, k, v)
		}
	}
	return nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int32, int64,
		float32, float64:
		return true
	}
	return false
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}
