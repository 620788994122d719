package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/jsonschema-go/jsonschema"
)

var paramNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Schema is the ordered parameter list of a tool.
type Schema []Parameter

// Params is shorthand for building a Schema inline.
func Params(params ...Parameter) Schema {
	return Schema(params)
}

// Names returns the parameter names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, p := range s {
		names[i] = p.Name
	}
	return names
}

// Lookup returns the parameter with the given name.
func (s Schema) Lookup(name string) (Parameter, bool) {
	for _, p := range s {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Validate checks the schema itself: names must be unique identifiers,
// types known and defaults coercible to their declared type.
func (s Schema) Validate() error {
	seen := make(map[string]struct{}, len(s))
	var errs []error
	for i, p := range s {
		if !paramNamePattern.MatchString(p.Name) {
			errs = append(errs, fmt.Errorf("parameter %d: invalid name %q", i, p.Name))
			continue
		}
		if _, dup := seen[p.Name]; dup {
			errs = append(errs, fmt.Errorf("parameter %q declared twice", p.Name))
		}
		seen[p.Name] = struct{}{}
		if !p.Type.Valid() {
			errs = append(errs, fmt.Errorf("parameter %q: unknown type %q", p.Name, p.Type))
			continue
		}
		if p.Default != nil {
			if _, err := p.Coerce(p.Default); err != nil {
				errs = append(errs, fmt.Errorf("parameter %q: default: %w", p.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Coerce validates args against the schema and returns a new map holding
// coerced values with defaults applied. Unknown keys are rejected.
func (s Schema) Coerce(toolName string, args Arguments) (Arguments, error) {
	out := make(Arguments, len(s))
	var fields []FieldError

	for _, p := range s {
		v, present := args[p.Name]
		if !present || v == nil {
			switch {
			case p.Default != nil:
				v = p.Default
			case p.Required:
				fields = append(fields, FieldError{Field: p.Name, Reason: "required"})
				continue
			default:
				continue
			}
		}
		cv, err := p.Coerce(v)
		if err != nil {
			fields = append(fields, FieldError{Field: p.Name, Reason: err.Error()})
			continue
		}
		out[p.Name] = cv
	}

	for _, key := range args.Keys() {
		if _, ok := s.Lookup(key); !ok {
			fields = append(fields, FieldError{Field: key, Reason: "unknown parameter"})
		}
	}

	if len(fields) > 0 {
		return nil, &ArgumentError{Tool: toolName, Fields: fields}
	}
	return out, nil
}

// JSONSchema renders the parameter list as a JSON Schema object for
// model-facing tool definitions.
func (s Schema) JSONSchema() *jsonschema.Schema {
	root := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(s)),
	}
	for _, p := range s {
		prop := &jsonschema.Schema{Description: p.Description}
		if p.Type != TypeAny {
			prop.Type = string(p.Type)
		}
		if p.Type == TypeArray {
			prop.Items = &jsonschema.Schema{}
		}
		if p.Default != nil {
			if raw, err := json.Marshal(p.Default); err == nil {
				prop.Default = raw
			}
		}
		root.Properties[p.Name] = prop
		if p.Required {
			root.Required = append(root.Required, p.Name)
		}
	}
	return root
}

func (s Schema) clone() Schema {
	if s == nil {
		return nil
	}
	out := make(Schema, len(s))
	copy(out, s)
	return out
}
