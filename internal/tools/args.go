package tools

import (
	"fmt"
	"math"
	"strconv"

	"github.com/rcourtman/proxmox-mcp/internal/mcp"
)

// Argument types accepted by tool schemas.
const (
	TypeString = "string"
	TypeInt    = "integer"
	TypeBool   = "boolean"
	TypeObject = "object"
)

// ArgSpec declares one argument of a tool: its wire name, JSON type,
// whether it is required, an optional default applied when absent, and an
// optional enum restricting string values.
type ArgSpec struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Default     interface{}
	Enum        []string
}

// ValidationError reports a single argument that failed validation. The
// field and reason are stable so callers can act on them programmatically.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Validation failure reasons.
const (
	ReasonRequired     = "required"
	ReasonTypeMismatch = "type_mismatch"
	ReasonNotInEnum    = "not_in_enum"
)

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("invalid argument %q: %s (%s)", e.Field, e.Reason, e.Detail)
	}
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

// Args holds validated, defaulted tool arguments.
type Args map[string]interface{}

// validateArgs checks raw arguments against the specs. Unknown keys are
// dropped. The first failing argument aborts validation; nothing reaches
// the upstream API on failure.
func validateArgs(specs []ArgSpec, raw map[string]interface{}) (Args, error) {
	out := make(Args, len(specs))

	for _, spec := range specs {
		val, ok := raw[spec.Name]
		if !ok || val == nil {
			if spec.Required {
				return nil, &ValidationError{Field: spec.Name, Reason: ReasonRequired}
			}
			if spec.Default != nil {
				out[spec.Name] = spec.Default
			}
			continue
		}

		coerced, err := coerce(spec, val)
		if err != nil {
			return nil, err
		}
		out[spec.Name] = coerced
	}

	return out, nil
}

func coerce(spec ArgSpec, val interface{}) (interface{}, error) {
	switch spec.Type {
	case TypeString:
		s, ok := val.(string)
		if !ok {
			return nil, typeMismatch(spec.Name, TypeString, val)
		}
		if len(spec.Enum) > 0 && !inEnum(spec.Enum, s) {
			return nil, &ValidationError{
				Field:  spec.Name,
				Reason: ReasonNotInEnum,
				Detail: fmt.Sprintf("%q is not one of %v", s, spec.Enum),
			}
		}
		return s, nil

	case TypeInt:
		// JSON numbers decode as float64; accept only integral values.
		switch n := val.(type) {
		case float64:
			if n != math.Trunc(n) {
				return nil, typeMismatch(spec.Name, TypeInt, val)
			}
			return int(n), nil
		case int:
			return n, nil
		}
		return nil, typeMismatch(spec.Name, TypeInt, val)

	case TypeBool:
		b, ok := val.(bool)
		if !ok {
			return nil, typeMismatch(spec.Name, TypeBool, val)
		}
		return b, nil

	case TypeObject:
		m, ok := val.(map[string]interface{})
		if !ok {
			return nil, typeMismatch(spec.Name, TypeObject, val)
		}
		return m, nil
	}

	return nil, typeMismatch(spec.Name, spec.Type, val)
}

func typeMismatch(field, want string, got interface{}) *ValidationError {
	return &ValidationError{
		Field:  field,
		Reason: ReasonTypeMismatch,
		Detail: fmt.Sprintf("expected %s, got %T", want, got),
	}
}

func inEnum(enum []string, s string) bool {
	for _, e := range enum {
		if e == s {
			return true
		}
	}
	return false
}

// String returns a string argument, or "" when absent.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns an integer argument, or 0 when absent.
func (a Args) Int(name string) int {
	switch n := a[name].(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

// Bool returns a boolean argument, or false when absent.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Object returns an object argument, or nil when absent.
func (a Args) Object(name string) map[string]interface{} {
	m, _ := a[name].(map[string]interface{})
	return m
}

// Has reports whether the argument was supplied or defaulted.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// StringMap flattens an object argument into string values, the form the
// Proxmox config endpoints expect.
func (a Args) StringMap(name string) map[string]string {
	obj := a.Object(name)
	if obj == nil {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch t := v.(type) {
		case string:
			out[k] = t
		case bool:
			out[k] = strconv.FormatBool(t)
		case float64:
			if t == math.Trunc(t) {
				out[k] = strconv.FormatInt(int64(t), 10)
			} else {
				out[k] = strconv.FormatFloat(t, 'f', -1, 64)
			}
		default:
			out[k] = fmt.Sprintf("%v", t)
		}
	}
	return out
}

// schema renders the specs as the tool's MCP input schema.
func schema(specs []ArgSpec) mcp.InputSchema {
	props := make(map[string]mcp.PropertySchema, len(specs))
	var required []string
	for _, spec := range specs {
		props[spec.Name] = mcp.PropertySchema{
			Type:        spec.Type,
			Description: spec.Description,
			Enum:        spec.Enum,
			Default:     spec.Default,
		}
		if spec.Required {
			required = append(required, spec.Name)
		}
	}
	return mcp.InputSchema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}
