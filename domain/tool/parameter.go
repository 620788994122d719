package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// ParamType is the semantic type of a parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
	TypeArray   ParamType = "array"
	TypeAny     ParamType = "any"
)

// Valid reports whether t is a known parameter type.
func (t ParamType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeObject, TypeArray, TypeAny:
		return true
	default:
		return false
	}
}

// ParseParamType normalizes common aliases ("int", "float", "bool", ...).
func ParseParamType(s string) (ParamType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "str":
		return TypeString, nil
	case "integer", "int":
		return TypeInteger, nil
	case "number", "float", "double":
		return TypeNumber, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "object", "dict", "map":
		return TypeObject, nil
	case "array", "list":
		return TypeArray, nil
	case "any", "":
		return TypeAny, nil
	default:
		return "", fmt.Errorf("unknown parameter type %q", s)
	}
}

// Parameter is one entry of a tool's ordered parameter schema.
type Parameter struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Default     any       `json:"default,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Coerce converts v to the parameter's type. Numeric strings are accepted
// for integer and number parameters, "true"/"false" for booleans.
func (p Parameter) Coerce(v any) (any, error) {
	return coerce(p.Type, v)
}

func coerce(t ParamType, v any) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("null is not a valid %s", t)
	}
	switch t {
	case TypeAny:
		return v, nil
	case TypeString:
		switch s := v.(type) {
		case string:
			return s, nil
		case json.Number:
			return s.String(), nil
		}
	case TypeInteger:
		return coerceInt(v)
	case TypeNumber:
		return coerceFloat(v)
	case TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err == nil {
				return parsed, nil
			}
		}
	case TypeObject:
		switch m := v.(type) {
		case map[string]any:
			return m, nil
		case Arguments:
			return map[string]any(m), nil
		case string:
			var out map[string]any
			if err := json.Unmarshal([]byte(m), &out); err == nil && out != nil {
				return out, nil
			}
		}
	case TypeArray:
		if s, ok := v.(string); ok {
			var out []any
			if err := json.Unmarshal([]byte(s), &out); err == nil && out != nil {
				return out, nil
			}
			break
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			if a, ok := v.([]any); ok {
				return a, nil
			}
			out := make([]any, rv.Len())
			for i := range out {
				out[i] = rv.Index(i).Interface()
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("cannot use %s as %s", describe(v), t)
}

func coerceInt(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), nil // #nosec G115 -- bounds checked
		}
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), nil // #nosec G115 -- bounds checked
		}
	case float32:
		return floatToInt(float64(n), v)
	case float64:
		return floatToInt(n, v)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		if f, err := n.Float64(); err == nil {
			return floatToInt(f, v)
		}
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInt(f, v)
		}
	}
	return nil, fmt.Errorf("cannot use %s as integer", describe(v))
}

func floatToInt(f float64, orig any) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f >= 1<<63 || f < -(1<<63) {
		return nil, fmt.Errorf("cannot use %s as integer", describe(orig))
	}
	return int64(f), nil
}

func coerceFloat(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f, nil
		}
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("cannot use %s as number", describe(v))
}

func describe(v any) string {
	switch s := v.(type) {
	case string:
		return strconv.Quote(s)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T value %v", v, v)
	}
}
