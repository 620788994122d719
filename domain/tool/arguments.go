package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mitchellh/copystructure"
)

// Arguments is the structured argument map passed to a handler.
type Arguments map[string]any

// DecodeArguments parses a JSON object. Numbers stay json.Number so
// integer parameters coerce without float rounding. Empty input and null
// decode to nil.
func DecodeArguments(data []byte) (Arguments, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var args Arguments
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("%w: arguments must be a JSON object: %v", ErrInvalidArguments, err)
	}
	return args, nil
}

// Keys returns the argument names sorted lexically.
func (a Arguments) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether key is present.
func (a Arguments) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Clone returns a deep copy so nested maps and slices can be handed to
// observers without sharing mutable state with the handler.
func (a Arguments) Clone() Arguments {
	if a == nil {
		return nil
	}
	copied, err := copystructure.Copy(map[string]any(a))
	if err == nil {
		return Arguments(copied.(map[string]any))
	}
	out := make(Arguments, len(a))
	for k, v := range a {
		out[k] = copyValue(v)
	}
	return out
}

// copyValue copies one argument value that copystructure may refuse,
// going through JSON when needed. Numbers keep their json.Number form.
func copyValue(v any) any {
	if c, err := copystructure.Copy(v); err == nil {
		return c
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var c any
	if dec.Decode(&c) != nil {
		return v
	}
	return c
}

// String returns the value for key as a string.
func (a Arguments) String(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the value for key as an int64; zero when absent or not integral.
func (a Arguments) Int(key string) int64 {
	v, err := coerceInt(a[key])
	if err != nil {
		return 0
	}
	return v.(int64)
}

// Float returns the value for key as a float64; zero when absent or not numeric.
func (a Arguments) Float(key string) float64 {
	v, err := coerceFloat(a[key])
	if err != nil {
		return 0
	}
	return v.(float64)
}

// Bool returns the value for key as a bool.
func (a Arguments) Bool(key string) bool {
	v, err := coerce(TypeBoolean, a[key])
	if err != nil {
		return false
	}
	return v.(bool)
}

// Slice returns the value for key as a slice.
func (a Arguments) Slice(key string) []any {
	v, err := coerce(TypeArray, a[key])
	if err != nil {
		return nil
	}
	return v.([]any)
}

// Map returns the value for key as a map.
func (a Arguments) Map(key string) map[string]any {
	v, err := coerce(TypeObject, a[key])
	if err != nil {
		return nil
	}
	return v.(map[string]any)
}
