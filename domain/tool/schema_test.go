package tool_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/felixgeelhaar/toolhost/domain/tool"
)

func addSchema() tool.Schema {
	return tool.Params(
		tool.Parameter{Name: "a", Type: tool.TypeInteger, Required: true},
		tool.Parameter{Name: "b", Type: tool.TypeInteger, Required: true},
	)
}

func TestSchema_Coerce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		schema     tool.Schema
		args       tool.Arguments
		want       tool.Arguments
		wantFields []string
	}{
		{
			name:   "integers pass through",
			schema: addSchema(),
			args:   tool.Arguments{"a": 5, "b": 7},
			want:   tool.Arguments{"a": int64(5), "b": int64(7)},
		},
		{
			name:   "numeric strings and integral floats coerce",
			schema: addSchema(),
			args:   tool.Arguments{"a": "5", "b": 7.0},
			want:   tool.Arguments{"a": int64(5), "b": int64(7)},
		},
		{
			name:   "json numbers coerce",
			schema: addSchema(),
			args:   tool.Arguments{"a": json.Number("5"), "b": json.Number("7")},
			want:   tool.Arguments{"a": int64(5), "b": int64(7)},
		},
		{
			name:       "non numeric string and missing field fail",
			schema:     addSchema(),
			args:       tool.Arguments{"a": "x"},
			wantFields: []string{"a", "b"},
		},
		{
			name:       "fractional float is not an integer",
			schema:     addSchema(),
			args:       tool.Arguments{"a": 1.5, "b": 1},
			wantFields: []string{"a"},
		},
		{
			name:       "2^63 overflows int64 as json number",
			schema:     addSchema(),
			args:       tool.Arguments{"a": json.Number("9223372036854775808"), "b": 1},
			wantFields: []string{"a"},
		},
		{
			name:       "2^63 overflows int64 as float",
			schema:     addSchema(),
			args:       tool.Arguments{"a": float64(1 << 63), "b": 1},
			wantFields: []string{"a"},
		},
		{
			name:   "-2^63 fits int64",
			schema: addSchema(),
			args:   tool.Arguments{"a": float64(-(1 << 63)), "b": json.Number("9223372036854775807")},
			want:   tool.Arguments{"a": int64(-1 << 63), "b": int64(9223372036854775807)},
		},
		{
			name:       "unknown key rejected",
			schema:     addSchema(),
			args:       tool.Arguments{"a": 1, "b": 2, "c": 3},
			wantFields: []string{"c"},
		},
		{
			name: "defaults applied",
			schema: tool.Params(
				tool.Parameter{Name: "principal", Type: tool.TypeNumber, Required: true},
				tool.Parameter{Name: "frequency", Type: tool.TypeInteger, Default: 12},
				tool.Parameter{Name: "note", Type: tool.TypeString},
			),
			args: tool.Arguments{"principal": "1000.5"},
			want: tool.Arguments{"principal": 1000.5, "frequency": int64(12)},
		},
		{
			name: "booleans objects and arrays",
			schema: tool.Params(
				tool.Parameter{Name: "flag", Type: tool.TypeBoolean, Required: true},
				tool.Parameter{Name: "opts", Type: tool.TypeObject, Required: true},
				tool.Parameter{Name: "items", Type: tool.TypeArray, Required: true},
			),
			args: tool.Arguments{"flag": "true", "opts": `{"k":"v"}`, "items": []string{"x", "y"}},
			want: tool.Arguments{"flag": true, "opts": map[string]any{"k": "v"}, "items": []any{"x", "y"}},
		},
		{
			name:       "string parameter rejects numbers",
			schema:     tool.Params(tool.Parameter{Name: "text", Type: tool.TypeString, Required: true}),
			args:       tool.Arguments{"text": 42},
			wantFields: []string{"text"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.schema.Coerce("tool", tt.args)
			if len(tt.wantFields) > 0 {
				var argErr *tool.ArgumentError
				if !errors.As(err, &argErr) {
					t.Fatalf("Coerce() error = %v, want *ArgumentError", err)
				}
				if !errors.Is(err, tool.ErrInvalidArguments) {
					t.Error("ArgumentError should match ErrInvalidArguments")
				}
				var fields []string
				for _, f := range argErr.Fields {
					fields = append(fields, f.Field)
				}
				if !reflect.DeepEqual(fields, tt.wantFields) {
					t.Errorf("fields = %v, want %v", fields, tt.wantFields)
				}
				return
			}
			if err != nil {
				t.Fatalf("Coerce() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Coerce() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestSchema_CoerceDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	args := tool.Arguments{"a": "5", "b": "7"}
	if _, err := addSchema().Coerce("add", args); err != nil {
		t.Fatalf("Coerce() error = %v", err)
	}
	if args["a"] != "5" {
		t.Errorf("input mutated: a = %v", args["a"])
	}
}

func TestSchema_JSONSchema(t *testing.T) {
	t.Parallel()

	s := tool.Params(
		tool.Parameter{Name: "a", Type: tool.TypeInteger, Required: true, Description: "first"},
		tool.Parameter{Name: "tags", Type: tool.TypeArray, Default: []any{}},
		tool.Parameter{Name: "extra", Type: tool.TypeAny},
	)

	js := s.JSONSchema()
	if js.Type != "object" {
		t.Errorf("Type = %q, want object", js.Type)
	}
	if !reflect.DeepEqual(js.Required, []string{"a"}) {
		t.Errorf("Required = %v, want [a]", js.Required)
	}
	if js.Properties["a"].Type != "integer" || js.Properties["a"].Description != "first" {
		t.Errorf("property a = %+v", js.Properties["a"])
	}
	if js.Properties["tags"].Items == nil {
		t.Error("array property should declare items")
	}
	if js.Properties["extra"].Type != "" {
		t.Errorf("any property Type = %q, want empty", js.Properties["extra"].Type)
	}
	if _, err := json.Marshal(js); err != nil {
		t.Errorf("Marshal() error = %v", err)
	}
}

func TestParseParamType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    tool.ParamType
		wantErr bool
	}{
		{"int", tool.TypeInteger, false},
		{"float", tool.TypeNumber, false},
		{"bool", tool.TypeBoolean, false},
		{"list", tool.TypeArray, false},
		{"dict", tool.TypeObject, false},
		{"", tool.TypeAny, false},
		{"decimal", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := tool.ParseParamType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseParamType(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseParamType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
