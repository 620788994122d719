package tool_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/toolhost/domain/tool"
)

func TestDecodeArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    tool.Arguments
		wantErr bool
	}{
		{name: "object", input: `{"a": 5, "s": "x"}`, want: tool.Arguments{"a": json.Number("5"), "s": "x"}},
		{name: "empty", input: "  ", want: nil},
		{name: "null", input: "null", want: nil},
		{name: "array", input: `[1]`, wantErr: true},
		{name: "malformed", input: `{"a":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tool.DecodeArguments([]byte(tt.input))
			if tt.wantErr {
				if !errors.Is(err, tool.ErrInvalidArguments) {
					t.Errorf("error = %v, want ErrInvalidArguments", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeArguments() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("DecodeArguments() = %#v, want %#v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %#v, want %#v", k, got[k], v)
				}
			}
		})
	}
}

func TestArguments_Accessors(t *testing.T) {
	t.Parallel()

	args := tool.Arguments{
		"s": "text",
		"i": int64(3),
		"f": 1.5,
		"b": true,
		"l": []any{1, 2},
		"m": map[string]any{"k": "v", "list": []any{"x"}},
	}
	if args.String("s") != "text" || args.Int("i") != 3 || args.Float("f") != 1.5 || !args.Bool("b") {
		t.Error("scalar accessors returned wrong values")
	}
	if len(args.Slice("l")) != 2 || args.Map("m")["k"] != "v" {
		t.Error("container accessors returned wrong values")
	}
	if args.String("missing") != "" || args.Slice("s") != nil {
		t.Error("missing or mistyped keys should yield zero values")
	}

	clone := args.Clone()
	clone.Map("m")["k"] = "changed"
	clone.Map("m")["list"].([]any)[0] = "changed"
	if args.Map("m")["k"] != "v" {
		t.Error("Clone shares nested maps")
	}
	if args.Map("m")["list"].([]any)[0] != "x" {
		t.Error("Clone shares nested slices")
	}
	if keys := args.Keys(); keys[0] != "b" || len(keys) != 6 {
		t.Errorf("Keys() = %v", keys)
	}
}
