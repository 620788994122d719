package logging

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// testLogger creates a logger that writes to a buffer for testing
func testLogger() (*bolt.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := bolt.NewJSONHandler(buf)
	logger := bolt.New(handler).SetLevel(bolt.TRACE)
	return logger, buf
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	if config.Level != "info" {
		t.Errorf("Level = %s, want info", config.Level)
	}
	if config.Format != "console" {
		t.Errorf("Format = %s, want console", config.Format)
	}
	if config.Output != os.Stderr {
		t.Error("Output should default to stderr so stdout stays free for results")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected bolt.Level
		valid    bool
	}{
		{"trace", bolt.TRACE, true},
		{"debug", bolt.DEBUG, true},
		{"info", bolt.INFO, true},
		{"warn", bolt.WARN, true},
		{"error", bolt.ERROR, true},
		{"unknown", bolt.INFO, false},
		{"", bolt.INFO, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%s) = %v, want %v", tt.input, got, tt.expected)
			}
			if got := ValidLevel(tt.input); got != tt.valid {
				t.Errorf("ValidLevel(%s) = %v, want %v", tt.input, got, tt.valid)
			}
		})
	}
}

func TestFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field Field
		want  string
	}{
		{"tool", ToolName("add_numbers"), `"tool":"add_numbers"`},
		{"version", Version(3), `"version":3`},
		{"origin", Origin("tools/add.yaml"), `"origin":"tools/add.yaml"`},
		{"invocation", InvocationID("inv-1"), `"invocation_id":"inv-1"`},
		{"caller", Caller("agent-7"), `"caller":"agent-7"`},
		{"phase", Phase("before-invocation"), `"phase":"before-invocation"`},
		{"hook", Hook("redaction"), `"hook":"redaction"`},
		{"outcome", Outcome("vetoed"), `"outcome":"vetoed"`},
		{"count", Count("loaded", 2), `"loaded":2`},
		{"duration", Duration(100 * time.Millisecond), `"duration_ms":100`},
		{"error", ErrorField(errors.New("test error")), `"error":"test error"`},
		{"reason", Reason("denied"), `"reason":"denied"`},
		{"component", Component("watcher"), `"component":"watcher"`},
		{"str", Str("custom_key", "custom_value"), `"custom_key":"custom_value"`},
		{"bool", Bool("masked", true), `"masked":true`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, buf := testLogger()
			tt.field(logger.Info()).Msg("test")

			if !bytes.Contains(buf.Bytes(), []byte(tt.want)) {
				t.Errorf("expected %s in output: %s", tt.want, buf.String())
			}
		})
	}
}

func TestEmptyFieldsAreOmitted(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	ErrorField(nil)(Caller("")(logger.Info())).Msg("test")

	if bytes.Contains(buf.Bytes(), []byte(`"error"`)) || bytes.Contains(buf.Bytes(), []byte(`"caller"`)) {
		t.Errorf("unexpected fields in output: %s", buf.String())
	}
}

func TestLogEvent(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()

	t.Run("Add chains fields", func(t *testing.T) {
		buf.Reset()
		NewEvent(logger.Info()).Add(ToolName("add")).Add(Version(2)).Msg("registered")

		if !bytes.Contains(buf.Bytes(), []byte(`"tool":"add"`)) {
			t.Errorf("expected tool field in output: %s", buf.String())
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"version":2`)) {
			t.Errorf("expected version field in output: %s", buf.String())
		}
	})

	t.Run("Send without message", func(t *testing.T) {
		buf.Reset()
		NewEvent(logger.Info()).Add(ToolName("sub")).Send()

		if !bytes.Contains(buf.Bytes(), []byte(`"tool":"sub"`)) {
			t.Errorf("expected tool field in output: %s", buf.String())
		}
	})
}

func TestGet(t *testing.T) {
	if Get() == nil {
		t.Fatal("Get() returned nil")
	}
	SetLevel("debug")
	SetLevel("info")
}
