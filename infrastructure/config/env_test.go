package config

import (
	"errors"
	"strings"
	"testing"

	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
)

func fakeEnv(vars map[string]string) lookupFunc {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestExpandEnv(t *testing.T) {
	t.Parallel()

	env := fakeEnv(map[string]string{
		"TOOLS_DIR": "/srv/tools",
		"EMPTY":     "",
	})

	tests := []struct {
		name   string
		input  string
		strict bool
		want   string
	}{
		{"bracket syntax", "${TOOLS_DIR}", false, "/srv/tools"},
		{"dollar syntax", "$TOOLS_DIR", false, "/srv/tools"},
		{"embedded in text", "dir: ${TOOLS_DIR}/net", false, "dir: /srv/tools/net"},
		{"default when unset", "${MISSING:-fallback}", false, "fallback"},
		{"default when empty", "${EMPTY:-fallback}", false, "fallback"},
		{"default ignored when set", "${TOOLS_DIR:-fallback}", false, "/srv/tools"},
		{"empty default", "${MISSING:-}", false, ""},
		{"unset without strict", "a${MISSING}b", false, "ab"},
		{"set but empty without modifier", "a${EMPTY}b", true, "ab"},
		{"no variables", "plain: text", false, "plain: text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := expandEnv(tt.input, tt.strict, env)
			if err != nil {
				t.Fatalf("expandEnv(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("expandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExpandEnv_Missing(t *testing.T) {
	t.Parallel()

	env := fakeEnv(map[string]string{"EMPTY": ""})

	tests := []struct {
		name     string
		input    string
		strict   bool
		contains []string
	}{
		{"required unset", "${TOKEN:?token is required}", false, []string{"TOKEN: token is required"}},
		{"required empty", "${EMPTY:?must not be empty}", false, []string{"EMPTY"}},
		{"strict bracket", "${ONE}", true, []string{"ONE"}},
		{"strict collects all", "${ONE} $TWO", true, []string{"ONE", "TWO"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := expandEnv(tt.input, tt.strict, env)
			if !errors.Is(err, domainconfig.ErrMissingEnvVar) {
				t.Fatalf("expandEnv(%q) error = %v, want ErrMissingEnvVar", tt.input, err)
			}
			for _, s := range tt.contains {
				if !strings.Contains(err.Error(), s) {
					t.Errorf("error %q should mention %q", err, s)
				}
			}
		})
	}
}

func TestExpandEnv_ProcessEnvironment(t *testing.T) {
	t.Setenv("TOOLHOST_TEST_VAR", "hello")

	if got := ExpandEnv("${TOOLHOST_TEST_VAR}"); got != "hello" {
		t.Errorf("ExpandEnv() = %q, want hello", got)
	}
	if _, err := ExpandEnvStrict("${TOOLHOST_TEST_UNSET_VAR}"); err == nil {
		t.Error("ExpandEnvStrict() should fail for an unset variable")
	}
}
