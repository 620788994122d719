package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
)

const sampleYAML = `
name: netops
version: "1"
tools:
  dir: ${TOOLHOST_TEST_DIR:-./tools}
  watch: true
  poll_interval: 2s
  debounce: 200ms
  packs:
    - name: math
    - name: meta
      disabled: [tool_remove]
  inline:
    - name: uptime
      description: Reports host uptime
      handler:
        type: exec
        command: uptime
dispatch:
  default_timeout: 30s
  max_concurrent: 8
hooks:
  redaction:
    enabled: true
    keys: [community]
  audit:
    enabled: true
    sink: sqlite
    dsn: file:audit.db
logging:
  level: debug
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoader_LoadFile_YAML(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoader().LoadFile(writeFile(t, "toolhost.yaml", sampleYAML))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Name != "netops" || cfg.Version != "1" {
		t.Errorf("Name/Version = %s/%s", cfg.Name, cfg.Version)
	}
	if cfg.Tools.Dir != "./tools" {
		t.Errorf("Tools.Dir = %q, want default expansion", cfg.Tools.Dir)
	}
	if cfg.Tools.PollInterval.Duration() != 2*time.Second || cfg.Tools.Debounce.Duration() != 200*time.Millisecond {
		t.Errorf("intervals = %v/%v", cfg.Tools.PollInterval, cfg.Tools.Debounce)
	}
	if len(cfg.Tools.Packs) != 2 || cfg.Tools.Packs[1].Disabled[0] != "tool_remove" {
		t.Errorf("Packs = %+v", cfg.Tools.Packs)
	}
	if len(cfg.Tools.Inline) != 1 || cfg.Tools.Inline[0].Handler.Command != "uptime" {
		t.Errorf("Inline = %+v", cfg.Tools.Inline)
	}
	if cfg.Dispatch.MaxConcurrent != 8 {
		t.Errorf("MaxConcurrent = %d", cfg.Dispatch.MaxConcurrent)
	}
	if cfg.Hooks.Audit.Sink != "sqlite" || cfg.Hooks.Redaction.Keys[0] != "community" {
		t.Errorf("Hooks = %+v", cfg.Hooks)
	}
}

func TestLoader_LoadFile_JSON(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "toolhost.json", `{
		"name": "netops",
		"version": "1",
		"dispatch": {"default_timeout": "5s"}
	}`)

	cfg, err := NewLoader().LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Dispatch.DefaultTimeout.Duration() != 5*time.Second {
		t.Errorf("DefaultTimeout = %v", cfg.Dispatch.DefaultTimeout)
	}
}

func TestLoader_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"not found", filepath.Join(dir, "missing.yaml"), domainconfig.ErrConfigNotFound},
		{"directory", dir, domainconfig.ErrInvalidFormat},
		{"unsupported extension", writeFile(t, "toolhost.ini", "name=x"), domainconfig.ErrUnsupportedFormat},
		{"toml host config", writeFile(t, "toolhost.toml", `name = "x"`), domainconfig.ErrUnsupportedFormat},
		{"invalid yaml", writeFile(t, "bad.yaml", "name: [unterminated"), domainconfig.ErrInvalidFormat},
		{"invalid json", writeFile(t, "bad.json", "{"), domainconfig.ErrInvalidFormat},
		{"validation", writeFile(t, "empty.yaml", "description: no name\n"), domainconfig.ErrValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := NewLoader().LoadFile(tt.path); !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadFile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoader_Options(t *testing.T) {
	t.Setenv("TOOLHOST_TEST_NAME", "from-env")

	const content = "name: ${TOOLHOST_TEST_NAME}\nversion: \"1\"\n"

	cfg, err := NewLoader().LoadString(content, FormatYAML)
	if err != nil || cfg.Name != "from-env" {
		t.Fatalf("LoadString() = %+v, %v", cfg, err)
	}

	raw, err := NewLoaderWithOptions(WithEnvExpansion(false)).LoadString(content, FormatYAML)
	if err != nil || raw.Name != "${TOOLHOST_TEST_NAME}" {
		t.Errorf("expansion disabled: %+v, %v", raw, err)
	}

	_, err = NewLoaderWithOptions(WithStrictEnv(true)).LoadString("name: ${TOOLHOST_TEST_UNSET}\nversion: \"1\"\n", FormatYAML)
	if !errors.Is(err, domainconfig.ErrMissingEnvVar) {
		t.Errorf("strict env error = %v", err)
	}

	unvalidated, err := NewLoaderWithOptions(WithValidation(false)).LoadBytes([]byte(`{"description":"x"}`), FormatJSON)
	if err != nil || unvalidated.Description != "x" {
		t.Errorf("validation disabled: %+v, %v", unvalidated, err)
	}
}

func TestFormatFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"tools/add.yaml", FormatYAML, false},
		{"tools/add.YML", FormatYAML, false},
		{"tools/add.json", FormatJSON, false},
		{"tools/add.toml", FormatTOML, false},
		{"tools/add.sh", "", true},
		{"tools/README", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			got, err := FormatFromPath(tt.path)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("FormatFromPath(%q) = %q, %v", tt.path, got, err)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	var m domainconfig.ToolManifest
	if err := Decode([]byte("name = \"add\"\n[handler]\ntype = \"exec\"\n"), FormatTOML, &m); err != nil {
		t.Fatalf("Decode(toml) error = %v", err)
	}
	if m.Name != "add" || m.Handler.Type != "exec" {
		t.Errorf("manifest = %+v", m)
	}
	if err := Decode([]byte("x"), Format("ini"), &m); !errors.Is(err, domainconfig.ErrUnsupportedFormat) {
		t.Errorf("Decode(ini) error = %v", err)
	}
}
