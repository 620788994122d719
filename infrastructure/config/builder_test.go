package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
)

func TestBuilder_Defaults(t *testing.T) {
	t.Parallel()

	result, err := NewBuilder(&domainconfig.HostConfig{Name: "h", Version: "1"}).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if result.Tools.PollInterval != DefaultPollInterval || result.Tools.Debounce != DefaultDebounce {
		t.Errorf("Tools = %+v", result.Tools)
	}
	if result.Dispatch.DefaultTimeout != DefaultTimeout || result.Dispatch.MaxConcurrent != DefaultMaxConcurrent || result.Dispatch.MaxQueue != DefaultMaxQueue {
		t.Errorf("Dispatch = %+v", result.Dispatch)
	}
	if result.Hooks.Redaction.Placeholder != DefaultPlaceholder {
		t.Errorf("Placeholder = %q", result.Hooks.Redaction.Placeholder)
	}
	if result.Hooks.Approval.Mode != "deny" || result.Hooks.Audit.Sink != "memory" {
		t.Errorf("Hooks = %+v", result.Hooks)
	}
	if result.Hooks.Audit.Redis.Stream != DefaultAuditStream {
		t.Errorf("Redis.Stream = %q", result.Hooks.Audit.Redis.Stream)
	}
	if result.Logging.Level != "info" || result.Tracing.Exporter != "stdout" || result.Tracing.SampleRate != 1 {
		t.Errorf("Logging/Tracing = %+v / %+v", result.Logging, result.Tracing)
	}
}

func TestBuilder_ExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := &domainconfig.HostConfig{
		Name:    "h",
		Version: "1",
		Tools: domainconfig.ToolsConfig{
			Dir:                  "tools",
			Watch:                true,
			PollInterval:         domainconfig.Duration(5 * time.Second),
			ReloadBeforeDispatch: true,
			Packs:                []domainconfig.ToolPackConfig{{Name: "math", Disabled: []string{"analyze_text"}}},
			Inline: []domainconfig.ToolManifest{{
				Name:    "calc",
				Handler: domainconfig.ToolHandlerConfig{Type: "wasm", Path: "calc.wasm"},
			}},
		},
		Dispatch: domainconfig.DispatchConfig{MaxConcurrent: 2, MaxQueue: 3},
		Hooks: domainconfig.HooksConfig{
			Audit: domainconfig.AuditConfig{Enabled: true, Sink: "file", Path: "audit.jsonl"},
		},
		Logging: domainconfig.LoggingConfig{Level: "debug", Format: "json"},
	}

	base := t.TempDir()
	result, err := NewBuilder(cfg, WithBaseDir(base)).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if result.Tools.Dir != filepath.Join(base, "tools") {
		t.Errorf("Tools.Dir = %q", result.Tools.Dir)
	}
	if !result.Tools.Watch || !result.Tools.ReloadBeforeDispatch || result.Tools.PollInterval != 5*time.Second {
		t.Errorf("Tools = %+v", result.Tools)
	}
	if result.Dispatch.MaxConcurrent != 2 || result.Dispatch.MaxQueue != 3 {
		t.Errorf("Dispatch = %+v", result.Dispatch)
	}
	if len(result.ToolPacks) != 1 || result.ToolPacks[0].Disabled[0] != "analyze_text" {
		t.Errorf("ToolPacks = %+v", result.ToolPacks)
	}
	if got := result.InlineTools[0].Handler.Path; got != filepath.Join(base, "calc.wasm") {
		t.Errorf("inline wasm path = %q", got)
	}
	if result.Hooks.Audit.Path != filepath.Join(base, "audit.jsonl") {
		t.Errorf("Audit.Path = %q", result.Hooks.Audit.Path)
	}
	if result.Logging.Level != "debug" || result.Logging.Format != "json" {
		t.Errorf("Logging = %+v", result.Logging)
	}
	if cfg.Tools.Inline[0].Handler.Path != "calc.wasm" {
		t.Error("Build() must not modify the input configuration")
	}
}

func TestBuilder_Duplicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		tools domainconfig.ToolsConfig
	}{
		{
			name:  "duplicate pack",
			tools: domainconfig.ToolsConfig{Packs: []domainconfig.ToolPackConfig{{Name: "math"}, {Name: "math"}}},
		},
		{
			name: "duplicate inline tool",
			tools: domainconfig.ToolsConfig{Inline: []domainconfig.ToolManifest{
				{Name: "x", Handler: domainconfig.ToolHandlerConfig{Type: "exec", Command: "true"}},
				{Name: "x", Handler: domainconfig.ToolHandlerConfig{Type: "exec", Command: "false"}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &domainconfig.HostConfig{Name: "h", Version: "1", Tools: tt.tools}
			if _, err := NewBuilder(cfg).Build(); !errors.Is(err, domainconfig.ErrBuildFailed) {
				t.Errorf("Build() error = %v, want ErrBuildFailed", err)
			}
		})
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	t.Parallel()

	if errs := domainconfig.NewValidator().Validate(DefaultConfig()); errs.HasErrors() {
		t.Errorf("DefaultConfig() is invalid: %v", errs)
	}
}
