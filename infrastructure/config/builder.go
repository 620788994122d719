package config

import (
	"fmt"
	"path/filepath"
	"time"

	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
	"github.com/felixgeelhaar/toolhost/infrastructure/logging"
)

// Defaults applied by the builder when the configuration leaves a value unset.
const (
	DefaultPollInterval   = 2 * time.Second
	DefaultDebounce       = 200 * time.Millisecond
	DefaultTimeout        = 30 * time.Second
	DefaultMaxConcurrent  = 16
	DefaultMaxQueue       = 256
	DefaultPlaceholder    = "********"
	DefaultApprovalMode   = "deny"
	DefaultAuditStream    = "toolhost:audit"
	DefaultTracingSampler = 1.0
)

// Builder translates a host configuration into component settings.
type Builder struct {
	config  *domainconfig.HostConfig
	baseDir string
}

// BuilderOption configures the builder.
type BuilderOption func(*Builder)

// WithBaseDir resolves relative paths (tools dir, audit files) against dir,
// usually the directory holding the configuration file.
func WithBaseDir(dir string) BuilderOption {
	return func(b *Builder) {
		b.baseDir = dir
	}
}

// NewBuilder creates a new configuration builder.
func NewBuilder(config *domainconfig.HostConfig, opts ...BuilderOption) *Builder {
	b := &Builder{config: config}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildResult contains the component settings built from configuration.
type BuildResult struct {
	// Tools configures the source loader and watcher.
	Tools ToolSettings
	// Dispatch configures the dispatcher.
	Dispatch DispatchSettings
	// ToolPacks are the requested tool packs to load.
	ToolPacks []ToolPackRequest
	// InlineTools are tool manifests embedded in the configuration.
	InlineTools []domainconfig.ToolManifest
	// Hooks is the hook configuration with defaults applied.
	Hooks domainconfig.HooksConfig
	// Logging configures the process logger.
	Logging logging.Config
	// Tracing configures span export.
	Tracing domainconfig.TracingConfig
}

// ToolSettings configures tool source discovery.
type ToolSettings struct {
	Dir                  string
	Watch                bool
	PollInterval         time.Duration
	Debounce             time.Duration
	ReloadBeforeDispatch bool
}

// DispatchSettings configures invocation dispatch.
type DispatchSettings struct {
	DefaultTimeout time.Duration
	MaxConcurrent  int
	MaxQueue       int
}

// ToolPackRequest represents a request to load a tool pack.
type ToolPackRequest struct {
	Name     string
	Config   map[string]any
	Enabled  []string
	Disabled []string
}

// Build builds the component settings from configuration.
func (b *Builder) Build() (*BuildResult, error) {
	result := &BuildResult{}

	b.buildTools(result)
	b.buildDispatch(result)

	if err := b.buildToolPacks(result); err != nil {
		return nil, fmt.Errorf("%w: building tool packs: %v", domainconfig.ErrBuildFailed, err)
	}
	if err := b.buildInlineTools(result); err != nil {
		return nil, fmt.Errorf("%w: building inline tools: %v", domainconfig.ErrBuildFailed, err)
	}

	b.buildHooks(result)
	b.buildLogging(result)
	b.buildTracing(result)

	return result, nil
}

func (b *Builder) buildTools(result *BuildResult) {
	tools := b.config.Tools
	result.Tools = ToolSettings{
		Dir:                  b.resolve(tools.Dir),
		Watch:                tools.Watch,
		PollInterval:         orDefault(tools.PollInterval.Duration(), DefaultPollInterval),
		Debounce:             orDefault(tools.Debounce.Duration(), DefaultDebounce),
		ReloadBeforeDispatch: tools.ReloadBeforeDispatch,
	}
}

func (b *Builder) buildDispatch(result *BuildResult) {
	result.Dispatch = DispatchSettings{
		DefaultTimeout: orDefault(b.config.Dispatch.DefaultTimeout.Duration(), DefaultTimeout),
		MaxConcurrent:  b.config.Dispatch.MaxConcurrent,
		MaxQueue:       b.config.Dispatch.MaxQueue,
	}
	if result.Dispatch.MaxConcurrent <= 0 {
		result.Dispatch.MaxConcurrent = DefaultMaxConcurrent
	}
	if result.Dispatch.MaxQueue <= 0 {
		result.Dispatch.MaxQueue = DefaultMaxQueue
	}
}

func (b *Builder) buildToolPacks(result *BuildResult) error {
	seen := make(map[string]bool, len(b.config.Tools.Packs))
	for _, pack := range b.config.Tools.Packs {
		if seen[pack.Name] {
			return fmt.Errorf("pack %q listed twice", pack.Name)
		}
		seen[pack.Name] = true
		result.ToolPacks = append(result.ToolPacks, ToolPackRequest{
			Name:     pack.Name,
			Config:   pack.Config,
			Enabled:  pack.Enabled,
			Disabled: pack.Disabled,
		})
	}
	return nil
}

func (b *Builder) buildInlineTools(result *BuildResult) error {
	seen := make(map[string]bool, len(b.config.Tools.Inline))
	for _, m := range b.config.Tools.Inline {
		if seen[m.Name] {
			return fmt.Errorf("inline tool %q defined twice", m.Name)
		}
		seen[m.Name] = true
		if m.Handler.Path != "" {
			m.Handler.Path = b.resolve(m.Handler.Path)
		}
		result.InlineTools = append(result.InlineTools, m)
	}
	return nil
}

func (b *Builder) buildHooks(result *BuildResult) {
	hooks := b.config.Hooks

	if hooks.Redaction.Placeholder == "" {
		hooks.Redaction.Placeholder = DefaultPlaceholder
	}
	if hooks.Approval.Mode == "" {
		hooks.Approval.Mode = DefaultApprovalMode
	}
	if hooks.Audit.Sink == "" {
		hooks.Audit.Sink = "memory"
	}
	if hooks.Audit.Path != "" {
		hooks.Audit.Path = b.resolve(hooks.Audit.Path)
	}
	if hooks.Audit.Redis.Stream == "" {
		hooks.Audit.Redis.Stream = DefaultAuditStream
	}

	result.Hooks = hooks
}

func (b *Builder) buildLogging(result *BuildResult) {
	cfg := logging.DefaultConfig()
	if b.config.Logging.Level != "" {
		cfg.Level = b.config.Logging.Level
	}
	if b.config.Logging.Format != "" {
		cfg.Format = b.config.Logging.Format
	}
	result.Logging = cfg
}

func (b *Builder) buildTracing(result *BuildResult) {
	tracing := b.config.Observability.Tracing
	if tracing.Exporter == "" {
		tracing.Exporter = "stdout"
	}
	if tracing.SampleRate == 0 {
		tracing.SampleRate = DefaultTracingSampler
	}
	result.Tracing = tracing
}

// resolve makes a relative path absolute against the base directory.
func (b *Builder) resolve(path string) string {
	if path == "" || b.baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(b.baseDir, path)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// DefaultConfig returns a minimal default configuration.
func DefaultConfig() *domainconfig.HostConfig {
	return &domainconfig.HostConfig{
		Name:    "toolhost",
		Version: "1",
		Tools: domainconfig.ToolsConfig{
			Dir:          "./tools",
			Watch:        true,
			PollInterval: domainconfig.Duration(DefaultPollInterval),
			Debounce:     domainconfig.Duration(DefaultDebounce),
			Packs: []domainconfig.ToolPackConfig{
				{Name: "math"},
				{Name: "meta"},
			},
		},
		Dispatch: domainconfig.DispatchConfig{
			DefaultTimeout: domainconfig.Duration(DefaultTimeout),
			MaxConcurrent:  DefaultMaxConcurrent,
		},
		Hooks: domainconfig.HooksConfig{
			Redaction: domainconfig.RedactionConfig{Enabled: true},
			Logging:   domainconfig.LoggingHookConfig{Enabled: true},
		},
		Logging: domainconfig.LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
