// Package config provides domain models for tool host configuration and
// tool source manifests.
package config

import "time"

// HostConfig represents the complete tool host configuration.
type HostConfig struct {
	// Name is a human-readable name for this configuration.
	Name string `json:"name" yaml:"name"`
	// Version is the configuration schema version.
	Version string `json:"version" yaml:"version"`
	// Description describes the host's purpose.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Tools configures tool sources and built-in packs.
	Tools ToolsConfig `json:"tools,omitempty" yaml:"tools,omitempty"`
	// Dispatch configures invocation deadlines and concurrency.
	Dispatch DispatchConfig `json:"dispatch,omitempty" yaml:"dispatch,omitempty"`
	// Hooks configures the reference hooks.
	Hooks HooksConfig `json:"hooks,omitempty" yaml:"hooks,omitempty"`
	// Logging configures structured logging.
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
	// Observability configures tracing and metrics export.
	Observability ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"`
}

// ToolsConfig contains tool-related configuration.
type ToolsConfig struct {
	// Dir is the watched tool source directory.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
	// Watch enables background watching (fsnotify plus polling).
	Watch bool `json:"watch,omitempty" yaml:"watch,omitempty"`
	// PollInterval is the fallback rescan interval (0 disables polling).
	PollInterval Duration `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	// Debounce coalesces bursts of filesystem events.
	Debounce Duration `json:"debounce,omitempty" yaml:"debounce,omitempty"`
	// ReloadBeforeDispatch runs a watcher pass before every dispatch.
	ReloadBeforeDispatch bool `json:"reload_before_dispatch,omitempty" yaml:"reload_before_dispatch,omitempty"`
	// Packs is a list of built-in tool packs to register.
	Packs []ToolPackConfig `json:"packs,omitempty" yaml:"packs,omitempty"`
	// Inline contains tool definitions embedded in the configuration.
	Inline []ToolManifest `json:"inline,omitempty" yaml:"inline,omitempty"`
}

// ToolPackConfig configures a tool pack.
type ToolPackConfig struct {
	// Name is the pack name.
	Name string `json:"name" yaml:"name"`
	// Config contains pack-specific configuration.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	// Enabled specifies which tools to enable (empty = all).
	Enabled []string `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Disabled specifies which tools to disable.
	Disabled []string `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// ToolManifest defines one tool in a source file or inline in configuration.
type ToolManifest struct {
	// Name is the tool identifier.
	Name string `json:"name" yaml:"name" toml:"name" validate:"required,max=128"`
	// Description describes the tool.
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description"`
	// Parameters is the ordered parameter schema.
	Parameters []ParameterConfig `json:"parameters,omitempty" yaml:"parameters,omitempty" toml:"parameters" validate:"dive"`
	// Annotations configure tool behavior.
	Annotations ToolAnnotationsConfig `json:"annotations,omitempty" yaml:"annotations,omitempty" toml:"annotations"`
	// Handler specifies how to execute the tool.
	Handler ToolHandlerConfig `json:"handler" yaml:"handler" toml:"handler"`
}

// ParameterConfig declares one parameter.
type ParameterConfig struct {
	Name        string `json:"name" yaml:"name" toml:"name" validate:"required"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty" toml:"type"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty" toml:"required"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty" toml:"default"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description"`
}

// ToolAnnotationsConfig configures tool annotations.
type ToolAnnotationsConfig struct {
	// ReadOnly indicates the tool doesn't modify state.
	ReadOnly bool `json:"read_only,omitempty" yaml:"read_only,omitempty" toml:"read_only"`
	// Destructive indicates the tool performs irreversible operations.
	Destructive bool `json:"destructive,omitempty" yaml:"destructive,omitempty" toml:"destructive"`
	// Idempotent indicates repeated calls produce the same result.
	Idempotent bool `json:"idempotent,omitempty" yaml:"idempotent,omitempty" toml:"idempotent"`
	// RiskLevel is the potential impact (none, low, medium, high, critical).
	RiskLevel string `json:"risk_level,omitempty" yaml:"risk_level,omitempty" toml:"risk_level" validate:"omitempty,oneof=none low medium high critical"`
	// RequiresApproval routes the tool through the approval hook.
	RequiresApproval bool `json:"requires_approval,omitempty" yaml:"requires_approval,omitempty" toml:"requires_approval"`
	// Timeout bounds a single invocation.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout"`
	// Tags are arbitrary labels.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags"`
}

// ToolHandlerConfig specifies how to execute a tool.
type ToolHandlerConfig struct {
	// Type is the handler type (http, exec, wasm).
	Type string `json:"type" yaml:"type" toml:"type" validate:"required,oneof=exec http wasm"`
	// URL is the endpoint for HTTP handlers.
	URL string `json:"url,omitempty" yaml:"url,omitempty" toml:"url" validate:"required_if=Type http,omitempty,url"`
	// Method is the HTTP method (default: POST).
	Method string `json:"method,omitempty" yaml:"method,omitempty" toml:"method" validate:"omitempty,oneof=GET POST PUT PATCH"`
	// Headers are additional HTTP headers.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" toml:"headers"`
	// Command is the command for exec handlers.
	Command string `json:"command,omitempty" yaml:"command,omitempty" toml:"command" validate:"required_if=Type exec"`
	// Args are command arguments for exec handlers.
	Args []string `json:"args,omitempty" yaml:"args,omitempty" toml:"args"`
	// Env are environment variables for exec handlers.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty" toml:"env"`
	// Dir is the working directory for exec handlers (default: manifest directory).
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty" toml:"dir"`
	// Path is the WASM module path for wasm handlers, relative to the manifest.
	Path string `json:"path,omitempty" yaml:"path,omitempty" toml:"path" validate:"required_if=Type wasm"`
	// Entry is the exported WASM function to call (default: run).
	Entry string `json:"entry,omitempty" yaml:"entry,omitempty" toml:"entry"`
}

// DispatchConfig configures the invocation dispatcher.
type DispatchConfig struct {
	// DefaultTimeout applies when neither request nor tool sets one.
	DefaultTimeout Duration `json:"default_timeout,omitempty" yaml:"default_timeout,omitempty"`
	// MaxConcurrent bounds handlers running at once.
	MaxConcurrent int `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
	// MaxQueue bounds invocations waiting for a free handler slot.
	MaxQueue int `json:"max_queue,omitempty" yaml:"max_queue,omitempty"`
}

// HooksConfig configures the reference hooks. Hooks run in the order
// redaction, rate limit, approval, logging, audit, metrics.
type HooksConfig struct {
	Redaction RedactionConfig   `json:"redaction,omitempty" yaml:"redaction,omitempty"`
	RateLimit RateLimitConfig   `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	Approval  ApprovalConfig    `json:"approval,omitempty" yaml:"approval,omitempty"`
	Logging   LoggingHookConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
	Audit     AuditConfig       `json:"audit,omitempty" yaml:"audit,omitempty"`
	Metrics   MetricsHookConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// RedactionConfig configures credential masking.
type RedactionConfig struct {
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Keys extends the built-in credential key list.
	Keys []string `json:"keys,omitempty" yaml:"keys,omitempty"`
	// Placeholder replaces masked values (default: ********).
	Placeholder string `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
}

// RateLimitConfig configures rate limiting.
type RateLimitConfig struct {
	// Enabled enables rate limiting.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Rate is the tokens per second.
	Rate int `json:"rate,omitempty" yaml:"rate,omitempty"`
	// Burst is the maximum burst size.
	Burst int `json:"burst,omitempty" yaml:"burst,omitempty"`
	// PerTool enables per-tool rate limiting.
	PerTool bool `json:"per_tool,omitempty" yaml:"per_tool,omitempty"`
	// PerCaller keys the limit by caller identity.
	PerCaller bool `json:"per_caller,omitempty" yaml:"per_caller,omitempty"`
}

// ApprovalConfig configures the approval hook.
type ApprovalConfig struct {
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Mode is the decision for tools requiring approval (deny, allow).
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`
	// Allow lists tools that are pre-approved.
	Allow []string `json:"allow,omitempty" yaml:"allow,omitempty"`
}

// LoggingHookConfig configures the invocation logging hook.
type LoggingHookConfig struct {
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// LogArguments includes the (redacted) argument map in log lines.
	LogArguments bool `json:"log_arguments,omitempty" yaml:"log_arguments,omitempty"`
}

// AuditConfig configures the audit hook sink.
type AuditConfig struct {
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Sink is one of memory, file, sqlite, postgres, badger, redis.
	Sink string `json:"sink,omitempty" yaml:"sink,omitempty"`
	// Path is the JSON lines file for the file sink or the badger directory.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// DSN is the data source for the sqlite and postgres sinks.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// Redis configures the redis stream sink.
	Redis RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// RedisConfig configures a Redis connection.
type RedisConfig struct {
	Address  string `json:"address,omitempty" yaml:"address,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
	Stream   string `json:"stream,omitempty" yaml:"stream,omitempty"`
	// MaxLen caps the stream length (0 = unbounded).
	MaxLen int64 `json:"max_len,omitempty" yaml:"max_len,omitempty"`
}

// MetricsHookConfig configures the OpenTelemetry metrics hook.
type MetricsHookConfig struct {
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is the output format (json or console).
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// ObservabilityConfig configures OpenTelemetry.
type ObservabilityConfig struct {
	Tracing TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Exporter is stdout, otlp or noop.
	Exporter   string  `json:"exporter,omitempty" yaml:"exporter,omitempty"`
	Endpoint   string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure   bool    `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	SampleRate float64 `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
}

// Duration is a time.Duration that supports JSON/YAML/TOML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	// Handle null
	if string(b) == "null" {
		return nil
	}

	// Remove quotes
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	return d.UnmarshalText([]byte(s))
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler, used by TOML.
func (d *Duration) UnmarshalText(b []byte) error {
	dur, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
