package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the JSON path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates host configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *HostConfig) ValidationErrors {
	v.errors = nil

	v.validateRequired(config)
	v.validateTools(config)
	v.validateDispatch(config)
	v.validateHooks(config)
	v.validateLogging(config)
	v.validateObservability(config)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateRequired(config *HostConfig) {
	if config.Name == "" {
		v.addError("name", "name is required")
	}
	if config.Version == "" {
		v.addError("version", "version is required")
	}
}

func (v *Validator) validateTools(config *HostConfig) {
	if config.Tools.PollInterval < 0 {
		v.addError("tools.poll_interval", "poll_interval must be non-negative")
	}
	if config.Tools.Debounce < 0 {
		v.addError("tools.debounce", "debounce must be non-negative")
	}
	if config.Tools.Watch && config.Tools.Dir == "" {
		v.addError("tools.dir", "dir is required when watch is enabled")
	}

	for i, pack := range config.Tools.Packs {
		path := fmt.Sprintf("tools.packs[%d]", i)
		if pack.Name == "" {
			v.addError(path+".name", "pack name is required")
		}
	}

	for i, manifest := range config.Tools.Inline {
		v.validateManifest(fmt.Sprintf("tools.inline[%d]", i), manifest)
	}
}

func (v *Validator) validateManifest(path string, manifest ToolManifest) {
	if manifest.Name == "" {
		v.addError(path+".name", "tool name is required")
	}
	if manifest.Handler.Type == "" {
		v.addError(path+".handler.type", "handler type is required")
	} else {
		v.validateToolHandler(path+".handler", manifest.Handler)
	}
	if manifest.Annotations.RiskLevel != "" {
		validLevels := map[string]bool{
			"none": true, "low": true, "medium": true, "high": true, "critical": true,
		}
		if !validLevels[strings.ToLower(manifest.Annotations.RiskLevel)] {
			v.addError(path+".annotations.risk_level", fmt.Sprintf("invalid risk level: %s", manifest.Annotations.RiskLevel))
		}
	}
	for j, p := range manifest.Parameters {
		if p.Name == "" {
			v.addError(fmt.Sprintf("%s.parameters[%d].name", path, j), "parameter name is required")
		}
	}
}

func (v *Validator) validateToolHandler(path string, handler ToolHandlerConfig) {
	switch handler.Type {
	case "http":
		if handler.URL == "" {
			v.addError(path+".url", "URL is required for http handler")
		}
	case "exec":
		if handler.Command == "" {
			v.addError(path+".command", "command is required for exec handler")
		}
	case "wasm":
		if handler.Path == "" {
			v.addError(path+".path", "path is required for wasm handler")
		}
	default:
		v.addError(path+".type", fmt.Sprintf("unknown handler type: %s", handler.Type))
	}
}

func (v *Validator) validateDispatch(config *HostConfig) {
	if config.Dispatch.DefaultTimeout < 0 {
		v.addError("dispatch.default_timeout", "default_timeout must be non-negative")
	}
	if config.Dispatch.MaxConcurrent < 0 {
		v.addError("dispatch.max_concurrent", "max_concurrent must be non-negative")
	}
	if config.Dispatch.MaxQueue < 0 {
		v.addError("dispatch.max_queue", "max_queue must be non-negative")
	}
}

func (v *Validator) validateHooks(config *HostConfig) {
	hooks := config.Hooks

	if hooks.RateLimit.Enabled {
		if hooks.RateLimit.Rate <= 0 {
			v.addError("hooks.rate_limit.rate", "rate must be positive when enabled")
		}
		if hooks.RateLimit.Burst <= 0 {
			v.addError("hooks.rate_limit.burst", "burst must be positive when enabled")
		}
	}

	if hooks.Approval.Mode != "" {
		validModes := map[string]bool{"deny": true, "allow": true}
		if !validModes[hooks.Approval.Mode] {
			v.addError("hooks.approval.mode", fmt.Sprintf("invalid mode: %s", hooks.Approval.Mode))
		}
	}

	if !hooks.Audit.Enabled {
		return
	}
	switch hooks.Audit.Sink {
	case "", "memory":
	case "file", "badger":
		if hooks.Audit.Path == "" {
			v.addError("hooks.audit.path", fmt.Sprintf("path is required for %s sink", hooks.Audit.Sink))
		}
	case "sqlite", "postgres":
		if hooks.Audit.DSN == "" {
			v.addError("hooks.audit.dsn", fmt.Sprintf("dsn is required for %s sink", hooks.Audit.Sink))
		}
	case "redis":
		if hooks.Audit.Redis.Address == "" {
			v.addError("hooks.audit.redis.address", "address is required for redis sink")
		}
	default:
		v.addError("hooks.audit.sink", fmt.Sprintf("unknown sink: %s", hooks.Audit.Sink))
	}
}

func (v *Validator) validateLogging(config *HostConfig) {
	if config.Logging.Level != "" {
		validLevels := map[string]bool{
			"trace": true, "debug": true, "info": true, "warn": true, "error": true,
		}
		if !validLevels[strings.ToLower(config.Logging.Level)] {
			v.addError("logging.level", fmt.Sprintf("invalid level: %s", config.Logging.Level))
		}
	}
	if config.Logging.Format != "" && config.Logging.Format != "json" && config.Logging.Format != "console" {
		v.addError("logging.format", fmt.Sprintf("invalid format: %s", config.Logging.Format))
	}
}

func (v *Validator) validateObservability(config *HostConfig) {
	tracing := config.Observability.Tracing
	if !tracing.Enabled {
		return
	}
	switch tracing.Exporter {
	case "", "stdout", "noop":
	case "otlp":
		if tracing.Endpoint == "" {
			v.addError("observability.tracing.endpoint", "endpoint is required for otlp exporter")
		}
	default:
		v.addError("observability.tracing.exporter", fmt.Sprintf("unknown exporter: %s", tracing.Exporter))
	}
	if tracing.SampleRate < 0 || tracing.SampleRate > 1 {
		v.addError("observability.tracing.sample_rate", "sample_rate must be between 0 and 1")
	}
}
