package config

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

const (
	schemaDraft = "https://json-schema.org/draft/2020-12/schema"
	// durationPattern matches Go duration strings such as 1m30s or 200ms.
	durationPattern = `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`
)

// GenerateSchema generates a JSON Schema for the host configuration file.
func GenerateSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Schema:      schemaDraft,
		ID:          "https://github.com/felixgeelhaar/toolhost/toolhost.schema.json",
		Title:       "Tool Host Configuration",
		Description: "Configuration schema for the toolhost runtime",
		Type:        "object",
		Required:    []string{"name", "version"},
		Properties: map[string]*jsonschema.Schema{
			"name":          str("A human-readable name for this configuration"),
			"version":       withDefault(str("The configuration schema version"), "1"),
			"description":   str("Describes the host's purpose"),
			"tools":         generateToolsSchema(),
			"dispatch":      generateDispatchSchema(),
			"hooks":         generateHooksSchema(),
			"logging":       generateLoggingSchema(),
			"observability": generateObservabilitySchema(),
		},
	}
}

// GenerateManifestSchema generates a JSON Schema for one tool source manifest.
func GenerateManifestSchema() *jsonschema.Schema {
	s := generateManifestSchema()
	s.Schema = schemaDraft
	s.ID = "https://github.com/felixgeelhaar/toolhost/tool-manifest.schema.json"
	s.Title = "Tool Manifest"
	return s
}

func generateToolsSchema() *jsonschema.Schema {
	return obj("Tool sources and built-in packs", map[string]*jsonschema.Schema{
		"dir":                    str("Watched tool source directory"),
		"watch":                  boolean("Watch the directory in the background"),
		"poll_interval":          withDefault(duration("Fallback rescan interval"), "2s"),
		"debounce":               withDefault(duration("Window coalescing filesystem events"), "200ms"),
		"reload_before_dispatch": boolean("Run a reload pass before every dispatch"),
		"packs": {
			Type:        "array",
			Description: "Built-in tool packs to register",
			Items: &jsonschema.Schema{
				Type:     "object",
				Required: []string{"name"},
				Properties: map[string]*jsonschema.Schema{
					"name":     enum("Pack name", "math", "meta", "compliance"),
					"config":   {Type: "object", Description: "Pack-specific configuration"},
					"enabled":  stringList("Tools to enable (empty = all)"),
					"disabled": stringList("Tools to disable"),
				},
			},
		},
		"inline": {
			Type:        "array",
			Description: "Tool manifests embedded in the configuration",
			Items:       generateManifestSchema(),
		},
	})
}

func generateManifestSchema() *jsonschema.Schema {
	s := obj("Tool definition", map[string]*jsonschema.Schema{
		"name":        {Type: "string", Description: "Tool identifier", Pattern: `^[A-Za-z][A-Za-z0-9_.-]{0,127}$`},
		"description": str("Tool description"),
		"parameters": {
			Type:        "array",
			Description: "Ordered parameter schema",
			Items: &jsonschema.Schema{
				Type:     "object",
				Required: []string{"name"},
				Properties: map[string]*jsonschema.Schema{
					"name":        str("Parameter name"),
					"type":        enum("Parameter type", "string", "integer", "number", "boolean", "object", "array", "any"),
					"required":    boolean("Whether the argument must be supplied"),
					"default":     {Description: "Value used when the argument is omitted"},
					"description": str("Parameter description"),
				},
			},
		},
		"annotations": obj("Tool behavior annotations", map[string]*jsonschema.Schema{
			"read_only":         boolean("Tool doesn't modify state"),
			"destructive":       boolean("Tool performs irreversible operations"),
			"idempotent":        boolean("Repeated calls produce same result"),
			"risk_level":        withDefault(enum("Potential impact level", "none", "low", "medium", "high", "critical"), "none"),
			"requires_approval": boolean("Route invocations through the approval hook"),
			"timeout":           duration("Deadline for a single invocation"),
			"tags":              stringList("Arbitrary labels"),
		}),
		"handler": generateHandlerSchema(),
	})
	s.Required = []string{"name", "handler"}
	return s
}

func generateHandlerSchema() *jsonschema.Schema {
	s := obj("Tool execution handler", map[string]*jsonschema.Schema{
		"type":    enum("Handler type", "exec", "http", "wasm"),
		"url":     {Type: "string", Description: "Endpoint for HTTP handlers", Format: "uri"},
		"method":  withDefault(enum("HTTP method", "GET", "POST", "PUT", "PATCH"), "POST"),
		"headers": stringMap("Additional HTTP headers"),
		"command": str("Command for exec handlers"),
		"args":    stringList("Command arguments"),
		"env":     stringMap("Environment variables for exec handlers"),
		"dir":     str("Working directory for exec handlers"),
		"path":    str("WASM module path, relative to the manifest"),
		"entry":   withDefault(str("Exported WASM function"), "run"),
	})
	s.Required = []string{"type"}
	return s
}

func generateDispatchSchema() *jsonschema.Schema {
	return obj("Invocation dispatch settings", map[string]*jsonschema.Schema{
		"default_timeout": withDefault(duration("Deadline when neither request nor tool sets one"), "30s"),
		"max_concurrent":  {Type: "integer", Description: "Handlers running at once", Minimum: floatPtr(0)},
		"max_queue":       {Type: "integer", Description: "Invocations waiting for a handler slot", Minimum: floatPtr(0)},
	})
}

func generateHooksSchema() *jsonschema.Schema {
	return obj("Reference hooks", map[string]*jsonschema.Schema{
		"redaction": obj("Credential masking", map[string]*jsonschema.Schema{
			"enabled":     boolean("Enable redaction"),
			"keys":        stringList("Additional credential keys"),
			"placeholder": withDefault(str("Replacement value"), "********"),
		}),
		"rate_limit": obj("Rate limiting veto", map[string]*jsonschema.Schema{
			"enabled":    boolean("Enable rate limiting"),
			"rate":       {Type: "integer", Description: "Tokens per second", Minimum: floatPtr(1)},
			"burst":      {Type: "integer", Description: "Maximum burst size", Minimum: floatPtr(1)},
			"per_tool":   boolean("Limit each tool separately"),
			"per_caller": boolean("Limit each caller separately"),
		}),
		"approval": obj("Approval veto for risky tools", map[string]*jsonschema.Schema{
			"enabled": boolean("Enable approval"),
			"mode":    withDefault(enum("Decision for unapproved tools", "deny", "allow"), "deny"),
			"allow":   stringList("Pre-approved tools"),
		}),
		"logging": obj("Invocation logging", map[string]*jsonschema.Schema{
			"enabled":       boolean("Enable invocation logging"),
			"log_arguments": boolean("Include redacted arguments"),
		}),
		"audit": obj("Audit trail", map[string]*jsonschema.Schema{
			"enabled": boolean("Enable auditing"),
			"sink":    withDefault(enum("Audit sink", "memory", "file", "sqlite", "postgres", "badger", "redis"), "memory"),
			"path":    str("File or directory for file and badger sinks"),
			"dsn":     str("Data source for sqlite and postgres sinks"),
			"redis": obj("Redis stream sink", map[string]*jsonschema.Schema{
				"address":  str("Redis address"),
				"password": str("Redis password"),
				"db":       {Type: "integer", Description: "Redis database"},
				"stream":   withDefault(str("Stream key"), DefaultAuditStream),
				"max_len":  {Type: "integer", Description: "Approximate stream cap"},
			}),
		}),
		"metrics": obj("OpenTelemetry invocation metrics", map[string]*jsonschema.Schema{
			"enabled": boolean("Enable metrics"),
		}),
	})
}

func generateLoggingSchema() *jsonschema.Schema {
	return obj("Structured logging", map[string]*jsonschema.Schema{
		"level":  withDefault(enum("Minimum level", "trace", "debug", "info", "warn", "error"), "info"),
		"format": withDefault(enum("Output format", "json", "console"), "console"),
	})
}

func generateObservabilitySchema() *jsonschema.Schema {
	return obj("OpenTelemetry export", map[string]*jsonschema.Schema{
		"tracing": obj("Span export", map[string]*jsonschema.Schema{
			"enabled":     boolean("Enable tracing"),
			"exporter":    withDefault(enum("Span exporter", "stdout", "otlp", "noop"), "stdout"),
			"endpoint":    str("OTLP collector endpoint"),
			"insecure":    boolean("Disable TLS for OTLP"),
			"sample_rate": {Type: "number", Description: "Fraction of traces sampled", Minimum: floatPtr(0), Maximum: floatPtr(1)},
		}),
	})
}

func obj(desc string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Description: desc, Properties: props}
}

func str(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func boolean(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: desc}
}

func duration(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc, Pattern: durationPattern}
}

func stringList(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Description: desc, Items: &jsonschema.Schema{Type: "string"}}
}

func stringMap(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Description: desc, AdditionalProperties: &jsonschema.Schema{Type: "string"}}
}

func enum(desc string, values ...string) *jsonschema.Schema {
	s := str(desc)
	for _, v := range values {
		s.Enum = append(s.Enum, v)
	}
	return s
}

func withDefault(s *jsonschema.Schema, v any) *jsonschema.Schema {
	raw, err := json.Marshal(v)
	if err == nil {
		s.Default = raw
	}
	return s
}

func floatPtr(f float64) *float64 {
	return &f
}

// SchemaJSON returns the host configuration JSON Schema as an indented string.
func SchemaJSON() (string, error) {
	return marshalSchema(GenerateSchema())
}

// ManifestSchemaJSON returns the tool manifest JSON Schema as an indented string.
func ManifestSchemaJSON() (string, error) {
	return marshalSchema(GenerateManifestSchema())
}

func marshalSchema(s *jsonschema.Schema) (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
