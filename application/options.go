package application

import (
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/toolhost/domain/hook"
	"github.com/felixgeelhaar/toolhost/domain/pack"
	"github.com/felixgeelhaar/toolhost/domain/tool"
	"github.com/felixgeelhaar/toolhost/infrastructure/handler"
	"github.com/felixgeelhaar/toolhost/infrastructure/hooks"
	"github.com/felixgeelhaar/toolhost/infrastructure/resilience"
	"github.com/felixgeelhaar/toolhost/infrastructure/security/audit"
)

// Option configures the dispatcher.
type Option func(*DispatcherConfig)

// WithRegistry sets the tool registry.
func WithRegistry(r tool.Registry) Option {
	return func(c *DispatcherConfig) {
		c.Registry = r
	}
}

// WithPipeline sets the hook pipeline.
func WithPipeline(p *hook.Pipeline) Option {
	return func(c *DispatcherConfig) {
		c.Pipeline = p
	}
}

// WithExecutor sets the resilient executor.
func WithExecutor(e *resilience.Executor) Option {
	return func(c *DispatcherConfig) {
		c.Executor = e
	}
}

// WithLoader sets the tool source loader consulted for missing names.
func WithLoader(l SourceLoader) Option {
	return func(c *DispatcherConfig) {
		c.Loader = l
	}
}

// WithReloadBeforeDispatch runs a full source pass before every dispatch.
func WithReloadBeforeDispatch(enabled bool) Option {
	return func(c *DispatcherConfig) {
		c.ReloadBeforeDispatch = enabled
	}
}

// WithTracer sets the tracer used for dispatch spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *DispatcherConfig) {
		c.Tracer = t
	}
}

// NewDispatcherWithOptions creates a dispatcher with functional options.
func NewDispatcherWithOptions(opts ...Option) (*Dispatcher, error) {
	config := DispatcherConfig{}
	for _, opt := range opts {
		opt(&config)
	}
	return NewDispatcher(config)
}

type hostOptions struct {
	baseDir        string
	toolsDir       string
	defaultTimeout time.Duration
	packs          map[string]pack.Factory
	hooks          []hook.Provider
	approver       hooks.Approver
	audit          audit.Logger
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	handlerOptions []handler.Option
	version        string
}

// HostOption configures a Host.
type HostOption func(*hostOptions)

// WithBaseDir resolves relative configuration paths against dir.
func WithBaseDir(dir string) HostOption {
	return func(o *hostOptions) {
		o.baseDir = dir
	}
}

// WithToolsDir overrides the configured tools directory.
func WithToolsDir(dir string) HostOption {
	return func(o *hostOptions) {
		o.toolsDir = dir
	}
}

// WithDefaultTimeout overrides the configured dispatch deadline.
func WithDefaultTimeout(d time.Duration) HostOption {
	return func(o *hostOptions) {
		o.defaultTimeout = d
	}
}

// WithPack makes an additional pack factory available to configuration.
func WithPack(name string, f pack.Factory) HostOption {
	return func(o *hostOptions) {
		o.packs[name] = f
	}
}

// WithHooks installs providers after the configured reference hooks.
func WithHooks(providers ...hook.Provider) HostOption {
	return func(o *hostOptions) {
		o.hooks = append(o.hooks, providers...)
	}
}

// WithApprover decides approvals instead of the configured mode.
func WithApprover(a hooks.Approver) HostOption {
	return func(o *hostOptions) {
		o.approver = a
	}
}

// WithAuditLogger replaces the configured audit sink. The host closes it.
func WithAuditLogger(l audit.Logger) HostOption {
	return func(o *hostOptions) {
		o.audit = l
	}
}

// WithMeterProvider backs the metrics hook.
func WithMeterProvider(p metric.MeterProvider) HostOption {
	return func(o *hostOptions) {
		o.meterProvider = p
	}
}

// WithTracerProvider replaces the configured tracing setup.
func WithTracerProvider(p trace.TracerProvider) HostOption {
	return func(o *hostOptions) {
		o.tracerProvider = p
	}
}

// WithHandlerOptions configures the handler factory.
func WithHandlerOptions(opts ...handler.Option) HostOption {
	return func(o *hostOptions) {
		o.handlerOptions = append(o.handlerOptions, opts...)
	}
}

// WithVersion sets the version reported to telemetry.
func WithVersion(v string) HostOption {
	return func(o *hostOptions) {
		o.version = v
	}
}
