package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/felixgeelhaar/toolhost"
	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
	"github.com/felixgeelhaar/toolhost/domain/hook"
	"github.com/felixgeelhaar/toolhost/domain/pack"
	"github.com/felixgeelhaar/toolhost/domain/tool"
	infraconfig "github.com/felixgeelhaar/toolhost/infrastructure/config"
	"github.com/felixgeelhaar/toolhost/infrastructure/handler"
	"github.com/felixgeelhaar/toolhost/infrastructure/hooks"
	"github.com/felixgeelhaar/toolhost/infrastructure/logging"
	"github.com/felixgeelhaar/toolhost/infrastructure/observability"
	infrapack "github.com/felixgeelhaar/toolhost/infrastructure/pack"
	"github.com/felixgeelhaar/toolhost/infrastructure/resilience"
	"github.com/felixgeelhaar/toolhost/infrastructure/security/audit"
	"github.com/felixgeelhaar/toolhost/infrastructure/source"
	"github.com/felixgeelhaar/toolhost/infrastructure/storage/memory"
	"github.com/felixgeelhaar/toolhost/pack/compliance"
	"github.com/felixgeelhaar/toolhost/pack/math"
	"github.com/felixgeelhaar/toolhost/pack/meta"
)

// ErrUnknownPack is returned when configuration names a pack with no factory.
var ErrUnknownPack = errors.New("unknown tool pack")

// BuiltinPacks returns the factories of the packs shipped with toolhost.
func BuiltinPacks() map[string]pack.Factory {
	return map[string]pack.Factory{
		math.Name:       math.New,
		meta.Name:       meta.New,
		compliance.Name: compliance.New,
	}
}

// Definition is the model-facing description of one registered tool.
type Definition struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
	Version     uint64             `json:"version"`
	Origin      string             `json:"origin"`
	ReadOnly    bool               `json:"read_only,omitempty"`
	Destructive bool               `json:"destructive,omitempty"`
}

// Host wires the registry, tool sources, hook pipeline and dispatcher.
type Host struct {
	settings *infraconfig.BuildResult

	registry      *memory.ToolRegistry
	pipeline      *hook.Pipeline
	factory       *handler.Factory
	compiler      *source.Compiler
	loader        *source.Loader
	packs         *infrapack.Registry
	dispatcher    *Dispatcher
	executor      *resilience.Executor
	counter       *hooks.Counter
	audit         audit.Logger
	observability *observability.Provider

	mu        sync.Mutex
	listeners []func(source.Report)
	failures  map[string]string

	watchMu  sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	watchErr error

	closeOnce sync.Once
	closeErr  error
}

// NewHost builds a host from configuration. Packs and inline tools are
// registered immediately; tool sources are loaded by Start.
func NewHost(ctx context.Context, cfg *domainconfig.HostConfig, opts ...HostOption) (*Host, error) {
	if cfg == nil {
		cfg = infraconfig.DefaultConfig()
	}
	o := hostOptions{packs: BuiltinPacks(), version: toolhost.Version}
	for _, opt := range opts {
		opt(&o)
	}

	var builderOpts []infraconfig.BuilderOption
	if o.baseDir != "" {
		builderOpts = append(builderOpts, infraconfig.WithBaseDir(o.baseDir))
	}
	settings, err := infraconfig.NewBuilder(cfg, builderOpts...).Build()
	if err != nil {
		return nil, err
	}
	if o.toolsDir != "" {
		settings.Tools.Dir = o.toolsDir
	}
	if o.defaultTimeout > 0 {
		settings.Dispatch.DefaultTimeout = o.defaultTimeout
	}

	h := &Host{
		settings: settings,
		registry: memory.NewToolRegistry(),
		pipeline: hook.NewPipeline(),
		factory:  handler.NewFactory(o.handlerOptions...),
		packs:    infrapack.NewRegistry(),
		counter:  hooks.NewCounter(),
		failures: make(map[string]string),
	}
	h.compiler = source.NewCompiler(h.factory)
	if settings.Tools.Dir != "" {
		h.loader = source.NewLoader(settings.Tools.Dir, h.registry, h.compiler)
	}

	// Partially built hosts release what they opened.
	ok := false
	defer func() {
		if !ok {
			_ = h.Close(context.WithoutCancel(ctx))
		}
	}()

	if err := h.setupHooks(ctx, settings, o); err != nil {
		return nil, err
	}

	tracerProvider := o.tracerProvider
	if tracerProvider == nil {
		h.observability, err = observability.New(ctx,
			observability.FromHostConfig(settings.Tracing),
			observability.WithServiceName(cfg.Name),
			observability.WithServiceVersion(o.version),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to set up tracing: %w", err)
		}
		tracerProvider = h.observability.TracerProvider()
	}

	h.executor = resilience.NewExecutorWithOptions(
		resilience.WithMaxConcurrent(settings.Dispatch.MaxConcurrent),
		resilience.WithMaxQueue(settings.Dispatch.MaxQueue),
		resilience.WithTimeout(settings.Dispatch.DefaultTimeout),
	)
	dc := DispatcherConfig{
		Registry:             h.registry,
		Pipeline:             h.pipeline,
		Executor:             h.executor,
		ReloadBeforeDispatch: settings.Tools.ReloadBeforeDispatch,
		Tracer:               tracerProvider.Tracer(observability.InstrumentationName),
	}
	if h.loader != nil {
		dc.Loader = h.loader
	}
	if h.dispatcher, err = NewDispatcher(dc); err != nil {
		return nil, err
	}

	if err := h.installPacks(settings.ToolPacks, o.packs); err != nil {
		return nil, err
	}
	if err := h.registerInline(ctx, settings.InlineTools); err != nil {
		return nil, err
	}

	ok = true
	return h, nil
}

func (h *Host) setupHooks(ctx context.Context, settings *infraconfig.BuildResult, o hostOptions) error {
	h.pipeline.OnError(func(_ context.Context, err *tool.HookError) {
		logging.Warn().
			Add(logging.Hook(err.Hook)).
			Add(logging.Phase(err.Phase)).
			Add(logging.ErrorField(err.Err)).
			Msg("hook failed")
	})

	h.audit = o.audit
	if h.audit == nil && settings.Hooks.Audit.Enabled {
		logger, err := audit.Open(ctx, settings.Hooks.Audit)
		if err != nil {
			return fmt.Errorf("failed to open audit sink: %w", err)
		}
		h.audit = logger
	}

	providers, err := hooks.Providers(settings.Hooks, hooks.Options{
		Audit:         h.audit,
		Approver:      o.approver,
		MeterProvider: o.meterProvider,
		Version:       o.version,
	})
	if err != nil {
		return err
	}

	// The counter sees every call, including ones a later hook vetoes.
	h.pipeline.Install(h.counter)
	h.pipeline.Install(providers...)
	h.pipeline.Install(o.hooks...)
	return nil
}

func (h *Host) installPacks(requests []infraconfig.ToolPackRequest, factories map[string]pack.Factory) error {
	for _, req := range requests {
		factory, ok := factories[req.Name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPack, req.Name)
		}
		p, err := factory(pack.Env{
			ToolsDir: h.settings.Tools.Dir,
			Registry: h.registry,
			Reload:   h.reload,
			Config:   req.Config,
		})
		if err != nil {
			return fmt.Errorf("pack %s: %w", req.Name, err)
		}
		if err := h.packs.Register(p); err != nil {
			return err
		}
		installed, err := h.packs.Install(p.Name, h.registry, pack.Selection{
			Enabled:  req.Enabled,
			Disabled: req.Disabled,
		})
		if err != nil {
			return fmt.Errorf("pack %s: %w", req.Name, err)
		}
		logging.Info().
			Add(logging.Str("pack", p.Name)).
			Add(logging.Count("tools", len(installed))).
			Msg("tool pack installed")
	}
	return nil
}

func (h *Host) registerInline(ctx context.Context, manifests []domainconfig.ToolManifest) error {
	for _, m := range manifests {
		d, err := h.compiler.CompileInline(ctx, m, "")
		if err != nil {
			return err
		}
		stored, err := h.registry.Register(d)
		if err != nil {
			return err
		}
		logging.Info().
			Add(logging.ToolName(stored.Name)).
			Add(logging.Version(stored.Version)).
			Add(logging.Origin(stored.Origin)).
			Msg("inline tool registered")
	}
	return nil
}

// Start runs the initial pass over the tools directory and, when watching
// is enabled, starts the background watcher. The watcher stops when ctx is
// done or the host is closed.
func (h *Host) Start(ctx context.Context) error {
	if h.loader == nil {
		return nil
	}
	if _, err := h.Reload(ctx); err != nil {
		return err
	}
	if !h.settings.Tools.Watch {
		return nil
	}

	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	if h.cancel != nil {
		return errors.New("host already started")
	}

	watcher := source.NewWatcher(h.loader, source.WatcherConfig{
		PollInterval: h.settings.Tools.PollInterval,
		Debounce:     h.settings.Tools.Debounce,
		Notify:       true,
	}, func(r source.Report) { h.publish(ctx, r) })

	wctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	go func() {
		defer close(h.done)
		if err := watcher.Run(wctx); err != nil {
			logging.Error().
				Add(logging.Component("watcher")).
				Add(logging.ErrorField(err)).
				Msg("watcher stopped")
			h.watchMu.Lock()
			h.watchErr = err
			h.watchMu.Unlock()
		}
	}()
	return nil
}

// Reload runs a full pass over the tools directory now.
func (h *Host) Reload(ctx context.Context) (source.Report, error) {
	if h.loader == nil {
		return source.Report{}, nil
	}
	report, err := h.loader.Scan(ctx)
	if err != nil {
		return report, err
	}
	h.publish(ctx, report)
	return report, nil
}

// reload backs pack tools that change sources: a pass, then the LoadError
// recorded for name, if any.
func (h *Host) reload(ctx context.Context, name string) error {
	if h.loader == nil {
		return nil
	}
	if _, err := h.Reload(ctx); err != nil {
		return err
	}
	if lerr := h.loader.ErrorFor(name); lerr != nil {
		return lerr
	}
	return nil
}

// OnReload registers fn to be called after every pass that changed the
// registry.
func (h *Host) OnReload(fn func(source.Report)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// publish audits new load failures and notifies listeners of changes.
func (h *Host) publish(ctx context.Context, report source.Report) {
	h.mu.Lock()
	var fresh []*tool.LoadError
	for _, lerr := range report.Failed {
		msg := lerr.Error()
		if h.failures[lerr.Origin] == msg {
			continue
		}
		h.failures[lerr.Origin] = msg
		fresh = append(fresh, lerr)
	}
	for _, d := range report.Loaded {
		delete(h.failures, d.Origin)
	}
	listeners := append([]func(source.Report){}, h.listeners...)
	h.mu.Unlock()

	if h.audit != nil {
		for _, lerr := range fresh {
			err := h.audit.Log(ctx, audit.Event{
				Timestamp: time.Now(),
				EventType: audit.EventToolLoadFailure,
				Tool:      lerr.Name,
				Error:     lerr.Error(),
				Annotations: map[string]any{
					"origin": lerr.Origin,
				},
			})
			if err != nil {
				logging.Warn().
					Add(logging.Component("audit")).
					Add(logging.ErrorField(err)).
					Msg("failed to record load failure")
			}
		}
	}

	if !report.Changed() {
		return
	}
	for _, fn := range listeners {
		fn(report)
	}
}

// Dispatch runs one invocation.
func (h *Host) Dispatch(ctx context.Context, req Request) (Result, error) {
	return h.dispatcher.Dispatch(ctx, req)
}

// Definitions returns the registered tools in registration order.
func (h *Host) Definitions() []Definition {
	list := h.registry.List()
	defs := make([]Definition, 0, len(list))
	for _, d := range list {
		defs = append(defs, Definition{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.Parameters.JSONSchema(),
			Version:     d.Version,
			Origin:      d.Origin,
			ReadOnly:    d.Annotations.ReadOnly,
			Destructive: d.Annotations.Destructive,
		})
	}
	return defs
}

// Registry returns the live tool registry.
func (h *Host) Registry() tool.Registry {
	return h.registry
}

// Pipeline returns the hook pipeline.
func (h *Host) Pipeline() *hook.Pipeline {
	return h.pipeline
}

// Counter returns the per-tool invocation counts.
func (h *Host) Counter() *hooks.Counter {
	return h.counter
}

// Packs returns the installed tool packs.
func (h *Host) Packs() []*pack.Pack {
	return h.packs.List()
}

// LoadErrors returns the sources currently failing to load.
func (h *Host) LoadErrors() []*tool.LoadError {
	if h.loader == nil {
		return nil
	}
	return h.loader.Errors()
}

// ToolsDir returns the watched tools directory ("" when none).
func (h *Host) ToolsDir() string {
	return h.settings.Tools.Dir
}

// Close stops the watcher and the dispatch queue, then releases handlers,
// the audit sink and the trace exporter. Later calls return the first result.
func (h *Host) Close(ctx context.Context) error {
	h.closeOnce.Do(func() {
		h.watchMu.Lock()
		cancel, done := h.cancel, h.done
		h.watchMu.Unlock()

		if cancel != nil {
			cancel()
			<-done
		}

		var errs []error
		if h.executor != nil {
			errs = append(errs, h.executor.Close())
		}
		if h.factory != nil {
			errs = append(errs, h.factory.Close(ctx))
		}
		if h.audit != nil {
			errs = append(errs, h.audit.Close())
		}
		if h.observability != nil {
			errs = append(errs, h.observability.Shutdown(ctx))
		}
		h.watchMu.Lock()
		errs = append(errs, h.watchErr)
		h.watchMu.Unlock()
		h.closeErr = errors.Join(errs...)
	})
	return h.closeErr
}
