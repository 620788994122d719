// Package application provides the tool host orchestration layer: the
// invocation dispatcher and the host that wires it together.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/felixgeelhaar/toolhost/domain/hook"
	"github.com/felixgeelhaar/toolhost/domain/tool"
	"github.com/felixgeelhaar/toolhost/infrastructure/hooks"
	"github.com/felixgeelhaar/toolhost/infrastructure/logging"
	"github.com/felixgeelhaar/toolhost/infrastructure/observability"
	"github.com/felixgeelhaar/toolhost/infrastructure/resilience"
	"github.com/felixgeelhaar/toolhost/infrastructure/source"
	"github.com/felixgeelhaar/toolhost/infrastructure/statemachine"
)

// Request asks for one tool invocation.
type Request struct {
	// Tool is the registered tool name.
	Tool string `json:"tool"`
	// Arguments are validated against the tool schema.
	Arguments tool.Arguments `json:"arguments,omitempty"`
	// Caller identifies the requester for hooks and audit.
	Caller string `json:"caller,omitempty"`
	// Timeout overrides the tool and host deadline when positive.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Result is the outcome of a successful invocation. On failure the
// identifying fields are still set.
type Result struct {
	Value        any           `json:"value"`
	Tool         string        `json:"tool"`
	Version      uint64        `json:"version,omitempty"`
	InvocationID string        `json:"invocation_id"`
	Duration     time.Duration `json:"duration_ns"`

	// Lifecycle lists the dispatch states visited.
	Lifecycle []statemachine.State `json:"lifecycle,omitempty"`
}

// SourceLoader is the tool source surface the dispatcher triggers.
// *source.Loader satisfies it.
type SourceLoader interface {
	Scan(ctx context.Context) (source.Report, error)
	Resolve(ctx context.Context, name string) error
}

// Dispatcher resolves, validates, hooks and executes tool invocations.
type Dispatcher struct {
	registry             tool.Registry
	pipeline             *hook.Pipeline
	executor             *resilience.Executor
	loader               SourceLoader
	reloadBeforeDispatch bool
	tracer               trace.Tracer
	machine              *statekit.MachineConfig[*statemachine.Context]
}

// DispatcherConfig contains configuration for the dispatcher.
type DispatcherConfig struct {
	Registry tool.Registry
	Pipeline *hook.Pipeline
	Executor *resilience.Executor
	// Loader, when set, is asked for a scoped pass when a name is missing.
	Loader SourceLoader
	// ReloadBeforeDispatch runs a full pass before every dispatch.
	ReloadBeforeDispatch bool
	Tracer               trace.Tracer
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(config DispatcherConfig) (*Dispatcher, error) {
	if config.Registry == nil {
		return nil, errors.New("registry is required")
	}
	machine, err := statemachine.NewDispatchMachine()
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}

	d := &Dispatcher{
		registry:             config.Registry,
		pipeline:             config.Pipeline,
		executor:             config.Executor,
		loader:               config.Loader,
		reloadBeforeDispatch: config.ReloadBeforeDispatch,
		tracer:               config.Tracer,
		machine:              machine,
	}
	if d.pipeline == nil {
		d.pipeline = hook.NewPipeline()
	}
	if d.executor == nil {
		d.executor = resilience.NewDefaultExecutor()
	}
	if d.tracer == nil {
		d.tracer = noop.NewTracerProvider().Tracer(observability.InstrumentationName)
	}
	return d, nil
}

// Pipeline returns the hook pipeline.
func (d *Dispatcher) Pipeline() *hook.Pipeline {
	return d.pipeline
}

// Dispatch runs one invocation. The returned error is one of
// tool.ErrNotFound, *tool.LoadError, *tool.ArgumentError, *tool.VetoError,
// *tool.HandlerError or *tool.TimeoutError. Hook failures never change it.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	id := uuid.NewString()
	result := Result{Tool: req.Tool, InvocationID: id}

	ctx, span := d.tracer.Start(ctx, "dispatch "+req.Tool,
		trace.WithAttributes(observability.InvocationAttributes(req.Tool, id, req.Caller)...))

	lc := statemachine.NewInterpreter(d.machine, statemachine.NewContext(id, req.Tool))
	lc.Start()
	defer lc.Stop()

	finish := func(err error) (Result, error) {
		result.Lifecycle = lc.Path()
		outcome := hooks.OutcomeOf(err)
		switch {
		case errors.Is(err, tool.ErrNotFound), errors.Is(err, tool.ErrLoad):
			outcome = "not_found"
		case errors.Is(err, tool.ErrInvalidArguments):
			outcome = "rejected"
		}
		observability.Finish(span, outcome, err)
		logging.Debug().
			Add(logging.InvocationID(id)).
			Add(logging.ToolName(req.Tool)).
			Add(logging.Outcome(outcome)).
			Add(logging.Duration(result.Duration)).
			Msg("dispatch finished")
		return result, err
	}

	desc, err := d.resolve(ctx, req.Tool)
	if err != nil {
		d.fire(lc, statemachine.EventMissing)
		return finish(err)
	}
	if err := lc.Resolve(desc.Version); err != nil {
		d.lifecycleError(id, err)
	}
	result.Version = desc.Version
	span.SetAttributes(observability.AttrVersion.Int64(int64(desc.Version))) // #nosec G115 -- versions stay far below MaxInt64

	args, err := desc.Parameters.Coerce(desc.Name, req.Arguments)
	if err != nil {
		d.fire(lc, statemachine.EventReject)
		return finish(err)
	}

	d.fire(lc, statemachine.EventHooks)
	inv := hook.NewInvocation(id, desc, args, req.Caller)
	start := time.Now()

	// Observers still run when the caller's context ends mid-call.
	observeCtx := context.WithoutCancel(ctx)

	if veto := d.pipeline.RunBefore(ctx, inv); veto != nil {
		d.fire(lc, statemachine.EventVeto)
		d.fire(lc, statemachine.EventObserve)
		result.Duration = time.Since(start)
		d.pipeline.RunFailure(observeCtx, inv, veto, result.Duration)
		d.fire(lc, statemachine.EventComplete)
		return finish(veto)
	}

	d.fire(lc, statemachine.EventProceed)
	value, err := d.executor.Execute(ctx, desc, inv.HandlerArguments(), d.executor.Timeout(req.Timeout, desc))
	result.Duration = time.Since(start)

	if err != nil {
		d.fire(lc, statemachine.EventFail)
		d.fire(lc, statemachine.EventObserve)
		d.pipeline.RunFailure(observeCtx, inv, err, result.Duration)
		d.fire(lc, statemachine.EventComplete)
		return finish(err)
	}

	d.fire(lc, statemachine.EventSucceed)
	d.fire(lc, statemachine.EventObserve)
	d.pipeline.RunAfter(observeCtx, inv, value, result.Duration)
	d.fire(lc, statemachine.EventComplete)

	result.Value = value
	return finish(nil)
}

// resolve looks name up, running a scoped pass when it is missing. A
// LoadError is returned only when the name is still not registered.
func (d *Dispatcher) resolve(ctx context.Context, name string) (tool.Descriptor, error) {
	if d.loader != nil && d.reloadBeforeDispatch {
		if _, err := d.loader.Scan(ctx); err != nil {
			logging.Warn().
				Add(logging.ToolName(name)).
				Add(logging.ErrorField(err)).
				Msg("pre-dispatch reload failed")
		}
	}

	desc, err := d.registry.Lookup(name)
	if err == nil || d.loader == nil || !errors.Is(err, tool.ErrNotFound) {
		return desc, err
	}

	reloadErr := d.loader.Resolve(ctx, name)
	desc, err = d.registry.Lookup(name)
	if err == nil {
		return desc, nil
	}
	var lerr *tool.LoadError
	if errors.As(reloadErr, &lerr) {
		return tool.Descriptor{}, lerr
	}
	if reloadErr != nil {
		logging.Warn().
			Add(logging.ToolName(name)).
			Add(logging.ErrorField(reloadErr)).
			Msg("scoped reload failed")
	}
	return tool.Descriptor{}, err
}

func (d *Dispatcher) fire(lc *statemachine.Interpreter, ev statekit.EventType) {
	if err := lc.Fire(ev); err != nil {
		d.lifecycleError(lc.Context().InvocationID, err)
	}
}

// lifecycleError logs a transition the machine refused. The dispatch
// outcome does not depend on the lifecycle record.
func (d *Dispatcher) lifecycleError(id string, err error) {
	logging.Error().
		Add(logging.InvocationID(id)).
		Add(logging.Component("dispatcher")).
		Add(logging.ErrorField(err)).
		Msg("lifecycle transition rejected")
}
