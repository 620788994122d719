package hook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/toolhost/domain/tool"
)

// ErrPhaseMismatch indicates a callback does not fit the requested phase.
var ErrPhaseMismatch = errors.New("callback does not match phase")

// ErrorReporter receives contained hook failures.
type ErrorReporter func(ctx context.Context, err *tool.HookError)

type entry[F any] struct {
	name string
	fn   F
}

type lists struct {
	before  []entry[BeforeFunc]
	after   []entry[AfterFunc]
	failure []entry[FailureFunc]
}

// Pipeline holds ordered hook lists per phase. Lists are immutable
// snapshots replaced on every registration, so running a phase takes no lock.
type Pipeline struct {
	mu       sync.Mutex
	current  atomic.Pointer[lists]
	reporter atomic.Pointer[ErrorReporter]
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	p := &Pipeline{}
	p.current.Store(&lists{})
	return p
}

// OnError sets the reporter for contained hook failures.
func (p *Pipeline) OnError(r ErrorReporter) {
	p.reporter.Store(&r)
}

func (p *Pipeline) update(fn func(l *lists)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	old := p.current.Load()
	next := &lists{
		before:  append([]entry[BeforeFunc](nil), old.before...),
		after:   append([]entry[AfterFunc](nil), old.after...),
		failure: append([]entry[FailureFunc](nil), old.failure...),
	}
	fn(next)
	p.current.Store(next)
}

// OnBefore appends a before-invocation hook.
func (p *Pipeline) OnBefore(name string, fn BeforeFunc) {
	p.update(func(l *lists) { l.before = append(l.before, entry[BeforeFunc]{name, fn}) })
}

// OnAfter appends an after-invocation hook.
func (p *Pipeline) OnAfter(name string, fn AfterFunc) {
	p.update(func(l *lists) { l.after = append(l.after, entry[AfterFunc]{name, fn}) })
}

// OnFailure appends an on-failure hook.
func (p *Pipeline) OnFailure(name string, fn FailureFunc) {
	p.update(func(l *lists) { l.failure = append(l.failure, entry[FailureFunc]{name, fn}) })
}

// Add appends fn to the given phase. fn must be the callback type of that phase.
func (p *Pipeline) Add(phase Phase, name string, fn any) error {
	switch phase {
	case PhaseBefore:
		if f, ok := asBefore(fn); ok {
			p.OnBefore(name, f)
			return nil
		}
	case PhaseAfter:
		if f, ok := asAfter(fn); ok {
			p.OnAfter(name, f)
			return nil
		}
	case PhaseFailure:
		if f, ok := asFailure(fn); ok {
			p.OnFailure(name, f)
			return nil
		}
	default:
		return fmt.Errorf("unknown hook phase %q", phase)
	}
	return fmt.Errorf("%w: %s hook %q got %T", ErrPhaseMismatch, phase, name, fn)
}

func asBefore(fn any) (BeforeFunc, bool) {
	switch f := fn.(type) {
	case BeforeFunc:
		return f, f != nil
	case func(context.Context, *BeforeEvent) error:
		return f, f != nil
	}
	return nil, false
}

func asAfter(fn any) (AfterFunc, bool) {
	switch f := fn.(type) {
	case AfterFunc:
		return f, f != nil
	case func(context.Context, AfterEvent) error:
		return f, f != nil
	}
	return nil, false
}

func asFailure(fn any) (FailureFunc, bool) {
	switch f := fn.(type) {
	case FailureFunc:
		return f, f != nil
	case func(context.Context, FailureEvent) error:
		return f, f != nil
	}
	return nil, false
}

// Install lets each provider register its hooks, in order.
func (p *Pipeline) Install(providers ...Provider) {
	for _, pr := range providers {
		pr.RegisterHooks(p)
	}
}

// Len returns the number of hooks registered for phase.
func (p *Pipeline) Len(phase Phase) int {
	l := p.current.Load()
	switch phase {
	case PhaseBefore:
		return len(l.before)
	case PhaseAfter:
		return len(l.after)
	case PhaseFailure:
		return len(l.failure)
	default:
		return 0
	}
}

// RunBefore runs before hooks in registration order. It returns the
// *tool.VetoError of the first hook that denies the call, or nil.
func (p *Pipeline) RunBefore(ctx context.Context, inv *Invocation) *tool.VetoError {
	ev := &BeforeEvent{Invocation: inv}
	for _, e := range p.current.Load().before {
		err := p.call(ctx, PhaseBefore, e.name, func() error { return e.fn(ctx, ev) })
		if err == nil {
			continue
		}
		var veto *tool.VetoError
		if errors.As(err, &veto) {
			out := *veto
			if out.Hook == "" {
				out.Hook = e.name
			}
			return &out
		}
		p.report(ctx, &tool.HookError{Hook: e.name, Phase: string(PhaseBefore), Err: err})
	}
	return nil
}

// RunAfter runs after hooks with private copies of the invocation and value.
func (p *Pipeline) RunAfter(ctx context.Context, inv *Invocation, value any, took time.Duration) {
	for _, e := range p.current.Load().after {
		ev := AfterEvent{Invocation: inv.Snapshot(), Value: cloneValue(value), Duration: took}
		if err := p.call(ctx, PhaseAfter, e.name, func() error { return e.fn(ctx, ev) }); err != nil {
			p.report(ctx, &tool.HookError{Hook: e.name, Phase: string(PhaseAfter), Err: err})
		}
	}
}

// RunFailure runs on-failure hooks with the failure cause.
func (p *Pipeline) RunFailure(ctx context.Context, inv *Invocation, cause error, took time.Duration) {
	for _, e := range p.current.Load().failure {
		ev := FailureEvent{Invocation: inv.Snapshot(), Cause: cause, Duration: took}
		if err := p.call(ctx, PhaseFailure, e.name, func() error { return e.fn(ctx, ev) }); err != nil {
			p.report(ctx, &tool.HookError{Hook: e.name, Phase: string(PhaseFailure), Err: err})
		}
	}
}

// call runs one hook, turning a panic into an error.
func (p *Pipeline) call(_ context.Context, phase Phase, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s hook %q: %v", phase, name, r)
		}
	}()
	return fn()
}

func (p *Pipeline) report(ctx context.Context, err *tool.HookError) {
	if r := p.reporter.Load(); r != nil && *r != nil {
		(*r)(ctx, err)
	}
}
