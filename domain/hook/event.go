package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/copystructure"

	"github.com/felixgeelhaar/toolhost/domain/tool"
)

// BeforeEvent is delivered to before-invocation hooks. The invocation is
// live: argument rewrites and masks affect later hooks.
type BeforeEvent struct {
	Invocation *Invocation
}

// AfterEvent is delivered to after-invocation hooks. Every field is a
// private copy; changes never reach the caller.
type AfterEvent struct {
	Invocation Invocation
	Value      any
	Duration   time.Duration
}

// FailureEvent is delivered to on-failure hooks with the failure cause:
// a *tool.HandlerError, *tool.VetoError or *tool.TimeoutError, or an error
// wrapping tool.ErrCanceled or tool.ErrCapacity.
type FailureEvent struct {
	Invocation Invocation
	Cause      error
	Duration   time.Duration
}

// Vetoed reports whether the failure is a veto.
func (e FailureEvent) Vetoed() bool {
	_, ok := e.Cause.(*tool.VetoError)
	return ok
}

// BeforeFunc inspects, rewrites or vetoes a pending invocation. Returning
// the error from Deny vetoes the call; any other error is contained.
type BeforeFunc func(ctx context.Context, ev *BeforeEvent) error

// AfterFunc observes a successful invocation.
type AfterFunc func(ctx context.Context, ev AfterEvent) error

// FailureFunc observes a failed or vetoed invocation.
type FailureFunc func(ctx context.Context, ev FailureEvent) error

// Deny builds the typed denial a before hook returns to veto a call.
func Deny(reason string) error {
	return &tool.VetoError{Reason: reason}
}

// Provider installs a related set of hooks.
type Provider interface {
	RegisterHooks(p *Pipeline)
}

// cloneValue deep-copies a handler result for observers. Values
// copystructure refuses are copied through their JSON form; a value that
// cannot be encoded either is replaced by its printed form so observers
// never share memory with the caller's result.
func cloneValue(v any) any {
	if v == nil {
		return nil
	}
	if c, err := copystructure.Copy(v); err == nil {
		return c
	}
	if data, err := json.Marshal(v); err == nil {
		var c any
		if json.Unmarshal(data, &c) == nil {
			return c
		}
	}
	return fmt.Sprintf("%+v", v)
}
