// Package resilience bounds and times handler execution using fortify.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"

	"github.com/felixgeelhaar/toolhost/domain/tool"
)

// Executor runs handlers behind a queued bulkhead and a deadline.
type Executor struct {
	bulkhead      bulkhead.Bulkhead[any]
	timeout       time.Duration
	maxConcurrent int
	maxQueue      int
}

// ExecutorConfig configures the executor.
type ExecutorConfig struct {
	// MaxConcurrent limits concurrent handler executions.
	MaxConcurrent int

	// MaxQueue bounds invocations waiting for a free slot. A waiting
	// invocation gives up when its dispatch deadline passes.
	MaxQueue int

	// DefaultTimeout applies when neither the request nor the tool sets one.
	DefaultTimeout time.Duration
}

// DefaultExecutorConfig returns the host defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrent:  16,
		MaxQueue:       256,
		DefaultTimeout: 30 * time.Second,
	}
}

// NewExecutor creates an executor. Non-positive values fall back to
// DefaultExecutorConfig.
func NewExecutor(config ExecutorConfig) *Executor {
	defaults := DefaultExecutorConfig()
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	if config.MaxQueue <= 0 {
		config.MaxQueue = defaults.MaxQueue
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = defaults.DefaultTimeout
	}

	return &Executor{
		bulkhead: bulkhead.New[any](bulkhead.Config{
			MaxConcurrent: config.MaxConcurrent,
			MaxQueue:      config.MaxQueue,
		}),
		timeout:       config.DefaultTimeout,
		maxConcurrent: config.MaxConcurrent,
		maxQueue:      config.MaxQueue,
	}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return NewExecutor(DefaultExecutorConfig())
}

// DefaultTimeout returns the fallback deadline.
func (e *Executor) DefaultTimeout() time.Duration {
	return e.timeout
}

// MaxConcurrent returns the number of handlers allowed to run at once.
func (e *Executor) MaxConcurrent() int {
	return e.maxConcurrent
}

// MaxQueue returns the number of invocations allowed to wait for a slot.
func (e *Executor) MaxQueue() int {
	return e.maxQueue
}

// Timeout picks the effective deadline: the request value, else the
// tool annotation, else the executor default.
func (e *Executor) Timeout(requested time.Duration, d tool.Descriptor) time.Duration {
	switch {
	case requested > 0:
		return requested
	case d.Annotations.Timeout > 0:
		return d.Annotations.Timeout
	default:
		return e.timeout
	}
}

// Execute calls h at most once. An invocation arriving while every slot
// is busy waits in the queue under its own deadline; when the queue is
// full too it fails with tool.ErrCapacity and the handler never runs.
//
// When the deadline passes first the executor stops waiting and returns
// *tool.TimeoutError; a caller cancellation yields tool.ErrCanceled. In
// both cases the handler keeps running with a cancelled context and its
// result is discarded. Handler errors and panics come back as
// *tool.HandlerError.
func (e *Executor) Execute(ctx context.Context, d tool.Descriptor, args tool.Arguments, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = e.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	value, err := e.bulkhead.Execute(ctx, func(ctx context.Context) (any, error) {
		return call(ctx, d, args, timeout)
	})
	if err == nil {
		return value, nil
	}

	var (
		herr *tool.HandlerError
		terr *tool.TimeoutError
	)
	switch {
	case errors.As(err, &herr), errors.As(err, &terr), errors.Is(err, tool.ErrCanceled):
		return nil, err
	case ctx.Err() != nil:
		return nil, stopped(d.Name, timeout, ctx.Err())
	default:
		return nil, fmt.Errorf("%w: %s: %v", tool.ErrCapacity, d.Name, err)
	}
}

// Close stops the queue worker. Invocations still waiting are rejected
// with tool.ErrCapacity; running handlers are not interrupted. Close must
// not race with Execute.
func (e *Executor) Close() error {
	return e.bulkhead.Close()
}

type outcome struct {
	value any
	err   error
}

func call(ctx context.Context, d tool.Descriptor, args tool.Arguments, timeout time.Duration) (any, error) {
	done := make(chan outcome, 1)

	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out = outcome{err: fmt.Errorf("panic: %v", r)}
			}
			done <- out
		}()
		out.value, out.err = d.Handler(ctx, args)
	}()

	select {
	case out := <-done:
		if out.err == nil {
			return out.value, nil
		}
		if cerr := ctx.Err(); cerr != nil && errors.Is(out.err, cerr) {
			return nil, stopped(d.Name, timeout, cerr)
		}
		return nil, &tool.HandlerError{Tool: d.Name, Err: out.err}
	case <-ctx.Done():
		return nil, stopped(d.Name, timeout, ctx.Err())
	}
}

// stopped classifies a context that ended before the handler returned.
// Only an expired deadline is a timeout.
func stopped(name string, after time.Duration, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return &tool.TimeoutError{Tool: name, After: after, Cause: cause}
	}
	return fmt.Errorf("%w: %s: %w", tool.ErrCanceled, name, cause)
}
