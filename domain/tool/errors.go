package tool

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Domain errors for the tool system.
var (
	// ErrNotFound indicates no descriptor is registered under the requested name.
	ErrNotFound = errors.New("tool not found")

	// ErrInvalidDescriptor indicates a registration was rejected.
	ErrInvalidDescriptor = errors.New("invalid tool descriptor")

	// ErrInvalidArguments indicates the arguments do not satisfy the parameter schema.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrLoad indicates a tool source could not be parsed or built.
	ErrLoad = errors.New("tool source load failed")

	// ErrVetoed indicates a before-invocation hook denied the call.
	ErrVetoed = errors.New("tool invocation vetoed")

	// ErrHandler indicates the handler returned a failure or panicked.
	ErrHandler = errors.New("tool handler failed")

	// ErrTimeout indicates the invocation exceeded its deadline.
	ErrTimeout = errors.New("tool invocation timed out")

	// ErrHook indicates a hook callback misbehaved.
	ErrHook = errors.New("hook failed")

	// ErrCapacity indicates the host could not admit another handler run.
	// The handler was never called.
	ErrCapacity = errors.New("tool host at capacity")

	// ErrCanceled indicates the caller abandoned the invocation before the
	// handler finished.
	ErrCanceled = errors.New("tool invocation canceled")
)

// FieldError describes one argument that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Reason
}

// ArgumentError is returned when arguments cannot be coerced to the schema.
type ArgumentError struct {
	Tool   string
	Fields []FieldError
}

func (e *ArgumentError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%s for %s: %s", ErrInvalidArguments, e.Tool, strings.Join(parts, "; "))
}

// Is reports whether target is ErrInvalidArguments.
func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArguments
}

// LoadError reports a source that failed to load. It never aborts a
// watcher pass; other sources in the same pass still register.
type LoadError struct {
	// Origin is the path of the offending source.
	Origin string
	// Name is the tool name the source declared, when it could be read.
	Name  string
	Cause error
}

func (e *LoadError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s (%s): %v", ErrLoad, e.Origin, e.Name, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %v", ErrLoad, e.Origin, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrLoad.
func (e *LoadError) Is(target error) bool {
	return target == ErrLoad
}

// VetoError is the typed denial a before-invocation hook returns to stop a call.
type VetoError struct {
	Hook   string
	Reason string
}

func (e *VetoError) Error() string {
	if e.Hook == "" {
		return fmt.Sprintf("%s: %s", ErrVetoed, e.Reason)
	}
	return fmt.Sprintf("%s by %s: %s", ErrVetoed, e.Hook, e.Reason)
}

// Is reports whether target is ErrVetoed.
func (e *VetoError) Is(target error) bool {
	return target == ErrVetoed
}

// HandlerError wraps a failure raised by a tool handler.
type HandlerError struct {
	Tool string
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrHandler, e.Tool, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// Is reports whether target is ErrHandler.
func (e *HandlerError) Is(target error) bool {
	return target == ErrHandler
}

// TimeoutError is returned when the dispatcher stops waiting for a handler.
type TimeoutError struct {
	Tool  string
	After time.Duration
	// Cause is context.DeadlineExceeded or context.Canceled.
	Cause error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %s after %s", ErrTimeout, e.Tool, e.After)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// HookError wraps a hook that returned an error or panicked. It is
// contained by the pipeline and never changes a dispatch outcome.
type HookError struct {
	Hook  string
	Phase string
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s: %s hook %q: %v", ErrHook, e.Phase, e.Hook, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// Is reports whether target is ErrHook.
func (e *HookError) Is(target error) bool {
	return target == ErrHook
}

// Kind names the taxonomy entry err belongs to, for wire responses:
// not_found, invalid_descriptor, invalid_arguments, load_error, vetoed,
// handler_error, timeout, canceled, capacity or hook_error. Anything else
// is "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLoad):
		return "load_error"
	case errors.Is(err, ErrVetoed):
		return "vetoed"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCanceled):
		return "canceled"
	case errors.Is(err, ErrCapacity):
		return "capacity"
	case errors.Is(err, ErrHandler):
		return "handler_error"
	case errors.Is(err, ErrInvalidArguments):
		return "invalid_arguments"
	case errors.Is(err, ErrInvalidDescriptor):
		return "invalid_descriptor"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrHook):
		return "hook_error"
	default:
		return "internal"
	}
}
