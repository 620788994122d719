package hooks

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/felixgeelhaar/toolhost/domain/hook"
	"github.com/felixgeelhaar/toolhost/domain/tool"
	"github.com/felixgeelhaar/toolhost/infrastructure/logging"
)

// Outcome labels used in logs, audit events and metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeVetoed   = "vetoed"
	OutcomeTimeout  = "timeout"
	OutcomeCanceled = "canceled"
	OutcomeCapacity = "capacity"
)

// OutcomeOf classifies a failure cause.
func OutcomeOf(cause error) string {
	var (
		veto    *tool.VetoError
		timeout *tool.TimeoutError
	)
	switch {
	case cause == nil:
		return OutcomeSuccess
	case errors.As(cause, &veto):
		return OutcomeVetoed
	case errors.As(cause, &timeout):
		return OutcomeTimeout
	case errors.Is(cause, tool.ErrCanceled):
		return OutcomeCanceled
	case errors.Is(cause, tool.ErrCapacity):
		return OutcomeCapacity
	default:
		return OutcomeError
	}
}

// Logger writes one structured log line per invocation phase.
type Logger struct {
	// LogArguments adds the (already masked) arguments to each line.
	LogArguments bool
}

// NewLogger creates a logging hook provider.
func NewLogger(logArguments bool) *Logger {
	return &Logger{LogArguments: logArguments}
}

// RegisterHooks implements hook.Provider.
func (l *Logger) RegisterHooks(p *hook.Pipeline) {
	p.OnBefore("log", l.Before)
	p.OnAfter("log", l.After)
	p.OnFailure("log", l.Failure)
}

// Before logs the pending invocation.
func (l *Logger) Before(_ context.Context, ev *hook.BeforeEvent) error {
	inv := ev.Invocation
	logging.Debug().
		Add(logging.InvocationID(inv.ID)).
		Add(logging.ToolName(inv.Tool)).
		Add(logging.Version(inv.Version)).
		Add(logging.Caller(inv.Caller)).
		Add(l.arguments(inv.Arguments)).
		Msg("invoking tool")
	return nil
}

// After logs a successful invocation.
func (l *Logger) After(_ context.Context, ev AfterEvent) error {
	logging.Info().
		Add(logging.InvocationID(ev.Invocation.ID)).
		Add(logging.ToolName(ev.Invocation.Tool)).
		Add(logging.Version(ev.Invocation.Version)).
		Add(logging.Caller(ev.Invocation.Caller)).
		Add(logging.Outcome(OutcomeSuccess)).
		Add(logging.Duration(ev.Duration)).
		Add(l.arguments(ev.Invocation.Arguments)).
		Msg("tool invoked")
	return nil
}

// Failure logs a failed or vetoed invocation.
func (l *Logger) Failure(_ context.Context, ev FailureEvent) error {
	entry := logging.Warn()
	if OutcomeOf(ev.Cause) == OutcomeError {
		entry = logging.Error()
	}
	entry.
		Add(logging.InvocationID(ev.Invocation.ID)).
		Add(logging.ToolName(ev.Invocation.Tool)).
		Add(logging.Version(ev.Invocation.Version)).
		Add(logging.Caller(ev.Invocation.Caller)).
		Add(logging.Outcome(OutcomeOf(ev.Cause))).
		Add(logging.Duration(ev.Duration)).
		Add(logging.ErrorField(ev.Cause)).
		Add(l.arguments(ev.Invocation.Arguments)).
		Msg("tool invocation failed")
	return nil
}

func (l *Logger) arguments(args tool.Arguments) logging.Field {
	if !l.LogArguments {
		return logging.None()
	}
	data, err := json.Marshal(args)
	if err != nil {
		return logging.Str("arguments", err.Error())
	}
	return logging.Str("arguments", string(data))
}

// AfterEvent and FailureEvent are re-exported for hook signatures.
type (
	AfterEvent   = hook.AfterEvent
	FailureEvent = hook.FailureEvent
)
