package hooks

import (
	"context"

	"github.com/felixgeelhaar/toolhost/domain/hook"
	"github.com/felixgeelhaar/toolhost/domain/tool"
	"github.com/felixgeelhaar/toolhost/infrastructure/security/audit"
)

// Auditor records every finished invocation to an audit sink. Arguments
// are recorded as observers see them, so masked values stay masked.
type Auditor struct {
	logger audit.Logger
}

// NewAuditor creates an audit hook provider writing to logger.
func NewAuditor(logger audit.Logger) *Auditor {
	return &Auditor{logger: logger}
}

// RegisterHooks implements hook.Provider.
func (a *Auditor) RegisterHooks(p *hook.Pipeline) {
	p.OnAfter("audit", a.After)
	p.OnFailure("audit", a.Failure)
}

// After records a successful invocation.
func (a *Auditor) After(ctx context.Context, ev AfterEvent) error {
	e := event(ev.Invocation)
	e.EventType = audit.EventToolExecution
	e.Success = true
	e.Duration = ev.Duration
	return a.logger.Log(ctx, e)
}

// Failure records a failed, vetoed or timed out invocation.
func (a *Auditor) Failure(ctx context.Context, ev FailureEvent) error {
	e := event(ev.Invocation)
	switch OutcomeOf(ev.Cause) {
	case OutcomeVetoed:
		e.EventType = audit.EventToolRejection
	case OutcomeTimeout:
		e.EventType = audit.EventToolTimeout
	default:
		e.EventType = audit.EventToolFailure
	}
	e.Error = ev.Cause.Error()
	e.Duration = ev.Duration
	return a.logger.Log(ctx, e)
}

func event(inv hook.Invocation) audit.Event {
	return audit.Event{
		Timestamp:    inv.StartedAt,
		InvocationID: inv.ID,
		Tool:         inv.Tool,
		Version:      inv.Version,
		Caller:       inv.Caller,
		Arguments:    map[string]any(inv.Arguments),
		Annotations:  annotations(inv.Annotations),
	}
}

func annotations(a tool.Annotations) map[string]any {
	return map[string]any{
		"read_only":   a.ReadOnly,
		"destructive": a.Destructive,
		"risk_level":  a.RiskLevel.String(),
	}
}
