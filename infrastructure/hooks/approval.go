package hooks

import (
	"context"
	"fmt"

	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
	"github.com/felixgeelhaar/toolhost/domain/hook"
)

// Approval modes.
const (
	ApprovalDeny  = "deny"
	ApprovalAllow = "allow"
)

// Approver decides on an invocation that requires approval.
type Approver func(ctx context.Context, inv *hook.Invocation) (approved bool, reason string, err error)

// Approval gates tools that are destructive, high risk or explicitly marked.
type Approval struct {
	mode     string
	allow    map[string]bool
	approver Approver
}

// NewApproval creates an approval hook provider. approver may be nil, in
// which case the configured mode decides.
func NewApproval(cfg domainconfig.ApprovalConfig, approver Approver) *Approval {
	mode := cfg.Mode
	if mode == "" {
		mode = ApprovalDeny
	}
	allow := make(map[string]bool, len(cfg.Allow))
	for _, name := range cfg.Allow {
		allow[name] = true
	}
	return &Approval{mode: mode, allow: allow, approver: approver}
}

// RegisterHooks implements hook.Provider.
func (a *Approval) RegisterHooks(p *hook.Pipeline) {
	p.OnBefore("approval", a.Before)
}

// Before vetoes unapproved invocations of tools that require approval.
func (a *Approval) Before(ctx context.Context, ev *hook.BeforeEvent) error {
	inv := ev.Invocation
	if !inv.Annotations.ShouldRequireApproval() || a.allow[inv.Tool] {
		return nil
	}

	if a.approver != nil {
		approved, reason, err := a.approver(ctx, inv)
		if err != nil {
			return fmt.Errorf("approval error: %w", err)
		}
		if approved {
			return nil
		}
		if reason == "" {
			reason = "approval denied"
		}
		return hook.Deny(reason)
	}

	if a.mode == ApprovalAllow {
		return nil
	}
	return hook.Deny(fmt.Sprintf("tool %s requires approval", inv.Tool))
}
