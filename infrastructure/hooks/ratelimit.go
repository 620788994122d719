package hooks

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/fortify/ratelimit"

	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
	"github.com/felixgeelhaar/toolhost/domain/hook"
	"github.com/felixgeelhaar/toolhost/infrastructure/logging"
)

// RateLimitScope defines how rate limiting keys are generated.
type RateLimitScope string

const (
	// ScopeGlobal shares one bucket across all tools and callers.
	ScopeGlobal RateLimitScope = "global"
	// ScopePerTool keeps a bucket per tool.
	ScopePerTool RateLimitScope = "per_tool"
	// ScopePerCaller keeps a bucket per caller.
	ScopePerCaller RateLimitScope = "per_caller"
	// ScopePerToolCaller keeps a bucket per tool and caller combination.
	ScopePerToolCaller RateLimitScope = "per_tool_caller"
)

// RateLimiter vetoes invocations that exceed a token bucket.
type RateLimiter struct {
	limiter ratelimit.RateLimiter
	scope   RateLimitScope
}

// NewRateLimiter creates a rate limiting hook provider.
func NewRateLimiter(cfg domainconfig.RateLimitConfig) *RateLimiter {
	rate := cfg.Rate
	if rate <= 0 {
		rate = 100
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = rate
	}
	return &RateLimiter{
		limiter: ratelimit.New(&ratelimit.Config{
			Rate:  rate,
			Burst: burst,
		}),
		scope: scopeOf(cfg),
	}
}

func scopeOf(cfg domainconfig.RateLimitConfig) RateLimitScope {
	switch {
	case cfg.PerTool && cfg.PerCaller:
		return ScopePerToolCaller
	case cfg.PerTool:
		return ScopePerTool
	case cfg.PerCaller:
		return ScopePerCaller
	default:
		return ScopeGlobal
	}
}

// RegisterHooks implements hook.Provider.
func (r *RateLimiter) RegisterHooks(p *hook.Pipeline) {
	p.OnBefore("rate-limit", r.Before)
}

// Before vetoes the invocation when its bucket is empty.
func (r *RateLimiter) Before(ctx context.Context, ev *hook.BeforeEvent) error {
	key := r.key(ev.Invocation)
	if r.limiter.Allow(ctx, key) {
		return nil
	}
	logging.Warn().
		Add(logging.InvocationID(ev.Invocation.ID)).
		Add(logging.ToolName(ev.Invocation.Tool)).
		Add(logging.Str("scope", string(r.scope))).
		Add(logging.Str("key", key)).
		Msg("rate limit exceeded")
	return hook.Deny("rate limit exceeded")
}

func (r *RateLimiter) key(inv *hook.Invocation) string {
	switch r.scope {
	case ScopePerTool:
		return inv.Tool
	case ScopePerCaller:
		return "caller:" + inv.Caller
	case ScopePerToolCaller:
		return fmt.Sprintf("%s:%s", inv.Tool, inv.Caller)
	default:
		return "global"
	}
}
