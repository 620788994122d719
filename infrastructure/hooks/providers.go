package hooks

import (
	"go.opentelemetry.io/otel/metric"

	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
	"github.com/felixgeelhaar/toolhost/domain/hook"
	"github.com/felixgeelhaar/toolhost/infrastructure/security/audit"
)

// Options carries the collaborators the configured hooks need.
type Options struct {
	// Audit receives audit events when the audit hook is enabled.
	Audit audit.Logger
	// Approver overrides the configured approval mode.
	Approver Approver
	// MeterProvider backs the metrics hook (nil uses the global provider).
	MeterProvider metric.MeterProvider
	// Version is reported as the instrumentation version.
	Version string
}

// Providers returns the enabled reference hooks in their fixed order:
// redaction, rate limit, approval, logging, audit, metrics. Redaction runs
// first so every later hook observes masked arguments.
func Providers(cfg domainconfig.HooksConfig, opts Options) ([]hook.Provider, error) {
	var providers []hook.Provider
	if cfg.Redaction.Enabled {
		providers = append(providers, NewRedactor(cfg.Redaction))
	}
	if cfg.RateLimit.Enabled {
		providers = append(providers, NewRateLimiter(cfg.RateLimit))
	}
	if cfg.Approval.Enabled {
		providers = append(providers, NewApproval(cfg.Approval, opts.Approver))
	}
	if cfg.Logging.Enabled {
		providers = append(providers, NewLogger(cfg.Logging.LogArguments))
	}
	if cfg.Audit.Enabled && opts.Audit != nil {
		providers = append(providers, NewAuditor(opts.Audit))
	}
	if cfg.Metrics.Enabled {
		m, err := NewMetrics(opts.MeterProvider, opts.Version)
		if err != nil {
			return nil, err
		}
		providers = append(providers, m)
	}
	return providers, nil
}
