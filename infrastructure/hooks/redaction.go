// Package hooks provides the reference hook providers: credential
// redaction, rate limiting, approval, logging, audit, counting and metrics.
package hooks

import (
	"context"
	"sort"
	"strconv"
	"strings"

	domainconfig "github.com/felixgeelhaar/toolhost/domain/config"
	"github.com/felixgeelhaar/toolhost/domain/hook"
)

// DefaultPlaceholder replaces masked values.
const DefaultPlaceholder = "********"

// DefaultSensitiveKeys are matched case-insensitively as substrings of
// argument keys.
var DefaultSensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"passphrase",
	"credential",
	"private_key",
}

// Redactor masks credential-like arguments before any other hook sees them.
type Redactor struct {
	keys        []string
	placeholder string
}

// NewRedactor creates a redactor from configuration.
func NewRedactor(cfg domainconfig.RedactionConfig) *Redactor {
	keys := append([]string(nil), DefaultSensitiveKeys...)
	for _, k := range cfg.Keys {
		keys = append(keys, strings.ToLower(k))
	}
	placeholder := cfg.Placeholder
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &Redactor{keys: keys, placeholder: placeholder}
}

// RegisterHooks implements hook.Provider.
func (r *Redactor) RegisterHooks(p *hook.Pipeline) {
	p.OnBefore("redact", r.Before)
}

// Before masks every sensitive key, descending into objects and arrays.
func (r *Redactor) Before(_ context.Context, ev *hook.BeforeEvent) error {
	r.walk(ev.Invocation, nil, map[string]any(ev.Invocation.Arguments))
	return nil
}

// Sensitive reports whether key names a credential.
func (r *Redactor) Sensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range r.keys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func (r *Redactor) walk(inv *hook.Invocation, prefix []string, v any) {
	switch node := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			path := extend(prefix, k)
			if r.Sensitive(k) {
				inv.MaskPath(path, r.placeholder)
				continue
			}
			r.walk(inv, path, node[k])
		}
	case []any:
		for i, elem := range node {
			r.walk(inv, extend(prefix, strconv.Itoa(i)), elem)
		}
	}
}

func extend(prefix []string, seg string) []string {
	return append(append(make([]string, 0, len(prefix)+1), prefix...), seg)
}
