// Package hook provides the ordered before/after/failure callback pipeline
// that observes and shapes tool invocations.
package hook

import (
	"strconv"
	"time"

	"github.com/felixgeelhaar/toolhost/domain/tool"
)

// Phase identifies when a hook runs relative to the handler.
type Phase string

const (
	PhaseBefore  Phase = "before-invocation"
	PhaseAfter   Phase = "after-invocation"
	PhaseFailure Phase = "on-failure"
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p == PhaseBefore || p == PhaseAfter || p == PhaseFailure
}

// Invocation is the ephemeral record of one dispatch. It lives from
// dispatch start until the after or failure phase completes.
type Invocation struct {
	ID          string
	Tool        string
	Version     uint64
	Annotations tool.Annotations
	Caller      string
	StartedAt   time.Time

	// Arguments is what hooks observe. Before hooks may rewrite it; a
	// rewrite is what the handler receives, except for masked values.
	Arguments tool.Arguments

	masks []mask
}

type mask struct {
	path     []string
	original any
}

// NewInvocation starts a record for validated arguments.
func NewInvocation(id string, d tool.Descriptor, args tool.Arguments, caller string) *Invocation {
	return &Invocation{
		ID:          id,
		Tool:        d.Name,
		Version:     d.Version,
		Annotations: d.Annotations,
		Caller:      caller,
		StartedAt:   time.Now(),
		Arguments:   args.Clone(),
	}
}

// Mask substitutes the value at key with placeholder. Hooks running later
// and all after/failure observers see the placeholder; the handler still
// receives the original value. The key is never removed.
func (inv *Invocation) Mask(key, placeholder string) bool {
	return inv.MaskPath([]string{key}, placeholder)
}

// MaskPath masks a value nested inside object or array arguments. Each
// segment is an object key, or a decimal index when the parent is an
// array, so ["devices", "0", "password"] addresses the password of the
// first device.
func (inv *Invocation) MaskPath(path []string, placeholder string) bool {
	if len(path) == 0 {
		return false
	}
	parent, ok := walkPath(map[string]any(inv.Arguments), path[:len(path)-1])
	if !ok {
		return false
	}
	leaf := path[len(path)-1]
	current, ok := child(parent, leaf)
	if !ok {
		return false
	}
	if !inv.isMasked(path) {
		inv.masks = append(inv.masks, mask{path: append([]string(nil), path...), original: current})
	}
	return setChild(parent, leaf, placeholder)
}

// Masked reports whether any value has been masked.
func (inv *Invocation) Masked() bool {
	return len(inv.masks) > 0
}

func (inv *Invocation) isMasked(path []string) bool {
	for _, m := range inv.masks {
		if equalPath(m.path, path) {
			return true
		}
	}
	return false
}

// HandlerArguments returns the arguments to hand to the handler: the
// current (possibly rewritten) map with masked values restored.
func (inv *Invocation) HandlerArguments() tool.Arguments {
	args := inv.Arguments.Clone()
	if args == nil {
		args = tool.Arguments{}
	}
	for _, m := range inv.masks {
		parent, ok := walkPath(map[string]any(args), m.path[:len(m.path)-1])
		if !ok {
			continue
		}
		leaf := m.path[len(m.path)-1]
		if _, present := child(parent, leaf); present {
			setChild(parent, leaf, m.original)
		}
	}
	return args
}

// Snapshot returns an observe-only copy for after and failure hooks.
func (inv *Invocation) Snapshot() Invocation {
	return Invocation{
		ID:          inv.ID,
		Tool:        inv.Tool,
		Version:     inv.Version,
		Annotations: inv.Annotations,
		Caller:      inv.Caller,
		StartedAt:   inv.StartedAt,
		Arguments:   inv.Arguments.Clone(),
	}
}

// walkPath follows path from root through objects and arrays.
func walkPath(root any, path []string) (any, bool) {
	current := root
	for _, seg := range path {
		next, ok := child(current, seg)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func child(container any, seg string) (any, bool) {
	switch c := container.(type) {
	case map[string]any:
		v, ok := c[seg]
		return v, ok
	case tool.Arguments:
		v, ok := c[seg]
		return v, ok
	case []any:
		i, ok := index(c, seg)
		if !ok {
			return nil, false
		}
		return c[i], true
	default:
		return nil, false
	}
}

func setChild(container any, seg string, v any) bool {
	switch c := container.(type) {
	case map[string]any:
		c[seg] = v
	case tool.Arguments:
		c[seg] = v
	case []any:
		i, ok := index(c, seg)
		if !ok {
			return false
		}
		c[i] = v
	default:
		return false
	}
	return true
}

func index(s []any, seg string) (int, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || i >= len(s) {
		return 0, false
	}
	return i, true
}

func equalPath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
