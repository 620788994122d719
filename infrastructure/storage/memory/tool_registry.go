// Package memory provides in-memory storage implementations.
package memory

import (
	"fmt"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/felixgeelhaar/toolhost/domain/tool"
)

// ToolRegistry is an in-memory implementation of tool.Registry. Lookups
// take a read lock only long enough to copy a descriptor value out, so a
// concurrent replace is seen either wholly or not at all.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools *orderedmap.OrderedMap[string, tool.Descriptor]
	// versions outlives unregister so a re-registered name never reuses a token.
	versions map[string]uint64
}

// NewToolRegistry creates a new in-memory tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:    orderedmap.New[string, tool.Descriptor](),
		versions: make(map[string]uint64),
	}
}

// Register inserts or replaces the descriptor for d.Name. A replaced name
// keeps its position in List; the stored copy gets the next version.
func (r *ToolRegistry) Register(d tool.Descriptor) (tool.Descriptor, error) {
	if err := d.Validate(); err != nil {
		return tool.Descriptor{}, err
	}
	stored := d.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.versions[stored.Name]++
	stored.Version = r.versions[stored.Name]
	r.tools.Set(stored.Name, stored)

	return stored.Clone(), nil
}

// Lookup retrieves the active descriptor for name.
func (r *ToolRegistry) Lookup(name string) (tool.Descriptor, error) {
	r.mu.RLock()
	d, ok := r.tools.Get(name)
	r.mu.RUnlock()

	if !ok {
		return tool.Descriptor{}, fmt.Errorf("%w: %s", tool.ErrNotFound, name)
	}
	if d.Name != name {
		panic(fmt.Sprintf("tool registry corrupted: key %q holds descriptor %q", name, d.Name))
	}
	return d.Clone(), nil
}

// List returns all registered tools in registration order.
func (r *ToolRegistry) List() []tool.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]tool.Descriptor, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		tools = append(tools, pair.Value.Clone())
	}
	return tools
}

// Names returns all registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Has checks if a tool is registered.
func (r *ToolRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools.Get(name)
	return ok
}

// Unregister removes a tool from the registry. Absent names are ignored.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools.Delete(name)
}

// UnregisterIf removes name only while the active descriptor satisfies
// match. It reports whether a descriptor was removed.
func (r *ToolRegistry) UnregisterIf(name string, match func(tool.Descriptor) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.tools.Get(name)
	if !ok || !match(d) {
		return false
	}
	r.tools.Delete(name)
	return true
}

// Clear removes all tools from the registry. Version history is kept.
func (r *ToolRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = orderedmap.New[string, tool.Descriptor]()
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools.Len()
}

var _ tool.Registry = (*ToolRegistry)(nil)
