// Package pack provides the pack registry implementation.
package pack

import (
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/toolhost/domain/pack"
	"github.com/felixgeelhaar/toolhost/domain/tool"
	"github.com/felixgeelhaar/toolhost/infrastructure/logging"
)

// Registry is an in-memory pack registry.
type Registry struct {
	packs map[string]*pack.Pack
	mu    sync.RWMutex
}

// NewRegistry creates a new pack registry.
func NewRegistry() *Registry {
	return &Registry{
		packs: make(map[string]*pack.Pack),
	}
}

// Register adds a pack to the registry.
func (r *Registry) Register(p *pack.Pack) error {
	if p == nil {
		return pack.ErrInvalidPack
	}
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.packs[p.Name]; exists {
		return fmt.Errorf("%w: %s", pack.ErrPackExists, p.Name)
	}

	r.packs[p.Name] = p
	return nil
}

// Get retrieves a pack by name.
func (r *Registry) Get(name string) (*pack.Pack, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.packs[name]
	return p, ok
}

// List returns all registered packs sorted by name.
func (r *Registry) List() []*pack.Pack {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*pack.Pack, 0, len(r.packs))
	for _, p := range r.packs {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Unregister removes a pack from the registry. Tools it already installed
// stay registered.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.packs[name]; !exists {
		return fmt.Errorf("%w: %s", pack.ErrPackNotFound, name)
	}

	delete(r.packs, name)
	return nil
}

// Install registers the selected tools of a pack. Dependencies are
// installed first and in full.
func (r *Registry) Install(name string, toolReg tool.Registry, sel pack.Selection) ([]string, error) {
	var installed []string
	err := r.install(name, toolReg, sel, map[string]bool{}, map[string]bool{}, &installed)
	return installed, err
}

func (r *Registry) install(name string, toolReg tool.Registry, sel pack.Selection, visiting, done map[string]bool, installed *[]string) error {
	if done[name] {
		return nil
	}
	if visiting[name] {
		return fmt.Errorf("%w: %s", pack.ErrCircularDependency, name)
	}

	p, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", pack.ErrPackNotFound, name)
	}

	visiting[name] = true
	for _, dep := range p.Dependencies {
		if _, found := r.Get(dep); !found {
			return fmt.Errorf("%w: %s requires %s", pack.ErrDependencyNotFound, name, dep)
		}
		if err := r.install(dep, toolReg, pack.Selection{}, visiting, done, installed); err != nil {
			return err
		}
	}
	visiting[name] = false

	tools, err := p.Select(sel.Enabled, sel.Disabled)
	if err != nil {
		return err
	}
	for _, t := range tools {
		stored, err := toolReg.Register(t)
		if err != nil {
			return err
		}
		*installed = append(*installed, stored.Name)
		logging.Debug().
			Add(logging.ToolName(stored.Name)).
			Add(logging.Version(stored.Version)).
			Add(logging.Origin(stored.Origin)).
			Msg("pack tool registered")
	}
	done[name] = true
	return nil
}

// Len returns the number of registered packs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.packs)
}

// Ensure Registry implements pack.Registry
var _ pack.Registry = (*Registry)(nil)
