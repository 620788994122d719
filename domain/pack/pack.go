// Package pack provides types for built-in tool collections.
package pack

import (
	"context"
	"fmt"
	"slices"

	"github.com/felixgeelhaar/toolhost/domain/tool"
)

// Pack is a named collection of code-registered tools.
type Pack struct {
	// Name is the unique identifier for the pack.
	Name string

	// Description explains what the pack provides.
	Description string

	// Version is the semantic version of the pack.
	Version string

	// Tools is the collection of tools in this pack.
	Tools []tool.Descriptor

	// Dependencies lists other packs this pack depends on.
	Dependencies []string

	// Metadata holds additional pack information.
	Metadata map[string]string
}

// Origin returns the origin recorded on the pack's descriptors.
func (p *Pack) Origin() string {
	return tool.BuiltinOriginPrefix + p.Name
}

// ToolNames returns the names of all tools in the pack.
func (p *Pack) ToolNames() []string {
	names := make([]string, len(p.Tools))
	for i, t := range p.Tools {
		names[i] = t.Name
	}
	return names
}

// GetTool returns a tool by name from the pack.
func (p *Pack) GetTool(name string) (tool.Descriptor, bool) {
	for _, t := range p.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return tool.Descriptor{}, false
}

// Select returns the tools kept by an enabled/disabled filter. An empty
// enabled list keeps every tool; disabled always wins. Names that match
// no tool in the pack are reported as an error.
func (p *Pack) Select(enabled, disabled []string) ([]tool.Descriptor, error) {
	for _, name := range append(slices.Clone(enabled), disabled...) {
		if _, ok := p.GetTool(name); !ok {
			return nil, fmt.Errorf("%w: pack %s has no tool %q", ErrInvalidPack, p.Name, name)
		}
	}

	selected := make([]tool.Descriptor, 0, len(p.Tools))
	for _, t := range p.Tools {
		if len(enabled) > 0 && !slices.Contains(enabled, t.Name) {
			continue
		}
		if slices.Contains(disabled, t.Name) {
			continue
		}
		selected = append(selected, t)
	}
	return selected, nil
}

// Validate checks the pack and every tool in it.
func (p *Pack) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidPack)
	}
	seen := make(map[string]bool, len(p.Tools))
	for _, t := range p.Tools {
		if seen[t.Name] {
			return fmt.Errorf("%w: %s declares %s twice", ErrInvalidPack, p.Name, t.Name)
		}
		seen[t.Name] = true
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidPack, p.Name, err)
		}
	}
	return nil
}

// Env is what a pack factory may use from the running host.
type Env struct {
	// ToolsDir is the watched tool source directory.
	ToolsDir string

	// Registry is the live tool registry.
	Registry tool.Registry

	// Reload runs a source pass scoped to name and returns the LoadError
	// recorded for it, if any.
	Reload func(ctx context.Context, name string) error

	// Config is the pack-specific configuration.
	Config map[string]any
}

// String returns a string config value or def.
func (e Env) String(key, def string) string {
	if v, ok := e.Config[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Factory builds a pack for a host.
type Factory func(env Env) (*Pack, error)

// Builder provides a fluent API for constructing packs.
type Builder struct {
	pack *Pack
}

// NewBuilder creates a new pack builder.
func NewBuilder(name string) *Builder {
	return &Builder{
		pack: &Pack{
			Name:     name,
			Tools:    make([]tool.Descriptor, 0),
			Metadata: make(map[string]string),
		},
	}
}

// WithDescription sets the pack description.
func (b *Builder) WithDescription(desc string) *Builder {
	b.pack.Description = desc
	return b
}

// WithVersion sets the pack version.
func (b *Builder) WithVersion(version string) *Builder {
	b.pack.Version = version
	return b
}

// AddTool adds a tool to the pack.
func (b *Builder) AddTool(t tool.Descriptor) *Builder {
	b.pack.Tools = append(b.pack.Tools, t)
	return b
}

// AddTools adds multiple tools to the pack.
func (b *Builder) AddTools(tools ...tool.Descriptor) *Builder {
	b.pack.Tools = append(b.pack.Tools, tools...)
	return b
}

// WithDependency adds a pack dependency.
func (b *Builder) WithDependency(packName string) *Builder {
	b.pack.Dependencies = append(b.pack.Dependencies, packName)
	return b
}

// WithMetadata adds metadata to the pack.
func (b *Builder) WithMetadata(key, value string) *Builder {
	b.pack.Metadata[key] = value
	return b
}

// Build creates the pack. Every tool is stamped with the pack origin.
func (b *Builder) Build() *Pack {
	origin := b.pack.Origin()
	for i := range b.pack.Tools {
		b.pack.Tools[i].Origin = origin
	}
	return b.pack
}
