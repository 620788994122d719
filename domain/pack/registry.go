package pack

import "github.com/felixgeelhaar/toolhost/domain/tool"

// Selection filters the tools of a pack at install time.
type Selection struct {
	// Enabled lists the tools to install (empty = all).
	Enabled []string
	// Disabled lists tools to skip.
	Disabled []string
}

// Registry manages a collection of packs.
type Registry interface {
	// Register adds a pack to the registry.
	Register(pack *Pack) error

	// Get retrieves a pack by name.
	Get(name string) (*Pack, bool)

	// List returns all registered packs.
	List() []*Pack

	// Unregister removes a pack from the registry.
	Unregister(name string) error

	// Install registers the selected tools of a pack, and of the packs it
	// depends on, into a tool registry. It returns the installed names.
	Install(name string, toolReg tool.Registry, sel Selection) ([]string, error)
}
