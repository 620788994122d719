package tool

// Registry holds the active descriptor per tool name.
// This is a repository interface - implementations are in infrastructure.
type Registry interface {
	// Register inserts or atomically replaces the descriptor for d.Name and
	// returns the stored copy carrying its new version.
	Register(d Descriptor) (Descriptor, error)

	// Lookup returns the latest fully registered descriptor or ErrNotFound.
	Lookup(name string) (Descriptor, error)

	// List returns a snapshot of all descriptors in registration order.
	List() []Descriptor

	// Names returns all registered tool names in registration order.
	Names() []string

	// Has checks if a tool is registered.
	Has(name string) bool

	// Unregister removes a tool. Removing an absent name is a no-op.
	Unregister(name string)
}
