package memory

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/felixgeelhaar/toolhost/domain/tool"
)

func newDescriptor(name, origin string) tool.Descriptor {
	return tool.NewBuilder(name).
		WithDescription("Mock " + name).
		Required("a", tool.TypeInteger, "").
		WithOrigin(origin).
		WithHandler(func(_ context.Context, args tool.Arguments) (any, error) {
			return args.Int("a"), nil
		}).
		MustBuild()
}

func TestNewToolRegistry(t *testing.T) {
	t.Parallel()

	registry := NewToolRegistry()
	if registry.Count() != 0 {
		t.Errorf("NewToolRegistry().Count() = %d, want 0", registry.Count())
	}
}

func TestToolRegistry_Register(t *testing.T) {
	t.Parallel()

	registry := NewToolRegistry()

	t.Run("assigns first version", func(t *testing.T) {
		stored, err := registry.Register(newDescriptor("add", "a.yaml"))
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if stored.Version != 1 {
			t.Errorf("Version = %d, want 1", stored.Version)
		}
	})

	t.Run("replacement bumps version", func(t *testing.T) {
		stored, err := registry.Register(newDescriptor("add", "b.yaml"))
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if stored.Version != 2 {
			t.Errorf("Version = %d, want 2", stored.Version)
		}
		got, _ := registry.Lookup("add")
		if got.Origin != "b.yaml" {
			t.Errorf("Lookup().Origin = %q, want b.yaml", got.Origin)
		}
		if registry.Count() != 1 {
			t.Errorf("Count() = %d, want 1", registry.Count())
		}
	})

	t.Run("rejects invalid descriptors", func(t *testing.T) {
		invalid := []tool.Descriptor{
			{Name: "no_handler"},
			{Name: "", Handler: newDescriptor("x", "").Handler},
			{
				Name:       "bad_schema",
				Handler:    newDescriptor("x", "").Handler,
				Parameters: tool.Params(tool.Parameter{Name: "a", Type: "complex"}),
			},
		}
		for _, d := range invalid {
			if _, err := registry.Register(d); !errors.Is(err, tool.ErrInvalidDescriptor) {
				t.Errorf("Register(%q) error = %v, want ErrInvalidDescriptor", d.Name, err)
			}
		}
		if registry.Count() != 1 {
			t.Errorf("Count() = %d, want 1 after rejected registrations", registry.Count())
		}
	})
}

func TestToolRegistry_Lookup(t *testing.T) {
	t.Parallel()

	registry := NewToolRegistry()
	_, _ = registry.Register(newDescriptor("my_tool", ""))

	got, err := registry.Lookup("my_tool")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.Name != "my_tool" || got.Handler == nil {
		t.Errorf("Lookup() = %+v", got)
	}

	if _, err := registry.Lookup("nonexistent"); !errors.Is(err, tool.ErrNotFound) {
		t.Errorf("Lookup() error = %v, want ErrNotFound", err)
	}
}

func TestToolRegistry_ReturnedCopiesAreIsolated(t *testing.T) {
	t.Parallel()

	registry := NewToolRegistry()
	stored, _ := registry.Register(newDescriptor("add", ""))
	stored.Parameters[0].Name = "mutated"

	got, _ := registry.Lookup("add")
	if got.Parameters[0].Name != "a" {
		t.Error("mutating a returned descriptor changed the registry")
	}
}

func TestToolRegistry_ListOrder(t *testing.T) {
	t.Parallel()

	registry := NewToolRegistry()
	for _, name := range []string{"tool1", "tool2", "tool3"} {
		_, _ = registry.Register(newDescriptor(name, ""))
	}
	// Replacement keeps position; re-registration after removal appends.
	_, _ = registry.Register(newDescriptor("tool1", "v2"))
	registry.Unregister("tool2")
	_, _ = registry.Register(newDescriptor("tool2", ""))

	if want := []string{"tool1", "tool3", "tool2"}; !reflect.DeepEqual(registry.Names(), want) {
		t.Errorf("Names() = %v, want %v", registry.Names(), want)
	}
	list := registry.List()
	if len(list) != 3 || list[0].Origin != "v2" {
		t.Errorf("List() = %+v", list)
	}
}

func TestToolRegistry_Unregister(t *testing.T) {
	t.Parallel()

	registry := NewToolRegistry()
	_, _ = registry.Register(newDescriptor("to_remove", ""))

	registry.Unregister("to_remove")
	if registry.Has("to_remove") {
		t.Error("tool still exists after Unregister()")
	}
	registry.Unregister("nonexistent")
}

func TestToolRegistry_RoundTrip(t *testing.T) {
	t.Parallel()

	registry := NewToolRegistry()
	first, _ := registry.Register(newDescriptor("add", ""))
	registry.Unregister("add")
	if _, err := registry.Lookup("add"); !errors.Is(err, tool.ErrNotFound) {
		t.Fatalf("Lookup() after Unregister error = %v", err)
	}

	second, err := registry.Register(newDescriptor("add", ""))
	if err != nil {
		t.Fatalf("re-Register() error = %v", err)
	}
	if second.Version <= first.Version {
		t.Errorf("re-registered version %d should exceed %d", second.Version, first.Version)
	}
	got, err := registry.Lookup("add")
	if err != nil || got.Version != second.Version {
		t.Errorf("Lookup() = %+v, %v", got, err)
	}
}

func TestToolRegistry_UnregisterIf(t *testing.T) {
	t.Parallel()

	registry := NewToolRegistry()
	_, _ = registry.Register(newDescriptor("add", "tools/add.yaml"))

	fromOther := func(d tool.Descriptor) bool { return d.Origin == "tools/other.yaml" }
	if registry.UnregisterIf("add", fromOther) {
		t.Error("UnregisterIf() removed a descriptor from another origin")
	}
	fromAdd := func(d tool.Descriptor) bool { return d.Origin == "tools/add.yaml" }
	if !registry.UnregisterIf("add", fromAdd) {
		t.Error("UnregisterIf() did not remove matching descriptor")
	}
	if registry.UnregisterIf("add", fromAdd) {
		t.Error("UnregisterIf() on absent name should report false")
	}
}

func TestToolRegistry_Clear(t *testing.T) {
	t.Parallel()

	registry := NewToolRegistry()
	_, _ = registry.Register(newDescriptor("tool1", ""))
	registry.Clear()

	if registry.Count() != 0 {
		t.Errorf("Count() after Clear() = %d, want 0", registry.Count())
	}
	stored, _ := registry.Register(newDescriptor("tool1", ""))
	if stored.Version != 2 {
		t.Errorf("Version after Clear() = %d, want 2", stored.Version)
	}
}

func TestToolRegistry_Concurrency(t *testing.T) {
	t.Parallel()

	registry := NewToolRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(n int) {
			defer wg.Done()
			_, _ = registry.Register(newDescriptor("shared", fmt.Sprintf("v%d", n)))
		}(i)
		go func() {
			defer wg.Done()
			if d, err := registry.Lookup("shared"); err == nil && d.Handler == nil {
				t.Error("Lookup() observed a half-written descriptor")
			}
		}()
		go func() {
			defer wg.Done()
			_ = registry.List()
		}()
	}
	wg.Wait()

	got, err := registry.Lookup("shared")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.Version != 50 {
		t.Errorf("Version = %d, want 50 after 50 registrations", got.Version)
	}
}
