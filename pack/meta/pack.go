// Package meta provides tools that manage tool sources, letting a
// model-driven loop extend the host it runs on.
package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/toolhost/domain/pack"
	"github.com/felixgeelhaar/toolhost/domain/tool"
)

// Name is the pack name.
const Name = "meta"

// ErrNoToolsDir is returned when the host has no tools directory.
var ErrNoToolsDir = errors.New("no tools directory configured")

var extensions = []string{".json", ".yaml", ".yml", ".toml"}

type tools struct {
	env pack.Env
}

// New creates the meta pack. It needs a tools directory and registry.
func New(env pack.Env) (*pack.Pack, error) {
	if env.Registry == nil {
		return nil, fmt.Errorf("%w: meta pack requires a registry", pack.ErrInvalidPack)
	}
	t := &tools{env: env}
	return pack.NewBuilder(Name).
		WithDescription("Manage tool sources").
		WithVersion("1.0.0").
		AddTools(
			t.writeTool(),
			t.listTool(),
			t.removeTool(),
		).
		Build(), nil
}

// WriteResult is the output of tool_write.
type WriteResult struct {
	Path    string `json:"path"`
	Loaded  bool   `json:"loaded"`
	Version uint64 `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (t *tools) writeTool() tool.Descriptor {
	return tool.NewBuilder("tool_write").
		WithDescription("Write a tool manifest into the tools directory and load it").
		Required("name", tool.TypeString, "Tool name; also the file name").
		Required("manifest", tool.TypeObject, "Manifest with description, parameters, annotations and handler").
		Optional("format", tool.TypeString, "json", "File format: json or yaml").
		WithRiskLevel(tool.RiskMedium).
		WithHandler(t.write).
		MustBuild()
}

func (t *tools) write(ctx context.Context, args tool.Arguments) (any, error) {
	name := args.String("name")
	if !tool.ValidName(name) {
		return nil, fmt.Errorf("invalid tool name %q", name)
	}
	if t.env.ToolsDir == "" {
		return nil, ErrNoToolsDir
	}

	manifest := maps.Clone(args.Map("manifest"))
	if manifest == nil {
		manifest = make(map[string]any)
	}
	if declared, ok := manifest["name"].(string); ok && declared != name {
		return nil, fmt.Errorf("manifest declares %q, not %q", declared, name)
	}
	manifest["name"] = name

	var (
		data []byte
		ext  string
		err  error
	)
	switch format := strings.ToLower(args.String("format")); format {
	case "json":
		ext = ".json"
		data, err = json.MarshalIndent(manifest, "", "  ")
	case "yaml", "yml":
		ext = ".yaml"
		data, err = yaml.Marshal(manifest)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	path := filepath.Join(t.env.ToolsDir, name+ext)
	if err := writeAtomic(path, data); err != nil {
		return nil, err
	}
	for _, other := range extensions {
		if other != ext {
			_ = os.Remove(filepath.Join(t.env.ToolsDir, name+other))
		}
	}

	result := WriteResult{Path: path}
	if err := t.reload(ctx, name); err != nil {
		result.Error = err.Error()
		return result, nil
	}
	if d, err := t.env.Registry.Lookup(name); err == nil && d.Origin == path {
		result.Loaded = true
		result.Version = d.Version
	}
	return result, nil
}

// Entry is one row of tool_list.
type Entry struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     uint64 `json:"version"`
	Origin      string `json:"origin"`
	ReadOnly    bool   `json:"read_only,omitempty"`
	Destructive bool   `json:"destructive,omitempty"`
}

func (t *tools) listTool() tool.Descriptor {
	return tool.NewBuilder("tool_list").
		WithDescription("List registered tools").
		Optional("prefix", tool.TypeString, nil, "Only list tools whose name starts with prefix").
		ReadOnly().
		WithHandler(func(_ context.Context, args tool.Arguments) (any, error) {
			prefix := args.String("prefix")
			entries := make([]Entry, 0)
			for _, d := range t.env.Registry.List() {
				if !strings.HasPrefix(d.Name, prefix) {
					continue
				}
				entries = append(entries, Entry{
					Name:        d.Name,
					Description: d.Description,
					Version:     d.Version,
					Origin:      d.Origin,
					ReadOnly:    d.Annotations.ReadOnly,
					Destructive: d.Annotations.Destructive,
				})
			}
			return entries, nil
		}).
		MustBuild()
}

// RemoveResult is the output of tool_remove.
type RemoveResult struct {
	Removed    []string `json:"removed"`
	Registered bool     `json:"registered"`
}

func (t *tools) removeTool() tool.Descriptor {
	return tool.NewBuilder("tool_remove").
		WithDescription("Delete a tool's source file and unload it").
		Required("name", tool.TypeString, "Tool name").
		Destructive().
		WithHandler(t.remove).
		MustBuild()
}

func (t *tools) remove(ctx context.Context, args tool.Arguments) (any, error) {
	name := args.String("name")
	if !tool.ValidName(name) {
		return nil, fmt.Errorf("invalid tool name %q", name)
	}
	if t.env.ToolsDir == "" {
		return nil, ErrNoToolsDir
	}

	paths, err := t.sources(name)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no source file for %s", tool.ErrNotFound, name)
	}

	result := RemoveResult{Removed: make([]string, 0, len(paths))}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove %s: %w", path, err)
		}
		result.Removed = append(result.Removed, path)
	}

	// The pass unregisters the tool; a LoadError for it no longer applies.
	_ = t.reload(ctx, name)
	result.Registered = t.env.Registry.Has(name)
	return result, nil
}

// sources returns the files in the tools directory that define name: the
// origin of the registered descriptor plus any file whose stem is name.
func (t *tools) sources(name string) ([]string, error) {
	var paths []string
	if d, err := t.env.Registry.Lookup(name); err == nil {
		if !within(t.env.ToolsDir, d.Origin) {
			return nil, fmt.Errorf("%s is not defined by a tool source (origin %s)", name, d.Origin)
		}
		paths = append(paths, d.Origin)
	}
	for _, ext := range extensions {
		path := filepath.Join(t.env.ToolsDir, name+ext)
		if _, err := os.Stat(path); err == nil && !slices.Contains(paths, path) {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func (t *tools) reload(ctx context.Context, name string) error {
	if t.env.Reload == nil {
		return nil
	}
	return t.env.Reload(ctx, name)
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && filepath.IsLocal(rel)
}

// writeAtomic writes through a temp file so a concurrent pass never reads
// a partial manifest.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tool-*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
