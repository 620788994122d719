package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/felixgeelhaar/toolhost/domain/tool"
	infraconfig "github.com/felixgeelhaar/toolhost/infrastructure/config"
	"github.com/felixgeelhaar/toolhost/infrastructure/logging"
)

// Registry is the registry surface a Loader maintains.
type Registry interface {
	tool.Registry
	UnregisterIf(name string, match func(tool.Descriptor) bool) bool
}

// Report summarizes one pass over the tools directory.
type Report struct {
	// Loaded holds descriptors registered in this pass, as stored.
	Loaded []tool.Descriptor
	// Unchanged counts sources whose fingerprint matched the previous pass.
	Unchanged int
	// Removed names tools unregistered because their source disappeared.
	Removed []string
	// Errors holds a LoadError for every source currently failing to load.
	Errors []*tool.LoadError
	// Failed holds the LoadErrors raised by this pass; sources still
	// failing with unchanged content are not repeated.
	Failed []*tool.LoadError
}

// Changed reports whether the pass altered the registry.
func (r Report) Changed() bool {
	return len(r.Loaded) > 0 || len(r.Removed) > 0
}

// entry is what the loader remembers about one source file.
type entry struct {
	fingerprint string
	name        string
	err         *tool.LoadError
}

// Loader scans a directory of manifests and keeps the registry in step.
// Passes are serialized; handlers and dispatches never hold its lock.
type Loader struct {
	dir      string
	registry Registry
	compiler *Compiler

	mu      sync.Mutex
	entries map[string]*entry
}

// NewLoader creates a loader for dir.
func NewLoader(dir string, registry Registry, compiler *Compiler) *Loader {
	return &Loader{
		dir:      dir,
		registry: registry,
		compiler: compiler,
		entries:  make(map[string]*entry),
	}
}

// Dir returns the watched directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Scan runs one pass. Individual sources that fail to load are reported
// in Report.Errors and never abort the pass; the returned error is only
// set when the directory itself cannot be read.
func (l *Loader) Scan(ctx context.Context) (Report, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var report Report
	paths, err := l.list()
	if err != nil {
		return report, err
	}

	present := make(map[string]bool, len(paths))
	for _, path := range paths {
		present[path] = true
	}
	for path, e := range l.entries {
		if present[path] {
			continue
		}
		delete(l.entries, path)
		if e.name == "" {
			continue
		}
		origin := path
		if l.registry.UnregisterIf(e.name, func(d tool.Descriptor) bool { return d.Origin == origin }) {
			report.Removed = append(report.Removed, e.name)
			l.unshadow(e.name)
			logging.Info().
				Add(logging.ToolName(e.name)).
				Add(logging.Origin(path)).
				Msg("tool source removed")
		}
	}

	claimed := make(map[string]string)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		l.load(ctx, path, claimed, &report)
	}
	sort.Strings(report.Removed)

	for _, path := range paths {
		if e := l.entries[path]; e != nil && e.err != nil {
			report.Errors = append(report.Errors, e.err)
		}
	}
	return report, nil
}

// Resolve runs a pass on behalf of a dispatch that could not find name
// and returns the LoadError recorded for it, if any.
func (l *Loader) Resolve(ctx context.Context, name string) error {
	if _, err := l.Scan(ctx); err != nil {
		return err
	}
	if lerr := l.ErrorFor(name); lerr != nil {
		return lerr
	}
	return nil
}

// ErrorFor returns the LoadError of the source that declares name (or,
// when the name could not be read, whose file stem is name).
func (l *Loader) ErrorFor(name string) *tool.LoadError {
	l.mu.Lock()
	defer l.mu.Unlock()

	paths := make([]string, 0, len(l.entries))
	for path := range l.entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		e := l.entries[path]
		if e.err == nil {
			continue
		}
		if e.err.Name == name || (e.err.Name == "" && stem(path) == name) {
			return e.err
		}
	}
	return nil
}

// Errors returns the LoadErrors of all currently failing sources.
func (l *Loader) Errors() []*tool.LoadError {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []*tool.LoadError
	for _, e := range l.entries {
		if e.err != nil {
			errs = append(errs, e.err)
		}
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Origin < errs[j].Origin })
	return errs
}

func (l *Loader) list() ([]string, error) {
	dirents, err := os.ReadDir(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, de := range dirents {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		path := filepath.Join(l.dir, de.Name())
		if IsManifest(path) {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func (l *Loader) load(ctx context.Context, path string, claimed map[string]string, report *Report) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the configured tools directory
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		l.fail(path, &tool.LoadError{Origin: path, Cause: err}, report)
		return
	}

	prev := l.entries[path]
	fp := fingerprintSource(data, artifactPath(data, path))
	if prev != nil && prev.fingerprint == fp {
		report.Unchanged++
		if prev.name != "" {
			claimed[prev.name] = path
		}
		return
	}

	d, err := l.compiler.CompileBytes(ctx, path, data)
	if err != nil {
		var lerr *tool.LoadError
		if !errors.As(err, &lerr) {
			lerr = &tool.LoadError{Origin: path, Cause: err}
		}
		next := &entry{fingerprint: fp, err: lerr}
		if prev != nil {
			next.name = prev.name
		}
		l.entries[path] = next
		report.Failed = append(report.Failed, lerr)
		logging.Warn().
			Add(logging.Origin(path)).
			Add(logging.ToolName(lerr.Name)).
			Add(logging.ErrorField(lerr.Cause)).
			Msg("tool source failed to load")
		return
	}

	if other, ok := claimed[d.Name]; ok && other != path {
		logging.Warn().
			Add(logging.ToolName(d.Name)).
			Add(logging.Origin(path)).
			Add(logging.Str("shadowed", other)).
			Msg("tool declared by more than one source")
	}
	claimed[d.Name] = path

	stored, err := l.registry.Register(d)
	if err != nil {
		l.fail(path, &tool.LoadError{Origin: path, Name: d.Name, Cause: err}, report)
		return
	}
	if prev != nil && prev.name != "" && prev.name != d.Name {
		origin := path
		l.registry.UnregisterIf(prev.name, func(old tool.Descriptor) bool { return old.Origin == origin })
	}

	l.entries[path] = &entry{fingerprint: fp, name: d.Name}
	report.Loaded = append(report.Loaded, stored)
	logging.Info().
		Add(logging.ToolName(stored.Name)).
		Add(logging.Version(stored.Version)).
		Add(logging.Origin(path)).
		Msg("tool registered")
}

// unshadow forces other sources declaring name to load again, so removing
// the winning source of a duplicate exposes the one it shadowed.
func (l *Loader) unshadow(name string) {
	for _, e := range l.entries {
		if e.name == name && e.err == nil {
			e.fingerprint = ""
		}
	}
}

func (l *Loader) fail(path string, lerr *tool.LoadError, report *Report) {
	e := l.entries[path]
	if e == nil {
		e = &entry{}
		l.entries[path] = e
	}
	e.fingerprint = ""
	e.err = lerr
	report.Failed = append(report.Failed, lerr)
	logging.Warn().
		Add(logging.Origin(path)).
		Add(logging.ErrorField(lerr.Cause)).
		Msg("tool source failed to load")
}

// fingerprintSource hashes a manifest together with the module file it
// references, so rebuilding a WASM module counts as a change.
func fingerprintSource(manifest []byte, artifact string) string {
	if artifact == "" {
		return Fingerprint(manifest)
	}
	module, err := os.ReadFile(artifact) // #nosec G304 -- artifact path comes from a manifest in the tools directory
	if err != nil {
		module = []byte(err.Error())
	}
	return Fingerprint(manifest, module)
}

// artifactPath returns the WASM module a manifest references, resolved
// against the manifest directory, or "".
func artifactPath(data []byte, path string) string {
	var peek struct {
		Handler struct {
			Type string `json:"type" yaml:"type" toml:"type"`
			Path string `json:"path" yaml:"path" toml:"path"`
		} `json:"handler" yaml:"handler" toml:"handler"`
	}
	format, err := infraconfig.FormatFromPath(path)
	if err != nil || infraconfig.Decode(data, format, &peek) != nil {
		return ""
	}
	if peek.Handler.Type != "wasm" || peek.Handler.Path == "" {
		return ""
	}
	if filepath.IsAbs(peek.Handler.Path) {
		return peek.Handler.Path
	}
	return filepath.Join(filepath.Dir(path), peek.Handler.Path)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
