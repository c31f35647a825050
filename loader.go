package devreload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Loader resolves a LoadSpec to an App, caching every manifest and source
// file it loads in its Registry.
type Loader struct {
	// Registry is the module cache shared with the supervisor
	Registry *Registry
	// SearchPath lists the directories module names are resolved against
	SearchPath []string
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithSearchPath appends directories to the module search path
func WithSearchPath(dirs ...string) LoaderOption {
	return func(l *Loader) {
		for _, dir := range dirs {
			l.addSearchDir(dir)
		}
	}
}

// NewLoader creates a Loader backed by reg
func NewLoader(reg *Registry, opts ...LoaderOption) *Loader {
	l := &Loader{Registry: reg}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves spec and returns the application it names.
//
// A file spec is always parsed again and registered under a fresh module name
// derived from the file name, and its directory plus the working directory
// join the search path. A module spec is served from the registry when cached.
// The entry manifest must carry the application marker.
func (l *Loader) Load(spec LoadSpec) (*App, error) {
	var (
		mod *Module
		err error
	)

	switch spec.Kind {
	case SourceFile:
		l.addSearchDir(filepath.Dir(spec.Path))
		if cwd, werr := os.Getwd(); werr == nil {
			l.addSearchDir(cwd)
		}
		mod, err = l.loadFile(spec.Path, fileModuleName(spec.Path), true)
	case SourceModule:
		mod, err = l.loadModule(spec.Name)
	default:
		err = ErrNoSource
	}
	if err != nil {
		return nil, &LoadError{Spec: spec, Path: spec.Path, Err: err}
	}

	if !mod.Manifest.IsApplication() {
		return nil, &LoadError{Spec: spec, Path: mod.File, Err: ErrNotAnApplication}
	}

	app := &App{
		Module:   mod,
		Manifest: mod.Manifest,
		serve:    mod.Manifest.Serve,
		serveDir: mod.Manifest.Dir(),
		commands: NewCommandRegistry(),
	}
	l.linkCommands(app.commands, mod, make(map[string]bool))

	return app, nil
}

// linkCommands registers the commands of mod's imports depth-first, then mod's
// own, so an importing manifest overrides what it imports
func (l *Loader) linkCommands(reg *CommandRegistry, mod *Module, seen map[string]bool) {
	if seen[mod.Name] || mod.Manifest == nil {
		return
	}
	seen[mod.Name] = true

	for _, name := range mod.imports {
		if dep, ok := l.Registry.Get(name); ok {
			l.linkCommands(reg, dep, seen)
		}
	}
	for name, spec := range mod.Manifest.Commands {
		reg.Register(Command{Name: name, Spec: spec, Dir: mod.Manifest.Dir()})
	}
}

// loadModule returns the cached module or resolves and parses it
func (l *Loader) loadModule(name string) (*Module, error) {
	if mod, ok := l.cached(name); ok {
		return mod, nil
	}

	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	return l.loadFile(path, name, false)
}

// cached returns a loaded manifest module. Baseline entries are never served
// from the cache: they survive eviction, so a manifest registered under a
// baseline name would otherwise never be parsed again.
func (l *Loader) cached(name string) (*Module, bool) {
	mod, ok := l.Registry.Get(name)
	if !ok || mod.Manifest == nil || l.Registry.InBaseline(name) {
		return nil, false
	}
	return mod, true
}

// loadFile parses the manifest at path and registers it under name. Unless
// fresh is set, a cached module with that name is returned instead.
func (l *Loader) loadFile(path, name string, fresh bool) (*Module, error) {
	if !fresh {
		if mod, ok := l.cached(name); ok {
			return mod, nil
		}
	}

	m, err := ParseManifest(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	mod := &Module{Name: name, File: m.Path, Manifest: m}
	// Registered before its imports so import cycles resolve from the cache.
	l.Registry.Add(mod)

	for _, ref := range m.Imports {
		dep, err := l.loadImport(m.Dir(), ref)
		if err != nil {
			return nil, fmt.Errorf("%s: import %q: %w", m.Path, ref, err)
		}
		mod.imports = append(mod.imports, dep.Name)
	}

	for _, pattern := range m.Sources {
		files, err := expandGlob(m.Dir(), pattern)
		if err != nil {
			return nil, fmt.Errorf("%s: sources %q: %w", m.Path, pattern, err)
		}
		for _, file := range files {
			l.Registry.Add(&Module{Name: SourceModulePrefix + file, File: file})
		}
	}

	return mod, nil
}

// loadImport loads ref either as a path relative to dir or as a module name
func (l *Loader) loadImport(dir, ref string) (*Module, error) {
	if !isManifestPath(ref) {
		return l.loadModule(ref)
	}

	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	path = filepath.Clean(path)
	return l.loadFile(path, path, false)
}

// resolve finds the manifest for a dotted module name on the search path
func (l *Loader) resolve(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return "", fmt.Errorf("%w: invalid module name %q", ErrModuleNotFound, name)
	}
	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/"))

	for _, dir := range l.SearchPath {
		for _, ext := range ManifestExtensions {
			candidate := filepath.Join(dir, rel+ext)
			if isRegularFile(candidate) {
				return candidate, nil
			}
		}
		candidate := filepath.Join(dir, rel, DefaultManifestName)
		if isRegularFile(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrModuleNotFound, name)
}

func (l *Loader) addSearchDir(dir string) {
	if dir == "" {
		return
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	for _, existing := range l.SearchPath {
		if existing == dir {
			return
		}
	}
	l.SearchPath = append(l.SearchPath, dir)
}

// fileModuleName derives the module name of an entry manifest from its file
// name, dropping every extension
func fileModuleName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
