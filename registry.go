package devreload

import (
	"sort"
)

// Module is one entry of the loaded-module registry
type Module struct {
	// Name is the registry key: a module name, a fresh file module name, or
	// SourceModulePrefix followed by a source path
	Name string
	// File is the backing file, empty for modules without one
	File string
	// Manifest is set for manifest modules and nil for plain source files
	Manifest *Manifest

	// imports are the registry names of the modules this one imported
	imports []string
}

// Registry is the cache of loaded modules. Modules present when MarkBaseline
// is first called form the baseline and survive EvictNonBaseline; everything
// loaded afterwards is user state and is evicted before each reload.
//
// A Registry is not safe for concurrent use.
type Registry struct {
	modules  map[string]*Module
	baseline map[string]struct{}
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]*Module),
	}
}

// Add inserts or replaces a module
func (r *Registry) Add(m *Module) {
	r.modules[m.Name] = m
}

// Get returns the cached module with the given name
func (r *Registry) Get(name string) (*Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// Remove drops a module from the cache
func (r *Registry) Remove(name string) {
	delete(r.modules, name)
}

// Len returns the number of cached modules
func (r *Registry) Len() int {
	return len(r.modules)
}

// Modules returns all cached modules ordered by name
func (r *Registry) Modules() []*Module {
	out := make([]*Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// MarkBaseline records the current module names as the baseline. Only the
// first call has an effect; it reports whether this call recorded it.
func (r *Registry) MarkBaseline() bool {
	if r.baseline != nil {
		return false
	}
	r.baseline = make(map[string]struct{}, len(r.modules))
	for name := range r.modules {
		r.baseline[name] = struct{}{}
	}
	return true
}

// Baseline returns the baseline module names in sorted order
func (r *Registry) Baseline() []string {
	names := make([]string, 0, len(r.baseline))
	for name := range r.baseline {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InBaseline reports whether name was present when the baseline was recorded
func (r *Registry) InBaseline(name string) bool {
	_, ok := r.baseline[name]
	return ok
}

// EvictNonBaseline removes every module that is not part of the baseline and
// returns the evicted names in sorted order. Before MarkBaseline has been
// called the baseline is empty, so everything is evicted.
func (r *Registry) EvictNonBaseline() []string {
	var evicted []string
	for name := range r.modules {
		if _, ok := r.baseline[name]; ok {
			continue
		}
		delete(r.modules, name)
		evicted = append(evicted, name)
	}
	sort.Strings(evicted)
	return evicted
}
