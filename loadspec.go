package devreload

import (
	"fmt"
	"path/filepath"
)

// SourceKind selects how a LoadSpec names its entry point
type SourceKind int

const (
	// SourceFile names a manifest by file path
	SourceFile SourceKind = iota + 1
	// SourceModule names a manifest by dotted module name
	SourceModule
)

// String returns the string representation of a SourceKind
func (k SourceKind) String() string {
	switch k {
	case SourceFile:
		return "file"
	case SourceModule:
		return "module"
	default:
		return "unknown"
	}
}

// LoadSpec identifies the application entry point. It is fixed for the
// lifetime of a supervisor and re-resolved on every reload.
type LoadSpec struct {
	Kind SourceKind
	// Path is the manifest path for SourceFile specs
	Path string
	// Name is the dotted module name for SourceModule specs
	Name string
}

// FileSpec returns a LoadSpec for a manifest file
func FileSpec(path string) LoadSpec {
	return LoadSpec{Kind: SourceFile, Path: path}
}

// ModuleSpec returns a LoadSpec for a module name
func ModuleSpec(name string) LoadSpec {
	return LoadSpec{Kind: SourceModule, Name: name}
}

// ResolveLoadSpec builds a LoadSpec from the mutually exclusive file and
// module selectors.
func ResolveLoadSpec(file, module string) (LoadSpec, error) {
	switch {
	case file != "" && module != "":
		return LoadSpec{}, ErrBothSources
	case file != "":
		abs, err := filepath.Abs(file)
		if err != nil {
			return LoadSpec{}, fmt.Errorf("resolving manifest path: %w", err)
		}
		return FileSpec(abs), nil
	case module != "":
		return ModuleSpec(module), nil
	default:
		return LoadSpec{}, ErrNoSource
	}
}

// String returns a short description such as file "app.yaml"
func (s LoadSpec) String() string {
	switch s.Kind {
	case SourceFile:
		return fmt.Sprintf("file %q", s.Path)
	case SourceModule:
		return fmt.Sprintf("module %q", s.Name)
	default:
		return "unknown source"
	}
}
