package devreload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Argv is a command line. In a manifest it is written either as a list of
// arguments or as a single string, which runs through /bin/sh -c.
type Argv []string

// UnmarshalYAML accepts a scalar or a sequence
func (a *Argv) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*a = shellArgv(s)
		return nil
	case yaml.SequenceNode:
		var args []string
		if err := value.Decode(&args); err != nil {
			return err
		}
		*a = args
		return nil
	default:
		return fmt.Errorf("line %d: command must be a string or a list", value.Line)
	}
}

// UnmarshalTOML accepts a string or an array of strings
func (a *Argv) UnmarshalTOML(v any) error {
	switch t := v.(type) {
	case string:
		*a = shellArgv(t)
		return nil
	case []any:
		args := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("command[%d]: expected string, got %T", i, item)
			}
			args = append(args, s)
		}
		*a = args
		return nil
	default:
		return fmt.Errorf("command must be a string or an array, got %T", v)
	}
}

func shellArgv(s string) Argv {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return Argv{"/bin/sh", "-c", s}
}

// ProcessSpec describes a process declared in a manifest
type ProcessSpec struct {
	// Command is the program and its arguments
	Command Argv `yaml:"command" toml:"command"`
	// Dir is the working directory, relative to the manifest
	Dir string `yaml:"dir,omitempty" toml:"dir,omitempty"`
	// Env holds extra environment variables
	Env map[string]string `yaml:"env,omitempty" toml:"env,omitempty"`
	// Help is a one-line description shown in command listings
	Help string `yaml:"help,omitempty" toml:"help,omitempty"`
}

// Manifest is a parsed application or library manifest
type Manifest struct {
	// App is the application marker; only manifests that set it can be served
	App string `yaml:"app,omitempty" toml:"app,omitempty"`
	// Serve is the long-running service entry point
	Serve ProcessSpec `yaml:"serve,omitempty" toml:"serve,omitempty"`
	// Imports names further manifests to load, by module name or relative path
	Imports []string `yaml:"imports,omitempty" toml:"imports,omitempty"`
	// Sources are glob patterns of files the service is built from
	Sources []string `yaml:"sources,omitempty" toml:"sources,omitempty"`
	// Commands is the registry of named one-shot commands
	Commands map[string]ProcessSpec `yaml:"commands,omitempty" toml:"commands,omitempty"`

	// Path is the absolute path the manifest was read from
	Path string `yaml:"-" toml:"-"`
}

// IsApplication reports whether the manifest carries the application marker
func (m *Manifest) IsApplication() bool {
	return m != nil && strings.TrimSpace(m.App) != ""
}

// Dir returns the directory containing the manifest
func (m *Manifest) Dir() string {
	return filepath.Dir(m.Path)
}

// ParseManifest reads and decodes the manifest at path. The format is chosen by
// extension; anything that is not .toml is decoded as YAML.
func ParseManifest(path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving manifest path: %w", err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}

	m := &Manifest{}
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".toml":
		if err := toml.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("decoding toml: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	}
	m.Path = abs

	return m, nil
}

// isManifestPath reports whether ref looks like a file path rather than a
// dotted module name
func isManifestPath(ref string) bool {
	if strings.ContainsRune(ref, '/') || strings.ContainsRune(ref, filepath.Separator) {
		return true
	}
	ext := strings.ToLower(filepath.Ext(ref))
	for _, known := range ManifestExtensions {
		if ext == known {
			return true
		}
	}
	return false
}
