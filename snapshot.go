package devreload

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ArtifactSuffixes maps compiled-artifact extensions to the source extension
// they were produced from. Snapshot watches the source, not the artifact.
var ArtifactSuffixes = map[string]string{
	".pyc":   ".py",
	".pyo":   ".py",
	".class": ".java",
}

// WatchSet maps absolute file paths to the modification time observed when the
// set was built
type WatchSet map[string]time.Time

// Paths returns the watched paths in sorted order
func (ws WatchSet) Paths() []string {
	paths := make([]string, 0, len(ws))
	for p := range ws {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Dirs returns the distinct parent directories of the watched paths in sorted order
func (ws WatchSet) Dirs() []string {
	seen := make(map[string]struct{})
	var dirs []string
	for p := range ws {
		dir := filepath.Dir(p)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// SourcePath returns the source file path for path, rewriting a known
// compiled-artifact extension to its source extension
func SourcePath(path string) string {
	ext := filepath.Ext(path)
	if src, ok := ArtifactSuffixes[strings.ToLower(ext)]; ok {
		return strings.TrimSuffix(path, ext) + src
	}
	return path
}

// Snapshot builds a WatchSet from the backing files of modules. Paths are
// normalised with SourcePath and kept only if they exist as files right now.
func Snapshot(modules []*Module) WatchSet {
	ws := make(WatchSet, len(modules))
	for _, m := range modules {
		if m == nil || m.File == "" {
			continue
		}
		path := SourcePath(m.File)
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		ws[path] = info.ModTime()
	}
	return ws
}
