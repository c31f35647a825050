package devreload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourcePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/src/app.py", "/src/app.py"},
		{"/src/app.pyc", "/src/app.py"},
		{"/src/app.pyo", "/src/app.py"},
		{"/src/Main.class", "/src/Main.java"},
		{"/src/app.go", "/src/app.go"},
		{"/src/Makefile", "/src/Makefile"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SourcePath(tt.in), tt.in)
	}
}

func TestSnapshot(t *testing.T) {
	dir := t.TempDir()
	app := writeFile(t, dir, "app.yaml", "app: api\n")
	src := writeFile(t, dir, "handler.py", "print()\n")
	missing := filepath.Join(dir, "gone.go")

	ws := Snapshot([]*Module{
		{Name: "app", File: app},
		{Name: "compiled", File: filepath.Join(dir, "handler.pyc")},
		{Name: "missing", File: missing},
		{Name: "builtin"},
		{Name: "dir", File: dir},
		nil,
	})

	assert.Equal(t, []string{app, src}, ws.Paths())
	assert.Equal(t, []string{dir}, ws.Dirs())

	info, err := os.Stat(app)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), ws[app])
}

func TestSnapshotDeduplicates(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "Main.java", "class Main {}\n")

	ws := Snapshot([]*Module{
		{Name: "source", File: src},
		{Name: "class", File: filepath.Join(dir, "Main.class")},
	})
	assert.Len(t, ws, 1)
}

func TestExpandGlob(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "")
	b := writeFile(t, dir, "pkg/b.go", "")
	c := writeFile(t, dir, "pkg/deep/c.go", "")
	writeFile(t, dir, "pkg/deep/c.txt", "")
	writeFile(t, dir, ".git/d.go", "")

	got, err := expandGlob(dir, "*.go")
	require.NoError(t, err)
	assert.Equal(t, []string{a}, got)

	got, err = expandGlob(dir, "**/*.go")
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, c}, got)

	got, err = expandGlob(dir, "pkg/**/*.go")
	require.NoError(t, err)
	assert.Equal(t, []string{b, c}, got)

	got, err = expandGlob(dir, "missing/**/*.go")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = expandGlob(dir, "[")
	assert.Error(t, err)
}
