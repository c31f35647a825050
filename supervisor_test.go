package devreload

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serveScript = `echo "serving on $PORT"; exec sleep 30`

type supervisorHarness struct {
	sup      *Supervisor
	children chan *Child
	done     chan struct{}
	err      error
	cancel   context.CancelFunc
	logs     *syncBuffer
	out      *syncBuffer
}

// writeApp lays out an application with one source file and returns the
// manifest and source paths
func writeApp(t *testing.T, dir string) (string, string) {
	t.Helper()
	src := writeFile(t, dir, "src/handler.go", "package handler\n")
	path := writeFile(t, dir, "app.yaml", manifest(
		"app: api",
		"serve:",
		"  command: '"+serveScript+"'",
		"sources:",
		"  - \"src/*.go\"",
	))
	return path, src
}

func startSupervisor(t *testing.T, spec LoadSpec, opts ...SupervisorOption) *supervisorHarness {
	t.Helper()
	requireShell(t)

	h := &supervisorHarness{
		children: make(chan *Child, 16),
		done:     make(chan struct{}),
		logs:     &syncBuffer{},
		out:      &syncBuffer{},
	}

	logger := slog.New(slog.NewTextHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	base := []SupervisorOption{
		WithPort(8765),
		WithPollInterval(20 * time.Millisecond),
		WithLogger(logger),
		WithRunner(NewRunner(
			WithGrace(time.Second),
			WithOutput(h.out, h.out),
			WithRunnerLogger(logger),
		)),
		WithOnStart(func(c *Child) { h.children <- c }),
	}
	h.sup = NewSupervisor(spec, append(base, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		h.err = h.sup.Run(ctx)
		close(h.done)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
		}
	})
	return h
}

func (h *supervisorHarness) nextChild(t *testing.T) *Child {
	t.Helper()
	select {
	case c := <-h.children:
		return c
	case <-h.done:
		t.Fatalf("supervisor exited: %v", h.err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a child")
	}
	return nil
}

func (h *supervisorHarness) wait(t *testing.T) error {
	t.Helper()
	select {
	case <-h.done:
		return h.err
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not return")
	}
	return nil
}

func TestSupervisorRestartsOnModification(t *testing.T) {
	dir := t.TempDir()
	path, src := writeApp(t, dir)

	metrics := NewMetrics()
	h := startSupervisor(t, FileSpec(path), WithMetrics(metrics))

	first := h.nextChild(t)
	require.Eventually(t, func() bool {
		return strings.Contains(h.out.String(), "serving on 8765")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateRunning, h.sup.State())

	touchLater(t, src)

	second := h.nextChild(t)
	assert.NotEqual(t, first.PID(), second.PID())
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, first.Exited())
	assert.False(t, pidExists(first.PID()))
	assert.True(t, second.Alive())

	assert.Contains(t, h.logs.String(), `reason="file change"`)
	assert.Contains(t, h.logs.String(), "path="+src)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.reloads.WithLabelValues("modified")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.childStarts))

	h.cancel()
	require.NoError(t, h.wait(t))
	assert.False(t, pidExists(second.PID()))
	assert.Equal(t, StateStopped, h.sup.State())
}

func TestSupervisorRestartsOnRemoval(t *testing.T) {
	dir := t.TempDir()
	path, src := writeApp(t, dir)
	extra := writeFile(t, dir, "src/extra.go", "package handler\n")

	h := startSupervisor(t, FileSpec(path))
	first := h.nextChild(t)

	require.NoError(t, os.Remove(extra))

	second := h.nextChild(t)
	assert.NotEqual(t, first.PID(), second.PID())
	assert.Contains(t, h.logs.String(), `reason="file removal"`)
	assert.Contains(t, h.logs.String(), "path="+extra)

	// The removed file is gone from the new watch set; the remaining one still triggers.
	touchLater(t, src)
	third := h.nextChild(t)
	assert.NotEqual(t, second.PID(), third.PID())
}

func TestSupervisorManifestEditReloadsCommands(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeApp(t, dir)

	h := startSupervisor(t, FileSpec(path))
	h.nextChild(t)

	before := h.sup.Loader().Registry.Len()

	writeFile(t, dir, "app.yaml", manifest(
		"app: api",
		"serve:",
		"  command: '"+serveScript+"'",
		"sources:",
		"  - \"src/*.go\"",
		"commands:",
		"  migrate:",
		"    command: echo migrate",
	))
	touchLater(t, path)

	h.nextChild(t)
	assert.Equal(t, before, h.sup.Loader().Registry.Len(), "evicted modules are loaded again, not accumulated")

	entry, ok := h.sup.Loader().Registry.Get("app")
	require.True(t, ok)
	require.NotNil(t, entry.Manifest)
	assert.Contains(t, entry.Manifest.Commands, "migrate")
}

func TestSupervisorManifestRemovalIsFatal(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeApp(t, dir)

	pidPath := filepath.Join(dir, "devreload.pid")
	h := startSupervisor(t, FileSpec(path), WithPIDFile(NewPIDFile(pidPath)))
	child := h.nextChild(t)

	pid, err := NewPIDFile(pidPath).Read()
	require.NoError(t, err)
	assert.Equal(t, child.PID(), pid)

	require.NoError(t, os.Remove(path))

	err = h.wait(t)
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr), "got %v", err)
	assert.False(t, pidExists(child.PID()))
	assert.Nil(t, h.sup.Runner().Current())
	assert.Equal(t, StateStopped, h.sup.State())

	_, err = os.Stat(pidPath)
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, h.logs.String(), `reason="file removal"`)
}

func TestSupervisorMarkerRemovalIsFatal(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeApp(t, dir)

	h := startSupervisor(t, FileSpec(path))
	child := h.nextChild(t)

	writeFile(t, dir, "app.yaml", manifest("serve:", "  command: '"+serveScript+"'"))
	touchLater(t, path)

	err := h.wait(t)
	assert.ErrorIs(t, err, ErrNotAnApplication)
	assert.False(t, pidExists(child.PID()))
}

func TestSupervisorInitialLoadFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "lib.yaml", manifest("commands: {}"))

	h := startSupervisor(t, FileSpec(path))
	err := h.wait(t)
	assert.ErrorIs(t, err, ErrNotAnApplication)
	assert.Empty(t, h.children)
	assert.Equal(t, StateStopped, h.sup.State())
}

func TestSupervisorManualReload(t *testing.T) {
	dir := t.TempDir()
	path, src := writeApp(t, dir)

	h := startSupervisor(t, FileSpec(path), WithManualReload(true))
	child := h.nextChild(t)

	touchLater(t, src)
	select {
	case c := <-h.children:
		t.Fatalf("manual mode restarted the service as pid %d", c.PID())
	case <-time.After(200 * time.Millisecond):
	}
	assert.True(t, child.Alive())

	h.cancel()
	require.NoError(t, h.wait(t))
	assert.False(t, pidExists(child.PID()))
}

func TestSupervisorBannerOnce(t *testing.T) {
	dir := t.TempDir()
	path, src := writeApp(t, dir)

	banner := &syncBuffer{}
	h := startSupervisor(t, FileSpec(path), WithBanner(banner))
	h.nextChild(t)

	touchLater(t, src)
	h.nextChild(t)

	assert.Equal(t, 1, strings.Count(banner.String(), "serving api on port 8765"))
}

func TestSupervisorNotify(t *testing.T) {
	dir := t.TempDir()
	path, src := writeApp(t, dir)

	h := startSupervisor(t, FileSpec(path), WithNotify(true), WithPollInterval(time.Hour))
	first := h.nextChild(t)

	// With an hour between scans only the fsnotify wake-up can find this.
	require.NoError(t, os.WriteFile(src, []byte("package handler // edited\n"), FileMode))
	touchLater(t, src)

	second := h.nextChild(t)
	assert.NotEqual(t, first.PID(), second.PID())
}

func TestSupervisorModuleSpec(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "svc/devreload.yaml", manifest(
		"app: svc",
		"serve:",
		"  command: '"+serveScript+"'",
	))

	loader := NewLoader(NewRegistry(), WithSearchPath(dir))
	h := startSupervisor(t, ModuleSpec("svc"), WithLoader(loader))
	first := h.nextChild(t)

	touchLater(t, filepath.Join(dir, "svc/devreload.yaml"))
	second := h.nextChild(t)
	assert.NotEqual(t, first.PID(), second.PID())
}

func TestSupervisorReloadNotice(t *testing.T) {
	dir := t.TempDir()
	path, src := writeApp(t, dir)

	banner := &syncBuffer{}
	h := startSupervisor(t, FileSpec(path), WithBanner(banner))
	h.nextChild(t)

	touchLater(t, src)
	h.nextChild(t)

	assert.Contains(t, banner.String(), "> Reloading due to file change: "+src+"\n")
}

func TestSupervisorStartFailureRemovesPIDFile(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeApp(t, dir)

	pidPath := filepath.Join(dir, "devreload.pid")
	h := startSupervisor(t, FileSpec(path), WithPIDFile(NewPIDFile(pidPath)))
	child := h.nextChild(t)

	_, err := os.Stat(pidPath)
	require.NoError(t, err)

	// Still an application, but nothing to serve.
	writeFile(t, dir, "app.yaml", manifest("app: api"))
	touchLater(t, path)

	err = h.wait(t)
	assert.ErrorIs(t, err, ErrNoServeCommand)
	assert.False(t, pidExists(child.PID()))
	assert.Equal(t, StateStopped, h.sup.State())

	_, err = os.Stat(pidPath)
	assert.True(t, os.IsNotExist(err), "pid file still names the stopped child")
}

func TestSupervisorModuleNamedLikeBaseline(t *testing.T) {
	dir := t.TempDir()
	exe := writeFile(t, dir, "bin/devreload", "binary\n")
	src := writeFile(t, dir, "src/handler.go", "package handler\n")
	writeFile(t, dir, "devreload.yaml", manifest(
		"app: api",
		"serve:",
		"  command: '"+serveScript+"'",
		"sources:",
		"  - \"src/*.go\"",
	))

	reg := NewRegistry()
	reg.Add(&Module{Name: "devreload", File: exe})
	reg.MarkBaseline()

	loader := NewLoader(reg, WithSearchPath(dir))
	h := startSupervisor(t, ModuleSpec("devreload"), WithLoader(loader))
	first := h.nextChild(t)

	touchLater(t, src)
	second := h.nextChild(t)
	assert.NotEqual(t, first.PID(), second.PID())

	_, ok := reg.Get(SourceModulePrefix + src)
	assert.True(t, ok, "sources are registered again after the reload")

	// A second edit must still be seen, so the entry was parsed again.
	touchLater(t, src)
	third := h.nextChild(t)
	assert.NotEqual(t, second.PID(), third.PID())
}
