package devreload

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// PortPlaceholder is replaced by the serve port in serve arguments
const PortPlaceholder = "{port}"

// ServeOptions are the arguments of the serve entry point
type ServeOptions struct {
	// Port the service should listen on
	Port int
	// SuppressDocs asks the service not to serve its default documentation
	SuppressDocs bool
	// ShowBanner asks the service to print its startup banner
	ShowBanner bool
	// RunID identifies this child generation
	RunID string
}

// Application is the capability set every loaded entry point provides: the
// marker, a serve entry point and a registry of one-shot commands.
type Application interface {
	// Name returns the application marker
	Name() string
	// Serve returns the unstarted process that serves the application
	Serve(opts ServeOptions) (*exec.Cmd, error)
	// Commands returns the registry of one-shot commands
	Commands() *CommandRegistry
}

// App is an Application backed by a manifest
type App struct {
	// Module is the registry entry of the entry manifest
	Module *Module
	// Manifest is the entry manifest
	Manifest *Manifest

	serve    ProcessSpec
	serveDir string
	commands *CommandRegistry
}

var _ Application = (*App)(nil)

// Name returns the application marker
func (a *App) Name() string {
	return a.Manifest.App
}

// Commands returns the merged command registry of the manifest and its imports
func (a *App) Commands() *CommandRegistry {
	return a.commands
}

// Serve builds the serve process. {port} in the arguments expands to the
// port, and the options are exported through the DEVRELOAD_* variables.
func (a *App) Serve(opts ServeOptions) (*exec.Cmd, error) {
	if len(a.serve.Command) == 0 {
		return nil, ErrNoServeCommand
	}

	port := strconv.Itoa(opts.Port)
	args := make([]string, len(a.serve.Command))
	for i, arg := range a.serve.Command {
		args[i] = strings.ReplaceAll(arg, PortPlaceholder, port)
	}

	env := []string{
		EnvPort + "=" + port,
		EnvDevPort + "=" + port,
		EnvSuppressDocs + "=" + strconv.FormatBool(opts.SuppressDocs),
		EnvShowBanner + "=" + strconv.FormatBool(opts.ShowBanner),
	}
	if opts.RunID != "" {
		env = append(env, EnvRunID+"="+opts.RunID)
	}

	return processCommand(context.Background(), a.serve, a.serveDir, env, args), nil
}

// processCommand builds an exec.Cmd for spec, resolving its directory against
// baseDir and layering os env, spec env and extra env in that order.
func processCommand(ctx context.Context, spec ProcessSpec, baseDir string, extra []string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	cmd.Dir = baseDir
	if spec.Dir != "" {
		if filepath.IsAbs(spec.Dir) {
			cmd.Dir = spec.Dir
		} else {
			cmd.Dir = filepath.Join(baseDir, spec.Dir)
		}
	}

	env := os.Environ()
	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+spec.Env[k])
	}
	cmd.Env = append(env, extra...)

	return cmd
}
