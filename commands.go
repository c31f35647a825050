package devreload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Command is a named one-shot command declared by a manifest
type Command struct {
	// Name is the registry key
	Name string
	// Spec is the declared process
	Spec ProcessSpec
	// Dir is the directory of the manifest that declared the command
	Dir string
}

// CommandRegistry holds an application's one-shot commands keyed by name
type CommandRegistry struct {
	commands map[string]Command
}

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[string]Command)}
}

// Register adds cmd, replacing any command with the same name
func (r *CommandRegistry) Register(cmd Command) {
	r.commands[cmd.Name] = cmd
}

// Lookup returns the command registered under name
func (r *CommandRegistry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Len returns the number of registered commands
func (r *CommandRegistry) Len() int {
	return len(r.commands)
}

// Names returns the registered command names in sorted order
func (r *CommandRegistry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteListing renders the registry as a table
func (r *CommandRegistry) WriteListing(w io.Writer) error {
	if len(r.commands) == 0 {
		_, err := fmt.Fprintln(w, "No commands defined")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Name", "Command", "Help")
	for _, name := range r.Names() {
		cmd := r.commands[name]
		if err := table.Append(name, strings.Join(cmd.Spec.Command, " "), cmd.Spec.Help); err != nil {
			return err
		}
	}
	return table.Render()
}

// String returns the rendered listing
func (r *CommandRegistry) String() string {
	var b strings.Builder
	_ = r.WriteListing(&b)
	return b.String()
}

// CommandIO carries the standard streams of a one-shot command. Nil fields
// default to the process's own streams.
type CommandIO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (s CommandIO) withDefaults() CommandIO {
	if s.Stdin == nil {
		s.Stdin = os.Stdin
	}
	if s.Stdout == nil {
		s.Stdout = os.Stdout
	}
	if s.Stderr == nil {
		s.Stderr = os.Stderr
	}
	return s
}

// RunCommand runs the named command of app with args appended to its declared
// arguments and returns its exit status. An unknown name writes the command
// listing to stdio.Stdout and returns status 1 with ErrUnknownCommand.
func RunCommand(ctx context.Context, app Application, name string, args []string, stdio CommandIO) (int, error) {
	stdio = stdio.withDefaults()

	cmd, ok := app.Commands().Lookup(name)
	if !ok {
		if err := app.Commands().WriteListing(stdio.Stdout); err != nil {
			return 1, err
		}
		return 1, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	if len(cmd.Spec.Command) == 0 {
		return 1, fmt.Errorf("command %s: empty command line", name)
	}

	argv := append(append([]string(nil), cmd.Spec.Command...), args...)
	proc := processCommand(ctx, cmd.Spec, cmd.Dir, nil, argv)
	proc.Stdin = stdio.Stdin
	proc.Stdout = stdio.Stdout
	proc.Stderr = stdio.Stderr
	// Cancellation interrupts the command so it can clean up; it is killed
	// only if it is still running after the wait delay.
	proc.Cancel = func() error {
		return proc.Process.Signal(os.Interrupt)
	}
	proc.WaitDelay = DefaultCommandWaitDelay

	if err := proc.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if code := exitErr.ExitCode(); code > 0 {
				return code, nil
			}
			return 1, nil
		}
		return 1, fmt.Errorf("command %s: %w", name, err)
	}
	return 0, nil
}
