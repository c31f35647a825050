package devreload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/axondata/go-devreload/internal/unix"
)

// Child is a running serve process. It leads its own process group, so
// terminating it also stops anything it spawned.
type Child struct {
	// ID is the generation ID exported to the process as DEVRELOAD_RUN_ID
	ID string
	// Started is when the process was spawned
	Started time.Time

	cmd      *exec.Cmd
	pid      int
	done     chan struct{}
	exitCode int
	waitErr  error

	stopping atomic.Bool
	termOnce sync.Once
	termErr  error
}

// PID returns the process ID
func (c *Child) PID() int {
	return c.pid
}

// Done is closed once the process has exited and been reaped
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// Exited reports whether the process has exited
func (c *Child) Exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit status, or -1 while running or when the process
// was killed by a signal
func (c *Child) ExitCode() int {
	if !c.Exited() {
		return -1
	}
	return c.exitCode
}

// Err returns the error cmd.Wait reported, nil while running or after a
// clean exit
func (c *Child) Err() error {
	if !c.Exited() {
		return nil
	}
	return c.waitErr
}

// Alive reports whether the process is still running
func (c *Child) Alive() bool {
	if c.Exited() {
		return false
	}
	ok, err := process.PidExists(int32(c.pid))
	return err == nil && ok
}

// reap waits for the process and logs exits nobody asked for. Those are not
// restarted; the next restart happens on the next file change.
func (c *Child) reap(logger *slog.Logger) {
	err := c.cmd.Wait()
	c.waitErr = err
	c.exitCode = 0
	if err != nil {
		c.exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			c.exitCode = exitErr.ExitCode()
		}
	}
	close(c.done)

	if c.stopping.Load() {
		logger.Debug("service stopped", "pid", c.pid, "run_id", c.ID)
		return
	}
	logger.Warn("service exited; waiting for a file change to restart",
		"pid", c.pid, "run_id", c.ID, "exit_code", c.exitCode, "error", err)
}

// terminate sends SIGTERM to the process group, escalates to SIGKILL after
// grace and waits for the exit. Only the first call acts.
func (c *Child) terminate(grace time.Duration) error {
	c.termOnce.Do(func() {
		c.stopping.Store(true)
		if c.Exited() {
			return
		}

		_ = unix.SignalGroup(c.pid, syscall.SIGTERM)

		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-c.done:
			return
		case <-timer.C:
		}

		if err := unix.SignalGroup(c.pid, syscall.SIGKILL); err != nil && !c.Exited() {
			c.termErr = fmt.Errorf("killing pid %d: %w", c.pid, err)
			return
		}

		timer.Reset(grace)
		select {
		case <-c.done:
		case <-timer.C:
			c.termErr = fmt.Errorf("pid %d did not exit after SIGKILL", c.pid)
		}
	})
	return c.termErr
}

// Runner owns the serve process. At most one Child is live at a time.
type Runner struct {
	// Grace is how long a child may take to exit after SIGTERM
	Grace time.Duration
	// Stdout receives the child's standard output
	Stdout io.Writer
	// Stderr receives the child's standard error
	Stderr io.Writer

	logger *slog.Logger

	mu      sync.Mutex
	current *Child
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithGrace sets how long a child may take to exit after SIGTERM
func WithGrace(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.Grace = d
	}
}

// WithOutput sets the writers the child's output is forwarded to
func WithOutput(stdout, stderr io.Writer) RunnerOption {
	return func(r *Runner) {
		r.Stdout = stdout
		r.Stderr = stderr
	}
}

// WithRunnerLogger sets the logger used for child exit reports
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner with default settings
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		Grace:  DefaultTerminateGrace,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Grace <= 0 {
		r.Grace = DefaultTerminateGrace
	}
	return r
}

// Start spawns app's serve process. A RunID is generated when opts has none.
// Calling Start while a child is live is a programming error and panics.
func (r *Runner) Start(app Application, opts ServeOptions) (*Child, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		panic(fmt.Sprintf("devreload: Start called while pid %d is live", r.current.pid))
	}

	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	cmd, err := app.Serve(opts)
	if err != nil {
		return nil, fmt.Errorf("serve %s: %w", app.Name(), err)
	}
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.SysProcAttr = unix.SysProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", app.Name(), err)
	}

	child := &Child{
		ID:      opts.RunID,
		Started: time.Now(),
		cmd:     cmd,
		pid:     cmd.Process.Pid,
		done:    make(chan struct{}),
	}
	go child.reap(r.logger)

	r.current = child
	return child, nil
}

// Terminate stops c and frees the live slot. It is idempotent and reports no
// error for a child that already exited on its own.
func (r *Runner) Terminate(c *Child) error {
	if c == nil {
		return nil
	}

	err := c.terminate(r.Grace)

	r.mu.Lock()
	if r.current == c {
		r.current = nil
	}
	r.mu.Unlock()

	return err
}

// Current returns the live child, or nil
func (r *Runner) Current() *Child {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}
