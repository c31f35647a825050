package devreload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// Supervisor keeps a serve process fresh against the files its application
// has loaded. It loads the application, starts the child, snapshots the
// loaded files and polls them; on the first change it terminates the child,
// evicts every non-baseline module, loads again and starts a new child.
type Supervisor struct {
	// Spec names the application entry point
	Spec LoadSpec
	// Port is handed to the serve entry point
	Port int
	// SuppressDocs is handed to the serve entry point
	SuppressDocs bool
	// ManualReload disables polling; the child runs until cancellation
	ManualReload bool
	// Notify wakes the poll loop early on filesystem events
	Notify bool

	loader   *Loader
	runner   *Runner
	detector *Detector
	logger   *slog.Logger
	metrics  *Metrics
	pidFile  *PIDFile
	banner   io.Writer
	onStart  func(*Child)

	state   atomic.Int32
	started bool
}

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor)

// WithPort sets the port handed to the serve entry point
func WithPort(port int) SupervisorOption {
	return func(s *Supervisor) {
		s.Port = port
	}
}

// WithSuppressDocs asks the service not to serve its default documentation
func WithSuppressDocs(suppress bool) SupervisorOption {
	return func(s *Supervisor) {
		s.SuppressDocs = suppress
	}
}

// WithManualReload disables file watching
func WithManualReload(manual bool) SupervisorOption {
	return func(s *Supervisor) {
		s.ManualReload = manual
	}
}

// WithPollInterval sets the delay between two change scans
func WithPollInterval(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.detector = NewDetector(d)
	}
}

// WithNotify enables fsnotify wake-ups between scans
func WithNotify(notify bool) SupervisorOption {
	return func(s *Supervisor) {
		s.Notify = notify
	}
}

// WithLoader sets the loader and, through it, the module registry
func WithLoader(l *Loader) SupervisorOption {
	return func(s *Supervisor) {
		s.loader = l
	}
}

// WithRunner sets the child runner
func WithRunner(r *Runner) SupervisorOption {
	return func(s *Supervisor) {
		s.runner = r
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithMetrics records supervisor activity in m
func WithMetrics(m *Metrics) SupervisorOption {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// WithPIDFile writes each child's PID to p and removes it on stop
func WithPIDFile(p *PIDFile) SupervisorOption {
	return func(s *Supervisor) {
		s.pidFile = p
	}
}

// WithBanner prints the startup banner to w before the first child starts,
// and a one-line notice before every reload
func WithBanner(w io.Writer) SupervisorOption {
	return func(s *Supervisor) {
		s.banner = w
	}
}

// WithOnStart calls fn with every child right after it starts
func WithOnStart(fn func(*Child)) SupervisorOption {
	return func(s *Supervisor) {
		s.onStart = fn
	}
}

// NewSupervisor creates a Supervisor for spec with default settings
func NewSupervisor(spec LoadSpec, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		Spec:     spec,
		Port:     DefaultPort,
		detector: NewDetector(DefaultPollInterval),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.loader == nil {
		s.loader = NewLoader(NewRegistry())
	}
	if s.runner == nil {
		s.runner = NewRunner(WithRunnerLogger(s.logger))
	}

	return s
}

// State returns the current lifecycle state
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Loader returns the loader used for every (re)load
func (s *Supervisor) Loader() *Loader {
	return s.loader
}

// Runner returns the runner owning the child process
func (s *Supervisor) Runner() *Runner {
	return s.runner
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
	s.metrics.setState(st)
}

// Run supervises until ctx is cancelled, which stops the child and returns
// nil. A load failure, initial or after a change, is fatal: Run returns the
// *LoadError and no child is left running.
func (s *Supervisor) Run(ctx context.Context) error {
	s.setState(StateStarting)

	reg := s.loader.Registry
	if reg.MarkBaseline() {
		s.logger.Debug("recorded module baseline", "modules", reg.Len())
	}

	app, err := s.loader.Load(s.Spec)
	if err != nil {
		s.setState(StateStopped)
		return err
	}

	for {
		s.setState(StateRunning)

		ws := Snapshot(reg.Modules())
		s.metrics.watching(len(ws))

		child, err := s.startChild(app, len(ws))
		if err != nil {
			return s.fail(err)
		}

		if s.ManualReload {
			<-ctx.Done()
			return s.stop(child)
		}

		ev, err := s.poll(ctx, ws)
		if err != nil {
			return s.stop(child)
		}

		s.setState(StateReloading)
		s.logger.Info("reloading", "reason", ev.Kind.Reason(), "path", ev.Path)
		if s.banner != nil {
			fmt.Fprintf(s.banner, "> Reloading due to %s\n", ev)
		}
		s.metrics.reloaded(ev.Kind)

		if err := s.runner.Terminate(child); err != nil {
			s.logger.Warn("terminating service", "pid", child.PID(), "error", err)
		}

		evicted := reg.EvictNonBaseline()
		s.logger.Debug("evicted modules", "count", len(evicted))

		app, err = s.loader.Load(s.Spec)
		if err != nil {
			return s.fail(err)
		}
	}
}

func (s *Supervisor) startChild(app Application, watched int) (*Child, error) {
	first := !s.started
	if first && s.banner != nil {
		fmt.Fprintln(s.banner, RenderBanner(app.Name(), s.Port, watched, s.ManualReload))
	}

	child, err := s.runner.Start(app, ServeOptions{
		Port:         s.Port,
		SuppressDocs: s.SuppressDocs,
		ShowBanner:   first,
	})
	if err != nil {
		return nil, err
	}
	s.started = true
	s.metrics.childStarted()

	if s.pidFile != nil {
		if err := s.pidFile.Write(child.PID()); err != nil {
			s.logger.Warn("writing pid file", "path", s.pidFile.Path, "error", err)
		}
	}

	s.logger.Info("started service",
		"app", app.Name(), "pid", child.PID(), "port", s.Port,
		"run_id", child.ID, "watched", watched)

	if s.onStart != nil {
		s.onStart(child)
	}
	return child, nil
}

// poll waits for the first change in ws, optionally woken by fsnotify
func (s *Supervisor) poll(ctx context.Context, ws WatchSet) (ChangeEvent, error) {
	det := *s.detector

	if s.Notify {
		wake, cleanup, err := WatchDirs(ctx, ws)
		if err != nil {
			s.logger.Warn("filesystem notifications unavailable; polling only", "error", err)
		} else {
			det.Wake = wake
			defer func() { _ = cleanup() }()
		}
	}

	return det.Poll(ctx, ws)
}

// fail ends Run after the child is gone: the PID file no longer names a live
// process and is removed.
func (s *Supervisor) fail(err error) error {
	if s.pidFile != nil {
		if rerr := s.pidFile.Remove(); rerr != nil {
			s.logger.Warn("removing pid file", "path", s.pidFile.Path, "error", rerr)
		}
	}
	s.setState(StateStopped)
	return err
}

// stop terminates the live child and clears the PID file
func (s *Supervisor) stop(child *Child) error {
	s.logger.Info("stopping", "pid", child.PID())

	merr := &MultiError{}
	merr.Add(s.runner.Terminate(child))
	if s.pidFile != nil {
		merr.Add(s.pidFile.Remove())
	}

	s.setState(StateStopped)
	return merr.Err()
}
