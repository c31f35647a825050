// Package cmd implements the devreload command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"vawter.tech/stopper"

	"github.com/axondata/go-devreload"
)

const (
	msgBothSources = "can not define both a file and module source."
	msgNoSource    = "must define a file name or module that contains an application."
)

// metricsShutdownGrace bounds how long the metrics server may drain
const metricsShutdownGrace = 2 * time.Second

// Execute runs the devreload command line with args, excluding the program
// name, and returns the process exit status.
func Execute(args []string, stdout, stderr io.Writer) int {
	return ExecuteContext(context.Background(), args, stdout, stderr)
}

// ExecuteContext is Execute with a parent context. Cancelling ctx stops the
// supervisor the same way SIGINT does.
func ExecuteContext(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	head, tail := splitCommandArgs(args)

	root := newRootCmd(stdout, stderr, tail)
	root.SetArgs(head)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return exitCode(err, func(format string, a ...any) {
		fmt.Fprintf(stdout, format, a...)
	})
}

type options struct {
	cfgFile string
	tail    []string
	stdout  io.Writer
	stderr  io.Writer
}

func newRootCmd(stdout, stderr io.Writer, tail []string) *cobra.Command {
	opts := &options{tail: tail, stdout: stdout, stderr: stderr}
	v := viper.New()

	root := &cobra.Command{
		Use:   "devreload",
		Short: "Run an application and restart it when its files change",
		Long: `devreload starts the serve process of an application manifest, watches
every file the application loaded and restarts the process after a change.

With -c it runs one of the application's commands instead and exits with
that command's status.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(v, cmd, opts.cfgFile); err != nil {
				return usageError("reading config: %v", err)
			}
			return run(cmd.Context(), v, opts)
		},
	}

	flags := root.Flags()
	flags.StringP("file", "f", "", "application manifest file")
	flags.StringP("module", "m", "", "application module name")
	flags.IntP("port", "p", devreload.DefaultPort, "port handed to the service")
	flags.Bool("suppress-docs", false, "ask the service not to serve its documentation")
	flags.Bool("manual-reload", false, "do not watch files; run until interrupted")
	flags.Float64P("interval", "i", devreload.DefaultPollInterval.Seconds(), "seconds between change scans")
	flags.Bool("notify", false, "wake the scanner early on filesystem events")
	flags.String("pidfile", "", "write the service PID to this file")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.StringP("command", "c", "", "run a command of the application and exit")
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default .devreload.yaml)")

	root.AddCommand(newVersionCmd())
	return root
}

func run(parent context.Context, v *viper.Viper, opts *options) error {
	logger := setupLogger(v.GetString("log-level"), opts.stderr)
	slog.SetDefault(logger)

	spec, err := devreload.ResolveLoadSpec(v.GetString("file"), v.GetString("module"))
	switch {
	case errors.Is(err, devreload.ErrBothSources):
		return usageError(msgBothSources)
	case err != nil:
		return usageError(msgNoSource)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		// Release the handler after the first signal so a second one kills.
		<-ctx.Done()
		stop()
	}()

	reg := devreload.NewRegistry()
	registerBaseline(reg, v.ConfigFileUsed())
	reg.MarkBaseline()
	loader := devreload.NewLoader(reg, devreload.WithSearchPath(searchPath()...))

	if name := v.GetString("command"); name != "" {
		return runCommand(ctx, loader, spec, name, opts)
	}
	return supervise(ctx, v, loader, spec, logger, opts)
}

// registerBaseline adds the files loaded before the application to reg: the
// devreload binary and the config file in use. Their names carry a prefix no
// module name or manifest file name can produce.
func registerBaseline(reg *devreload.Registry, cfgFile string) {
	if exe, err := os.Executable(); err == nil {
		reg.Add(&devreload.Module{Name: devreload.ExecutableModulePrefix + exe, File: exe})
	}
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			cfgFile = abs
		}
		reg.Add(&devreload.Module{Name: devreload.ConfigModulePrefix + cfgFile, File: cfgFile})
	}
}

func runCommand(ctx context.Context, loader *devreload.Loader, spec devreload.LoadSpec, name string, opts *options) error {
	app, err := loader.Load(spec)
	if err != nil {
		return loadFailure(err)
	}

	code, err := devreload.RunCommand(ctx, app, name, opts.tail, devreload.CommandIO{
		Stdin:  os.Stdin,
		Stdout: opts.stdout,
		Stderr: opts.stderr,
	})
	if errors.Is(err, devreload.ErrUnknownCommand) {
		return &exitError{code: code}
	}
	if err != nil {
		return err
	}
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func supervise(ctx context.Context, v *viper.Viper, loader *devreload.Loader, spec devreload.LoadSpec, logger *slog.Logger, opts *options) error {
	supOpts := []devreload.SupervisorOption{
		devreload.WithLoader(loader),
		devreload.WithLogger(logger),
		devreload.WithPort(v.GetInt("port")),
		devreload.WithSuppressDocs(v.GetBool("suppress-docs")),
		devreload.WithManualReload(v.GetBool("manual-reload")),
		devreload.WithNotify(v.GetBool("notify")),
		devreload.WithBanner(opts.stdout),
		devreload.WithRunner(devreload.NewRunner(
			devreload.WithOutput(opts.stdout, opts.stderr),
			devreload.WithRunnerLogger(logger),
		)),
	}

	if d := pollInterval(v.GetFloat64("interval")); d > 0 {
		supOpts = append(supOpts, devreload.WithPollInterval(d))
	}

	if path := v.GetString("pidfile"); path != "" {
		pf := devreload.NewPIDFile(path)
		if err := pf.Lock(); err != nil {
			return usageError("%v", err)
		}
		defer func() {
			if err := pf.Unlock(); err != nil {
				logger.Warn("releasing pid file lock", "path", path, "error", err)
			}
		}()
		supOpts = append(supOpts, devreload.WithPIDFile(pf))
	}

	if addr := v.GetString("metrics-addr"); addr != "" {
		m := devreload.NewMetrics()
		supOpts = append(supOpts, devreload.WithMetrics(m))

		sctx := stopper.WithContext(ctx)
		serveMetrics(sctx, addr, m, logger)
		defer func() {
			sctx.Stop(metricsShutdownGrace)
			if err := sctx.Wait(); err != nil {
				logger.Warn("metrics server", "error", err)
			}
		}()
	}

	sup := devreload.NewSupervisor(spec, supOpts...)
	if err := sup.Run(ctx); err != nil {
		return loadFailure(err)
	}
	return nil
}

// pollInterval converts the --interval seconds to a duration; zero when unset
// or not positive
func pollInterval(secs float64) time.Duration {
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// serveMetrics runs the metrics HTTP server until sctx stops
func serveMetrics(sctx *stopper.Context, addr string, m *devreload.Metrics, logger *slog.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sctx.Go(func(sctx *stopper.Context) error {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	sctx.Go(func(sctx *stopper.Context) error {
		<-sctx.Stopping()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// loadFailure maps a load error to its diagnostic
func loadFailure(err error) error {
	if errors.Is(err, devreload.ErrNotAnApplication) {
		return usageError(msgNoSource)
	}
	return usageError("%v", err)
}
