// Package devreload provides a local development supervisor that keeps a
// service process fresh against the files it was built from.
//
// An application is described by a manifest, a YAML or TOML file carrying the
// application marker, a serve entry point, imports, source globs and a
// registry of one-shot commands:
//
//	app: api
//	serve:
//	  command: ["go", "run", "./cmd/api", "-port", "{port}"]
//	imports:
//	  - shared.tasks
//	sources:
//	  - "**/*.go"
//	commands:
//	  migrate:
//	    command: ["go", "run", "./cmd/migrate"]
//	    help: Apply database migrations
//
// The Supervisor loads the manifest, starts the serve process, snapshots every
// loaded file and polls them:
//
//	spec, err := devreload.ResolveLoadSpec("devreload.yaml", "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sup := devreload.NewSupervisor(spec,
//	    devreload.WithPort(8000),
//	    devreload.WithPollInterval(time.Second),
//	)
//	err = sup.Run(ctx)
//
// When a watched file is modified or removed the child is terminated, every
// module loaded after the baseline is evicted from the Registry, the manifest
// is loaded again and a new child is started. A load failure at any point is
// fatal; the supervisor never keeps a stale child alive.
//
// # One-shot Commands
//
// RunCommand looks a command up in the application's CommandRegistry and runs
// it with extra arguments, returning its exit status. Supervision is not
// involved.
//
//	app, err := devreload.NewLoader(devreload.NewRegistry()).Load(spec)
//	code, err := devreload.RunCommand(ctx, app, "migrate", args, devreload.CommandIO{})
//
// # Design Philosophy
//
// The package favours:
//
//   - Polling with a stat diff over event subscriptions for correctness
//   - A separate process group per child so a restart leaves nothing behind
//   - An explicit, owned module Registry instead of hidden global state
//   - Failing fast with named errors when the entry point is not an application
package devreload
