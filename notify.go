package devreload

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// WatchCleanupFunc stops a notifier and waits for its goroutine to exit. It is
// safe to call more than once.
type WatchCleanupFunc func() error

// notifyGrace bounds how long cleanup waits for the event loop to drain
const notifyGrace = 100 * time.Millisecond

// WatchDirs subscribes to filesystem events for the directories holding the
// files in ws. The returned channel receives, without ever blocking the event
// loop, whenever an event names a watched file or the watcher reports an
// error. It only wakes a Detector early; detection itself stays the stat diff.
func WatchDirs(ctx context.Context, ws WatchSet) (<-chan struct{}, WatchCleanupFunc, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("creating watcher: %w", err)
	}

	for _, dir := range ws.Dirs() {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	wake := make(chan struct{}, 1)
	notify := func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}

	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
	})

	sctx.Go(func(sctx *stopper.Context) error {
		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if _, watched := ws[event.Name]; watched {
					notify()
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil {
					notify()
				}
			}
		}
		return nil
	})

	cleanup := func() error {
		sctx.Stop(notifyGrace)
		return sctx.Wait()
	}

	return wake, cleanup, nil
}
