package devreload

import (
	"context"
	"fmt"
	"os"
	"time"
)

// ChangeEvent reports the first change found in a WatchSet
type ChangeEvent struct {
	Kind ChangeKind
	Path string
}

// String returns a message such as "file change: /src/app.yaml"
func (e ChangeEvent) String() string {
	return fmt.Sprintf("%s: %s", e.Kind.Reason(), e.Path)
}

// Detector polls a WatchSet for modified or removed files
type Detector struct {
	// Interval is the delay between two scans
	Interval time.Duration
	// Wake, when set, triggers an early scan each time it receives
	Wake <-chan struct{}
}

// NewDetector creates a Detector with the given interval, falling back to
// DefaultPollInterval when it is not positive
func NewDetector(interval time.Duration) *Detector {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Detector{Interval: interval}
}

// Check scans ws once in sorted path order and returns the first change. A
// path that can no longer be stat'ed counts as removed.
func (d *Detector) Check(ws WatchSet) (ChangeEvent, bool) {
	for _, path := range ws.Paths() {
		info, err := os.Stat(path)
		if err != nil {
			return ChangeEvent{Kind: ChangeRemoved, Path: path}, true
		}
		if info.ModTime().After(ws[path]) {
			return ChangeEvent{Kind: ChangeModified, Path: path}, true
		}
	}
	return ChangeEvent{}, false
}

// Poll blocks until Check reports a change or ctx is done. The set is scanned
// immediately, then once per Interval and whenever Wake fires.
func (d *Detector) Poll(ctx context.Context, ws WatchSet) (ChangeEvent, error) {
	interval := d.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	wake := d.Wake

	for {
		if ev, ok := d.Check(ws); ok {
			return ev, nil
		}

		select {
		case <-ctx.Done():
			return ChangeEvent{}, ctx.Err()
		case <-ticker.C:
		case _, ok := <-wake:
			if !ok {
				wake = nil
			}
		}
	}
}
