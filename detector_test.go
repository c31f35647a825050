package devreload

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectorCheck(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", "app: a\n")
	b := writeFile(t, dir, "b.yaml", "app: b\n")

	ws := Snapshot([]*Module{{Name: "a", File: a}, {Name: "b", File: b}})
	det := NewDetector(10 * time.Millisecond)

	_, changed := det.Check(ws)
	assert.False(t, changed, "an untouched set reports nothing")

	touchLater(t, b)
	ev, changed := det.Check(ws)
	require.True(t, changed)
	assert.Equal(t, ChangeEvent{Kind: ChangeModified, Path: b}, ev)
	assert.Equal(t, "file change: "+b, ev.String())

	// Scan order is sorted, so a removal of a wins over the change to b.
	require.NoError(t, os.Remove(a))
	ev, changed = det.Check(ws)
	require.True(t, changed)
	assert.Equal(t, ChangeEvent{Kind: ChangeRemoved, Path: a}, ev)
	assert.Equal(t, "file removal: "+a, ev.String())
}

func TestDetectorOlderMtimeIgnored(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", "app: a\n")
	ws := Snapshot([]*Module{{Name: "a", File: a}})

	earlier := ws[a].Add(-time.Hour)
	require.NoError(t, os.Chtimes(a, earlier, earlier))

	_, changed := NewDetector(0).Check(ws)
	assert.False(t, changed)
}

func TestDetectorPoll(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", "app: a\n")
	ws := Snapshot([]*Module{{Name: "a", File: a}})

	det := NewDetector(20 * time.Millisecond)
	later := ws[a].Add(2 * time.Second)

	go func() {
		time.Sleep(60 * time.Millisecond)
		_ = os.Chtimes(a, later, later)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	ev, err := det.Poll(ctx, ws)
	require.NoError(t, err)
	assert.Equal(t, ChangeModified, ev.Kind)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestDetectorPollCancelled(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", "app: a\n")
	ws := Snapshot([]*Module{{Name: "a", File: a}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewDetector(10 * time.Millisecond).Poll(ctx, ws)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDetectorWakeTriggersScan(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", "app: a\n")
	ws := Snapshot([]*Module{{Name: "a", File: a}})

	wake := make(chan struct{}, 1)
	det := &Detector{Interval: time.Hour, Wake: wake}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan ChangeEvent, 1)
	go func() {
		ev, _ := det.Poll(ctx, ws)
		done <- ev
	}()

	touchLater(t, a)
	wake <- struct{}{}

	select {
	case ev := <-done:
		assert.Equal(t, ChangeModified, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("wake did not trigger a scan")
	}
}

func TestDetectorClosedWake(t *testing.T) {
	wake := make(chan struct{})
	close(wake)

	det := &Detector{Interval: 10 * time.Millisecond, Wake: wake}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := det.Poll(ctx, WatchSet{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
