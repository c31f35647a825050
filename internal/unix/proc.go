//go:build linux || darwin

// Package unix provides process-group helpers for Unix platforms.
package unix

import (
	"errors"
	"syscall"

	xunix "golang.org/x/sys/unix"
)

// SysProcAttr returns attributes that start a child as the leader of a new
// process group, so the whole tree it spawns can be signalled at once.
func SysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// SignalGroup delivers sig to every process in the group led by pid.
// A group that no longer exists is not an error.
func SignalGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return nil
	}
	err := xunix.Kill(-pid, sig)
	if errors.Is(err, xunix.ESRCH) {
		return nil
	}
	return err
}
