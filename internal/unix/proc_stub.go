//go:build !linux && !darwin

// Package unix provides process-group helpers for Unix platforms.
package unix

import (
	"errors"
	"os"
	"syscall"
)

// SysProcAttr returns nil; process groups are not used on this platform.
func SysProcAttr() *syscall.SysProcAttr {
	return nil
}

// SignalGroup kills the single process pid; groups and graceful signals are
// not supported on this platform.
func SignalGroup(pid int, _ syscall.Signal) error {
	if pid <= 0 {
		return nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
