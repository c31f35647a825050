package devreload

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"
)

// PIDFile records the live child's PID for external tooling. The file is
// replaced atomically on every start, and a sibling .lock file keeps two
// supervisors from sharing it.
type PIDFile struct {
	// Path is the PID file location
	Path string

	lock *flock.Flock
}

// NewPIDFile creates a PIDFile for path. No file is touched until Lock or Write.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{
		Path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Lock takes the advisory lock without blocking. It returns
// ErrSupervisorLocked when another process holds it.
func (p *PIDFile) Lock() error {
	ok, err := p.lock.TryLock()
	if err != nil {
		return fmt.Errorf("locking %s: %w", p.lock.Path(), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSupervisorLocked, p.lock.Path())
	}
	return nil
}

// Unlock releases the advisory lock and removes the lock file
func (p *PIDFile) Unlock() error {
	if !p.lock.Locked() {
		return nil
	}
	if err := p.lock.Unlock(); err != nil {
		return fmt.Errorf("unlocking %s: %w", p.lock.Path(), err)
	}
	if err := os.Remove(p.lock.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Write atomically replaces the PID file with pid
func (p *PIDFile) Write(pid int) error {
	data := []byte(strconv.Itoa(pid) + "\n")
	if err := renameio.WriteFile(p.Path, data, FileMode); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	return nil
}

// Read returns the PID stored in the file
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing pid: %w", err)
	}
	return pid, nil
}

// Remove deletes the PID file; a missing file is not an error
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing pid file: %w", err)
	}
	return nil
}
