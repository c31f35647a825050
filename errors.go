package devreload

import (
	"errors"
	"fmt"
)

// Common errors returned by devreload operations
var (
	// ErrBothSources indicates both a manifest file and a module name were given
	ErrBothSources = errors.New("devreload: can not define both a file and module source")

	// ErrNoSource indicates neither a manifest file nor a module name was given
	ErrNoSource = errors.New("devreload: no file or module source")

	// ErrNotAnApplication indicates the loaded manifest lacks the application marker
	ErrNotAnApplication = errors.New("devreload: not an application")

	// ErrModuleNotFound indicates a module name could not be resolved on the search path
	ErrModuleNotFound = errors.New("devreload: module not found")

	// ErrUnknownCommand indicates the requested command is not in the application's registry
	ErrUnknownCommand = errors.New("devreload: unknown command")

	// ErrNoServeCommand indicates the application declares no serve entry point
	ErrNoServeCommand = errors.New("devreload: no serve command")

	// ErrSupervisorLocked indicates another supervisor holds the pid file lock
	ErrSupervisorLocked = errors.New("devreload: another supervisor is running")
)

// LoadError represents a failure to load an application entry point
type LoadError struct {
	// Spec is the entry point being loaded
	Spec LoadSpec
	// Path is the manifest file involved, if one was resolved
	Path string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *LoadError) Error() string {
	if e.Path != "" && e.Path != e.Spec.Path {
		return fmt.Sprintf("devreload load %s (%s): %v", e.Spec, e.Path, e.Err)
	}
	return fmt.Sprintf("devreload load %s: %v", e.Spec, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *LoadError) Unwrap() error {
	return e.Err
}

// MultiError aggregates multiple errors from shutdown steps
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred", len(m.Errors))
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// Unwrap exposes the accumulated errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
