package devreload

import (
	"time"
)

// Defaults applied when the corresponding option is left unset
const (
	// DefaultPort is the port handed to the serve entry point
	DefaultPort = 8000

	// DefaultPollInterval is the delay between two change detection scans
	DefaultPollInterval = 1 * time.Second

	// DefaultTerminateGrace is how long a child may take to exit after SIGTERM
	// before it is killed
	DefaultTerminateGrace = 5 * time.Second

	// DefaultCommandWaitDelay is how long a one-shot command may take to exit
	// after it was interrupted before it is killed
	DefaultCommandWaitDelay = 5 * time.Second

	// DefaultManifestName is the manifest looked up inside a module directory
	DefaultManifestName = "devreload.yaml"

	// SourceModulePrefix prefixes registry names of plain source files
	SourceModulePrefix = "source:"

	// ExecutableModulePrefix prefixes the registry name of the supervisor binary
	ExecutableModulePrefix = "exe:"

	// ConfigModulePrefix prefixes the registry name of the supervisor config file
	ConfigModulePrefix = "config:"
)

// Environment variables exported to every child process
const (
	EnvPort         = "PORT"
	EnvDevPort      = "DEVRELOAD_PORT"
	EnvSuppressDocs = "DEVRELOAD_SUPPRESS_DOCS"
	EnvShowBanner   = "DEVRELOAD_SHOW_BANNER"
	EnvRunID        = "DEVRELOAD_RUN_ID"
	EnvSearchPath   = "DEVRELOAD_PATH"
)

// File modes
const (
	// FileMode is the default mode for created files
	FileMode = 0o644
)

// ManifestExtensions lists the recognised manifest file extensions in lookup order
var ManifestExtensions = []string{".yaml", ".yml", ".toml"}

// ChangeKind classifies a detected change to a watched file
type ChangeKind int

const (
	// ChangeUnknown is the zero value and never produced by the detector
	ChangeUnknown ChangeKind = iota
	// ChangeModified means the file's modification time moved forward
	ChangeModified
	// ChangeRemoved means the file no longer exists
	ChangeRemoved
)

// String returns the metric label for a ChangeKind
func (k ChangeKind) String() string {
	switch k {
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Reason returns the human-readable reload reason for a ChangeKind
func (k ChangeKind) Reason() string {
	switch k {
	case ChangeModified:
		return "file change"
	case ChangeRemoved:
		return "file removal"
	default:
		return "unknown change"
	}
}

// State is a supervisor lifecycle state
type State int

const (
	// StateStarting covers baseline capture and the initial load
	StateStarting State = iota
	// StateRunning means a child is live and files are being watched
	StateRunning
	// StateReloading covers terminate, evict and reload after a change
	StateReloading
	// StateStopped is terminal
	StateStopped
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateReloading:
		return "reloading"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
