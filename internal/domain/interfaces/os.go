package interfaces

import (
	"context"
	"os"
	"time"
)

// CommandExecutor runs external commands and returns their combined output
type CommandExecutor interface {
	// Execute runs the command to completion
	Execute(ctx context.Context, command string, args ...string) ([]byte, error)

	// ExecuteWithTimeout runs the command with a deadline; 0 means no deadline
	ExecuteWithTimeout(ctx context.Context, timeout time.Duration, command string, args ...string) ([]byte, error)
}

// FileSystem abstracts file access below the configured root
type FileSystem interface {
	ReadFile(path string) ([]byte, error)

	// WriteFile replaces the file atomically
	WriteFile(path string, data []byte, perm os.FileMode) error

	Exists(path string) bool

	IsDir(path string) bool

	MkdirAll(path string, perm os.FileMode) error

	Remove(path string) error

	Rename(oldPath, newPath string) error

	// ListFiles returns the names of the regular files in a directory
	ListFiles(path string) ([]string, error)

	// Glob returns the files matching pattern
	Glob(pattern string) ([]string, error)
}

// Clock abstracts time
type Clock interface {
	Now() time.Time
}

// OSDetector detects the host distribution family
type OSDetector interface {
	DetectOS() (OSType, error)
}

// OSType is a distribution family
type OSType string

const (
	OSTypeUbuntu OSType = "ubuntu"
	OSTypeRHEL   OSType = "rhel"
	OSTypeSUSE   OSType = "suse"
)

// LinkAddress is an address assigned to a live link
type LinkAddress struct {
	Family  string
	Address string
	Prefix  int
}

// LinkState is the live state of a kernel interface
type LinkState struct {
	Name      string
	Up        bool
	MAC       string
	MTU       int
	Addresses []LinkAddress
}

// LinkProber queries the kernel for the live state of interfaces
type LinkProber interface {
	// IsActive reports whether the interface is administratively up
	IsActive(ctx context.Context, name string) (bool, error)

	// Probe returns the live state of the interface
	Probe(ctx context.Context, name string) (*LinkState, error)
}
