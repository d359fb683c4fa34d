package procutil

import (
	"errors"
	"os"
	"runtime"
)

var (
	// ErrNotRunning reports that the target process (and its group) had
	// already exited when termination was requested.
	ErrNotRunning = errors.New("process not running")
	// ErrInvalidPID is returned for pids that can never name a child.
	ErrInvalidPID = errors.New("invalid pid")
)

// DefaultShell returns the interactive shell for the host OS.
func DefaultShell() string {
	if runtime.GOOS == "windows" {
		return "powershell"
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "bash"
}
