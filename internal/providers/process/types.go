package process

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrClosed is returned by Start after the runner has been closed.
var ErrClosed = errors.New("process runner closed")

// Request describes a streaming run.
type Request struct {
	ID      string            `json:"id"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// SyncRequest describes a collecting run.
type SyncRequest struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Stdin   string            `json:"stdin,omitempty"`
}

// ProcessInfo describes a tracked process.
type ProcessInfo struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	Args       []string  `json:"args"`
	WorkingDir string    `json:"working_dir,omitempty"`
	PID        int       `json:"pid"`
	StartedAt  time.Time `json:"started_at"`
}

// CommandError is the failure branch of a collecting run. Stderr holds
// everything the command wrote to standard error.
type CommandError struct {
	Command  string
	ExitCode *int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return s
	}
	if e.ExitCode != nil {
		return fmt.Sprintf("%s exited with status %d", e.Command, *e.ExitCode)
	}
	return fmt.Sprintf("%s was terminated by a signal", e.Command)
}

func (e *CommandError) Unwrap() error { return e.Err }
