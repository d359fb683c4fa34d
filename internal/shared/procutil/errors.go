package procutil

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// SpawnReason classifies why a child process could not be started.
type SpawnReason string

const (
	ReasonWorkDir  SpawnReason = "workdir"
	ReasonNotFound SpawnReason = "not_found"
	ReasonPTY      SpawnReason = "pty"
	ReasonStart    SpawnReason = "start"
)

// SpawnError is returned when a process never started. No registry entry or
// background goroutine exists for the id when this error is produced.
type SpawnError struct {
	ID      string
	Command string
	Reason  SpawnReason
	Err     error
}

func (e *SpawnError) Error() string {
	prefix := "spawn"
	if e.ID != "" {
		prefix = fmt.Sprintf("spawn %q", e.ID)
	}
	switch e.Reason {
	case ReasonWorkDir:
		return fmt.Sprintf("%s: invalid working directory: %v", prefix, e.Err)
	case ReasonNotFound:
		return fmt.Sprintf("%s: executable %q not found: %v", prefix, e.Command, e.Err)
	case ReasonPTY:
		return fmt.Sprintf("%s: pty allocation failed: %v", prefix, e.Err)
	default:
		return fmt.Sprintf("%s: failed to start %q: %v", prefix, e.Command, e.Err)
	}
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ClassifyStart maps an error returned by (*exec.Cmd).Start to a SpawnError.
func ClassifyStart(id, command string, err error) *SpawnError {
	reason := ReasonStart
	var pathErr *os.PathError
	switch {
	case errors.Is(err, exec.ErrNotFound):
		reason = ReasonNotFound
	case errors.As(err, &pathErr) && pathErr.Op == "chdir":
		reason = ReasonWorkDir
	case errors.Is(err, os.ErrNotExist):
		reason = ReasonNotFound
	}
	return &SpawnError{ID: id, Command: command, Reason: reason, Err: err}
}

// ValidateWorkDir checks that dir, when set, names an existing directory.
func ValidateWorkDir(dir string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
