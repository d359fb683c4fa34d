package procutil

import (
	"errors"
	"os/exec"
)

// ExitStatus interprets the error returned by (*exec.Cmd).Wait.
//
// A normal exit yields the exit code. A child killed by a signal yields a nil
// code and a nil error. Any other wait failure is returned as the error.
func ExitStatus(waitErr error) (*int, error) {
	if waitErr == nil {
		code := 0
		return &code, nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return &code, nil
		}
		return nil, nil
	}
	return nil, waitErr
}
