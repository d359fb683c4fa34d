//go:build unix

package procutil

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// TerminateTree force-kills every process in the group led by pid, which
// reaches the children a shell script spawned. pid must lead its group (see
// Isolate); the bare pid is never signalled on its own since it may already
// have been reaped and reused.
func TerminateTree(pid int) error {
	if pid <= 0 {
		return ErrInvalidPID
	}
	err := unix.Kill(-pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return ErrNotRunning
	}
	return err
}

// TerminateSession force-kills the process group led by sid, then every
// other process still in that session. Interactive shells move background
// jobs into groups of their own, so the group kill alone misses them. It
// returns how many session members were signalled individually. sid must
// not have been reaped yet.
func TerminateSession(sid int) (int, error) {
	if sid <= 0 {
		return 0, ErrInvalidPID
	}
	groupErr := unix.Kill(-sid, unix.SIGKILL)
	if groupErr != nil && !errors.Is(groupErr, unix.ESRCH) {
		return 0, groupErr
	}

	members, err := sessionMembers(sid)
	if err != nil {
		return 0, fmt.Errorf("list session %d: %w", sid, err)
	}

	var (
		signalled int
		errs      []error
	)
	for _, pid := range members {
		if pid == sid {
			continue
		}
		// The listing is a snapshot; skip pids that left the session since.
		if cur, err := unix.Getsid(pid); err != nil || cur != sid {
			continue
		}
		switch err := unix.Kill(pid, unix.SIGKILL); {
		case err == nil:
			signalled++
		case errors.Is(err, unix.ESRCH):
		default:
			errs = append(errs, fmt.Errorf("kill %d: %w", pid, err))
		}
	}
	if len(errs) > 0 {
		return signalled, errors.Join(errs...)
	}
	if groupErr != nil && signalled == 0 {
		return 0, ErrNotRunning
	}
	return signalled, nil
}

// Isolate makes cmd the leader of a new process group so TerminateTree can
// reach its descendants. Do not use it for PTY children: they already lead
// their own session.
func Isolate(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}
