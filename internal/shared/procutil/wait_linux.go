//go:build linux

package procutil

import (
	"errors"

	"golang.org/x/sys/unix"
)

// AwaitExit blocks until pid has exited but leaves it unreaped, so the pid
// (and its group and session ids) cannot be reused until exec.Cmd.Wait runs.
func AwaitExit(pid int) error {
	if pid <= 0 {
		return ErrInvalidPID
	}
	var info unix.Siginfo
	for {
		err := unix.Waitid(unix.P_PID, pid, &info, unix.WEXITED|unix.WNOWAIT, nil)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
