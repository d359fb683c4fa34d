//go:build windows

package procutil

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// TerminateTree force-kills pid and its descendant tree with taskkill.
func TerminateTree(pid int) error {
	if pid <= 0 {
		return ErrInvalidPID
	}
	kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid))
	kill.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NO_WINDOW}
	out, err := kill.CombinedOutput()
	if err != nil {
		// taskkill exits 128 when the pid is already gone.
		if strings.Contains(string(out), "not found") {
			return ErrNotRunning
		}
		return fmt.Errorf("taskkill %d: %w: %s", pid, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// TerminateSession kills the tree rooted at pid. Windows has no session
// ids to sweep; taskkill /T already follows descendants.
func TerminateSession(pid int) (int, error) {
	return 0, TerminateTree(pid)
}

// Isolate starts cmd in a new process group without a console window.
func Isolate(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= windows.CREATE_NEW_PROCESS_GROUP | windows.CREATE_NO_WINDOW
}
