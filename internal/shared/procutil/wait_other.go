//go:build !linux

package procutil

import "errors"

// AwaitExit is unsupported here; callers reap with exec.Cmd.Wait directly.
func AwaitExit(int) error {
	return errors.ErrUnsupported
}
