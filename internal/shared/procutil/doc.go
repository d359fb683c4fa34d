// Package procutil holds the OS-facing helpers shared by the terminal and
// process managers.
//
// It covers:
//   - Spawn error classification (missing executable, bad working directory,
//     PTY allocation failure)
//   - Exit status decoding from (*exec.Cmd).Wait
//   - Process-tree termination, the only platform-specific call in the core
//   - Default interactive shell selection
//
// Process-tree termination:
//
//	Unix:    children are started in their own process group (PTY shells are
//	         session leaders already) and killed with kill(-pgid, SIGKILL).
//	Windows: taskkill /T /F /PID walks and kills the descendant tree.
package procutil
