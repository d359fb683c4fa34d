// Package terminal manages interactive shells attached to pseudo-terminals.
//
// Each session runs the host shell on its own PTY. Output is streamed to an
// events.Sink as it is read, chunk by chunk, with no line buffering so
// progress bars and prompts arrive as the shell writes them. Bytes that are
// not valid UTF-8 are replaced with U+FFFD; a rune split across two reads is
// reassembled.
//
// Architecture:
//   - Sessions live in a registry.Table keyed by a client-chosen id
//   - One watcher goroutine per session reads output, then reaps the shell,
//     removes the registry entry and emits exactly one exit or error event
//   - Kill signals the shell's whole process group; cleanup stays with the
//     watcher so a kill racing a natural exit still yields one event
//
// Example Usage:
//
//	mgr := terminal.NewManager(terminal.DefaultConfig(), sink, logger)
//	mgr.Spawn(terminal.SpawnRequest{ID: "t1", Rows: 24, Cols: 80, Cwd: "/tmp"})
//	mgr.Write("t1", []byte("ls -la\n"))
//	mgr.Resize("t1", 40, 120)
//	mgr.Kill("t1")
//
// Tools:
//   - terminal.spawn: Start a shell on a new PTY
//   - terminal.write: Send input verbatim
//   - terminal.resize: Resize terminal dimensions
//   - terminal.kill: Terminate a session and its process tree
//   - terminal.list: List live sessions
//   - terminal.get: Inspect one session
package terminal
