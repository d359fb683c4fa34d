// Package registry provides the session table shared by the terminal and
// process managers.
//
// A Table is a plain concurrency-safe map: insert, lookup, remove. It holds
// the handles a request needs to reach a live child (PTY writer and resize
// handle, or a pid for cancellation); it never owns the goroutines that do
// the I/O. Entries are removed by the exit-watcher of the process they
// describe, at most once.
//
// Example Usage:
//
//	sessions := registry.NewTable[*Session]("terminal session")
//	if err := sessions.Register("t1", sess); err != nil {
//	    // errors.Is(err, registry.ErrAlreadyExists)
//	}
//	sess, ok := sessions.Lookup("t1")
//	sessions.RemoveFunc("t1", func(s *Session) bool { return s == sess })
package registry
