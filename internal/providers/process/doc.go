// Package process runs one-shot commands.
//
// Streaming runs (Runner.Start) are tracked by a client-chosen id so they can
// be cancelled. Each stream is read line by line on its own goroutine and
// emitted as output events; lines within a stream keep their order, while
// stdout and stderr are not ordered relative to each other. After both
// streams close the watcher reaps the process, removes the id and emits one
// exit event (code is null when the process was killed by a signal).
//
// Collecting runs (Runner.RunSync) return standard output on success and a
// *CommandError carrying standard error otherwise. They are never tracked.
//
// Every child runs in its own process group so Cancel reaches the commands a
// script started.
package process
