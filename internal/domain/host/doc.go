// Package host is the boundary between the transports and the execution
// core.
//
// A Host is constructed once at startup. It owns the PTY session manager,
// the one-shot process runner and the environment detector, wires all of
// them to a single event sink, and exposes the operations the HTTP and
// WebSocket layers call:
//
//   - SpawnInteractive, WriteInteractive, ResizeInteractive
//   - RunStreaming, RunCollecting
//   - Cancel (a tracked process first, then a PTY session)
//   - DetectEnvironments, DetectWorkspace
//
// Every event goes to the metrics, the session history and the event hub,
// in that order. Subscribers read from the hub.
//
// Close is the teardown: it kills every live session and process, waits for
// their watchers to emit the final events and then disconnects subscribers.
package host
