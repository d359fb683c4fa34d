// Package ws provides the /stream WebSocket endpoint.
//
// A connection subscribes to the host's event hub, optionally filtered to one
// session with ?id=, and receives every output, exit and error event as it is
// emitted. The same connection accepts commands for interactive sessions, so
// a terminal view needs a single socket.
//
// Message Types (Client → Server):
//   - input: {id, data} writes keystrokes to a terminal session
//   - resize: {id, rows, cols} resizes a terminal session
//   - cancel: {id} terminates a process or terminal session
//   - ping: keep-alive, answered with pong
//
// Message Types (Server → Client):
//   - system: welcome frame carrying the connection id
//   - event: {topic, event} where topic is term-data-, term-exit- or term-error- plus the id
//   - ack / error: the outcome of a command, echoing its request_id
//   - pong
//
// A client that cannot keep up is sent an error frame and disconnected; it
// should reconnect and resynchronize instead of rendering a gapped stream.
//
// Example Usage:
//
//	handler := ws.NewHandler(host, corsConfig.OriginPolicy(), logger)
//	router.GET("/stream", handler.HandleConnection)
package ws
