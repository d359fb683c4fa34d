// Package types provides the wire types shared by the tool registry and the
// HTTP and WebSocket surfaces.
//
// Core Types:
//   - Service: provider definition listing its tools
//   - Tool, Parameter: tool specification
//   - Result: standard tool result
//
// Request Types:
//   - ExecuteRequest: tool execution over HTTP
//   - WSMessage: command sent over the event stream
package types
