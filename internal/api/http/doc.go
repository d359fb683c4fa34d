// Package http provides the REST surface of the terminal host.
//
// Endpoints:
//   - Health: /, /health, /metrics, /metrics/json
//   - Services: /services (?category=, ?q=), /services/execute
//   - Terminals: /terminals, /terminals/:id, /terminals/:id/input, /terminals/:id/resize
//   - Processes: /processes, /processes/exec
//   - Sessions: DELETE /sessions/:id cancels a process or terminal
//   - Environments: /environments?path=[&workspace=true&depth=N]
//   - UI logs: POST /logs
//
// Host errors are mapped to status codes by StatusFor: invalid input 400,
// unknown ids 404, duplicate ids 409, spawn, resize and command failures
// 422, and a closed host 503.
//
// Output of terminals and streaming processes is not returned here; it is
// delivered over the /stream WebSocket.
package http
