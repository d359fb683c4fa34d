package types

// ExecuteRequest represents a service execution request
type ExecuteRequest struct {
	ToolID string                 `json:"tool_id" binding:"required"`
	Params map[string]interface{} `json:"params"`
}

// WebSocket command types sent by the client.
const (
	WSInput  = "input"
	WSResize = "resize"
	WSCancel = "cancel"
	WSPing   = "ping"
)

// WSMessage is a command received over the event stream connection.
type WSMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	ID        string `json:"id,omitempty"`
	Data      string `json:"data,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	Cols      int    `json:"cols,omitempty"`
}
