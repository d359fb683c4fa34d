package types

// Category represents service categories
type Category string

const (
	CategorySystem      Category = "system"
	CategoryTerminal    Category = "terminal"
	CategoryProcess     Category = "process"
	CategoryEnvironment Category = "environment"
)

// Service represents a service definition
type Service struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     Category `json:"category"`
	Capabilities []string `json:"capabilities"`
	Tools        []Tool   `json:"tools"`
}

// Tool represents a service tool
type Tool struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Returns     string      `json:"returns"`
}

// Parameter represents a tool parameter
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Result represents a service execution result
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *string                `json:"error,omitempty"`
}

// Success wraps data in a successful result
func Success(data map[string]interface{}) *Result {
	return &Result{Success: true, Data: data}
}

// Failure creates an unsuccessful result carrying msg. Tools use it for
// outcomes the caller must inspect rather than transport errors, such as a
// command that ran and exited non-zero.
func Failure(msg string, data map[string]interface{}) *Result {
	return &Result{Success: false, Data: data, Error: &msg}
}
