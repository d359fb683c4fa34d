package terminal

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/ptyhost/internal/shared/types"
	"github.com/GriffinCanCode/ptyhost/internal/shared/utils"
)

// Provider exposes the session manager as registry tools
type Provider struct {
	manager *Manager
}

// NewProvider creates a terminal provider backed by manager
func NewProvider(manager *Manager) *Provider {
	return &Provider{manager: manager}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "terminal",
		Name:        "Terminal Service",
		Description: "Interactive shell sessions on a pseudo-terminal with streamed output",
		Category:    types.CategoryTerminal,
		Capabilities: []string{
			"pty",
			"shell",
			"interactive",
			"resize",
			"streaming",
		},
		Tools: p.getTools(),
	}
}

// Execute routes to appropriate operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}) (*types.Result, error) {
	switch toolID {
	case "terminal.spawn":
		return p.spawn(params)
	case "terminal.write":
		return p.write(params)
	case "terminal.resize":
		return p.resize(params)
	case "terminal.kill":
		return p.kill(params)
	case "terminal.list":
		return p.list()
	case "terminal.get":
		return p.get(params)
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}

func (p *Provider) getTools() []types.Tool {
	idParam := types.Parameter{
		Name:        "id",
		Type:        "string",
		Description: "Session id chosen by the client",
		Required:    true,
	}

	return []types.Tool{
		{
			ID:          "terminal.spawn",
			Name:        "Spawn Terminal",
			Description: "Start an interactive shell on a new pseudo-terminal",
			Parameters: []types.Parameter{
				idParam,
				{Name: "rows", Type: "number", Description: "Terminal height in rows. Defaults to 24", Required: false},
				{Name: "cols", Type: "number", Description: "Terminal width in columns. Defaults to 80", Required: false},
				{Name: "cwd", Type: "string", Description: "Working directory. Defaults to the user's home", Required: false},
				{Name: "shell", Type: "string", Description: "Shell executable. Defaults to the host shell", Required: false},
				{Name: "env", Type: "object", Description: "Extra environment variables", Required: false},
			},
			Returns: "session_info",
		},
		{
			ID:          "terminal.write",
			Name:        "Write to Terminal",
			Description: "Send input to a session verbatim. No newline is appended",
			Parameters: []types.Parameter{
				idParam,
				{Name: "data", Type: "string", Description: "Bytes to send", Required: true},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.resize",
			Name:        "Resize Terminal",
			Description: "Change terminal dimensions",
			Parameters: []types.Parameter{
				idParam,
				{Name: "rows", Type: "number", Description: "New height in rows", Required: true},
				{Name: "cols", Type: "number", Description: "New width in columns", Required: true},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.kill",
			Name:        "Kill Terminal",
			Description: "Terminate a session and every process it started",
			Parameters:  []types.Parameter{idParam},
			Returns:     "success",
		},
		{
			ID:          "terminal.list",
			Name:        "List Terminals",
			Description: "List live sessions",
			Parameters:  []types.Parameter{},
			Returns:     "sessions_list",
		},
		{
			ID:          "terminal.get",
			Name:        "Get Terminal",
			Description: "Get information about a live session",
			Parameters:  []types.Parameter{idParam},
			Returns:     "session_info",
		},
	}
}

func (p *Provider) spawn(params map[string]interface{}) (*types.Result, error) {
	req := SpawnRequest{}
	var err error

	if req.ID, err = utils.GetString(params, "id", true); err != nil {
		return nil, err
	}
	if req.Rows, err = utils.GetInt(params, "rows", 0); err != nil {
		return nil, err
	}
	if req.Cols, err = utils.GetInt(params, "cols", 0); err != nil {
		return nil, err
	}
	if req.Cwd, err = utils.GetString(params, "cwd", false); err != nil {
		return nil, err
	}
	if req.Shell, err = utils.GetString(params, "shell", false); err != nil {
		return nil, err
	}
	if req.Env, err = utils.GetStringMap(params, "env"); err != nil {
		return nil, err
	}

	info, err := p.manager.Spawn(req)
	if err != nil {
		return nil, err
	}
	return types.Success(infoData(*info)), nil
}

func (p *Provider) write(params map[string]interface{}) (*types.Result, error) {
	sessionID, err := utils.GetString(params, "id", true)
	if err != nil {
		return nil, err
	}
	data, err := utils.GetString(params, "data", true)
	if err != nil {
		return nil, err
	}

	if err := p.manager.Write(sessionID, []byte(data)); err != nil {
		return nil, err
	}
	return types.Success(map[string]interface{}{"success": true}), nil
}

func (p *Provider) resize(params map[string]interface{}) (*types.Result, error) {
	sessionID, err := utils.GetString(params, "id", true)
	if err != nil {
		return nil, err
	}
	rows, err := utils.GetInt(params, "rows", 0)
	if err != nil {
		return nil, err
	}
	cols, err := utils.GetInt(params, "cols", 0)
	if err != nil {
		return nil, err
	}

	if err := p.manager.Resize(sessionID, rows, cols); err != nil {
		return nil, err
	}
	return types.Success(map[string]interface{}{"success": true}), nil
}

func (p *Provider) kill(params map[string]interface{}) (*types.Result, error) {
	sessionID, err := utils.GetString(params, "id", true)
	if err != nil {
		return nil, err
	}

	if err := p.manager.Kill(sessionID); err != nil {
		return nil, err
	}
	return types.Success(map[string]interface{}{"success": true}), nil
}

func (p *Provider) list() (*types.Result, error) {
	sessions := p.manager.List()

	return types.Success(map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	}), nil
}

func (p *Provider) get(params map[string]interface{}) (*types.Result, error) {
	sessionID, err := utils.GetString(params, "id", true)
	if err != nil {
		return nil, err
	}

	info, err := p.manager.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return types.Success(infoData(*info)), nil
}

func infoData(info SessionInfo) map[string]interface{} {
	return map[string]interface{}{
		"id":          info.ID,
		"shell":       info.Shell,
		"working_dir": info.WorkingDir,
		"pid":         info.PID,
		"cols":        info.Cols,
		"rows":        info.Rows,
		"started_at":  info.StartedAt,
		"active":      info.Active,
	}
}
