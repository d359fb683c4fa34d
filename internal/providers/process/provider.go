package process

import (
	"context"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/ptyhost/internal/shared/types"
	"github.com/GriffinCanCode/ptyhost/internal/shared/utils"
)

// Provider exposes the runner as registry tools
type Provider struct {
	runner *Runner
}

// NewProvider creates a process provider backed by runner
func NewProvider(runner *Runner) *Provider {
	return &Provider{runner: runner}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "process",
		Name:        "Process Service",
		Description: "Run one-shot commands with streamed output or collect their result",
		Category:    types.CategoryProcess,
		Capabilities: []string{
			"spawn",
			"streaming",
			"cancel",
			"process-group",
		},
		Tools: p.getTools(),
	}
}

// Execute routes to appropriate operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}) (*types.Result, error) {
	switch toolID {
	case "process.run":
		return p.run(params)
	case "process.exec":
		return p.exec(ctx, params)
	case "process.cancel":
		return p.cancel(params)
	case "process.list":
		return p.list()
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}

func (p *Provider) getTools() []types.Tool {
	cmdParams := []types.Parameter{
		{Name: "command", Type: "string", Description: "Executable to run", Required: true},
		{Name: "args", Type: "array", Description: "Arguments passed verbatim", Required: false},
		{Name: "cwd", Type: "string", Description: "Working directory", Required: false},
		{Name: "env", Type: "object", Description: "Extra environment variables", Required: false},
	}

	return []types.Tool{
		{
			ID:          "process.run",
			Name:        "Run Process",
			Description: "Start a command and stream its output line by line as events",
			Parameters: append([]types.Parameter{
				{Name: "id", Type: "string", Description: "Process id chosen by the client", Required: true},
			}, cmdParams...),
			Returns: "accepted",
		},
		{
			ID:          "process.exec",
			Name:        "Execute Command",
			Description: "Run a command to completion and return stdout, or stderr on failure",
			Parameters: append(cmdParams,
				types.Parameter{Name: "stdin", Type: "string", Description: "Data written to standard input", Required: false},
			),
			Returns: "stdout",
		},
		{
			ID:          "process.cancel",
			Name:        "Cancel Process",
			Description: "Kill a streaming process and its process group",
			Parameters: []types.Parameter{
				{Name: "id", Type: "string", Description: "Process id", Required: true},
			},
			Returns: "success",
		},
		{
			ID:          "process.list",
			Name:        "List Processes",
			Description: "List streaming processes that are still running",
			Parameters:  []types.Parameter{},
			Returns:     "process_list",
		},
	}
}

type commandParams struct {
	command string
	args    []string
	cwd     string
	env     map[string]string
}

func parseCommand(params map[string]interface{}) (commandParams, error) {
	var c commandParams
	var err error
	if c.command, err = utils.GetString(params, "command", true); err != nil {
		return c, err
	}
	if c.args, err = utils.GetStringSlice(params, "args"); err != nil {
		return c, err
	}
	if c.cwd, err = utils.GetString(params, "cwd", false); err != nil {
		return c, err
	}
	if c.env, err = utils.GetStringMap(params, "env"); err != nil {
		return c, err
	}
	return c, nil
}

func (p *Provider) run(params map[string]interface{}) (*types.Result, error) {
	id, err := utils.GetString(params, "id", true)
	if err != nil {
		return nil, err
	}
	c, err := parseCommand(params)
	if err != nil {
		return nil, err
	}

	err = p.runner.Start(Request{ID: id, Command: c.command, Args: c.args, Cwd: c.cwd, Env: c.env})
	if err != nil {
		return nil, err
	}
	return types.Success(map[string]interface{}{"id": id, "accepted": true}), nil
}

func (p *Provider) exec(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	c, err := parseCommand(params)
	if err != nil {
		return nil, err
	}
	stdin, err := utils.GetString(params, "stdin", false)
	if err != nil {
		return nil, err
	}

	stdout, err := p.runner.RunSync(ctx, SyncRequest{Command: c.command, Args: c.args, Cwd: c.cwd, Env: c.env, Stdin: stdin})
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return types.Failure(cmdErr.Error(), map[string]interface{}{
			"stderr":    cmdErr.Stderr,
			"exit_code": cmdErr.ExitCode,
		}), nil
	}
	if err != nil {
		return nil, err
	}
	return types.Success(map[string]interface{}{"stdout": stdout}), nil
}

func (p *Provider) cancel(params map[string]interface{}) (*types.Result, error) {
	id, err := utils.GetString(params, "id", true)
	if err != nil {
		return nil, err
	}
	if err := p.runner.Cancel(id); err != nil {
		return nil, err
	}
	return types.Success(map[string]interface{}{"success": true}), nil
}

func (p *Provider) list() (*types.Result, error) {
	procs := p.runner.List()
	return types.Success(map[string]interface{}{
		"processes": procs,
		"count":     len(procs),
	}), nil
}
