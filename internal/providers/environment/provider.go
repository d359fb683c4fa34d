package environment

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/ptyhost/internal/shared/types"
	"github.com/GriffinCanCode/ptyhost/internal/shared/utils"
)

// Provider exposes environment detection as registry tools
type Provider struct {
	detector *Detector
}

// NewProvider creates an environment provider backed by detector
func NewProvider(detector *Detector) *Provider {
	return &Provider{detector: detector}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "environment",
		Name:        "Environment Service",
		Description: "Discover Python interpreter environments for a project",
		Category:    types.CategoryEnvironment,
		Capabilities: []string{
			"venv",
			"conda",
			"poetry",
			"pipenv",
			"workspace",
		},
		Tools: []types.Tool{
			{
				ID:          "environment.detect",
				Name:        "Detect Environments",
				Description: "List virtual environments belonging to a project directory",
				Parameters: []types.Parameter{
					{Name: "path", Type: "string", Description: "Project directory", Required: true},
				},
				Returns: "environments",
			},
			{
				ID:          "environment.detect_workspace",
				Name:        "Detect Workspace Environments",
				Description: "Find projects below a directory and list the environments of each",
				Parameters: []types.Parameter{
					{Name: "path", Type: "string", Description: "Workspace root", Required: true},
					{Name: "depth", Type: "number", Description: "How many directory levels to search", Required: false},
				},
				Returns: "environments",
			},
		},
	}
}

// Execute routes to appropriate operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}) (*types.Result, error) {
	path, err := utils.GetString(params, "path", true)
	if err != nil {
		return nil, err
	}

	var envs []Environment
	switch toolID {
	case "environment.detect":
		envs, err = p.detector.Detect(ctx, path)
	case "environment.detect_workspace":
		var depth int
		if depth, err = utils.GetInt(params, "depth", 0); err != nil {
			return nil, err
		}
		envs, err = p.detector.DetectWorkspace(ctx, path, depth)
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
	if err != nil {
		return nil, err
	}

	return types.Success(map[string]interface{}{
		"environments": envs,
		"count":        len(envs),
	}), nil
}
