package system

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/GriffinCanCode/ptyhost/internal/domain/events"
	"github.com/GriffinCanCode/ptyhost/internal/shared/types"
	"github.com/GriffinCanCode/ptyhost/internal/shared/utils"
)

// Counter reports how many live entries a table holds.
type Counter interface {
	Count() int
}

// Provider implements host information tools
type Provider struct {
	startTime time.Time
	shell     string
	history   *History
	terminals Counter
	processes Counter
}

// NewProvider creates a system provider. shell is the default interactive
// shell sessions start with.
func NewProvider(shell string, history *History, terminals, processes Counter) *Provider {
	return &Provider{
		startTime: time.Now(),
		shell:     shell,
		history:   history,
		terminals: terminals,
		processes: processes,
	}
}

// Definition returns service metadata
func (s *Provider) Definition() types.Service {
	return types.Service{
		ID:          "system",
		Name:        "System Service",
		Description: "Host information and recent session history",
		Category:    types.CategorySystem,
		Capabilities: []string{
			"info",
			"history",
		},
		Tools: []types.Tool{
			{
				ID:          "system.info",
				Name:        "System Info",
				Description: "Get host platform, default shell and live counts",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "system.history",
				Name:        "Session History",
				Description: "List how recent sessions and processes ended",
				Parameters: []types.Parameter{
					{Name: "limit", Type: "number", Description: "Number of entries to return", Required: false},
					{Name: "source", Type: "string", Description: "terminal or process", Required: false},
				},
				Returns: "array",
			},
			{
				ID:          "system.ping",
				Name:        "Ping",
				Description: "Test service availability",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
		},
	}
}

// Execute runs a system operation
func (s *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}) (*types.Result, error) {
	switch toolID {
	case "system.info":
		return s.info(), nil
	case "system.history":
		return s.recent(params)
	case "system.ping":
		return types.Success(map[string]interface{}{
			"pong":      true,
			"timestamp": time.Now().Unix(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}

func (s *Provider) info() *types.Result {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	hostname, _ := os.Hostname()

	return types.Success(map[string]interface{}{
		"go_version":        runtime.Version(),
		"os":                runtime.GOOS,
		"arch":              runtime.GOARCH,
		"hostname":          hostname,
		"cpus":              runtime.NumCPU(),
		"goroutines":        runtime.NumGoroutine(),
		"memory_alloc":      m.Alloc / 1024 / 1024, // MB
		"memory_sys":        m.Sys / 1024 / 1024,   // MB
		"shell":             s.shell,
		"terminal_sessions": s.terminals.Count(),
		"processes":         s.processes.Count(),
		"uptime_seconds":    time.Since(s.startTime).Seconds(),
	})
}

func (s *Provider) recent(params map[string]interface{}) (*types.Result, error) {
	limit, err := utils.GetInt(params, "limit", 100)
	if err != nil {
		return nil, err
	}
	source, err := utils.GetString(params, "source", false)
	if err != nil {
		return nil, err
	}
	switch events.Source(source) {
	case "", events.SourceTerminal, events.SourceProcess:
	default:
		return nil, fmt.Errorf("source must be terminal or process: %w", utils.ErrInvalidInput)
	}

	entries := s.history.Recent(limit, events.Source(source))
	return types.Success(map[string]interface{}{
		"history": entries,
		"count":   len(entries),
	}), nil
}
