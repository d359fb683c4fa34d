package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/ptyhost/internal/domain/events"
	"github.com/GriffinCanCode/ptyhost/internal/domain/registry"
	"github.com/GriffinCanCode/ptyhost/internal/domain/service"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyhost/internal/providers/environment"
	"github.com/GriffinCanCode/ptyhost/internal/providers/process"
	"github.com/GriffinCanCode/ptyhost/internal/providers/system"
	"github.com/GriffinCanCode/ptyhost/internal/providers/terminal"
	"github.com/GriffinCanCode/ptyhost/internal/shared/procutil"
	"github.com/GriffinCanCode/ptyhost/internal/shared/utils"
	"go.uber.org/zap"
)

// ErrClosed is returned by operations on a host that has been closed.
var ErrClosed = errors.New("host closed")

// Config assembles the settings of every component the host owns.
type Config struct {
	Terminal    terminal.Config
	Environment environment.Config
	// EventBuffer is the per-subscriber channel capacity of the event hub.
	EventBuffer int
	// HistorySize bounds the number of finished sessions kept for
	// system.history.
	HistorySize int
	// SyncTimeout bounds RunCollecting when the caller's context has no
	// deadline. Zero means no bound.
	SyncTimeout time.Duration
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Terminal:    terminal.DefaultConfig(),
		Environment: environment.DefaultConfig(),
		EventBuffer: 256,
		HistorySize: 200,
		SyncTimeout: 5 * time.Minute,
	}
}

// Host owns the PTY session table and the tracked-process table, through
// their managers, for the lifetime of the server.
type Host struct {
	cfg     Config
	logger  *zap.Logger
	metrics *monitoring.Metrics

	hub       *events.Hub
	history   *system.History
	terminals *terminal.Manager
	processes *process.Runner
	detector  *environment.Detector
	services  *service.Registry

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New constructs the host and its managers. Every event is fanned out to
// the hub, the session history and any extra sinks. metrics may be nil.
func New(cfg Config, metrics *monitoring.Metrics, logger *zap.Logger, extra ...events.Sink) (*Host, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	h := &Host{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		hub:     events.NewHub(cfg.EventBuffer, logger.Named("events")),
		history: system.NewHistory(cfg.HistorySize),
	}

	sink := events.Tee(append([]events.Sink{events.SinkFunc(h.instrument), h.history, h.hub}, extra...)...)
	h.terminals = terminal.NewManager(cfg.Terminal, sink, logger.Named("terminal"))
	h.processes = process.NewRunner(sink, logger.Named("process"))
	h.detector = environment.NewDetector(cfg.Environment, h.processes, logger.Named("environment"))

	h.services = service.NewRegistry()
	providers := []service.Provider{
		terminal.NewProvider(h.terminals),
		process.NewProvider(h.processes),
		environment.NewProvider(h.detector),
		system.NewProvider(h.defaultShell(), h.history, h.terminals, h.processes),
	}
	for _, p := range providers {
		if err := h.services.Register(p); err != nil {
			return nil, fmt.Errorf("register %s provider: %w", p.Definition().ID, err)
		}
	}

	return h, nil
}

// instrument counts every event and refreshes the live gauges when a
// session or process ends. Watchers remove their entry before emitting the
// terminal event, so the counts are already current.
func (h *Host) instrument(e events.Event) {
	h.metrics.RecordEvent(string(e.Source), string(e.Kind))
	if e.Terminal() {
		h.refreshGauges()
	}
}

func (h *Host) refreshGauges() {
	if h.terminals != nil {
		h.metrics.SetTerminalSessions(h.terminals.Count())
	}
	if h.processes != nil {
		h.metrics.SetProcesses(h.processes.Count())
	}
}

func (h *Host) defaultShell() string {
	if h.cfg.Terminal.Shell != "" {
		return h.cfg.Terminal.Shell
	}
	return procutil.DefaultShell()
}

// SpawnInteractive starts a shell on a new PTY registered under req.ID.
func (h *Host) SpawnInteractive(req terminal.SpawnRequest) (*terminal.SessionInfo, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	info, err := h.terminals.Spawn(req)
	h.metrics.RecordSpawn(string(events.SourceTerminal), err)
	h.refreshGauges()
	return info, err
}

// WriteInteractive sends data to a session verbatim.
func (h *Host) WriteInteractive(id string, data []byte) error {
	if len(data) > utils.MaxInputSize {
		return fmt.Errorf("%w: input of %d bytes exceeds %d", utils.ErrInvalidInput, len(data), utils.MaxInputSize)
	}
	return h.terminals.Write(id, data)
}

// ResizeInteractive changes a session's window size.
func (h *Host) ResizeInteractive(id string, rows, cols int) error {
	return h.terminals.Resize(id, rows, cols)
}

// RunStreaming starts a command whose output lines arrive as events. Only
// malformed requests and duplicate ids fail synchronously.
func (h *Host) RunStreaming(req process.Request) error {
	if h.closed.Load() {
		return ErrClosed
	}
	err := h.processes.Start(req)
	h.metrics.RecordSpawn(string(events.SourceProcess), err)
	h.refreshGauges()
	return err
}

// RunCollecting runs a command to completion and returns its stdout. A
// command that fails returns a *process.CommandError carrying stderr.
func (h *Host) RunCollecting(ctx context.Context, req process.SyncRequest) (string, error) {
	if h.closed.Load() {
		return "", ErrClosed
	}
	if _, ok := ctx.Deadline(); !ok && h.cfg.SyncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.SyncTimeout)
		defer cancel()
	}
	return h.processes.RunSync(ctx, req)
}

// Cancel terminates whatever runs under id: a tracked process if there is
// one, otherwise a PTY session.
func (h *Host) Cancel(id string) error {
	err := h.processes.Cancel(id)
	if !errors.Is(err, registry.ErrNotFound) {
		return err
	}
	if err := h.terminals.Kill(id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return fmt.Errorf("session %q: %w", id, registry.ErrNotFound)
		}
		return err
	}
	return nil
}

// DetectEnvironments lists interpreter environments for a project.
func (h *Host) DetectEnvironments(ctx context.Context, projectPath string) ([]environment.Environment, error) {
	return h.detector.Detect(ctx, projectPath)
}

// DetectWorkspace lists interpreter environments for every project below
// root.
func (h *Host) DetectWorkspace(ctx context.Context, root string, depth int) ([]environment.Environment, error) {
	return h.detector.DetectWorkspace(ctx, root, depth)
}

// Session returns one live PTY session.
func (h *Host) Session(id string) (*terminal.SessionInfo, error) {
	return h.terminals.Get(id)
}

// Sessions lists live PTY sessions.
func (h *Host) Sessions() []terminal.SessionInfo {
	return h.terminals.List()
}

// Processes lists running streaming processes.
func (h *Host) Processes() []process.ProcessInfo {
	return h.processes.List()
}

// Subscribe registers for events matching filter, or all events when
// filter is nil.
func (h *Host) Subscribe(filter func(events.Event) bool) *events.Subscription {
	return h.hub.Subscribe(filter)
}

// Services returns the tool registry.
func (h *Host) Services() *service.Registry {
	return h.services
}

// Metrics returns the host's metrics.
func (h *Host) Metrics() *monitoring.Metrics {
	return h.metrics
}

// Close kills every live session and process, waits for their watchers and
// disconnects subscribers. It is safe to call more than once.
func (h *Host) Close(ctx context.Context) error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.logger.Info("Shutting down host",
			zap.Int("terminal_sessions", h.terminals.Count()),
			zap.Int("processes", h.processes.Count()))

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs[0] = h.terminals.Close(ctx)
		}()
		go func() {
			defer wg.Done()
			errs[1] = h.processes.Close(ctx)
		}()
		wg.Wait()

		h.hub.Close()
		h.refreshGauges()
		h.closeErr = errors.Join(errs...)
	})
	return h.closeErr
}
