package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/ptyhost/internal/domain/events"
	"github.com/GriffinCanCode/ptyhost/internal/domain/registry"
	"github.com/GriffinCanCode/ptyhost/internal/shared/procutil"
	"github.com/GriffinCanCode/ptyhost/internal/shared/textdecode"
	"github.com/GriffinCanCode/ptyhost/internal/shared/utils"
	"github.com/creack/pty"
	"go.uber.org/zap"
)

// outputDrain bounds how long output is still read after the shell exited.
const outputDrain = 2 * time.Second

var errInvalidSize = errors.New("rows and cols must be between 1 and 65535")

// Manager owns the interactive sessions of one host.
type Manager struct {
	cfg      Config
	sessions *registry.Table[*Session]
	sink     events.Sink
	logger   *zap.Logger

	watchers sync.WaitGroup
	closed   atomic.Bool
}

// NewManager creates a session manager that reports to sink.
func NewManager(cfg Config, sink events.Sink, logger *zap.Logger) *Manager {
	if sink == nil {
		sink = events.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg.withDefaults(),
		sessions: registry.NewTable[*Session]("terminal session"),
		sink:     sink,
		logger:   logger,
	}
}

// Spawn starts a shell on a new PTY and registers it under req.ID.
// Every failure is returned before a registry entry or goroutine exists.
func (m *Manager) Spawn(req SpawnRequest) (*SessionInfo, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if err := utils.ValidateID(req.ID, "id"); err != nil {
		return nil, err
	}
	if err := utils.ValidateDimensions(req.Rows, req.Cols); err != nil {
		return nil, err
	}
	if m.sessions.Contains(req.ID) {
		return nil, fmt.Errorf("terminal session %q: %w", req.ID, registry.ErrAlreadyExists)
	}

	rows, cols := m.cfg.DefaultRows, m.cfg.DefaultCols
	if req.Rows > 0 {
		rows = uint16(req.Rows)
	}
	if req.Cols > 0 {
		cols = uint16(req.Cols)
	}

	shell := m.resolveShell(req.Shell)
	workDir := req.Cwd
	if workDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			workDir = home
		}
	}
	if err := procutil.ValidateWorkDir(workDir); err != nil {
		return nil, &procutil.SpawnError{ID: req.ID, Command: shell, Reason: procutil.ReasonWorkDir, Err: err}
	}
	if _, err := exec.LookPath(shell); err != nil {
		return nil, &procutil.SpawnError{ID: req.ID, Command: shell, Reason: procutil.ReasonNotFound, Err: err}
	}

	cmd := exec.Command(shell)
	cmd.Dir = workDir
	cmd.Env = m.environ(req.Env)

	// The child becomes a session leader, so its pid is also its process
	// group and session id, which is what TerminateSession sweeps.
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return nil, classifyStart(req.ID, shell, err)
	}

	sess := &Session{
		ID:         req.ID,
		Shell:      shell,
		WorkingDir: workDir,
		StartedAt:  time.Now(),
		cmd:        cmd,
		ptmx:       ptmx,
		pid:        cmd.Process.Pid,
		rows:       rows,
		cols:       cols,
	}

	if err := m.sessions.Register(req.ID, sess); err != nil {
		// Lost a race with a concurrent spawn of the same id.
		m.reclaim(sess)
		return nil, err
	}

	m.watchers.Add(1)
	go m.watch(sess)

	m.logger.Info("Terminal session started",
		zap.String("session_id", sess.ID),
		zap.Int("pid", sess.pid),
		zap.String("shell", shell),
		zap.String("cwd", workDir),
		zap.Uint16("rows", rows),
		zap.Uint16("cols", cols))

	if m.closed.Load() {
		_, _ = sess.kill()
	}

	info := sess.info()
	return &info, nil
}

// watch waits for the shell to exit, then sweeps what is left of its
// session, drains the output and reports. It is the only place the
// registry entry is removed and the terminal event emitted.
func (m *Manager) watch(s *Session) {
	defer m.watchers.Done()
	log := m.logger.With(zap.String("session_id", s.ID), zap.Int("pid", s.pid))

	drained := make(chan struct{})
	go m.pump(s, drained, log)

	var waitErr error
	if err := procutil.AwaitExit(s.pid); err == nil {
		// The shell is a zombie, so its session id still names only its
		// own leftovers.
		s.markExited()
		if n, err := procutil.TerminateSession(s.pid); err != nil && !errors.Is(err, procutil.ErrNotRunning) {
			log.Warn("Failed to terminate leftover session members", zap.Error(err))
		} else if n > 0 {
			log.Info("Terminated leftover session members", zap.Int("count", n))
		}
		waitErr = s.cmd.Wait()
	} else {
		waitErr = s.cmd.Wait()
		s.markExited()
	}

	// Reading stops once every holder of the slave side is gone. Anything
	// that escaped the session can keep it open, so the wait is bounded.
	select {
	case <-drained:
	case <-time.After(outputDrain):
		_ = s.ptmx.SetReadDeadline(time.Now())
		s.closeMaster()
		select {
		case <-drained:
		case <-time.After(outputDrain):
			log.Warn("PTY reader still blocked after the shell exited; dropping late output")
		}
	}
	s.finishOutput()
	s.closeMaster()
	m.sessions.RemoveFunc(s.ID, func(v *Session) bool { return v == s })

	code, err := procutil.ExitStatus(waitErr)
	if err != nil {
		log.Error("Failed to reap terminal session", zap.Error(err))
		m.sink.Emit(events.Error(events.SourceTerminal, s.ID, fmt.Sprintf("wait: %v", err)))
		return
	}

	log.Info("Terminal session exited", zap.Any("code", code))
	m.sink.Emit(events.Exit(events.SourceTerminal, s.ID, code))
}

// pump forwards PTY output in order until the master reports EOF or an
// error.
func (m *Manager) pump(s *Session, drained chan<- struct{}, log *zap.Logger) {
	defer close(drained)

	r := textdecode.NewReader(s.ptmx)
	buf := make([]byte, m.cfg.ReadBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.emit(m.sink, string(buf[:n]))
		}
		if err != nil {
			// EIO is how Linux reports the slave side closing.
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				log.Debug("PTY read ended", zap.Error(err))
			}
			return
		}
	}
}

// reclaim tears down a child that was started but never registered.
func (m *Manager) reclaim(s *Session) {
	if err := procutil.TerminateTree(s.pid); err != nil && !errors.Is(err, procutil.ErrNotRunning) {
		m.logger.Warn("Failed to terminate unregistered shell", zap.Int("pid", s.pid), zap.Error(err))
	}
	_ = s.cmd.Wait()
	s.closeMaster()
}

// Write sends data verbatim to the session. Failures of the write itself are
// logged, not returned: the shell may already be gone.
func (m *Manager) Write(id string, data []byte) error {
	s, ok := m.sessions.Lookup(id)
	if !ok {
		return notFound(id)
	}
	if err := s.write(data); err != nil {
		m.logger.Warn("Failed to write to terminal",
			zap.String("session_id", id),
			zap.Int("bytes", len(data)),
			zap.Error(err))
	}
	return nil
}

// Resize changes the terminal size the child sees.
func (m *Manager) Resize(id string, rows, cols int) error {
	s, ok := m.sessions.Lookup(id)
	if !ok {
		return notFound(id)
	}
	if rows <= 0 || cols <= 0 || rows > math.MaxUint16 || cols > math.MaxUint16 {
		return &ResizeError{ID: id, Rows: rows, Cols: cols, Err: errInvalidSize}
	}
	if err := s.resize(uint16(rows), uint16(cols)); err != nil {
		return &ResizeError{ID: id, Rows: rows, Cols: cols, Err: err}
	}
	return nil
}

// Kill terminates every process in the session. The watcher still removes the
// entry and emits the exit event.
func (m *Manager) Kill(id string) error {
	s, ok := m.sessions.Lookup(id)
	if !ok {
		return notFound(id)
	}
	members, err := s.kill()
	if err != nil {
		return fmt.Errorf("kill terminal session %q: %w", id, err)
	}
	m.logger.Info("Terminal session killed",
		zap.String("session_id", id),
		zap.Int("pid", s.pid),
		zap.Int("background_members", members))
	return nil
}

// Get returns information about a live session.
func (m *Manager) Get(id string) (*SessionInfo, error) {
	s, ok := m.sessions.Lookup(id)
	if !ok {
		return nil, notFound(id)
	}
	info := s.info()
	return &info, nil
}

// List returns the live sessions ordered by id.
func (m *Manager) List() []SessionInfo {
	sessions := m.sessions.Values()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.info())
	}
	return infos
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	return m.sessions.Len()
}

// Close kills every live session and waits for their watchers to finish or
// ctx to expire. Spawn fails afterwards.
func (m *Manager) Close(ctx context.Context) error {
	m.closed.Store(true)

	for _, s := range m.sessions.Values() {
		if _, err := s.kill(); err != nil {
			m.logger.Warn("Failed to kill terminal session on shutdown",
				zap.String("session_id", s.ID), zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		m.watchers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) resolveShell(requested string) string {
	switch {
	case requested != "":
		return requested
	case m.cfg.Shell != "":
		return m.cfg.Shell
	default:
		return procutil.DefaultShell()
	}
}

func (m *Manager) environ(extra map[string]string) []string {
	env := append(os.Environ(), "TERM="+m.cfg.Term)
	if m.cfg.ColorTerm != "" {
		env = append(env, "COLORTERM="+m.cfg.ColorTerm)
	}
	return procutil.MergeEnv(env, extra)
}

// classifyStart separates exec failures from PTY allocation failures. The
// shell and working directory were checked beforehand, so anything that is
// not a fork/exec error came from opening or sizing the device.
func classifyStart(id, shell string, err error) *procutil.SpawnError {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && pathErr.Op == "fork/exec" {
		return procutil.ClassifyStart(id, shell, err)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return procutil.ClassifyStart(id, shell, err)
	}
	return &procutil.SpawnError{ID: id, Command: shell, Reason: procutil.ReasonPTY, Err: err}
}

func notFound(id string) error {
	return fmt.Errorf("terminal session %q: %w", id, registry.ErrNotFound)
}
