package terminal

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/GriffinCanCode/ptyhost/internal/domain/events"
	"github.com/GriffinCanCode/ptyhost/internal/shared/procutil"
	"github.com/creack/pty"
)

// Session is one live shell attached to a PTY.
type Session struct {
	ID         string
	Shell      string
	WorkingDir string
	StartedAt  time.Time

	cmd  *exec.Cmd
	ptmx *os.File
	pid  int

	// writeMu keeps writes from different callers from interleaving.
	writeMu sync.Mutex

	// stateMu guards exited and the current size. Kill holds it across the
	// signal so the pid cannot be reaped (and reused) underneath it.
	stateMu sync.Mutex
	exited  bool
	rows    uint16
	cols    uint16

	// outputMu orders output events before the terminal event: once
	// outputDone is set the reader drops what it still reads.
	outputMu   sync.Mutex
	outputDone bool

	closeOnce sync.Once
}

func (s *Session) info() SessionInfo {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	return SessionInfo{
		ID:         s.ID,
		Shell:      s.Shell,
		WorkingDir: s.WorkingDir,
		PID:        s.pid,
		Cols:       int(s.cols),
		Rows:       int(s.rows),
		StartedAt:  s.StartedAt,
		Active:     !s.exited,
	}
}

// write sends data verbatim to the shell's input.
func (s *Session) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for len(data) > 0 {
		n, err := s.ptmx.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func (s *Session) resize(rows, cols uint16) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.exited {
		return procutil.ErrNotRunning
	}
	if err := pty.Setsize(s.ptmx, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		return err
	}
	s.rows, s.cols = rows, cols
	return nil
}

// kill terminates every process in the shell's session, background jobs
// included. The watcher notices the shell exit and closes the master. It
// reports how many members outside the shell's group were signalled.
func (s *Session) kill() (int, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.exited {
		return 0, nil
	}
	n, err := procutil.TerminateSession(s.pid)
	if errors.Is(err, procutil.ErrNotRunning) {
		return 0, nil
	}
	return n, err
}

// emit forwards a chunk of output unless the terminal event was already
// sent.
func (s *Session) emit(sink events.Sink, data string) {
	s.outputMu.Lock()
	defer s.outputMu.Unlock()
	if !s.outputDone {
		sink.Emit(events.Output(events.SourceTerminal, s.ID, events.StreamPTY, data))
	}
}

func (s *Session) finishOutput() {
	s.outputMu.Lock()
	s.outputDone = true
	s.outputMu.Unlock()
}

// markExited records that the watcher is about to reap the child. After this
// no signal is sent to the pid.
func (s *Session) markExited() {
	s.stateMu.Lock()
	s.exited = true
	s.stateMu.Unlock()
}

func (s *Session) closeMaster() {
	s.closeOnce.Do(func() {
		_ = s.ptmx.Close()
	})
}
