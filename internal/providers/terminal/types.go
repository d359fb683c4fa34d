package terminal

import (
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by Spawn after the manager has been closed.
var ErrClosed = errors.New("terminal manager closed")

// Config controls how shells are launched.
type Config struct {
	// Shell overrides the host default shell. Empty uses $SHELL, then bash
	// (powershell on Windows).
	Shell string
	// Term and ColorTerm are exported to the child so it believes it is
	// attached to a full-featured terminal.
	Term      string
	ColorTerm string
	// ReadBufferSize is the size of a single read from the PTY master.
	ReadBufferSize int
	DefaultRows    uint16
	DefaultCols    uint16
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Term:           "xterm-256color",
		ColorTerm:      "truecolor",
		ReadBufferSize: 4096,
		DefaultRows:    24,
		DefaultCols:    80,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Term == "" {
		c.Term = def.Term
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = def.ReadBufferSize
	}
	if c.DefaultRows == 0 {
		c.DefaultRows = def.DefaultRows
	}
	if c.DefaultCols == 0 {
		c.DefaultCols = def.DefaultCols
	}
	return c
}

// SpawnRequest describes an interactive session to create.
type SpawnRequest struct {
	ID    string            `json:"id"`
	Rows  int               `json:"rows"`
	Cols  int               `json:"cols"`
	Cwd   string            `json:"cwd,omitempty"`
	Shell string            `json:"shell,omitempty"`
	Env   map[string]string `json:"env,omitempty"`
}

// SessionInfo is the public representation of a session
type SessionInfo struct {
	ID         string    `json:"id"`
	Shell      string    `json:"shell"`
	WorkingDir string    `json:"working_dir"`
	PID        int       `json:"pid"`
	Cols       int       `json:"cols"`
	Rows       int       `json:"rows"`
	StartedAt  time.Time `json:"started_at"`
	Active     bool      `json:"active"`
}

// ResizeError reports a resize request the terminal device rejected.
type ResizeError struct {
	ID   string
	Rows int
	Cols int
	Err  error
}

func (e *ResizeError) Error() string {
	return fmt.Sprintf("resize %q to %dx%d: %v", e.ID, e.Rows, e.Cols, e.Err)
}

func (e *ResizeError) Unwrap() error { return e.Err }
