package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/ptyhost/internal/domain/events"
	"github.com/GriffinCanCode/ptyhost/internal/domain/registry"
	"github.com/GriffinCanCode/ptyhost/internal/shared/procutil"
	"github.com/GriffinCanCode/ptyhost/internal/shared/textdecode"
	"github.com/GriffinCanCode/ptyhost/internal/shared/utils"
	"go.uber.org/zap"
)

const (
	readerSize = 64 * 1024
	// waitDelay bounds how long a collecting run waits for its output pipes
	// after the process was killed.
	waitDelay = 2 * time.Second
	// outputDrain bounds how long a streaming run's pipes are still read
	// after the process exited.
	outputDrain = 500 * time.Millisecond
)

type trackedProcess struct {
	id        string
	command   string
	args      []string
	cwd       string
	pid       int
	startedAt time.Time
	cmd       *exec.Cmd

	stateMu sync.Mutex
	exited  bool
}

func (p *trackedProcess) info() ProcessInfo {
	return ProcessInfo{
		ID:         p.id,
		Command:    p.command,
		Args:       p.args,
		WorkingDir: p.cwd,
		PID:        p.pid,
		StartedAt:  p.startedAt,
	}
}

// terminate kills the process group unless the watcher already started
// reaping it.
func (p *trackedProcess) terminate() error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	if p.exited {
		return nil
	}
	if err := procutil.TerminateTree(p.pid); err != nil && !errors.Is(err, procutil.ErrNotRunning) {
		return err
	}
	return nil
}

func (p *trackedProcess) markExited() {
	p.stateMu.Lock()
	p.exited = true
	p.stateMu.Unlock()
}

// Runner runs one-shot commands, either streamed and cancellable or
// collected in a single call.
type Runner struct {
	procs  *registry.Table[*trackedProcess]
	sink   events.Sink
	logger *zap.Logger

	watchers sync.WaitGroup
	closed   atomic.Bool
}

// NewRunner creates a runner that reports streaming runs to sink.
func NewRunner(sink events.Sink, logger *zap.Logger) *Runner {
	if sink == nil {
		sink = events.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		procs:  registry.NewTable[*trackedProcess]("process"),
		sink:   sink,
		logger: logger,
	}
}

// Start launches req in streaming mode. It only returns an error for a
// malformed request or an id that is already live; a command that cannot be
// started is reported as an error event for req.ID.
func (r *Runner) Start(req Request) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := utils.ValidateID(req.ID, "id"); err != nil {
		return err
	}
	if err := utils.ValidateCommand(req.Command, req.Args); err != nil {
		return err
	}
	if r.procs.Contains(req.ID) {
		return fmt.Errorf("process %q: %w", req.ID, registry.ErrAlreadyExists)
	}

	if err := procutil.ValidateWorkDir(req.Cwd); err != nil {
		r.spawnFailed(&procutil.SpawnError{ID: req.ID, Command: req.Command, Reason: procutil.ReasonWorkDir, Err: err})
		return nil
	}

	cmd := exec.Command(req.Command, req.Args...)
	cmd.Dir = req.Cwd
	if len(req.Env) > 0 {
		cmd.Env = procutil.MergeEnv(os.Environ(), req.Env)
	}
	procutil.Isolate(cmd)

	// Plain pipes instead of StdoutPipe: Wait must not close the read ends
	// while output is still being drained.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		r.spawnFailed(&procutil.SpawnError{ID: req.ID, Command: req.Command, Reason: procutil.ReasonStart, Err: err})
		return nil
	}
	stderr, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdout, stdoutW)
		r.spawnFailed(&procutil.SpawnError{ID: req.ID, Command: req.Command, Reason: procutil.ReasonStart, Err: err})
		return nil
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	err = cmd.Start()
	closeAll(stdoutW, stderrW)
	if err != nil {
		closeAll(stdout, stderr)
		r.spawnFailed(procutil.ClassifyStart(req.ID, req.Command, err))
		return nil
	}

	p := &trackedProcess{
		id:        req.ID,
		command:   req.Command,
		args:      req.Args,
		cwd:       req.Cwd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		cmd:       cmd,
	}
	if err := r.procs.Register(req.ID, p); err != nil {
		_ = procutil.TerminateTree(p.pid)
		_ = cmd.Wait()
		closeAll(stdout, stderr)
		return err
	}

	r.watchers.Add(1)
	go r.watch(p, stdout, stderr)

	r.logger.Info("Process started",
		zap.String("session_id", p.id),
		zap.Int("pid", p.pid),
		zap.String("command", p.command),
		zap.Strings("args", p.args))

	if r.closed.Load() {
		_ = p.terminate()
	}
	return nil
}

func (r *Runner) spawnFailed(err *procutil.SpawnError) {
	r.logger.Warn("Process failed to start",
		zap.String("session_id", err.ID),
		zap.String("command", err.Command),
		zap.String("reason", string(err.Reason)),
		zap.Error(err.Err))
	r.sink.Emit(events.Error(events.SourceProcess, err.ID, err.Error()))
}

// watch waits for the process to exit, then gives the output streams a
// bounded time to drain before reporting. Children that inherited the pipes
// would otherwise hold the exit event back for as long as they live. It is
// the only place the registry entry is removed and the terminal event
// emitted.
func (r *Runner) watch(p *trackedProcess, stdout, stderr *os.File) {
	defer r.watchers.Done()
	log := r.logger.With(zap.String("session_id", p.id), zap.Int("pid", p.pid))

	var streams sync.WaitGroup
	streams.Add(2)
	go r.pump(p, events.StreamStdout, stdout, &streams)
	go r.pump(p, events.StreamStderr, stderr, &streams)
	drained := make(chan struct{})
	go func() {
		streams.Wait()
		close(drained)
	}()

	var waitErr error
	if err := procutil.AwaitExit(p.pid); err == nil {
		// Still a zombie: the pid cannot be reused while Cancel checks exited.
		p.markExited()
		waitErr = p.cmd.Wait()
	} else {
		waitErr = p.cmd.Wait()
		p.markExited()
	}

	select {
	case <-drained:
	case <-time.After(outputDrain):
		log.Debug("Output still open after exit; closing pipes")
		closeAll(stdout, stderr)
		<-drained
	}
	closeAll(stdout, stderr)

	r.procs.RemoveFunc(p.id, func(v *trackedProcess) bool { return v == p })

	code, err := procutil.ExitStatus(waitErr)
	if err != nil {
		log.Error("Failed to reap process", zap.Error(err))
		r.sink.Emit(events.Error(events.SourceProcess, p.id, fmt.Sprintf("wait: %v", err)))
		return
	}

	log.Info("Process exited", zap.Any("code", code))
	r.sink.Emit(events.Exit(events.SourceProcess, p.id, code))
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// pump emits one output event per line of src. Lines have no length limit;
// the trailing newline (and a CR before it) is stripped and a final
// unterminated line is still emitted.
func (r *Runner) pump(p *trackedProcess, stream events.Stream, src io.Reader, done *sync.WaitGroup) {
	defer done.Done()

	br := bufio.NewReaderSize(src, readerSize)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.TrimSuffix(line, []byte("\n"))
			line = bytes.TrimSuffix(line, []byte("\r"))
			r.sink.Emit(events.Output(events.SourceProcess, p.id, stream, textdecode.String(line)))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				r.logger.Debug("Output stream ended",
					zap.String("session_id", p.id),
					zap.String("stream", string(stream)),
					zap.Error(err))
			}
			return
		}
	}
}

// RunSync runs a command to completion and returns its standard output. A
// non-zero exit, a start failure or ctx expiring yields a *CommandError.
// Cancelling ctx kills the whole process group.
func (r *Runner) RunSync(ctx context.Context, req SyncRequest) (string, error) {
	if err := utils.ValidateCommand(req.Command, req.Args); err != nil {
		return "", err
	}
	if err := procutil.ValidateWorkDir(req.Cwd); err != nil {
		return "", &CommandError{
			Command: req.Command,
			Err:     &procutil.SpawnError{Command: req.Command, Reason: procutil.ReasonWorkDir, Err: err},
		}
	}

	cmd := exec.CommandContext(ctx, req.Command, req.Args...)
	cmd.Dir = req.Cwd
	if len(req.Env) > 0 {
		cmd.Env = procutil.MergeEnv(os.Environ(), req.Env)
	}
	procutil.Isolate(cmd)
	cmd.Cancel = func() error {
		return procutil.TerminateTree(cmd.Process.Pid)
	}
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if req.Stdin != "" {
		cmd.Stdin = strings.NewReader(req.Stdin)
	}

	start := time.Now()
	err := cmd.Run()
	log := r.logger.With(
		zap.String("command", req.Command),
		zap.Duration("duration", time.Since(start)))

	if err == nil {
		log.Debug("Command completed")
		return textdecode.String(stdout.Bytes()), nil
	}

	cmdErr := &CommandError{Command: req.Command, Stderr: textdecode.String(stderr.Bytes())}
	var exitErr *exec.ExitError
	switch {
	case ctx.Err() != nil:
		cmdErr.Err = fmt.Errorf("%s: %w", req.Command, ctx.Err())
	case errors.As(err, &exitErr):
		if code := exitErr.ExitCode(); code >= 0 {
			cmdErr.ExitCode = &code
		}
	case cmd.Process == nil:
		cmdErr.Err = procutil.ClassifyStart("", req.Command, err)
	default:
		cmdErr.Err = err
	}
	log.Debug("Command failed", zap.Error(cmdErr))
	return "", cmdErr
}

// Cancel kills the tracked process and its group. The watcher removes the
// entry and emits the exit event once the process is gone.
func (r *Runner) Cancel(id string) error {
	p, ok := r.procs.Lookup(id)
	if !ok {
		return fmt.Errorf("process %q: %w", id, registry.ErrNotFound)
	}
	if err := p.terminate(); err != nil {
		return fmt.Errorf("cancel process %q: %w", id, err)
	}
	r.logger.Info("Process cancelled", zap.String("session_id", id), zap.Int("pid", p.pid))
	return nil
}

// Get returns information about a tracked process.
func (r *Runner) Get(id string) (*ProcessInfo, error) {
	p, ok := r.procs.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("process %q: %w", id, registry.ErrNotFound)
	}
	info := p.info()
	return &info, nil
}

// List returns the tracked processes ordered by id.
func (r *Runner) List() []ProcessInfo {
	procs := r.procs.Values()
	infos := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		infos = append(infos, p.info())
	}
	return infos
}

// Count returns the number of tracked processes.
func (r *Runner) Count() int {
	return r.procs.Len()
}

// Close cancels every tracked process and waits for the watchers to finish
// or ctx to expire.
func (r *Runner) Close(ctx context.Context) error {
	r.closed.Store(true)

	for _, p := range r.procs.Values() {
		if err := p.terminate(); err != nil {
			r.logger.Warn("Failed to cancel process on shutdown",
				zap.String("session_id", p.id), zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		r.watchers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
