//go:build unix

package process

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/ptyhost/internal/domain/events"
	"github.com/GriffinCanCode/ptyhost/internal/domain/registry"
	"github.com/GriffinCanCode/ptyhost/internal/shared/procutil"
	"github.com/GriffinCanCode/ptyhost/internal/shared/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const waitTimeout = 10 * time.Second

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Emit(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) forID(id string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.ID == id {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) lines(id string, stream events.Stream) []string {
	var out []string
	for _, e := range r.forID(id) {
		if e.Kind == events.KindOutput && e.Stream == stream {
			out = append(out, e.Data)
		}
	}
	return out
}

func (r *recorder) waitTerminal(t *testing.T, id string) events.Event {
	t.Helper()
	terminal := func() []events.Event {
		var out []events.Event
		for _, e := range r.forID(id) {
			if e.Terminal() {
				out = append(out, e)
			}
		}
		return out
	}
	require.Eventually(t, func() bool { return len(terminal()) > 0 },
		waitTimeout, 10*time.Millisecond, "no terminal event for %s", id)
	time.Sleep(100 * time.Millisecond)
	term := terminal()
	require.Len(t, term, 1, "exactly one terminal event per process")

	all := r.forID(id)
	assert.True(t, all[len(all)-1].Terminal(), "terminal event must be the last event")
	return term[0]
}

func newTestRunner(t *testing.T) (*Runner, *recorder) {
	t.Helper()
	rec := &recorder{}
	r := NewRunner(rec, zaptest.NewLogger(t))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = r.Close(ctx)
	})
	return r, rec
}

func TestStartFalseExitsNonZero(t *testing.T) {
	r, rec := newTestRunner(t)

	require.NoError(t, r.Start(Request{ID: "r1", Command: "false"}))

	exit := rec.waitTerminal(t, "r1")
	require.Equal(t, events.KindExit, exit.Kind)
	require.NotNil(t, exit.Code)
	assert.NotZero(t, *exit.Code)
	assert.Equal(t, events.SourceProcess, exit.Source)
	assert.False(t, r.procs.Contains("r1"))
}

func TestStartStreamsLinesPerStream(t *testing.T) {
	r, rec := newTestRunner(t)

	script := `printf 'one\ntwo\r\n\nthree'; printf 'warn\n' >&2; printf '\377bad\n' >&2`
	require.NoError(t, r.Start(Request{ID: "lines", Command: "sh", Args: []string{"-c", script}}))

	exit := rec.waitTerminal(t, "lines")
	require.NotNil(t, exit.Code)
	assert.Equal(t, 0, *exit.Code)

	assert.Equal(t, []string{"one", "two", "", "three"}, rec.lines("lines", events.StreamStdout))
	assert.Equal(t, []string{"warn", "\uFFFDbad"}, rec.lines("lines", events.StreamStderr))
}

func TestStartHasNoLineLengthLimit(t *testing.T) {
	r, rec := newTestRunner(t)

	require.NoError(t, r.Start(Request{
		ID:      "long",
		Command: "sh",
		Args:    []string{"-c", "head -c 200000 /dev/zero | tr '\\0' a; echo"},
	}))
	rec.waitTerminal(t, "long")

	lines := rec.lines("long", events.StreamStdout)
	require.Len(t, lines, 1)
	assert.Equal(t, strings.Repeat("a", 200000), lines[0])
}

func TestStartEnvAndCwd(t *testing.T) {
	r, rec := newTestRunner(t)
	dir := t.TempDir()

	require.NoError(t, r.Start(Request{
		ID:      "env",
		Command: "sh",
		Args:    []string{"-c", `echo "$PTYHOST_VALUE"; pwd`},
		Cwd:     dir,
		Env:     map[string]string{"PTYHOST_VALUE": "from-env"},
	}))
	rec.waitTerminal(t, "env")

	lines := rec.lines("env", events.StreamStdout)
	require.Len(t, lines, 2)
	assert.Equal(t, "from-env", lines[0])
	assert.Equal(t, filepath.Base(dir), filepath.Base(lines[1]))
}

func TestStartSpawnFailureIsAnErrorEvent(t *testing.T) {
	r, rec := newTestRunner(t)

	require.NoError(t, r.Start(Request{ID: "nf", Command: "nonexistent-binary-xyz"}))
	ev := rec.waitTerminal(t, "nf")
	assert.Equal(t, events.KindError, ev.Kind)
	assert.Equal(t, "term-error-nf", ev.Topic())
	assert.Contains(t, ev.Message, "not found")

	require.NoError(t, r.Start(Request{ID: "wd", Command: "true", Cwd: "/definitely/not/here"}))
	ev = rec.waitTerminal(t, "wd")
	assert.Equal(t, events.KindError, ev.Kind)
	assert.Contains(t, ev.Message, "working directory")

	assert.Zero(t, r.Count())
}

func TestStartValidatesRequest(t *testing.T) {
	r, rec := newTestRunner(t)

	assert.ErrorIs(t, r.Start(Request{ID: "", Command: "true"}), utils.ErrInvalidInput)
	assert.ErrorIs(t, r.Start(Request{ID: "x", Command: ""}), utils.ErrInvalidInput)
	assert.Empty(t, rec.forID("x"))
}

func TestStartRejectsLiveDuplicate(t *testing.T) {
	r, rec := newTestRunner(t)

	require.NoError(t, r.Start(Request{ID: "dup", Command: "sleep", Args: []string{"30"}}))
	first, err := r.Get("dup")
	require.NoError(t, err)

	err = r.Start(Request{ID: "dup", Command: "sleep", Args: []string{"30"}})
	require.ErrorIs(t, err, registry.ErrAlreadyExists)

	second, err := r.Get("dup")
	require.NoError(t, err)
	assert.Equal(t, first.PID, second.PID)

	require.NoError(t, r.Cancel("dup"))
	rec.waitTerminal(t, "dup")

	// The id is reusable once the previous run is gone.
	require.NoError(t, r.Start(Request{ID: "dup", Command: "true"}))
}

func TestCancelKillsProcessGroup(t *testing.T) {
	r, rec := newTestRunner(t)

	require.NoError(t, r.Start(Request{
		ID:      "grp",
		Command: "sh",
		Args:    []string{"-c", "sleep 30 & sleep 30; wait"},
	}))
	assert.Len(t, r.List(), 1)

	start := time.Now()
	require.NoError(t, r.Cancel("grp"))

	exit := rec.waitTerminal(t, "grp")
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, events.KindExit, exit.Kind)
	assert.Nil(t, exit.Code, "a killed process has no exit code")

	assert.ErrorIs(t, r.Cancel("grp"), registry.ErrNotFound)
	assert.Zero(t, r.Count())
}

func TestCancelRacingExitYieldsOneEvent(t *testing.T) {
	r, rec := newTestRunner(t)

	for i := 0; i < 10; i++ {
		id := "race" + string(rune('a'+i))
		require.NoError(t, r.Start(Request{ID: id, Command: "true"}))
		err := r.Cancel(id)
		if err != nil {
			assert.ErrorIs(t, err, registry.ErrNotFound)
		}
		rec.waitTerminal(t, id)
	}
}

func TestRunSync(t *testing.T) {
	r, rec := newTestRunner(t)
	ctx := context.Background()

	out, err := r.RunSync(ctx, SyncRequest{Command: "echo", Args: []string{"hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	out, err = r.RunSync(ctx, SyncRequest{Command: "cat", Stdin: "piped"})
	require.NoError(t, err)
	assert.Equal(t, "piped", out)

	_, err = r.RunSync(ctx, SyncRequest{Command: "sh", Args: []string{"-c", "echo out; echo oops >&2; exit 2"}})
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "oops\n", cmdErr.Stderr)
	require.NotNil(t, cmdErr.ExitCode)
	assert.Equal(t, 2, *cmdErr.ExitCode)
	assert.Equal(t, "oops", cmdErr.Error())

	assert.Empty(t, rec.events, "collecting runs emit no events")
	assert.Zero(t, r.Count())
}

func TestRunSyncMissingBinary(t *testing.T) {
	r, _ := newTestRunner(t)

	out, err := r.RunSync(context.Background(), SyncRequest{Command: "nonexistent-binary-xyz"})
	assert.Empty(t, out)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	var spawnErr *procutil.SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, procutil.ReasonNotFound, spawnErr.Reason)
	assert.Nil(t, cmdErr.ExitCode)
}

func TestRunSyncContextKillsGroup(t *testing.T) {
	r, _ := newTestRunner(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.RunSync(ctx, SyncRequest{Command: "sh", Args: []string{"-c", "sleep 30 & sleep 30; wait"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCloseCancelsEverything(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec, zaptest.NewLogger(t))

	for _, id := range []string{"c1", "c2"} {
		require.NoError(t, r.Start(Request{ID: id, Command: "sleep", Args: []string{"30"}}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, r.Close(ctx))
	assert.Zero(t, r.Count())
	assert.Len(t, rec.forID("c1"), 1)
	assert.Len(t, rec.forID("c2"), 1)

	assert.ErrorIs(t, r.Start(Request{ID: "late", Command: "true"}), ErrClosed)
}

func TestExitDoesNotWaitForInheritedPipes(t *testing.T) {
	r, rec := newTestRunner(t)

	started := time.Now()
	script := `sleep 5 & echo parent-done`
	require.NoError(t, r.Start(Request{ID: "bg", Command: "sh", Args: []string{"-c", script}}))

	exit := rec.waitTerminal(t, "bg")
	require.Equal(t, events.KindExit, exit.Kind)
	require.NotNil(t, exit.Code)
	assert.Equal(t, 0, *exit.Code)
	assert.Less(t, time.Since(started), 3*time.Second, "exit waited for the background child")
	assert.Equal(t, []string{"parent-done"}, rec.lines("bg", events.StreamStdout))
	assert.False(t, r.procs.Contains("bg"))
}
