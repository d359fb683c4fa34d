//go:build unix

package terminal

import (
	"context"
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

func (r *recorder) output(id string) string {
	var b strings.Builder
	for _, e := range r.forID(id) {
		if e.Kind == events.KindOutput {
			b.WriteString(e.Data)
		}
	}
	return b.String()
}

func (r *recorder) terminal(id string) []events.Event {
	var out []events.Event
	for _, e := range r.forID(id) {
		if e.Terminal() {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) waitOutput(t *testing.T, id, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(r.output(id), want)
	}, waitTimeout, 20*time.Millisecond, "output of %s never contained %q", id, want)
}

// waitTerminal waits for the terminal event, then checks no second one
// follows.
func (r *recorder) waitTerminal(t *testing.T, id string) events.Event {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(r.terminal(id)) > 0
	}, waitTimeout, 20*time.Millisecond, "no terminal event for %s", id)
	time.Sleep(200 * time.Millisecond)
	term := r.terminal(id)
	require.Len(t, term, 1, "exactly one terminal event per session")
	return term[0]
}

func newTestManager(t *testing.T) (*Manager, *recorder) {
	t.Helper()
	rec := &recorder{}
	cfg := DefaultConfig()
	cfg.Shell = "sh"
	m := NewManager(cfg, rec, zaptest.NewLogger(t))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = m.Close(ctx)
	})
	return m, rec
}

func TestSpawnWriteKill(t *testing.T) {
	m, rec := newTestManager(t)

	info, err := m.Spawn(SpawnRequest{ID: "t1", Rows: 24, Cols: 80, Cwd: "/tmp"})
	require.NoError(t, err)
	assert.Equal(t, "t1", info.ID)
	assert.Equal(t, 24, info.Rows)
	assert.Equal(t, 80, info.Cols)
	assert.True(t, info.Active)
	assert.Positive(t, info.PID)

	// Visible in the registry by the time Spawn returns.
	_, err = m.Get("t1")
	require.NoError(t, err)

	require.NoError(t, m.Write("t1", []byte("echo hi\n")))
	rec.waitOutput(t, "t1", "hi")

	require.NoError(t, m.Kill("t1"))
	exit := rec.waitTerminal(t, "t1")
	assert.Equal(t, events.KindExit, exit.Kind)
	assert.Equal(t, "term-exit-t1", exit.Topic())

	_, err = m.Get("t1")
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.ErrorIs(t, m.Kill("t1"), registry.ErrNotFound)
	assert.Zero(t, m.Count())
}

func TestNaturalExitReportsCode(t *testing.T) {
	m, rec := newTestManager(t)

	_, err := m.Spawn(SpawnRequest{ID: "t2"})
	require.NoError(t, err)
	require.NoError(t, m.Write("t2", []byte("exit 3\n")))

	exit := rec.waitTerminal(t, "t2")
	require.Equal(t, events.KindExit, exit.Kind)
	require.NotNil(t, exit.Code)
	assert.Equal(t, 3, *exit.Code)
	assert.False(t, m.sessions.Contains("t2"))
}

func TestTerminalEnvironment(t *testing.T) {
	m, rec := newTestManager(t)

	_, err := m.Spawn(SpawnRequest{ID: "env", Env: map[string]string{"PTYHOST_TEST": "marker"}})
	require.NoError(t, err)

	require.NoError(t, m.Write("env", []byte("echo \"$TERM:$COLORTERM:$PTYHOST_TEST\"\n")))
	rec.waitOutput(t, "env", "xterm-256color:truecolor:marker")
}

func TestSpawnRejectsDuplicateID(t *testing.T) {
	m, _ := newTestManager(t)

	first, err := m.Spawn(SpawnRequest{ID: "dup"})
	require.NoError(t, err)

	_, err = m.Spawn(SpawnRequest{ID: "dup"})
	require.ErrorIs(t, err, registry.ErrAlreadyExists)

	got, err := m.Get("dup")
	require.NoError(t, err)
	assert.Equal(t, first.PID, got.PID, "the live session must survive")
	assert.Equal(t, 1, m.Count())
}

func TestSpawnFailuresLeaveNoTrace(t *testing.T) {
	m, rec := newTestManager(t)

	_, err := m.Spawn(SpawnRequest{ID: "bad", Cwd: "/definitely/not/here"})
	var spawnErr *procutil.SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, procutil.ReasonWorkDir, spawnErr.Reason)

	_, err = m.Spawn(SpawnRequest{ID: "bad", Shell: "nonexistent-shell-xyz"})
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, procutil.ReasonNotFound, spawnErr.Reason)

	_, err = m.Spawn(SpawnRequest{ID: "has space"})
	assert.ErrorIs(t, err, utils.ErrInvalidInput)

	_, err = m.Spawn(SpawnRequest{ID: "neg", Rows: -1})
	assert.ErrorIs(t, err, utils.ErrInvalidInput)

	assert.Zero(t, m.Count())
	assert.Empty(t, rec.forID("bad"))
}

func TestResize(t *testing.T) {
	m, rec := newTestManager(t)

	err := m.Resize("missing", 24, 80)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.Empty(t, rec.forID("missing"))

	_, err = m.Spawn(SpawnRequest{ID: "rs"})
	require.NoError(t, err)

	var resizeErr *ResizeError
	require.ErrorAs(t, m.Resize("rs", 0, 80), &resizeErr)
	assert.Equal(t, "rs", resizeErr.ID)

	require.NoError(t, m.Resize("rs", 40, 120))
	info, err := m.Get("rs")
	require.NoError(t, err)
	assert.Equal(t, 40, info.Rows)
	assert.Equal(t, 120, info.Cols)

	require.NoError(t, m.Write("rs", []byte("stty size\n")))
	rec.waitOutput(t, "rs", "40 120")
}

func TestWritesArriveInOrder(t *testing.T) {
	m, rec := newTestManager(t)

	_, err := m.Spawn(SpawnRequest{ID: "ord"})
	require.NoError(t, err)

	require.NoError(t, m.Write("ord", []byte("echo fir")))
	require.NoError(t, m.Write("ord", []byte("st-second\n")))
	rec.waitOutput(t, "ord", "first-second")

	assert.ErrorIs(t, m.Write("missing", []byte("x")), registry.ErrNotFound)
}

func TestKillRacingExitYieldsOneEvent(t *testing.T) {
	m, rec := newTestManager(t)

	for i := 0; i < 5; i++ {
		id := "race" + string(rune('a'+i))
		_, err := m.Spawn(SpawnRequest{ID: id})
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); _ = m.Write(id, []byte("exit 0\n")) }()
		go func() { defer wg.Done(); _ = m.Kill(id) }()
		wg.Wait()

		rec.waitTerminal(t, id)
		assert.False(t, m.sessions.Contains(id))
	}
}

func TestCloseKillsEverySession(t *testing.T) {
	rec := &recorder{}
	cfg := DefaultConfig()
	cfg.Shell = "sh"
	m := NewManager(cfg, rec, zaptest.NewLogger(t))

	for _, id := range []string{"c1", "c2"} {
		_, err := m.Spawn(SpawnRequest{ID: id})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, m.Close(ctx))

	assert.Zero(t, m.Count())
	assert.Len(t, rec.terminal("c1"), 1)
	assert.Len(t, rec.terminal("c2"), 1)

	_, err := m.Spawn(SpawnRequest{ID: "late"})
	assert.ErrorIs(t, err, ErrClosed)
}
