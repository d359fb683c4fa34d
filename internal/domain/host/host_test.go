//go:build unix

package host

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/ptyhost/internal/domain/events"
	"github.com/GriffinCanCode/ptyhost/internal/domain/registry"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyhost/internal/providers/process"
	"github.com/GriffinCanCode/ptyhost/internal/providers/terminal"
	"github.com/GriffinCanCode/ptyhost/internal/shared/procutil"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const waitTimeout = 10 * time.Second

func newTestHost(t *testing.T) *Host {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Terminal.Shell = "sh"
	h, err := New(cfg, monitoring.NewMetrics(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = h.Close(ctx)
	})
	return h
}

// collect reads sub until a terminal event arrives, then checks that no
// second terminal event follows.
func collect(t *testing.T, sub *events.Subscription) []events.Event {
	t.Helper()
	var got []events.Event
	deadline := time.After(waitTimeout)
	for {
		select {
		case e, ok := <-sub.Events():
			require.True(t, ok, "subscription closed early")
			got = append(got, e)
			if !e.Terminal() {
				continue
			}
			select {
			case extra, ok := <-sub.Events():
				if ok {
					t.Fatalf("event after terminal event: %+v", extra)
				}
			case <-time.After(200 * time.Millisecond):
			}
			return got
		case <-deadline:
			t.Fatalf("no terminal event, got %d events", len(got))
		}
	}
}

// followsCommand reports whether want appears after the tty's echo of cmd.
// A prompt may land anywhere around the echoed line.
func followsCommand(out, cmd, want string) bool {
	i := strings.Index(out, cmd)
	return i >= 0 && strings.Contains(out[i+len(cmd):], want)
}

func TestFollowsCommand(t *testing.T) {
	cases := []struct {
		out  string
		want bool
	}{
		{out: "$ echo hi\r\nhi\r\n$ ", want: true},
		{out: "echo hi\r\n# hi\r\n# ", want: true},
		{out: "echo hi\r\n", want: false},
		{out: "hi\r\n", want: false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, followsCommand(tc.out, "echo hi", "hi"), "%q", tc.out)
	}
}

func TestInteractiveScenario(t *testing.T) {
	h := newTestHost(t)
	sub := h.Subscribe(events.ForID("t1"))
	defer sub.Close()

	_, err := h.SpawnInteractive(terminal.SpawnRequest{ID: "t1", Rows: 24, Cols: 80, Cwd: "/tmp"})
	require.NoError(t, err)
	require.NoError(t, h.WriteInteractive("t1", []byte("echo hi\n")))

	var out strings.Builder
	deadline := time.After(waitTimeout)
	for !followsCommand(out.String(), "echo hi", "hi") {
		select {
		case e := <-sub.Events():
			require.Equal(t, events.KindOutput, e.Kind)
			assert.Equal(t, "term-data-t1", e.Topic())
			out.WriteString(e.Data)
		case <-deadline:
			t.Fatalf("no echo in output: %q", out.String())
		}
	}

	require.NoError(t, h.Cancel("t1"))
	rest := collect(t, sub)
	last := rest[len(rest)-1]
	assert.Equal(t, events.KindExit, last.Kind)
	assert.Equal(t, "term-exit-t1", last.Topic())

	_, err = h.Session("t1")
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.ErrorIs(t, h.Cancel("t1"), registry.ErrNotFound)
}

func TestStreamingScenario(t *testing.T) {
	h := newTestHost(t)
	sub := h.Subscribe(events.ForID("r1"))
	defer sub.Close()

	require.NoError(t, h.RunStreaming(process.Request{ID: "r1", Command: "false"}))
	got := collect(t, sub)

	for _, e := range got[:len(got)-1] {
		assert.Equal(t, events.KindOutput, e.Kind)
	}
	exit := got[len(got)-1]
	require.Equal(t, events.KindExit, exit.Kind)
	require.NotNil(t, exit.Code)
	assert.NotZero(t, *exit.Code)
}

func TestCollectingScenario(t *testing.T) {
	h := newTestHost(t)

	out, err := h.RunCollecting(context.Background(), process.SyncRequest{Command: "nonexistent-binary-xyz"})
	assert.Empty(t, out)
	var cmdErr *process.CommandError
	require.ErrorAs(t, err, &cmdErr)
	var spawnErr *procutil.SpawnError
	require.ErrorAs(t, err, &spawnErr)

	out, err = h.RunCollecting(context.Background(), process.SyncRequest{Command: "sh", Args: []string{"-c", "echo ok"}})
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestCancelPrefersProcesses(t *testing.T) {
	h := newTestHost(t)
	sub := h.Subscribe(nil)
	defer sub.Close()

	require.NoError(t, h.RunStreaming(process.Request{ID: "job", Command: "sleep", Args: []string{"30"}}))
	require.Len(t, h.Processes(), 1)

	require.NoError(t, h.Cancel("job"))
	got := collect(t, sub)
	last := got[len(got)-1]
	assert.Equal(t, events.SourceProcess, last.Source)
	assert.Nil(t, last.Code)
	assert.Empty(t, h.Processes())
}

func TestMetricsFollowLifecycle(t *testing.T) {
	h := newTestHost(t)
	sub := h.Subscribe(nil)
	defer sub.Close()
	m := h.Metrics()

	_, err := h.SpawnInteractive(terminal.SpawnRequest{ID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TerminalSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Spawns.WithLabelValues("terminal", "ok")))

	_, err = h.SpawnInteractive(terminal.SpawnRequest{ID: "m1"})
	require.ErrorIs(t, err, registry.ErrAlreadyExists)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Spawns.WithLabelValues("terminal", "error")))

	require.NoError(t, h.Cancel("m1"))
	collect(t, sub)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.TerminalSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("terminal", "exit")))
}

func TestServicesAreRegistered(t *testing.T) {
	h := newTestHost(t)

	ids := map[string]bool{}
	for _, s := range h.Services().List(nil) {
		ids[s.ID] = true
	}
	assert.Equal(t, map[string]bool{"terminal": true, "process": true, "environment": true, "system": true}, ids)

	res, err := h.Services().Execute(context.Background(), "system.info", nil)
	require.NoError(t, err)
	assert.Equal(t, "sh", res.Data["shell"])
}

func TestHistoryRecordsFinishedRuns(t *testing.T) {
	h := newTestHost(t)
	sub := h.Subscribe(nil)
	defer sub.Close()

	require.NoError(t, h.RunStreaming(process.Request{ID: "h1", Command: "true"}))
	collect(t, sub)

	res, err := h.Services().Execute(context.Background(), "system.history", nil)
	require.NoError(t, err)
	entries := res.Data["history"].([]events.Event)
	require.Len(t, entries, 1)
	assert.Equal(t, "h1", entries[0].ID)
}

func TestCloseIsIdempotent(t *testing.T) {
	h, err := New(DefaultConfig(), nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	sub := h.Subscribe(nil)

	require.NoError(t, h.RunStreaming(process.Request{ID: "c1", Command: "sleep", Args: []string{"30"}}))

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, h.Close(ctx))
	require.NoError(t, h.Close(ctx))

	var got []events.Event
	for e := range sub.Events() {
		got = append(got, e)
	}
	require.Len(t, got, 1, "the exit event is delivered before subscribers are disconnected")
	assert.True(t, got[0].Terminal())

	assert.ErrorIs(t, h.RunStreaming(process.Request{ID: "c2", Command: "true"}), ErrClosed)
	_, err = h.SpawnInteractive(terminal.SpawnRequest{ID: "c3"})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = h.RunCollecting(context.Background(), process.SyncRequest{Command: "true"})
	assert.ErrorIs(t, err, ErrClosed)
}
