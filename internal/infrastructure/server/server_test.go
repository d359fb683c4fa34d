package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = "0"
	cfg.Terminal.Shell = "sh"
	if mutate != nil {
		mutate(cfg)
	}
	srv, err := NewServer(cfg, &logging.Logger{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func TestHostConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Terminal.Shell = "zsh"
	cfg.Events.SubscriberBuffer = 32
	cfg.Environment.UseTools = false

	hc := HostConfig(cfg)
	assert.Equal(t, "zsh", hc.Terminal.Shell)
	assert.Equal(t, 4096, hc.Terminal.ReadBufferSize)
	assert.Equal(t, uint16(24), hc.Terminal.DefaultRows)
	assert.Equal(t, 32, hc.EventBuffer)
	assert.Equal(t, 5*time.Minute, hc.SyncTimeout)
	assert.False(t, hc.Environment.UseTools)
}

func TestMiddlewareChain(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get(tracing.TraceHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.EqualValues(t, 2, srv.Host().Metrics().Snapshot().TotalRequests)
}

func TestRateLimitFromConfig(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.RequestsPerSecond = 1
		cfg.RateLimit.Burst = 1
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRunAndShutdown(t *testing.T) {
	srv := newTestServer(t, nil)

	errc := make(chan error, 1)
	go func() { errc <- srv.Run() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}
