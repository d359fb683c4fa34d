package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func get(r http.Handler, remote string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remote
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitIsPerClient(t *testing.T) {
	r := newRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2}))

	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1:1000", nil).Code)
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1:1000", nil).Code)

	w := get(r, "10.0.0.1:1000", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, get(r, "10.0.0.2:1000", nil).Code, "another client has its own bucket")
}

func TestGlobalRateLimit(t *testing.T) {
	r := newRouter(GlobalRateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))

	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1:1000", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "10.0.0.2:1000", nil).Code)
}

func TestLimiterSetForgetsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	set := newLimiterSet(DefaultRateLimitConfig())
	set.now = func() time.Time { return now }

	set.get("a")
	set.get("b")
	require.Equal(t, 2, set.len())

	now = now.Add(clientTTL / 2)
	set.get("b")

	now = now.Add(clientTTL/2 + time.Second)
	set.get("c")
	assert.Equal(t, 2, set.len(), "a was idle past the ttl")
}

func TestCORS(t *testing.T) {
	r := newRouter(CORS(DefaultCORSConfig([]string{"tauri://localhost"})))

	tests := []struct {
		origin  string
		allowed bool
	}{
		{origin: "tauri://localhost", allowed: true},
		{origin: "http://localhost:5173", allowed: true},
		{origin: "http://127.0.0.1:3000", allowed: true},
		{origin: "https://evil.example", allowed: false},
		{origin: "http://localhost.evil.example", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			w := get(r, "127.0.0.1:1000", map[string]string{"Origin": tt.origin})
			if tt.allowed {
				assert.Equal(t, http.StatusOK, w.Code)
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Equal(t, http.StatusForbidden, w.Code)
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestIsLoopback(t *testing.T) {
	assert.True(t, isLoopback("http://localhost"))
	assert.True(t, isLoopback("http://[::1]:8080"))
	assert.False(t, isLoopback("https://localhost"))
	assert.False(t, isLoopback("::not a url"))
}
