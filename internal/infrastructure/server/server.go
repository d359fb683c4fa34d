package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/ptyhost/internal/api/http"
	"github.com/GriffinCanCode/ptyhost/internal/api/middleware"
	"github.com/GriffinCanCode/ptyhost/internal/api/ws"
	"github.com/GriffinCanCode/ptyhost/internal/domain/host"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ptyhost/internal/providers/environment"
	"github.com/GriffinCanCode/ptyhost/internal/providers/terminal"
)

// Server wraps the HTTP server and the host it exposes
type Server struct {
	config *config.Config
	logger *logging.Logger
	host   *host.Host
	tracer *tracing.Tracer
	router *gin.Engine
	http   *http.Server

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing ptyhost server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("ptyhost", logger.Component("tracing"))

	h, err := host.New(HostConfig(cfg), metrics, logger.Component("host"))
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to create host: %w", err)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	corsConfig := middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins)
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(corsConfig))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	apihttp.NewHandlers(h, logger.Component("http")).Routes(router)
	router.GET("/stream", ws.NewHandler(h, corsConfig.OriginPolicy(), logger.Component("ws")).HandleConnection)

	logger.Info("Server initialized successfully",
		zap.Int("services", len(h.Services().List(nil))))

	return &Server{
		config: cfg,
		logger: logger,
		host:   h,
		tracer: tracer,
		router: router,
		http: &http.Server{
			Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

// HostConfig translates the process configuration into host settings.
func HostConfig(cfg *config.Config) host.Config {
	return host.Config{
		Terminal: terminal.Config{
			Shell:          cfg.Terminal.Shell,
			Term:           cfg.Terminal.Term,
			ColorTerm:      cfg.Terminal.ColorTerm,
			ReadBufferSize: cfg.Terminal.ReadBuffer,
			DefaultRows:    cfg.Terminal.DefaultRows,
			DefaultCols:    cfg.Terminal.DefaultCols,
		},
		Environment: environment.Config{
			UseTools:       cfg.Environment.UseTools,
			ToolTimeout:    cfg.Environment.ToolTimeout,
			ToolCooldown:   cfg.Environment.ToolCooldown,
			WorkspaceDepth: cfg.Environment.WorkspaceDepth,
		},
		EventBuffer: cfg.Events.SubscriberBuffer,
		HistorySize: cfg.Events.HistorySize,
		SyncTimeout: cfg.Process.SyncTimeout,
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Host returns the terminal host the server exposes.
func (s *Server) Host() *host.Host {
	return s.host
}

// Run starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	return nil
}

// Shutdown stops accepting requests, then kills every live session and
// process. Closing the host also ends open event streams, which
// http.Server.Shutdown does not track.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info("Shutting down server...")

		var errs []error
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := s.host.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("host shutdown: %w", err))
		}
		s.tracer.Close()

		s.shutdownErr = errors.Join(errs...)
		if s.shutdownErr != nil {
			s.logger.Error("Shutdown finished with errors", zap.Error(s.shutdownErr))
		} else {
			s.logger.Info("Shutdown complete")
		}
		s.logger.Sync()
	})
	return s.shutdownErr
}
