package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/ptyhost/internal/domain/host"
	"github.com/GriffinCanCode/ptyhost/internal/domain/service"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ptyhost/internal/shared/types"
	"github.com/GriffinCanCode/ptyhost/internal/shared/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the root endpoint.
const Version = "0.3.0"

const defaultDiscoverLimit = 5

// Handlers contains all HTTP handlers
type Handlers struct {
	host    *host.Host
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(h *host.Host, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		host:    h,
		metrics: h.Metrics(),
		logger:  logger,
	}
}

// Routes registers every REST endpoint on r.
func (h *Handlers) Routes(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	r.GET("/metrics/json", h.MetricsJSON)

	r.GET("/services", h.ListServices)
	r.POST("/services/execute", h.ExecuteService)

	r.GET("/terminals", h.ListTerminals)
	r.POST("/terminals", h.SpawnTerminal)
	r.GET("/terminals/:id", h.GetTerminal)
	r.POST("/terminals/:id/input", h.WriteTerminal)
	r.POST("/terminals/:id/resize", h.ResizeTerminal)

	r.GET("/processes", h.ListProcesses)
	r.POST("/processes", h.StartProcess)
	r.POST("/processes/exec", h.ExecProcess)

	r.DELETE("/sessions/:id", h.CancelSession)
	r.GET("/environments", h.DetectEnvironments)

	r.POST("/logs", h.StreamLogs)
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "ptyhost",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	snap := h.metrics.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"terminal_sessions":  len(h.host.Sessions()),
		"processes":          len(h.host.Processes()),
		"stream_connections": snap.ActiveConnections,
		"service_registry":   h.host.Services().Stats(),
		"uptime_seconds":     snap.UptimeSeconds,
	})
}

// MetricsJSON returns the request and session counters as JSON for the
// desktop UI's status panel.
func (h *Handlers) MetricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

// ListServices lists registered services. With ?q= it ranks them by
// relevance instead.
func (h *Handlers) ListServices(c *gin.Context) {
	registry := h.host.Services()

	if query := c.Query("q"); query != "" {
		limit := defaultDiscoverLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		c.JSON(http.StatusOK, gin.H{
			"services": registry.Discover(query, limit),
			"query":    query,
		})
		return
	}

	var category *types.Category
	if raw := c.Query("category"); raw != "" {
		if err := utils.ValidateID(raw, "category"); err != nil {
			respondError(c, err)
			return
		}
		cat := types.Category(raw)
		category = &cat
	}

	c.JSON(http.StatusOK, gin.H{
		"services": registry.List(category),
		"stats":    registry.Stats(),
	})
}

// ExecuteService executes a service tool
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	timer := monitoring.NewTimer(h.metrics, req.ToolID)
	result, err := h.host.Services().Execute(c.Request.Context(), req.ToolID, req.Params)
	if err != nil {
		// Unknown tool ids are not recorded so clients cannot grow the
		// label set.
		if !errors.Is(err, utils.ErrInvalidInput) &&
			!errors.Is(err, service.ErrServiceNotFound) &&
			!errors.Is(err, service.ErrToolNotFound) {
			timer.Stop("error")
		}
		tracing.Logger(c.Request.Context(), h.logger).Debug("Tool call failed",
			zap.String("tool_id", req.ToolID),
			zap.Error(err))
		respondError(c, err)
		return
	}

	if result.Success {
		timer.Stop("success")
	} else {
		timer.Stop("failure")
	}
	c.JSON(http.StatusOK, result)
}
