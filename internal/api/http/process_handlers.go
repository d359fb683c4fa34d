package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ptyhost/internal/providers/environment"
	"github.com/GriffinCanCode/ptyhost/internal/providers/process"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StartProcess starts a streaming run. Output arrives on the event stream,
// so the response only acknowledges the request.
func (h *Handlers) StartProcess(c *gin.Context) {
	var req process.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.host.RunStreaming(req); err != nil {
		respondError(c, err)
		return
	}

	tracing.Logger(c.Request.Context(), h.logger).Info("Process accepted",
		zap.String("session_id", req.ID),
		zap.String("command", req.Command))
	c.JSON(http.StatusAccepted, gin.H{"id": req.ID, "accepted": true})
}

// ExecProcess runs a command to completion and returns its output.
func (h *Handlers) ExecProcess(c *gin.Context) {
	var req process.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stdout, err := h.host.RunCollecting(c.Request.Context(), req)
	var cmdErr *process.CommandError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "stdout": stdout})
	case errors.As(err, &cmdErr):
		_ = c.Error(err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success":   false,
			"error":     cmdErr.Error(),
			"stderr":    cmdErr.Stderr,
			"exit_code": cmdErr.ExitCode,
		})
	default:
		respondError(c, err)
	}
}

// ListProcesses lists running streaming processes.
func (h *Handlers) ListProcesses(c *gin.Context) {
	procs := h.host.Processes()
	c.JSON(http.StatusOK, gin.H{
		"processes": procs,
		"count":     len(procs),
	})
}

// CancelSession terminates a process or terminal session. The exit event
// follows on the stream.
func (h *Handlers) CancelSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.host.Cancel(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

// DetectEnvironments lists interpreter environments for ?path=. With
// ?workspace=true every project below path is scanned, up to ?depth=.
func (h *Handlers) DetectEnvironments(c *gin.Context) {
	path := c.Query("path")
	ctx := c.Request.Context()

	var (
		envs []environment.Environment
		err  error
	)
	if c.Query("workspace") == "true" {
		depth := 0
		if raw := c.Query("depth"); raw != "" {
			depth, err = strconv.Atoi(raw)
			if err != nil || depth < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "depth must be a non-negative integer"})
				return
			}
		}
		envs, err = h.host.DetectWorkspace(ctx, path, depth)
	} else {
		envs, err = h.host.DetectEnvironments(ctx, path)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	if envs == nil {
		envs = []environment.Environment{}
	}
	c.JSON(http.StatusOK, gin.H{
		"environments": envs,
		"count":        len(envs),
	})
}
