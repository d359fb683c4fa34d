package http

import (
	"net/http"

	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/ptyhost/internal/providers/terminal"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InputRequest carries keystrokes for a terminal session.
type InputRequest struct {
	Data string `json:"data"`
}

// ResizeRequest carries a new window size.
type ResizeRequest struct {
	Rows int `json:"rows" binding:"required"`
	Cols int `json:"cols" binding:"required"`
}

// SpawnTerminal starts an interactive shell on a new PTY.
func (h *Handlers) SpawnTerminal(c *gin.Context) {
	var req terminal.SpawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := h.host.SpawnInteractive(req)
	if err != nil {
		respondError(c, err)
		return
	}

	tracing.Logger(c.Request.Context(), h.logger).Info("Terminal session spawned",
		zap.String("session_id", info.ID),
		zap.Int("pid", info.PID))
	c.JSON(http.StatusCreated, info)
}

// ListTerminals lists live terminal sessions.
func (h *Handlers) ListTerminals(c *gin.Context) {
	sessions := h.host.Sessions()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetTerminal returns one live terminal session.
func (h *Handlers) GetTerminal(c *gin.Context) {
	info, err := h.host.Session(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// WriteTerminal forwards input to a session verbatim.
func (h *Handlers) WriteTerminal(c *gin.Context) {
	var req InputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.host.WriteInteractive(c.Param("id"), []byte(req.Data)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ResizeTerminal changes a session's window size.
func (h *Handlers) ResizeTerminal(c *gin.Context) {
	var req ResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.host.ResizeInteractive(c.Param("id"), req.Rows, req.Cols); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "rows": req.Rows, "cols": req.Cols})
}
