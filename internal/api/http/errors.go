package http

import (
	"errors"
	"net/http"

	"github.com/GriffinCanCode/ptyhost/internal/domain/host"
	"github.com/GriffinCanCode/ptyhost/internal/domain/registry"
	"github.com/GriffinCanCode/ptyhost/internal/domain/service"
	"github.com/GriffinCanCode/ptyhost/internal/providers/process"
	"github.com/GriffinCanCode/ptyhost/internal/providers/terminal"
	"github.com/GriffinCanCode/ptyhost/internal/shared/procutil"
	"github.com/GriffinCanCode/ptyhost/internal/shared/utils"
	"github.com/gin-gonic/gin"
)

// StatusFor maps a host error to the HTTP status reported to the client.
func StatusFor(err error) int {
	var (
		spawnErr  *procutil.SpawnError
		resizeErr *terminal.ResizeError
		cmdErr    *process.CommandError
	)
	switch {
	case errors.Is(err, utils.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, service.ErrServiceNotFound),
		errors.Is(err, service.ErrToolNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrAlreadyExists):
		return http.StatusConflict
	case errors.As(err, &spawnErr), errors.As(err, &resizeErr), errors.As(err, &cmdErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, host.ErrClosed),
		errors.Is(err, terminal.ErrClosed),
		errors.Is(err, process.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status and records it on the
// context so the tracing middleware can attach it to the span.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(StatusFor(err), gin.H{"error": err.Error()})
}
