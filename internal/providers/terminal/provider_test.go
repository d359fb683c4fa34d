//go:build unix

package terminal

import (
	"context"
	"testing"

	"github.com/GriffinCanCode/ptyhost/internal/domain/registry"
	"github.com/GriffinCanCode/ptyhost/internal/shared/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderDefinition(t *testing.T) {
	m, _ := newTestManager(t)
	def := NewProvider(m).Definition()

	assert.Equal(t, "terminal", def.ID)
	ids := make([]string, 0, len(def.Tools))
	for _, tool := range def.Tools {
		ids = append(ids, tool.ID)
	}
	assert.ElementsMatch(t, []string{
		"terminal.spawn", "terminal.write", "terminal.resize",
		"terminal.kill", "terminal.list", "terminal.get",
	}, ids)
}

func TestProviderLifecycle(t *testing.T) {
	m, rec := newTestManager(t)
	p := NewProvider(m)
	ctx := context.Background()

	res, err := p.Execute(ctx, "terminal.spawn", map[string]interface{}{
		"id":   "pt",
		"rows": float64(30),
		"cols": float64(100),
		"env":  map[string]interface{}{"GREETING": "hello-tool"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 30, res.Data["rows"])

	res, err = p.Execute(ctx, "terminal.list", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Data["count"])

	_, err = p.Execute(ctx, "terminal.write", map[string]interface{}{"id": "pt", "data": "echo $GREETING\n"})
	require.NoError(t, err)
	rec.waitOutput(t, "pt", "hello-tool")

	_, err = p.Execute(ctx, "terminal.resize", map[string]interface{}{"id": "pt", "rows": 0.0, "cols": 10.0})
	var resizeErr *ResizeError
	assert.ErrorAs(t, err, &resizeErr)

	_, err = p.Execute(ctx, "terminal.kill", map[string]interface{}{"id": "pt"})
	require.NoError(t, err)
	rec.waitTerminal(t, "pt")

	_, err = p.Execute(ctx, "terminal.get", map[string]interface{}{"id": "pt"})
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestProviderRejectsBadParams(t *testing.T) {
	m, _ := newTestManager(t)
	p := NewProvider(m)
	ctx := context.Background()

	_, err := p.Execute(ctx, "terminal.write", map[string]interface{}{"id": "x"})
	assert.ErrorIs(t, err, utils.ErrInvalidInput)

	_, err = p.Execute(ctx, "terminal.spawn", map[string]interface{}{"id": "x", "rows": "tall"})
	assert.ErrorIs(t, err, utils.ErrInvalidInput)

	_, err = p.Execute(ctx, "terminal.unknown", nil)
	assert.EqualError(t, err, "unknown tool: terminal.unknown")
}
