//go:build unix

package process

import (
	"context"
	"testing"

	"github.com/GriffinCanCode/ptyhost/internal/domain/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderExec(t *testing.T) {
	r, _ := newTestRunner(t)
	p := NewProvider(r)
	ctx := context.Background()

	res, err := p.Execute(ctx, "process.exec", map[string]interface{}{
		"command": "echo",
		"args":    []interface{}{"tool", "output"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "tool output\n", res.Data["stdout"])

	res, err = p.Execute(ctx, "process.exec", map[string]interface{}{
		"command": "sh",
		"args":    []interface{}{"-c", "echo nope >&2; exit 4"},
	})
	require.NoError(t, err, "a failing command is a result, not a transport error")
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, "nope", *res.Error)
	assert.Equal(t, "nope\n", res.Data["stderr"])
	code := res.Data["exit_code"].(*int)
	assert.Equal(t, 4, *code)
}

func TestProviderRunAndCancel(t *testing.T) {
	r, rec := newTestRunner(t)
	p := NewProvider(r)
	ctx := context.Background()

	res, err := p.Execute(ctx, "process.run", map[string]interface{}{
		"id":      "job",
		"command": "sleep",
		"args":    []interface{}{"30"},
	})
	require.NoError(t, err)
	assert.Equal(t, true, res.Data["accepted"])

	res, err = p.Execute(ctx, "process.list", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Data["count"])

	_, err = p.Execute(ctx, "process.cancel", map[string]interface{}{"id": "job"})
	require.NoError(t, err)
	rec.waitTerminal(t, "job")

	_, err = p.Execute(ctx, "process.cancel", map[string]interface{}{"id": "job"})
	assert.ErrorIs(t, err, registry.ErrNotFound)
}
