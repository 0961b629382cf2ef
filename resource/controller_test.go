package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(context.Background(), 50))
	assert.Equal(t, int64(50), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(context.Background(), 40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Over budget: non-blocking acquire fails, blocking acquire times out.
	assert.False(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(90), c.MemoryUsage())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireMemory(ctx, 20), context.DeadlineExceeded)

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(context.Background(), 20))
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestController_UnlimitedMemoryTracksUsage(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(context.Background(), 1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_BackgroundSlots(t *testing.T) {
	c := NewController(Config{MaxBackgroundWorkers: 2})

	require.NoError(t, c.AcquireBackground(context.Background()))
	require.NoError(t, c.AcquireBackground(context.Background()))

	assert.False(t, c.TryAcquireBackground())

	c.ReleaseBackground()
	assert.True(t, c.TryAcquireBackground())
}

func TestController_AcquireWrite(t *testing.T) {
	t.Run("unlimited is a no-op", func(t *testing.T) {
		c := NewController(Config{})
		require.NoError(t, c.AcquireWrite(context.Background(), 1<<30))
	})

	t.Run("requests above burst are clamped", func(t *testing.T) {
		c := NewController(Config{WriteLimitBytesPerSec: 100})
		// A request larger than the burst must not error; it is clamped
		// to the burst size so oversized batches still make progress.
		require.NoError(t, c.AcquireWrite(context.Background(), 1000))
	})

	t.Run("nil controller is a no-op", func(t *testing.T) {
		var c *Controller
		require.NoError(t, c.AcquireWrite(context.Background(), 10))
		require.NoError(t, c.AcquireMemory(context.Background(), 10))
		assert.True(t, c.TryAcquireMemory(10))
	})
}
