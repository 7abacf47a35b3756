package resource

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController(t *testing.T) {
	t.Run("BoundedWorkers", func(t *testing.T) {
		c := NewController(Config{MaxBackgroundWorkers: 1})

		blocker := make(chan struct{})
		var ran atomic.Int32

		ok := c.TryRunBackground(func() {
			ran.Add(1)
			<-blocker
		})
		require.True(t, ok)

		// Budget exhausted while the first job runs.
		assert.Eventually(t, func() bool { return ran.Load() == 1 }, time.Second, time.Millisecond)
		assert.False(t, c.TryRunBackground(func() { ran.Add(1) }))

		close(blocker)
		c.Drain()

		assert.True(t, c.TryRunBackground(func() {}))
		c.Drain()
	})

	t.Run("NilController", func(t *testing.T) {
		var c *Controller
		done := make(chan struct{})
		assert.True(t, c.TryRunBackground(func() { close(done) }))
		<-done
		require.NoError(t, c.WaitIO(context.Background(), 1024))
		c.Drain()
	})

	t.Run("UnlimitedIO", func(t *testing.T) {
		c := NewController(Config{})
		require.NoError(t, c.WaitIO(context.Background(), 1<<30))
	})

	t.Run("IOLimitHonorsContext", func(t *testing.T) {
		c := NewController(Config{IOLimitBytesPerSec: 10})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		// Far beyond the burst; must fail via the context instead of waiting.
		err := c.WaitIO(ctx, 1<<20)
		require.Error(t, err)
	})
}
