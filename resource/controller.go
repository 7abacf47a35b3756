// Package resource manages background-work budgets shared across docgo
// subsystems: bounded background workers and IO throughput limits.
package resource

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxBackgroundWorkers is the maximum number of concurrent background
	// jobs (checkpoints, snapshot uploads). If 0, defaults to 1.
	MaxBackgroundWorkers int64

	// IOLimitBytesPerSec is the maximum IO throughput for background tasks.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller hands out background-work permits and throttles background IO.
type Controller struct {
	bgSem     *semaphore.Weighted
	ioLimiter *rate.Limiter
	wg        sync.WaitGroup
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundWorkers <= 0 {
		cfg.MaxBackgroundWorkers = 1
	}

	c := &Controller{
		bgSem: semaphore.NewWeighted(cfg.MaxBackgroundWorkers),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// TryRunBackground runs fn on a background goroutine if a worker permit is
// available. Returns false without running fn when the worker budget is
// exhausted. Never blocks.
func (c *Controller) TryRunBackground(fn func()) bool {
	if c == nil {
		go fn()
		return true
	}
	if !c.bgSem.TryAcquire(1) {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.bgSem.Release(1)
		fn()
	}()
	return true
}

// WaitIO blocks until the IO budget allows another n bytes.
// A nil controller or an unlimited budget returns immediately.
func (c *Controller) WaitIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil || n <= 0 {
		return nil
	}
	return c.ioLimiter.WaitN(ctx, n)
}

// Drain waits for all background jobs to finish.
func (c *Controller) Drain() {
	if c == nil {
		return
	}
	c.wg.Wait()
}
