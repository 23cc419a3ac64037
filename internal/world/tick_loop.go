package world

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// parallelThreshold is the entity count below which a tick runs on the
// calling goroutine.
const parallelThreshold = 64

// TickLoop advances every entity's manager at a fixed interval.
// dt is the wall-clock time since the previous tick, in seconds.
type TickLoop struct {
	world    *World
	interval time.Duration
	workers  int

	ticks atomic.Uint64
	now   func() time.Time
}

// NewTickLoop creates a loop. workers < 1 defaults to runtime.NumCPU().
func NewTickLoop(w *World, interval time.Duration, workers int) *TickLoop {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &TickLoop{
		world:    w,
		interval: interval,
		workers:  workers,
		now:      time.Now,
	}
}

// Ticks returns the number of completed ticks.
func (t *TickLoop) Ticks() uint64 {
	return t.ticks.Load()
}

// Run ticks until ctx is cancelled.
func (t *TickLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	slog.Info("tick loop started", "interval", t.interval, "workers", t.workers)

	last := t.now()
	for {
		select {
		case <-ctx.Done():
			slog.Info("tick loop stopping", "ticks", t.Ticks())
			return nil
		case <-ticker.C:
		}

		now := t.now()
		dt := now.Sub(last).Seconds()
		last = now
		if err := t.Step(ctx, dt); err != nil {
			return fmt.Errorf("tick %d: %w", t.Ticks()+1, err)
		}
	}
}

// Step advances every manager by dt seconds once.
func (t *TickLoop) Step(ctx context.Context, dt float64) error {
	entities := t.world.Entities()
	defer t.ticks.Add(1)

	if len(entities) < parallelThreshold || t.workers == 1 {
		for _, e := range entities {
			e.Manager.Advance(dt)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for _, e := range entities {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e.Manager.Advance(dt)
			return nil
		})
	}
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
