// Package pool runs units on a bounded local worker pool.
package pool

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"weatherbench/internal/analytics"
	"weatherbench/internal/execution"
	"weatherbench/internal/readings"
)

// Backend executes every unit in-process, at most MaxParallelism units at
// a time. The caller blocks until all launched units terminate (join-all).
// Partitions are disjoint and each unit owns its slice exclusively, so no
// state is shared beyond the slot counter. A unit failure fails the whole
// run: partial results are never accepted.
type Backend struct {
	engine          *analytics.Engine
	defaultParallel int
}

// New builds a pool backend. defaultParallel <= 0 means GOMAXPROCS.
func New(engine *analytics.Engine, defaultParallel int) (*Backend, error) {
	if engine == nil {
		return nil, analytics.ErrNilRule
	}
	if defaultParallel <= 0 {
		defaultParallel = runtime.GOMAXPROCS(0)
	}
	return &Backend{engine: engine, defaultParallel: defaultParallel}, nil
}

// Name implements execution.Backend.
func (b *Backend) Name() string { return "pool" }

// Run implements execution.Backend.
func (b *Backend) Run(ctx context.Context, req execution.Request) (execution.RunResult, error) {
	start := time.Now()
	if req.Units() == 0 {
		return execution.RunResult{ElapsedMS: elapsedMS(start)}, nil
	}

	parallel := req.MaxParallelism
	if parallel <= 0 {
		parallel = b.defaultParallel
	}

	results := make([]analytics.Fragments, req.Units())
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	launch := func(idx int, p readings.Partition, compute func(readings.Partition) (analytics.Fragments, error)) {
		g.Go(func() error {
			// Cancellation stops units that have not started; in-flight
			// units run to completion.
			if err := ctx.Err(); err != nil {
				return err
			}
			frags, err := compute(p)
			if err != nil {
				return fmt.Errorf("pool: unit %s: %w", p.Key, err)
			}
			results[idx] = frags
			return nil
		})
	}

	for i, p := range req.Stations {
		launch(i, p, b.engine.StationMetrics)
	}
	for i, p := range req.Regions {
		launch(len(req.Stations)+i, p, b.engine.RegionMetrics)
	}

	if err := g.Wait(); err != nil {
		return execution.RunResult{}, err
	}
	return execution.RunResult{
		ElapsedMS: elapsedMS(start),
		Fragments: analytics.Merge(results...),
	}, nil
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
