package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"weatherbench/internal/analytics"
	"weatherbench/internal/execution"
)

// Dispatcher defaults.
const (
	DefaultWait         = 600 * time.Second
	DefaultPollInterval = 250 * time.Millisecond
)

// Dispatcher is the orchestrator side of the queue backend: it publishes
// one task per partition and blocks on a bounded wait for the full group
// of fragments. On timeout it revokes outstanding work (purges the task
// queue, drops the run's fragments) and reports the failure through the
// run record's elapsed-time sentinel rather than an error.
type Dispatcher struct {
	broker Broker
	store  FragmentStore
	wait   time.Duration
	poll   time.Duration
	logger *log.Logger
}

// NewDispatcher wires a dispatcher. wait <= 0 uses DefaultWait,
// poll <= 0 uses DefaultPollInterval.
func NewDispatcher(broker Broker, store FragmentStore, wait, poll time.Duration, logger *log.Logger) (*Dispatcher, error) {
	if broker == nil || store == nil {
		return nil, fmt.Errorf("queue: nil broker or store")
	}
	if wait <= 0 {
		wait = DefaultWait
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{broker: broker, store: store, wait: wait, poll: poll, logger: logger}, nil
}

// Name implements execution.Backend.
func (d *Dispatcher) Name() string { return "queue" }

// Run implements execution.Backend.
func (d *Dispatcher) Run(ctx context.Context, req execution.Request) (execution.RunResult, error) {
	start := time.Now()
	expected := req.Units()
	if expected == 0 {
		return execution.RunResult{ElapsedMS: elapsedMS(start)}, nil
	}

	runID := uuid.NewString()
	for _, p := range req.Stations {
		if err := d.broker.Publish(ctx, Task{RunID: runID, Kind: KindStation, Key: p.Key}); err != nil {
			return execution.RunResult{}, fmt.Errorf("queue: publish station %s: %w", p.Key, err)
		}
	}
	for _, p := range req.Regions {
		if err := d.broker.Publish(ctx, Task{RunID: runID, Kind: KindRegion, Key: p.Key}); err != nil {
			return execution.RunResult{}, fmt.Errorf("queue: publish region %s: %w", p.Key, err)
		}
	}
	d.logger.Printf("queue: run %s dispatched %d units", runID, expected)

	waitCtx, cancel := context.WithTimeout(ctx, d.wait)
	defer cancel()

	done, err := d.awaitGroup(waitCtx, runID, expected)
	if err != nil {
		return execution.RunResult{}, err
	}
	if !done {
		d.revoke(runID)
		d.logger.Printf("queue: run %s abandoned after %s", runID, d.wait)
		return execution.RunResult{ElapsedMS: execution.FailedElapsedMS}, nil
	}

	parts, err := d.store.List(ctx, runID)
	if err != nil {
		return execution.RunResult{}, fmt.Errorf("queue: collect run %s: %w", runID, err)
	}
	if err := d.store.Delete(ctx, runID); err != nil {
		d.logger.Printf("queue: cleanup run %s: %v", runID, err)
	}

	return execution.RunResult{
		ElapsedMS: elapsedMS(start),
		Fragments: analytics.Merge(parts...),
	}, nil
}

// awaitGroup polls the fragment store until every unit reported or the
// wait context expires. It returns false, nil on expiry.
func (d *Dispatcher) awaitGroup(ctx context.Context, runID string, expected int) (bool, error) {
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()
	for {
		n, err := d.store.Count(ctx, runID)
		if err != nil && ctx.Err() == nil {
			return false, fmt.Errorf("queue: poll run %s: %w", runID, err)
		}
		if n >= expected {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, nil
		case <-ticker.C:
		}
	}
}

// revoke always runs on the timeout path so no orphaned tasks or
// fragments outlive the abandoned run. Best effort on its own context:
// the wait context is already dead.
func (d *Dispatcher) revoke(runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.broker.Purge(ctx); err != nil {
		d.logger.Printf("queue: purge after run %s: %v", runID, err)
	}
	if err := d.store.Delete(ctx, runID); err != nil {
		d.logger.Printf("queue: drop fragments of run %s: %v", runID, err)
	}
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
