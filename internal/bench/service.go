// Package bench orchestrates benchmark runs end to end: partition the
// dataset, drive one execution backend, validate against ground truth,
// and persist the run record.
package bench

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"weatherbench/internal/analytics"
	"weatherbench/internal/anomaly"
	"weatherbench/internal/execution"
	"weatherbench/internal/observability/metrics"
	"weatherbench/internal/readings"
	"weatherbench/internal/runstore"
	"weatherbench/internal/validation"
)

// Service runs benchmarks over one loaded dataset. The dataset handle is
// read-only and shared by reference across runs.
type Service struct {
	data     *readings.Dataset
	truth    []readings.GroundTruth
	registry *execution.Registry
	bounds   *anomaly.FixedBounds
	store    runstore.Store
	logger   *log.Logger

	mu      sync.Mutex
	results map[string]analytics.Fragments
}

// NewService wires the orchestrator. bounds is the validation rule and
// must be the fixed-bounds rule; nil selects the defaults.
func NewService(data *readings.Dataset, truth []readings.GroundTruth, registry *execution.Registry, bounds *anomaly.FixedBounds, store runstore.Store, logger *log.Logger) (*Service, error) {
	if data == nil || registry == nil || store == nil {
		return nil, fmt.Errorf("bench: nil dataset, registry or store")
	}
	if bounds == nil {
		bounds = anomaly.DefaultFixedBounds()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		data:     data,
		truth:    truth,
		registry: registry,
		bounds:   bounds,
		store:    store,
		logger:   logger,
		results:  make(map[string]analytics.Fragments),
	}, nil
}

// Backends lists the configured backend names.
func (s *Service) Backends() []string { return s.registry.Names() }

// List returns the persisted run history.
func (s *Service) List(ctx context.Context) ([]runstore.Record, error) {
	return s.store.List(ctx)
}

// Fragments returns the aggregated metrics of a completed run kept in
// memory for export.
func (s *Service) Fragments(runID string) (analytics.Fragments, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frags, ok := s.results[runID]
	return frags, ok
}

// Execute runs one (backend, parallelism) combination. Backend-level
// failure (timeout, revoked units) comes back as a record with the -1
// sentinel, not as an error; only configuration and infrastructure
// errors propagate.
func (s *Service) Execute(ctx context.Context, backendName string, parallelism int) (runstore.Record, error) {
	backend, err := s.registry.Get(backendName)
	if err != nil {
		return runstore.Record{}, fmt.Errorf("bench: %w: %q", err, backendName)
	}

	req := execution.Request{
		Stations:       s.data.Stations(),
		Regions:        s.data.Regions(),
		MaxParallelism: parallelism,
	}
	rec := runstore.Record{
		ID:          uuid.NewString(),
		Backend:     backendName,
		Parallelism: parallelism,
		StartedAt:   time.Now().UTC(),
	}
	s.logger.Printf("bench: run %s backend=%s parallelism=%d units=%d",
		rec.ID, backendName, parallelism, req.Units())
	if backendName == "queue" {
		metrics.ObserveTasksPublished(req.Units())
	}

	result, err := backend.Run(ctx, req)
	if err != nil {
		metrics.ObserveRun(backendName, metrics.ResultError, 0)
		return runstore.Record{}, fmt.Errorf("bench: run %s: %w", rec.ID, err)
	}

	rec.ElapsedMS = result.ElapsedMS
	if result.Failed() {
		metrics.ObserveRun(backendName, metrics.ResultFailed, 0)
	} else {
		report, err := validation.Validate(s.data.All(), s.bounds, s.truth)
		if err != nil {
			return runstore.Record{}, fmt.Errorf("bench: validate run %s: %w", rec.ID, err)
		}
		rec.Validation = report
		metrics.ObserveRun(backendName, metrics.ResultSuccess,
			time.Duration(result.ElapsedMS*float64(time.Millisecond)))

		s.mu.Lock()
		s.results[rec.ID] = result.Fragments
		s.mu.Unlock()
	}

	if err := s.store.Append(ctx, rec); err != nil {
		return runstore.Record{}, fmt.Errorf("bench: persist run %s: %w", rec.ID, err)
	}
	s.logger.Printf("bench: run %s finished elapsed_ms=%.2f", rec.ID, rec.ElapsedMS)
	return rec, nil
}
