// Package execution defines the contract the three run strategies share.
// Backends are compared only on elapsed time and on the fragment set they
// produce; scheduling internals never leak through this interface.
package execution

import (
	"context"
	"errors"

	"weatherbench/internal/analytics"
	"weatherbench/internal/readings"
)

// FailedElapsedMS is the sentinel recorded when a run did not complete
// (timeout, revoked units). The run record itself communicates failure;
// no error escapes to the caller in that case.
const FailedElapsedMS = -1

// Request is one unit-of-work set: station partitions for the per-station
// metrics and region partitions for the moving average.
type Request struct {
	Stations []readings.Partition
	Regions  []readings.Partition

	// MaxParallelism bounds concurrent units for backends that schedule
	// locally. Backends with external scheduling ignore it. Zero means
	// the backend's default.
	MaxParallelism int
}

// Units returns the total number of independent units in the request.
func (r Request) Units() int { return len(r.Stations) + len(r.Regions) }

// RunResult is the unit exchanged between a backend and everything
// downstream.
type RunResult struct {
	ElapsedMS float64
	Fragments analytics.Fragments
}

// Failed reports whether the run carries the failure sentinel.
func (r RunResult) Failed() bool { return r.ElapsedMS == FailedElapsedMS }

// Backend runs every unit of a request through the metrics engine and
// blocks until all units complete, the context is canceled, or the run is
// abandoned. A request with zero units completes immediately with empty
// results.
type Backend interface {
	Name() string
	Run(ctx context.Context, req Request) (RunResult, error)
}

// ErrUnknownBackend indicates a backend name outside the configured set.
var ErrUnknownBackend = errors.New("execution: unknown backend")

// Registry is the closed set of configured backends, keyed by name.
type Registry struct {
	backends map[string]Backend
	names    []string
}

// NewRegistry builds a registry from the given backends.
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		if b == nil {
			continue
		}
		if _, dup := r.backends[b.Name()]; !dup {
			r.names = append(r.names, b.Name())
		}
		r.backends[b.Name()] = b
	}
	return r
}

// Get resolves a backend by name.
func (r *Registry) Get(name string) (Backend, error) {
	b, ok := r.backends[name]
	if !ok {
		return nil, ErrUnknownBackend
	}
	return b, nil
}

// Names lists the configured backend names in registration order.
func (r *Registry) Names() []string { return r.names }
