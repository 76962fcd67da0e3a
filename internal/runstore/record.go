// Package runstore persists one record per benchmark run. Records are the
// flat tabular log the dashboard layer reads; the core never interprets
// them beyond writing and listing.
package runstore

import (
	"context"
	"errors"
	"time"

	"weatherbench/internal/validation"
)

// ErrEmptyRecord indicates a record missing its identity fields.
var ErrEmptyRecord = errors.New("runstore: empty run id or backend")

// Record is the outcome of one (backend, parallelism) run. ElapsedMS is
// -1 when the run failed or timed out.
type Record struct {
	ID          string             `json:"id"`
	Backend     string             `json:"backend"`
	Parallelism int                `json:"parallelism"`
	ElapsedMS   float64            `json:"elapsed_time_ms"`
	Validation  *validation.Report `json:"validation"`
	StartedAt   time.Time          `json:"started_at"`
}

// Validate checks record invariants.
func (r Record) Validate() error {
	if r.ID == "" || r.Backend == "" {
		return ErrEmptyRecord
	}
	return nil
}

// Store appends and lists run records.
type Store interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context) ([]Record, error)
}
