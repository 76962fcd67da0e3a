package runstore

import (
	"context"
	"database/sql"
	"fmt"

	"weatherbench/internal/validation"
)

func reportOf(truePositives int) *validation.Report {
	return &validation.Report{TruePositives: truePositives}
}

// PostgresStore keeps run records in a bench_runs table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the run table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS bench_runs (
    id             text PRIMARY KEY,
    backend        text NOT NULL,
    parallelism    integer NOT NULL,
    elapsed_ms     double precision NOT NULL,
    true_positives integer,
    started_at     timestamptz NOT NULL
)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("runstore: ensure schema: %w", err)
	}
	return nil
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	var truePositives sql.NullInt64
	if rec.Validation != nil {
		truePositives = sql.NullInt64{Int64: int64(rec.Validation.TruePositives), Valid: true}
	}
	const query = `
INSERT INTO bench_runs (id, backend, parallelism, elapsed_ms, true_positives, started_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Backend, rec.Parallelism, rec.ElapsedMS, truePositives, rec.StartedAt)
	if err != nil {
		return fmt.Errorf("runstore: insert run %s: %w", rec.ID, err)
	}
	return nil
}

// List implements Store, newest first.
func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	const query = `
SELECT id, backend, parallelism, elapsed_ms, true_positives, started_at
FROM bench_runs
ORDER BY started_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("runstore: list runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var truePositives sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.Backend, &rec.Parallelism, &rec.ElapsedMS, &truePositives, &rec.StartedAt); err != nil {
			return nil, fmt.Errorf("runstore: scan run: %w", err)
		}
		if truePositives.Valid {
			rec.Validation = reportOf(int(truePositives.Int64))
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
