package engine

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"weatherbench/internal/analytics"
	"weatherbench/internal/anomaly"
	"weatherbench/internal/execution"
	"weatherbench/internal/execution/pool"
	"weatherbench/internal/readings"
)

func TestNew_RejectsUnknownRule(t *testing.T) {
	db := &sql.DB{}
	if _, err := New(db, nil, nil); !errors.Is(err, ErrUnsupportedRule) {
		t.Fatalf("want ErrUnsupportedRule for nil rule, got %v", err)
	}
}

func seededDataset() *readings.Dataset {
	base := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(17))
	regions := []string{"north", "south"}

	var rs []readings.Reading
	for s := 0; s < 4; s++ {
		station := []string{"STA-001", "STA-002", "STA-003", "STA-004"}[s]
		for i := 0; i < 180; i++ {
			r := readings.Reading{
				TS:          base.Add(time.Duration(i) * time.Minute),
				StationID:   station,
				Region:      regions[s%2],
				Temperature: 20 + rng.Float64(),
				Humidity:    50 + rng.Float64(),
				Pressure:    1000 + rng.Float64(),
			}
			if rng.Float64() < 0.02 {
				r.Temperature = 99
			}
			if rng.Float64() < 0.02 {
				r.Humidity = -5
			}
			rs = append(rs, r)
		}
	}
	return readings.NewDataset(rs)
}

// Cross-backend equivalence against the in-process pool, both rules.
func TestRun_Postgres_MatchesPool(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	data := seededDataset()
	req := execution.Request{Stations: data.Stations(), Regions: data.Regions()}

	statistical, err := anomaly.NewStatisticalDeviation(3)
	if err != nil {
		t.Fatalf("statistical rule: %v", err)
	}
	rules := []anomaly.Rule{anomaly.DefaultFixedBounds(), statistical}

	for _, rule := range rules {
		eng, err := analytics.NewEngine(rule)
		if err != nil {
			t.Fatalf("%s: analytics engine: %v", rule.Name(), err)
		}
		poolBackend, err := pool.New(eng, 2)
		if err != nil {
			t.Fatalf("%s: pool: %v", rule.Name(), err)
		}
		sqlBackend, err := New(db, rule, nil)
		if err != nil {
			t.Fatalf("%s: engine backend: %v", rule.Name(), err)
		}

		want, err := poolBackend.Run(context.Background(), req)
		if err != nil {
			t.Fatalf("%s: pool run: %v", rule.Name(), err)
		}
		got, err := sqlBackend.Run(context.Background(), req)
		if err != nil {
			t.Fatalf("%s: engine run: %v", rule.Name(), err)
		}

		if mismatches := analytics.Compare(want.Fragments, got.Fragments); len(mismatches) != 0 {
			t.Fatalf("%s: backends diverge: %v", rule.Name(), mismatches)
		}
	}
}

func TestRun_Postgres_ZeroUnits(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	backend, err := New(db, anomaly.DefaultFixedBounds(), nil)
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	result, err := backend.Run(context.Background(), execution.Request{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Failed() || !result.Fragments.Empty() {
		t.Fatalf("zero units should complete empty: %+v", result)
	}
}
