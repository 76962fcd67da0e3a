package pool

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"weatherbench/internal/analytics"
	"weatherbench/internal/anomaly"
	"weatherbench/internal/execution"
	"weatherbench/internal/readings"
)

func testDataset(t *testing.T) *readings.Dataset {
	t.Helper()
	base := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(11))
	regions := []string{"north", "south", "east"}

	var rs []readings.Reading
	for s := 0; s < 6; s++ {
		station := string(rune('A' + s))
		for i := 0; i < 120; i++ {
			r := readings.Reading{
				TS:          base.Add(time.Duration(i) * time.Minute),
				StationID:   "STA-00" + station,
				Region:      regions[s%len(regions)],
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

func testBackend(t *testing.T, parallel int) *Backend {
	t.Helper()
	engine, err := analytics.NewEngine(anomaly.DefaultFixedBounds())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	b, err := New(engine, parallel)
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	return b
}

func TestRun_ParallelismDoesNotChangeResults(t *testing.T) {
	data := testDataset(t)
	req := execution.Request{Stations: data.Stations(), Regions: data.Regions()}

	serial, err := testBackend(t, 1).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("serial run: %v", err)
	}
	req.MaxParallelism = 8
	parallel, err := testBackend(t, 1).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("parallel run: %v", err)
	}

	if mismatches := analytics.Compare(serial.Fragments, parallel.Fragments); len(mismatches) != 0 {
		t.Fatalf("results diverge across parallelism: %v", mismatches)
	}
}

func TestRun_ZeroUnits(t *testing.T) {
	result, err := testBackend(t, 4).Run(context.Background(), execution.Request{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Failed() {
		t.Fatal("zero units must not carry the failure sentinel")
	}
	if !result.Fragments.Empty() {
		t.Fatalf("want empty fragments, got %+v", result.Fragments)
	}
}

func TestRun_CoversEveryUnit(t *testing.T) {
	data := testDataset(t)
	req := execution.Request{Stations: data.Stations(), Regions: data.Regions(), MaxParallelism: 4}

	result, err := testBackend(t, 4).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got, want := len(result.Fragments.Percentages), len(data.Stations())*3; got != want {
		t.Fatalf("want %d percentages, got %d", want, got)
	}
	if got, want := len(result.Fragments.CoOccurrences), len(data.Stations()); got != want {
		t.Fatalf("want %d co-occurrence counts, got %d", want, got)
	}
}

func TestRun_CanceledContext(t *testing.T) {
	data := testDataset(t)
	req := execution.Request{Stations: data.Stations(), Regions: data.Regions()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := testBackend(t, 2).Run(ctx, req); err == nil {
		t.Fatal("want error from canceled context")
	}
}
