package queue

import (
	"context"
	"testing"
	"time"

	"weatherbench/internal/analytics"
	"weatherbench/internal/anomaly"
	"weatherbench/internal/readings"
)

func workerFixture(t *testing.T) (*Worker, *memoryStore) {
	t.Helper()
	base := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	rs := []readings.Reading{
		{TS: base, StationID: "STA-001", Region: "north", Temperature: 20, Humidity: 50, Pressure: 1000},
		{TS: base.Add(time.Minute), StationID: "STA-001", Region: "north", Temperature: 99, Humidity: 50, Pressure: 1000},
	}
	engine, err := analytics.NewEngine(anomaly.DefaultFixedBounds())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	store := newMemoryStore()
	w, err := NewWorker(readings.NewDataset(rs), engine, store, nil)
	if err != nil {
		t.Fatalf("worker: %v", err)
	}
	return w, store
}

func TestWorkerProcess_StationTask(t *testing.T) {
	w, store := workerFixture(t)
	task := Task{RunID: "run-1", Kind: KindStation, Key: "STA-001"}

	if err := w.Process(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
	parts, err := store.List(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(parts) != 1 || len(parts[0].Percentages) != 3 {
		t.Fatalf("unexpected fragments: %+v", parts)
	}
}

func TestWorkerProcess_UnknownKeyStillReports(t *testing.T) {
	w, store := workerFixture(t)
	task := Task{RunID: "run-1", Kind: KindRegion, Key: "atlantis"}

	if err := w.Process(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
	// The group must still complete, so the unit reports an empty set.
	n, err := store.Count(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 reported unit, got %d", n)
	}
}

func TestWorkerProcess_DuplicateDeliveryOverwrites(t *testing.T) {
	w, store := workerFixture(t)
	task := Task{RunID: "run-1", Kind: KindStation, Key: "STA-001"}

	if err := w.Process(context.Background(), task); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := w.Process(context.Background(), task); err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	n, _ := store.Count(context.Background(), "run-1")
	if n != 1 {
		t.Fatalf("duplicate delivery double-counted: %d units", n)
	}
}
