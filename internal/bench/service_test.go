package bench

import (
	"context"
	"errors"
	"testing"
	"time"

	"weatherbench/internal/analytics"
	"weatherbench/internal/anomaly"
	"weatherbench/internal/execution"
	"weatherbench/internal/readings"
	"weatherbench/internal/runstore"
)

type stubBackend struct {
	name   string
	result execution.RunResult
	err    error
	gotReq execution.Request
}

func (b *stubBackend) Name() string { return b.name }

func (b *stubBackend) Run(_ context.Context, req execution.Request) (execution.RunResult, error) {
	b.gotReq = req
	return b.result, b.err
}

type stubStore struct {
	recs []runstore.Record
	err  error
}

func (s *stubStore) Append(_ context.Context, rec runstore.Record) error {
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, rec)
	return nil
}

func (s *stubStore) List(context.Context) ([]runstore.Record, error) { return s.recs, nil }

func benchFixture(t *testing.T, backend execution.Backend) (*Service, *stubStore) {
	t.Helper()
	base := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	rs := []readings.Reading{
		{TS: base, StationID: "STA-001", Region: "north", Temperature: 99, Humidity: 50, Pressure: 1000},
		{TS: base.Add(time.Minute), StationID: "STA-001", Region: "north", Temperature: 20, Humidity: 50, Pressure: 1000},
	}
	truth := []readings.GroundTruth{
		{TS: base, StationID: "STA-001", Sensor: readings.SensorTemperature, InjectedValue: 99},
	}
	store := &stubStore{}
	svc, err := NewService(readings.NewDataset(rs), truth, execution.NewRegistry(backend), anomaly.DefaultFixedBounds(), store, nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc, store
}

func TestExecute_SuccessPersistsAndValidates(t *testing.T) {
	backend := &stubBackend{
		name: "pool",
		result: execution.RunResult{
			ElapsedMS: 42,
			Fragments: analytics.Fragments{CoOccurrences: []analytics.CoOccurrenceCount{{StationID: "STA-001"}}},
		},
	}
	svc, store := benchFixture(t, backend)

	rec, err := svc.Execute(context.Background(), "pool", 4)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if rec.ID == "" || rec.Backend != "pool" || rec.Parallelism != 4 {
		t.Fatalf("record identity wrong: %+v", rec)
	}
	if rec.ElapsedMS != 42 {
		t.Fatalf("elapsed not carried: %v", rec.ElapsedMS)
	}
	if rec.Validation == nil || rec.Validation.TruePositives != 1 {
		t.Fatalf("validation missing: %+v", rec.Validation)
	}
	if backend.gotReq.MaxParallelism != 4 || backend.gotReq.Units() != 2 {
		t.Fatalf("request not built from dataset: %+v", backend.gotReq)
	}
	if len(store.recs) != 1 || store.recs[0].ID != rec.ID {
		t.Fatalf("record not persisted: %+v", store.recs)
	}

	frags, ok := svc.Fragments(rec.ID)
	if !ok || len(frags.CoOccurrences) != 1 {
		t.Fatalf("fragments not retained: %v %v", ok, frags)
	}
}

func TestExecute_FailedRunRecordsSentinel(t *testing.T) {
	backend := &stubBackend{
		name:   "queue",
		result: execution.RunResult{ElapsedMS: execution.FailedElapsedMS},
	}
	svc, store := benchFixture(t, backend)

	rec, err := svc.Execute(context.Background(), "queue", 0)
	if err != nil {
		t.Fatalf("failed run must not error: %v", err)
	}
	if rec.ElapsedMS != execution.FailedElapsedMS {
		t.Fatalf("want sentinel, got %v", rec.ElapsedMS)
	}
	if rec.Validation != nil {
		t.Fatalf("failed run must not validate: %+v", rec.Validation)
	}
	if len(store.recs) != 1 {
		t.Fatal("failed run must still be persisted")
	}
	if _, ok := svc.Fragments(rec.ID); ok {
		t.Fatal("failed run must not retain fragments")
	}
}

func TestExecute_UnknownBackend(t *testing.T) {
	svc, store := benchFixture(t, &stubBackend{name: "pool"})

	_, err := svc.Execute(context.Background(), "spark", 1)
	if !errors.Is(err, execution.ErrUnknownBackend) {
		t.Fatalf("want ErrUnknownBackend, got %v", err)
	}
	if len(store.recs) != 0 {
		t.Fatal("nothing should be persisted for an unknown backend")
	}
}

func TestExecute_BackendErrorPropagates(t *testing.T) {
	backend := &stubBackend{name: "pool", err: errors.New("broker down")}
	svc, store := benchFixture(t, backend)

	if _, err := svc.Execute(context.Background(), "pool", 1); err == nil {
		t.Fatal("want backend error")
	}
	if len(store.recs) != 0 {
		t.Fatal("errored run must not be persisted")
	}
}
