package apihttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"weatherbench/internal/analytics"
	"weatherbench/internal/anomaly"
	"weatherbench/internal/bench"
	"weatherbench/internal/execution"
	"weatherbench/internal/readings"
	"weatherbench/internal/runstore"
)

type stubBackend struct {
	result execution.RunResult
}

func (b *stubBackend) Name() string { return "pool" }

func (b *stubBackend) Run(context.Context, execution.Request) (execution.RunResult, error) {
	return b.result, nil
}

func testService(t *testing.T) *bench.Service {
	t.Helper()
	base := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	rs := []readings.Reading{
		{TS: base, StationID: "STA-001", Region: "north", Temperature: 20, Humidity: 50, Pressure: 1000},
	}
	backend := &stubBackend{result: execution.RunResult{
		ElapsedMS: 10,
		Fragments: analytics.Fragments{
			Percentages: []analytics.AnomalyPercentage{
				{StationID: "STA-001", Sensor: readings.SensorTemperature, Pct: 0},
			},
			CoOccurrences: []analytics.CoOccurrenceCount{{StationID: "STA-001", Windows: 0}},
		},
	}}
	store, err := runstore.NewFileStore(filepath.Join(t.TempDir(), "runs.jsonl"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	svc, err := bench.NewService(readings.NewDataset(rs), nil, execution.NewRegistry(backend), anomaly.DefaultFixedBounds(), store, nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc
}

func TestRunsHandler_LaunchAndList(t *testing.T) {
	svc := testService(t)
	handler := NewRunsHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"backend":"pool","parallelism":2}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("launch status %d: %s", rec.Code, rec.Body.String())
	}
	var launched runstore.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &launched); err != nil {
		t.Fatalf("decode launch response: %v", err)
	}
	if launched.ID == "" || launched.Backend != "pool" || launched.ElapsedMS != 10 {
		t.Fatalf("unexpected record: %+v", launched)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status %d", rec.Code)
	}
	var listed []runstore.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != launched.ID {
		t.Fatalf("unexpected history: %+v", listed)
	}
}

func TestRunsHandler_Rejections(t *testing.T) {
	handler := NewRunsHandler(testService(t))

	cases := []struct {
		body string
		want int
	}{
		{`not json`, http.StatusBadRequest},
		{`{"parallelism":1}`, http.StatusBadRequest},
		{`{"backend":"pool","parallelism":-1}`, http.StatusBadRequest},
		{`{"backend":"spark"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(tc.body)))
		if rec.Code != tc.want {
			t.Fatalf("body %q: want %d, got %d", tc.body, tc.want, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/runs", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("want 405, got %d", rec.Code)
	}
}

func TestBackendsHandler(t *testing.T) {
	handler := NewBackendsHandler(testService(t))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/backends", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var names []string
	if err := json.Unmarshal(rec.Body.Bytes(), &names); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(names) != 1 || names[0] != "pool" {
		t.Fatalf("unexpected backends: %v", names)
	}
}

func TestExportHandler_PDFAndXLSX(t *testing.T) {
	svc := testService(t)
	launched, err := svc.Execute(context.Background(), "pool", 1)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	handler := NewExportHandler(svc)

	for _, format := range []string{"pdf", "xlsx"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+launched.ID+"/export."+format, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s export status %d: %s", format, rec.Code, rec.Body.String())
		}
		if rec.Body.Len() == 0 {
			t.Fatalf("%s export empty", format)
		}
	}
}

func TestExportHandler_UnknownRun(t *testing.T) {
	handler := NewExportHandler(testService(t))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/absent/export.pdf", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
}

func TestParseExportPath(t *testing.T) {
	runID, format, ok := parseExportPath("/api/v1/runs/abc-123/export.xlsx")
	if !ok || runID != "abc-123" || format != "xlsx" {
		t.Fatalf("parse failed: %q %q %v", runID, format, ok)
	}
	if _, _, ok := parseExportPath("/api/v1/runs/abc-123"); ok {
		t.Fatal("path without export suffix should not parse")
	}
	if _, _, ok := parseExportPath("/api/v1/runs/a/b/export.pdf"); ok {
		t.Fatal("nested path should not parse")
	}
}
