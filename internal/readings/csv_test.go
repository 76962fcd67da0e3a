package readings

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReadCSV_RoundTrip(t *testing.T) {
	in := sampleReadings()

	var buf bytes.Buffer
	if err := WriteCSV(&buf, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if len(out) != len(in) {
		t.Fatalf("want %d readings, got %d", len(in), len(out))
	}
	for i := range in {
		if !out[i].TS.Equal(in[i].TS) || out[i] != in[i] {
			t.Fatalf("reading %d differs: got %+v want %+v", i, out[i], in[i])
		}
	}
}

func TestReadCSV_BadHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("time,station,region\n"))
	if !errors.Is(err, ErrBadHeader) {
		t.Fatalf("want ErrBadHeader, got %v", err)
	}
}

func TestReadCSV_BadTimestamp(t *testing.T) {
	body := "timestamp,station_id,region,temperature,humidity,pressure\n" +
		"yesterday,STA-001,north,20,50,1000\n"
	_, err := ReadCSV(strings.NewReader(body))
	if !errors.Is(err, ErrBadTimestamp) {
		t.Fatalf("want ErrBadTimestamp, got %v", err)
	}
}

func TestReadCSV_SpaceSeparatedTimestamp(t *testing.T) {
	body := "timestamp,station_id,region,temperature,humidity,pressure\n" +
		"2025-07-01 10:30:00,STA-001,north,20,50,1000\n"
	rs, err := ReadCSV(strings.NewReader(body))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := time.Date(2025, time.July, 1, 10, 30, 0, 0, time.UTC)
	if !rs[0].TS.Equal(want) {
		t.Fatalf("want %v, got %v", want, rs[0].TS)
	}
}

func TestReadTruthCSV_RoundTrip(t *testing.T) {
	in := []GroundTruth{
		{TS: time.Date(2025, time.July, 1, 0, 5, 0, 0, time.UTC), StationID: "STA-001", Sensor: SensorHumidity, InjectedValue: 140.25},
	}

	var buf bytes.Buffer
	if err := WriteTruthCSV(&buf, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadTruthCSV(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestReadTruthCSV_UnknownSensor(t *testing.T) {
	body := "timestamp,station_id,sensor,injected_value\n" +
		"2025-07-01T00:00:00Z,STA-001,wind,12\n"
	_, err := ReadTruthCSV(strings.NewReader(body))
	if !errors.Is(err, ErrUnknownSensor) {
		t.Fatalf("want ErrUnknownSensor, got %v", err)
	}
}

func TestReadTruthCSVFile_MissingFileSkipsValidation(t *testing.T) {
	truth, err := ReadTruthCSVFile(filepath.Join(t.TempDir(), "absent.csv"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if truth != nil {
		t.Fatalf("want nil truth, got %v", truth)
	}
}
