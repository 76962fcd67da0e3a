package readings

import (
	"testing"
	"time"
)

func sampleReadings() []Reading {
	base := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	return []Reading{
		{TS: base.Add(3 * time.Minute), StationID: "STA-002", Region: "south", Temperature: 21, Humidity: 50, Pressure: 1001},
		{TS: base.Add(1 * time.Minute), StationID: "STA-001", Region: "north", Temperature: 20, Humidity: 48, Pressure: 1000},
		{TS: base.Add(2 * time.Minute), StationID: "STA-001", Region: "north", Temperature: 19, Humidity: 49, Pressure: 999},
		{TS: base, StationID: "STA-002", Region: "south", Temperature: 22, Humidity: 51, Pressure: 1002},
		{TS: base.Add(1 * time.Minute), StationID: "STA-003", Region: "north", Temperature: 18, Humidity: 47, Pressure: 998},
	}
}

func TestByStation_DisjointAndLossless(t *testing.T) {
	rs := sampleReadings()
	parts := ByStation(rs)

	if len(parts) != 3 {
		t.Fatalf("want 3 partitions, got %d", len(parts))
	}

	total := 0
	seen := make(map[string]bool)
	for _, p := range parts {
		if seen[p.Key] {
			t.Fatalf("duplicate partition key %q", p.Key)
		}
		seen[p.Key] = true
		total += len(p.Readings)
		for _, r := range p.Readings {
			if r.StationID != p.Key {
				t.Fatalf("reading for %q in partition %q", r.StationID, p.Key)
			}
		}
	}
	if total != len(rs) {
		t.Fatalf("partitions hold %d readings, input had %d", total, len(rs))
	}
}

func TestByStation_SortedByTimestamp(t *testing.T) {
	parts := ByStation(sampleReadings())
	for _, p := range parts {
		for i := 1; i < len(p.Readings); i++ {
			if p.Readings[i].TS.Before(p.Readings[i-1].TS) {
				t.Fatalf("partition %q not sorted at index %d", p.Key, i)
			}
		}
	}
}

func TestByStation_PartitionsSortedByKey(t *testing.T) {
	parts := ByStation(sampleReadings())
	for i := 1; i < len(parts); i++ {
		if parts[i].Key <= parts[i-1].Key {
			t.Fatalf("partitions not sorted by key: %q after %q", parts[i].Key, parts[i-1].Key)
		}
	}
}

func TestByRegion_GroupsByRegion(t *testing.T) {
	parts := ByRegion(sampleReadings())
	if len(parts) != 2 {
		t.Fatalf("want 2 region partitions, got %d", len(parts))
	}
	if parts[0].Key != "north" || parts[1].Key != "south" {
		t.Fatalf("unexpected region keys: %q, %q", parts[0].Key, parts[1].Key)
	}
	if len(parts[0].Readings) != 3 {
		t.Fatalf("want 3 north readings, got %d", len(parts[0].Readings))
	}
}

func TestDataset_Lookups(t *testing.T) {
	data := NewDataset(sampleReadings())

	if data.Len() != 5 {
		t.Fatalf("want 5 readings, got %d", data.Len())
	}
	p, ok := data.Station("STA-001")
	if !ok {
		t.Fatal("STA-001 missing")
	}
	if len(p.Readings) != 2 {
		t.Fatalf("want 2 readings for STA-001, got %d", len(p.Readings))
	}
	if _, ok := data.Station("STA-999"); ok {
		t.Fatal("unexpected partition for unknown station")
	}
	if _, ok := data.Region("south"); !ok {
		t.Fatal("south region missing")
	}
}

func TestParseSensor(t *testing.T) {
	if _, err := ParseSensor("temperature"); err != nil {
		t.Fatalf("temperature should parse: %v", err)
	}
	if _, err := ParseSensor("wind"); err == nil {
		t.Fatal("wind should not parse")
	}
}

func TestReadingValue_UnknownSensorIsNaN(t *testing.T) {
	r := Reading{Temperature: 20}
	if v := r.Value(Sensor("wind")); v == v {
		t.Fatalf("want NaN for unknown sensor, got %v", v)
	}
}
