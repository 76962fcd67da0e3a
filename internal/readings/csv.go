package readings

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

var readingHeader = []string{"timestamp", "station_id", "region", "temperature", "humidity", "pressure"}

var truthHeader = []string{"timestamp", "station_id", "sensor", "injected_value"}

// Timestamps are accepted in RFC 3339 or in the space-separated form
// older exports used.
var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05"}

func parseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, value)
}

// ReadCSV decodes a readings stream.
func ReadCSV(r io.Reader) ([]Reading, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("readings: read header: %w", err)
	}
	if err := checkHeader(header, readingHeader); err != nil {
		return nil, err
	}

	var out []Reading
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("readings: line %d: %w", line, err)
		}
		ts, err := parseTime(record[0])
		if err != nil {
			return nil, fmt.Errorf("readings: line %d: %w", line, err)
		}
		values := make([]float64, 3)
		for i, raw := range record[3:6] {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("readings: line %d column %s: %w", line, readingHeader[3+i], err)
			}
			values[i] = v
		}
		out = append(out, Reading{
			TS:          ts,
			StationID:   record[1],
			Region:      record[2],
			Temperature: values[0],
			Humidity:    values[1],
			Pressure:    values[2],
		})
	}
	return out, nil
}

// ReadCSVFile loads a readings stream from disk.
func ReadCSVFile(path string) ([]Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// WriteCSV encodes readings in the canonical column order.
func WriteCSV(w io.Writer, rs []Reading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(readingHeader); err != nil {
		return err
	}
	for _, r := range rs {
		record := []string{
			r.TS.UTC().Format(time.RFC3339),
			r.StationID,
			r.Region,
			strconv.FormatFloat(r.Temperature, 'f', -1, 64),
			strconv.FormatFloat(r.Humidity, 'f', -1, 64),
			strconv.FormatFloat(r.Pressure, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTruthCSV decodes a ground-truth stream.
func ReadTruthCSV(r io.Reader) ([]GroundTruth, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("readings: read truth header: %w", err)
	}
	if err := checkHeader(header, truthHeader); err != nil {
		return nil, err
	}

	var out []GroundTruth
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("readings: truth line %d: %w", line, err)
		}
		ts, err := parseTime(record[0])
		if err != nil {
			return nil, fmt.Errorf("readings: truth line %d: %w", line, err)
		}
		sensor, err := ParseSensor(record[2])
		if err != nil {
			return nil, fmt.Errorf("readings: truth line %d: %w", line, err)
		}
		v, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, fmt.Errorf("readings: truth line %d: %w", line, err)
		}
		out = append(out, GroundTruth{TS: ts, StationID: record[1], Sensor: sensor, InjectedValue: v})
	}
	return out, nil
}

// ReadTruthCSVFile loads a ground-truth stream from disk. A missing file
// is not an error: validation is simply skipped without it.
func ReadTruthCSVFile(path string) ([]GroundTruth, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return ReadTruthCSV(f)
}

// WriteTruthCSV encodes ground-truth records.
func WriteTruthCSV(w io.Writer, truth []GroundTruth) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(truthHeader); err != nil {
		return err
	}
	for _, g := range truth {
		record := []string{
			g.TS.UTC().Format(time.RFC3339),
			g.StationID,
			string(g.Sensor),
			strconv.FormatFloat(g.InjectedValue, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func checkHeader(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("%w: %v", ErrBadHeader, got)
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%w: %v", ErrBadHeader, got)
		}
	}
	return nil
}
