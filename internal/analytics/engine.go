package analytics

import (
	"errors"
	"fmt"
	"time"

	"weatherbench/internal/anomaly"
	"weatherbench/internal/readings"
)

const (
	// CoOccurrenceWindow is the fixed bucket length for co-occurrence
	// counting. Buckets are right-open and floored to wall-clock
	// boundaries, so every backend derives identical windows.
	CoOccurrenceWindow = 10 * time.Minute

	// MovingAverageRows is the trailing row-count window of the regional
	// moving average (last 10 readings, minimum 1). Held constant across
	// backends; a time-span window would produce a different series on
	// irregular sampling.
	MovingAverageRows = 10
)

// ErrNilRule indicates an engine constructed without a rule.
var ErrNilRule = errors.New("analytics: nil anomaly rule")

// Engine computes the windowed metrics for a single partition. The anomaly
// rule is injected; the engine itself carries no mutable state and is safe
// for concurrent use.
type Engine struct {
	rule anomaly.Rule
}

// NewEngine builds an engine around the given rule.
func NewEngine(rule anomaly.Rule) (*Engine, error) {
	if rule == nil {
		return nil, ErrNilRule
	}
	return &Engine{rule: rule}, nil
}

// Rule returns the injected anomaly rule.
func (e *Engine) Rule() anomaly.Rule { return e.rule }

// StationMetrics computes the per-station fragments: anomaly percentage
// per sensor and the co-occurrence window count. An empty partition yields
// an empty fragment set, not an error.
func (e *Engine) StationMetrics(p readings.Partition) (Fragments, error) {
	if len(p.Readings) == 0 {
		return Fragments{}, nil
	}
	flags, err := e.classifyAll(p.Readings)
	if err != nil {
		return Fragments{}, err
	}

	var out Fragments
	total := len(p.Readings)
	for _, sensor := range readings.Sensors() {
		anomalous := 0
		for _, hit := range flags[sensor] {
			if hit {
				anomalous++
			}
		}
		out.Percentages = append(out.Percentages, AnomalyPercentage{
			StationID: p.Key,
			Sensor:    sensor,
			Pct:       100 * float64(anomalous) / float64(total),
		})
	}

	out.CoOccurrences = append(out.CoOccurrences, CoOccurrenceCount{
		StationID: p.Key,
		Windows:   countCoOccurrences(p.Readings, flags),
	})
	return out, nil
}

// RegionMetrics computes a region partition's trailing moving-average
// series. Readings where any sensor is anomalous are dropped entirely
// before averaging.
func (e *Engine) RegionMetrics(p readings.Partition) (Fragments, error) {
	if len(p.Readings) == 0 {
		return Fragments{}, nil
	}
	flags, err := e.classifyAll(p.Readings)
	if err != nil {
		return Fragments{}, err
	}

	clean := make([]readings.Reading, 0, len(p.Readings))
	for i, r := range p.Readings {
		if flags[readings.SensorTemperature][i] ||
			flags[readings.SensorHumidity][i] ||
			flags[readings.SensorPressure][i] {
			continue
		}
		clean = append(clean, r)
	}

	out := Fragments{RegionalAverages: rollingMeans(p.Key, clean)}
	return out, nil
}

// classifyAll evaluates the rule once per sensor over the whole partition.
// Statistics-based rules see the full partition, including readings that
// later get dropped from the moving average.
func (e *Engine) classifyAll(rs []readings.Reading) (map[readings.Sensor][]bool, error) {
	flags := make(map[readings.Sensor][]bool, 3)
	for _, sensor := range readings.Sensors() {
		f, err := e.rule.Classify(rs, sensor)
		if err != nil {
			return nil, fmt.Errorf("analytics: classify %s: %w", sensor, err)
		}
		flags[sensor] = f
	}
	return flags, nil
}

// countCoOccurrences buckets readings into fixed windows, ORs each
// sensor's flags within a window, and counts windows where more than one
// sensor went hot. The OR happens once per window, not once per row.
func countCoOccurrences(rs []readings.Reading, flags map[readings.Sensor][]bool) int {
	type hotSet struct{ t, h, p bool }
	windows := make(map[time.Time]*hotSet)
	for i, r := range rs {
		bucket := r.TS.Truncate(CoOccurrenceWindow)
		hs, ok := windows[bucket]
		if !ok {
			hs = &hotSet{}
			windows[bucket] = hs
		}
		hs.t = hs.t || flags[readings.SensorTemperature][i]
		hs.h = hs.h || flags[readings.SensorHumidity][i]
		hs.p = hs.p || flags[readings.SensorPressure][i]
	}

	count := 0
	for _, hs := range windows {
		hot := 0
		if hs.t {
			hot++
		}
		if hs.h {
			hot++
		}
		if hs.p {
			hot++
		}
		if hot > 1 {
			count++
		}
	}
	return count
}

// rollingMeans produces one output row per clean reading: the mean of the
// trailing MovingAverageRows readings (at least one) per sensor.
func rollingMeans(region string, clean []readings.Reading) []RegionalAverage {
	if len(clean) == 0 {
		return nil
	}

	n := len(clean)
	sums := struct{ t, h, p []float64 }{
		t: make([]float64, n+1),
		h: make([]float64, n+1),
		p: make([]float64, n+1),
	}
	for i, r := range clean {
		sums.t[i+1] = sums.t[i] + r.Temperature
		sums.h[i+1] = sums.h[i] + r.Humidity
		sums.p[i+1] = sums.p[i] + r.Pressure
	}

	out := make([]RegionalAverage, n)
	for i := range clean {
		lo := i + 1 - MovingAverageRows
		if lo < 0 {
			lo = 0
		}
		width := float64(i + 1 - lo)
		out[i] = RegionalAverage{
			Region:      region,
			TS:          clean[i].TS,
			Temperature: (sums.t[i+1] - sums.t[lo]) / width,
			Humidity:    (sums.h[i+1] - sums.h[lo]) / width,
			Pressure:    (sums.p[i+1] - sums.p[lo]) / width,
		}
	}
	return out
}
