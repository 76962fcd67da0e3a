package analytics

import (
	"time"

	"weatherbench/internal/readings"
)

// AnomalyPercentage is the share of anomalous readings for one
// (station, sensor) pair, in percent.
type AnomalyPercentage struct {
	StationID string          `json:"station_id"`
	Sensor    readings.Sensor `json:"sensor"`
	Pct       float64         `json:"pct"`
}

// CoOccurrenceCount is the number of 10-minute windows in which more than
// one of a station's sensors was anomalous at least once.
type CoOccurrenceCount struct {
	StationID string `json:"station_id"`
	Windows   int    `json:"windows"`
}

// RegionalAverage is one point of a region's trailing moving-average
// series, computed over non-anomalous readings only.
type RegionalAverage struct {
	Region      string    `json:"region"`
	TS          time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Pressure    float64   `json:"pressure"`
}

// Fragments is the metric output of one unit of work, and after merging,
// the three named collections callers consume.
type Fragments struct {
	Percentages      []AnomalyPercentage `json:"percentages"`
	CoOccurrences    []CoOccurrenceCount `json:"co_occurrences"`
	RegionalAverages []RegionalAverage   `json:"regional_averages"`
}

// Empty reports whether the fragment set carries no metrics at all.
func (f Fragments) Empty() bool {
	return len(f.Percentages) == 0 && len(f.CoOccurrences) == 0 && len(f.RegionalAverages) == 0
}
