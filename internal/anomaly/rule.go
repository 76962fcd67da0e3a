package anomaly

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"weatherbench/internal/readings"
)

// Rule classifies the readings of one partition for one sensor. The result
// is aligned 1:1 with the input slice. Classification is a pure function
// of the partition's own data and the rule; no cross-partition state.
type Rule interface {
	Name() string
	Classify(rs []readings.Reading, sensor readings.Sensor) ([]bool, error)
}

// Bounds is a closed physical interval for one sensor.
type Bounds struct {
	Min float64
	Max float64
}

// Contains reports whether v lies inside the closed interval.
func (b Bounds) Contains(v float64) bool { return v >= b.Min && v <= b.Max }

// FixedBounds flags any value outside a configured closed interval.
type FixedBounds struct {
	bounds map[readings.Sensor]Bounds
}

// NewFixedBounds builds a fixed-bounds rule. Unknown sensor names and
// inverted intervals are rejected here so misconfiguration surfaces
// before any unit of work is dispatched.
func NewFixedBounds(bounds map[readings.Sensor]Bounds) (*FixedBounds, error) {
	if len(bounds) == 0 {
		return nil, ErrEmptyBounds
	}
	copied := make(map[readings.Sensor]Bounds, len(bounds))
	for sensor, b := range bounds {
		if !sensor.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSensor, sensor)
		}
		if b.Min > b.Max {
			return nil, fmt.Errorf("%w: %s [%v, %v]", ErrInvertedBounds, sensor, b.Min, b.Max)
		}
		copied[sensor] = b
	}
	return &FixedBounds{bounds: copied}, nil
}

// DefaultFixedBounds returns the standard physical operating ranges.
func DefaultFixedBounds() *FixedBounds {
	rule, err := NewFixedBounds(map[readings.Sensor]Bounds{
		readings.SensorTemperature: {Min: -10, Max: 45},
		readings.SensorHumidity:    {Min: 0, Max: 100},
		readings.SensorPressure:    {Min: 940, Max: 1060},
	})
	if err != nil {
		panic(err) // static table above is always valid
	}
	return rule
}

// Name implements Rule.
func (r *FixedBounds) Name() string { return "fixed_bounds" }

// Bounds returns the configured interval for a sensor.
func (r *FixedBounds) Bounds(sensor readings.Sensor) (Bounds, bool) {
	b, ok := r.bounds[sensor]
	return b, ok
}

// Classify implements Rule. A reading is anomalous when its value falls
// outside the sensor's closed interval.
func (r *FixedBounds) Classify(rs []readings.Reading, sensor readings.Sensor) ([]bool, error) {
	b, ok := r.bounds[sensor]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSensor, sensor)
	}
	flags := make([]bool, len(rs))
	for i, reading := range rs {
		flags[i] = !b.Contains(reading.Value(sensor))
	}
	return flags, nil
}

// IsAnomalous classifies a single reading. FixedBounds needs no partition
// context, so this is exactly Classify on a one-element slice.
func (r *FixedBounds) IsAnomalous(reading readings.Reading, sensor readings.Sensor) (bool, error) {
	b, ok := r.bounds[sensor]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownSensor, sensor)
	}
	return !b.Contains(reading.Value(sensor)), nil
}

// StatisticalDeviation flags values further than K standard deviations
// from the partition's own mean. A zero (or undefined) deviation makes
// every reading non-anomalous: a constant signal never produces false
// positives and no division by zero occurs.
type StatisticalDeviation struct {
	K float64
}

// NewStatisticalDeviation builds a deviation rule with the given factor.
func NewStatisticalDeviation(k float64) (*StatisticalDeviation, error) {
	if k <= 0 {
		return nil, ErrBadDeviationFactor
	}
	return &StatisticalDeviation{K: k}, nil
}

// Name implements Rule.
func (r *StatisticalDeviation) Name() string { return "statistical_deviation" }

// Classify implements Rule using the sample standard deviation of the
// partition's values for the sensor.
func (r *StatisticalDeviation) Classify(rs []readings.Reading, sensor readings.Sensor) ([]bool, error) {
	if !sensor.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSensor, sensor)
	}
	flags := make([]bool, len(rs))
	if len(rs) < 2 {
		return flags, nil
	}

	values := make([]float64, len(rs))
	for i, reading := range rs {
		values[i] = reading.Value(sensor)
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return nil, fmt.Errorf("anomaly: mean: %w", err)
	}
	sigma, err := stats.StandardDeviationSample(values)
	if err != nil {
		return nil, fmt.Errorf("anomaly: stddev: %w", err)
	}
	if sigma == 0 || math.IsNaN(sigma) {
		return flags, nil
	}

	limit := r.K * sigma
	for i, v := range values {
		flags[i] = math.Abs(v-mean) > limit
	}
	return flags, nil
}
