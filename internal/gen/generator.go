// Package gen produces synthetic readings with a known set of injected
// anomalies. The injected set is the ground truth the validator joins
// against; the engine under test never sees it.
package gen

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/montanaflynn/stats"

	"weatherbench/internal/readings"
)

var regions = []string{"north", "south", "east", "west", "central"}

// Params controls one synthetic batch.
type Params struct {
	Stations          int
	EventsPerStation  int
	AnomalyPercentage float64 // 0..1 share of readings turned anomalous
	Start             time.Time
	Seed              int64
}

// Validate checks generation parameters.
func (p Params) Validate() error {
	if p.Stations <= 0 || p.EventsPerStation <= 0 {
		return errors.New("gen: stations and events per station must be positive")
	}
	if p.AnomalyPercentage < 0 || p.AnomalyPercentage > 1 {
		return errors.New("gen: anomaly percentage must be in [0, 1]")
	}
	return nil
}

// Generate builds the readings batch and its ground truth. Baselines are
// sinusoidal per station with Gaussian noise; anomalies replace the value
// with mean ± 5σ of the whole column, far enough out to trip both rules.
func Generate(p Params) ([]readings.Reading, []readings.GroundTruth, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	start := p.Start
	if start.IsZero() {
		start = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	}
	rng := rand.New(rand.NewSource(p.Seed))

	total := p.Stations * p.EventsPerStation
	out := make([]readings.Reading, 0, total)
	for i := 0; i < p.Stations; i++ {
		stationID := stationName(i)
		region := regions[i%len(regions)]
		offset := float64(i) * 0.5
		for j := 0; j < p.EventsPerStation; j++ {
			phase := 2 * math.Pi * float64(j) / float64(p.EventsPerStation)
			out = append(out, readings.Reading{
				TS:          start.Add(time.Duration(j) * time.Minute),
				StationID:   stationID,
				Region:      region,
				Temperature: 25 + 8*math.Sin(phase) + offset + rng.NormFloat64()*0.5,
				Humidity:    clamp(60-20*math.Sin(phase)+rng.NormFloat64()*2, 0, 100),
				Pressure:    1012 + 5*math.Sin(phase/2) + rng.NormFloat64(),
			})
		}
	}

	truth, err := injectAnomalies(out, p.AnomalyPercentage, rng)
	if err != nil {
		return nil, nil, err
	}
	return out, truth, nil
}

// injectAnomalies rewrites a random subset of readings, one sensor each,
// and records what was injected.
func injectAnomalies(rs []readings.Reading, share float64, rng *rand.Rand) ([]readings.GroundTruth, error) {
	count := int(float64(len(rs)) * share)
	if count == 0 {
		return nil, nil
	}

	columnStats := make(map[readings.Sensor][2]float64, 3)
	for _, sensor := range readings.Sensors() {
		column := make([]float64, len(rs))
		for i, r := range rs {
			column[i] = r.Value(sensor)
		}
		mean, err := stats.Mean(column)
		if err != nil {
			return nil, err
		}
		sigma, err := stats.StandardDeviationSample(column)
		if err != nil {
			return nil, err
		}
		columnStats[sensor] = [2]float64{mean, sigma}
	}

	sensors := readings.Sensors()
	picked := rng.Perm(len(rs))[:count]
	truth := make([]readings.GroundTruth, 0, count)
	for _, idx := range picked {
		sensor := sensors[rng.Intn(len(sensors))]
		ms := columnStats[sensor]
		sign := float64(1)
		if rng.Intn(2) == 0 {
			sign = -1
		}
		value := ms[0] + sign*5*ms[1]

		switch sensor {
		case readings.SensorTemperature:
			rs[idx].Temperature = value
		case readings.SensorHumidity:
			rs[idx].Humidity = value
		case readings.SensorPressure:
			rs[idx].Pressure = value
		}
		truth = append(truth, readings.GroundTruth{
			TS:            rs[idx].TS,
			StationID:     rs[idx].StationID,
			Sensor:        sensor,
			InjectedValue: value,
		})
	}
	return truth, nil
}

func stationName(i int) string {
	return fmt.Sprintf("STA-%03d", i+1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
