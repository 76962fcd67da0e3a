package readings

import (
	"math"
	"time"
)

// Sensor identifies one of the measured channels on a station.
type Sensor string

const (
	SensorTemperature Sensor = "temperature"
	SensorHumidity    Sensor = "humidity"
	SensorPressure    Sensor = "pressure"
)

// Sensors returns all supported sensors in canonical order.
func Sensors() []Sensor {
	return []Sensor{SensorTemperature, SensorHumidity, SensorPressure}
}

// ParseSensor validates and normalizes a sensor name.
func ParseSensor(value string) (Sensor, error) {
	switch Sensor(value) {
	case SensorTemperature, SensorHumidity, SensorPressure:
		return Sensor(value), nil
	default:
		return "", ErrUnknownSensor
	}
}

// Valid returns true when the sensor is one of the supported channels.
func (s Sensor) Valid() bool {
	switch s {
	case SensorTemperature, SensorHumidity, SensorPressure:
		return true
	default:
		return false
	}
}

// Reading is one raw sample from a station. Immutable once loaded.
type Reading struct {
	TS          time.Time
	StationID   string
	Region      string
	Temperature float64
	Humidity    float64
	Pressure    float64
}

// Value returns the sample for the given sensor, NaN for an unknown one.
// Callers validate sensors before any work is dispatched.
func (r Reading) Value(s Sensor) float64 {
	switch s {
	case SensorTemperature:
		return r.Temperature
	case SensorHumidity:
		return r.Humidity
	case SensorPressure:
		return r.Pressure
	default:
		return math.NaN()
	}
}

// GroundTruth records one deliberately injected anomaly. It is produced
// only by the data generator and consumed only by the validator.
type GroundTruth struct {
	TS            time.Time
	StationID     string
	Sensor        Sensor
	InjectedValue float64
}
