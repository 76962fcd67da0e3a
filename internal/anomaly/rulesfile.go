package anomaly

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"weatherbench/internal/readings"
)

type boundsFile struct {
	Sensors map[string]struct {
		Min float64 `yaml:"min"`
		Max float64 `yaml:"max"`
	} `yaml:"sensors"`
}

// LoadBoundsFile reads sensor bounds from a YAML file of the form:
//
//	sensors:
//	  temperature: {min: -10, max: 45}
//	  humidity: {min: 0, max: 100}
//	  pressure: {min: 940, max: 1060}
//
// Unknown sensor names fail here, before any run is dispatched.
func LoadBoundsFile(path string) (*FixedBounds, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("anomaly: read bounds file: %w", err)
	}
	var file boundsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("anomaly: parse bounds file: %w", err)
	}

	bounds := make(map[readings.Sensor]Bounds, len(file.Sensors))
	for name, b := range file.Sensors {
		sensor, err := readings.ParseSensor(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSensor, name)
		}
		bounds[sensor] = Bounds{Min: b.Min, Max: b.Max}
	}
	return NewFixedBounds(bounds)
}
