package validation

import (
	"fmt"

	"weatherbench/internal/anomaly"
	"weatherbench/internal/readings"
)

// Report summarizes how detected anomalies line up with injected ones.
type Report struct {
	TruePositives int `json:"true_positive_count"`
}

type eventKey struct {
	ts      int64
	station string
	sensor  readings.Sensor
}

// Validate joins anomalies detected under the fixed-bounds rule against
// the injected ground truth on (timestamp, station, sensor) and counts
// the keys present on both sides. Validation always runs under fixed
// bounds regardless of the rule the engine used. A nil or empty ground
// truth yields a nil report, not an error.
func Validate(rs []readings.Reading, rule *anomaly.FixedBounds, truth []readings.GroundTruth) (*Report, error) {
	if len(truth) == 0 {
		return nil, nil
	}
	if rule == nil {
		rule = anomaly.DefaultFixedBounds()
	}

	injected := make(map[eventKey]struct{}, len(truth))
	for _, g := range truth {
		injected[eventKey{ts: g.TS.UTC().Unix(), station: g.StationID, sensor: g.Sensor}] = struct{}{}
	}

	report := &Report{}
	seen := make(map[eventKey]struct{})
	for _, r := range rs {
		for _, sensor := range readings.Sensors() {
			hit, err := rule.IsAnomalous(r, sensor)
			if err != nil {
				return nil, fmt.Errorf("validation: classify: %w", err)
			}
			if !hit {
				continue
			}
			k := eventKey{ts: r.TS.UTC().Unix(), station: r.StationID, sensor: sensor}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			if _, ok := injected[k]; ok {
				report.TruePositives++
			}
		}
	}
	return report, nil
}
