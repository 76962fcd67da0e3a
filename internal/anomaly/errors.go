package anomaly

import "errors"

var (
	// ErrUnknownSensor indicates a rule configured for a sensor outside the supported set.
	ErrUnknownSensor = errors.New("anomaly: unknown sensor")
	// ErrEmptyBounds indicates a fixed-bounds rule with no sensor bounds at all.
	ErrEmptyBounds = errors.New("anomaly: no bounds configured")
	// ErrInvertedBounds indicates a bound with min greater than max.
	ErrInvertedBounds = errors.New("anomaly: min greater than max")
	// ErrBadDeviationFactor indicates a non-positive deviation factor.
	ErrBadDeviationFactor = errors.New("anomaly: deviation factor must be positive")
)
