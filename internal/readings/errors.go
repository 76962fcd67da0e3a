package readings

import "errors"

var (
	// ErrUnknownSensor indicates a sensor name outside the supported set.
	ErrUnknownSensor = errors.New("readings: unknown sensor")
	// ErrBadHeader indicates a CSV header that does not match the expected columns.
	ErrBadHeader = errors.New("readings: unexpected csv header")
	// ErrBadTimestamp indicates a timestamp that could not be parsed.
	ErrBadTimestamp = errors.New("readings: unparseable timestamp")
)
