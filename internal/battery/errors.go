package battery

import "codeberg.org/mutker/battmon/internal/errors"

const (
	// ErrSensorUnavailable means every candidate path for the mandatory
	// readings was exhausted. Recoverable: callers publish a stale
	// snapshot and retry on the next tick.
	ErrSensorUnavailable = errors.ErrorCode("battery_sensor_unavailable")

	// ErrNoCandidatePaths means a category was configured with an empty
	// candidate list.
	ErrNoCandidatePaths = errors.ErrorCode("battery_no_candidate_paths")
)

// IsUnavailable reports whether err represents an exhausted sensor.
func IsUnavailable(err error) bool {
	return errors.HasCode(err, ErrSensorUnavailable)
}
