package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, automation.ErrNoEntities) {
//	    // nothing to control
//	}
var (
	// ErrNoSensor is returned when a door is built without a sensor id.
	ErrNoSensor = errors.New("door: sensor is required")

	// ErrNoEntities is returned when a door has no controlled entities.
	ErrNoEntities = errors.New("door: no controlled entities")

	// ErrInvalidEntity is returned for an empty or duplicated entity id,
	// or when the sensor itself is listed as a controlled entity.
	ErrInvalidEntity = errors.New("door: invalid controlled entity")

	// ErrInvalidDuration is returned when a restore or clear duration is not positive.
	ErrInvalidDuration = errors.New("door: duration must be positive")

	// ErrMissingHost is returned when a required host capability is nil.
	ErrMissingHost = errors.New("door: missing host capability")
)
