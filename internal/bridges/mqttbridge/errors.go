package mqttbridge

import "errors"

var (
	// ErrInvalidPayload is returned for device state payloads that cannot be parsed.
	ErrInvalidPayload = errors.New("mqttbridge: invalid state payload")

	// ErrNotStarted is returned by commands issued before Start.
	ErrNotStarted = errors.New("mqttbridge: not started")
)
