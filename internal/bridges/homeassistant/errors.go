package homeassistant

import "errors"

var (
	// ErrAuthFailed is returned by Dial when the access token is rejected.
	ErrAuthFailed = errors.New("homeassistant: authentication failed")

	// ErrProtocol is returned for frames that break the websocket API flow.
	ErrProtocol = errors.New("homeassistant: unexpected message")

	// ErrClosed is returned for requests on a closed connection.
	ErrClosed = errors.New("homeassistant: connection closed")

	// ErrRequestFailed wraps an unsuccessful result frame.
	ErrRequestFailed = errors.New("homeassistant: request failed")

	// ErrTimeout is returned when no result arrives within the request timeout.
	ErrTimeout = errors.New("homeassistant: request timed out")
)
