package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrInvalidPayload is returned when a sense/act payload cannot be parsed.
	ErrInvalidPayload = errors.New("bridge: invalid payload")

	// ErrDeviceLost is returned when a switch's BLE connection drops.
	// The bridge treats this as fatal and shuts down.
	ErrDeviceLost = errors.New("bridge: device connection lost")

	// ErrAlreadyStarted is returned when Start is called on a running bridge.
	ErrAlreadyStarted = errors.New("bridge: already started")

	// ErrActFailed is returned when writing an actuation to a switch fails.
	ErrActFailed = errors.New("bridge: actuation failed")
)
