package ble

import "errors"

// Domain errors for the ble package.
var (
	// ErrDisconnected is returned when an operation is attempted on a
	// peripheral whose connection has dropped.
	ErrDisconnected = errors.New("ble: peripheral disconnected")

	// ErrNotFound is returned by a scan that could not discover every
	// requested peripheral within the scan window.
	ErrNotFound = errors.New("ble: peripheral not found")
)
