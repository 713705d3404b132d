package ble

import (
	"context"
	"time"
)

// Notification is one unsolicited value update from a switch characteristic.
type Notification struct {
	// MAC is the address of the peripheral that sent the update.
	MAC string

	// Value is the raw characteristic byte. Zero means off; any other
	// value means on.
	Value byte

	// At is when the notification was received.
	At time.Time
}

// Peripheral is a connected BLE switch device.
//
// Implementations must be safe for concurrent use: the bridge loop reads,
// writes, and waits on one goroutine while demo or test code presses
// buttons from another.
type Peripheral interface {
	// MAC returns the peripheral's address.
	MAC() string

	// ReadSwitchStatus reads the current value of the switch
	// characteristic.
	ReadSwitchStatus(ctx context.Context) (byte, error)

	// WriteSwitchStatus writes a new value to the switch characteristic.
	WriteSwitchStatus(ctx context.Context, value byte) error

	// EnableNotifications turns on characteristic notifications.
	EnableNotifications() error

	// DisableNotifications turns off characteristic notifications.
	// State changes while disabled are silent and are not queued.
	DisableNotifications() error

	// WaitForNotification blocks for up to timeout for the next
	// notification. A quiet timeout returns ok=false with a nil error.
	// A dropped connection returns ErrDisconnected.
	WaitForNotification(ctx context.Context, timeout time.Duration) (Notification, bool, error)

	// Disconnect closes the connection. Subsequent operations return
	// ErrDisconnected.
	Disconnect() error
}

// Scanner discovers peripherals by MAC address.
type Scanner interface {
	// Scan discovers the peripherals with the given MAC addresses within
	// the scan window. It fails with ErrNotFound if any requested address
	// was not seen; partial results are never returned. Returned
	// peripherals are connected and ready for use.
	Scan(ctx context.Context, window time.Duration, macs []string) ([]Peripheral, error)
}
