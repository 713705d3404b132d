// Package ble defines the Bluetooth peripheral surface the bridge drives
// and provides an in-process simulator implementing it.
//
// The bridge only needs a narrow slice of BLE: read and write one switch
// characteristic, gate its notifications, and wait a bounded time for the
// next notification. Peripheral captures exactly that slice, and Scanner
// covers discovery by MAC address within a scan window.
//
// # Simulator
//
// SimPeripheral models the switch devices used in development: a single
// byte of switch state, a button that toggles it, and notification gating
// that matches real hardware. A write or press while notifications are
// disabled changes the state silently; no event is queued for later. This
// mirrors the actuation sequence the bridge relies on, where notifications
// are suspended around a write so the device's own echo never loops back
// as a new sense.
//
// Real-radio adapters are intentionally out of scope; they would implement
// the same interfaces.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package ble
