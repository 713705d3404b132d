// Package bridge implements the BLE-to-cloud switch bridge.
//
// This package relays switch positions between Bluetooth Low Energy wall
// switches and an MQTT cloud endpoint. A physical press becomes a sense
// message on the cloud side; an act message from the cloud becomes a write
// to the switch hardware.
//
// # Architecture
//
// The bridge sits between two event sources:
//
//	┌─────────────────┐          ┌─────────────────┐
//	│  BLE switches   │   GATT   │  Switch Bridge  │   MQTT
//	│  (peripherals)  │◄────────►│   (this pkg)    │◄────────► Cloud
//	└─────────────────┘          └─────────────────┘
//
// Each switch gets a Mirror that tracks its observed and desired positions
// plus two single-slot pending cells: one unpublished sense event and one
// unapplied actuation. A single control loop polls every peripheral with a
// bounded wait, drains pending senses into publishes, and drains pending
// acts into device writes. Inbound act messages are parsed and recorded on
// the addressed mirror by the Router, which runs on the MQTT dispatch
// goroutines; the mutex-guarded cells are the only cross-goroutine state.
//
// # Key Responsibilities
//
//   - Poll switches for press notifications and publish sense messages
//   - Route act messages to the addressed mirror
//   - Actuate switches with notifications suspended, so commanded changes
//     never echo back as presses
//   - Initiate cloud shadow desired updates after each actuation
//   - Publish health status and maintain the event journal
//
// # Wire Format
//
// Sense and act messages share one JSON envelope:
//
//	{"switch_status_value": "(1724580000) IoT_Device_1 1"}
//
// The value packs a parenthesised unix timestamp, the device name, and the
// numeric status into three space-separated fields. Status decoding is
// lenient: "0" is off, anything else is on.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package bridge
