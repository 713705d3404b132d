package mqtt

import "fmt"

// Topic constants for the bridge's own announcements.
const (
	// DefaultStatusTopic carries session online/offline announcements and
	// the LWT for every device session.
	DefaultStatusTopic = "switchbridge/system/status"

	// shadowPrefix is the cloud provider's reserved prefix for device
	// shadow topics. Things publish and subscribe under their own name.
	shadowPrefix = "$aws/things"
)

// Topics provides builders for the cloud shadow topic family.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	updateTopic := topics.ShadowUpdate("IoT_Device_1")
//	// Returns: "$aws/things/IoT_Device_1/shadow/update"
type Topics struct{}

// ShadowUpdate returns the topic for publishing shadow state updates.
//
// Example: $aws/things/IoT_Device_1/shadow/update
func (Topics) ShadowUpdate(thing string) string {
	return fmt.Sprintf("%s/%s/shadow/update", shadowPrefix, thing)
}

// ShadowUpdateAccepted returns the topic the cloud answers on when an
// update is accepted. The response echoes the client token.
//
// Example: $aws/things/IoT_Device_1/shadow/update/accepted
func (Topics) ShadowUpdateAccepted(thing string) string {
	return fmt.Sprintf("%s/%s/shadow/update/accepted", shadowPrefix, thing)
}

// ShadowUpdateRejected returns the topic the cloud answers on when an
// update is rejected, carrying an error code and message.
//
// Example: $aws/things/IoT_Device_1/shadow/update/rejected
func (Topics) ShadowUpdateRejected(thing string) string {
	return fmt.Sprintf("%s/%s/shadow/update/rejected", shadowPrefix, thing)
}

// ShadowUpdateDelta returns the topic carrying desired-vs-reported deltas.
// The bridge does not consume deltas (reconciliation is cloud-side), but
// operators subscribe here when debugging drift.
//
// Example: $aws/things/IoT_Device_1/shadow/update/delta
func (Topics) ShadowUpdateDelta(thing string) string {
	return fmt.Sprintf("%s/%s/shadow/update/delta", shadowPrefix, thing)
}

// ShadowGet returns the topic for requesting the current shadow document.
//
// Example: $aws/things/IoT_Device_1/shadow/get
func (Topics) ShadowGet(thing string) string {
	return fmt.Sprintf("%s/%s/shadow/get", shadowPrefix, thing)
}
