package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrTLSConfig is returned when the root CA or device certificate pair
	// cannot be loaded.
	ErrTLSConfig = errors.New("mqtt: TLS configuration failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed is returned when an unsubscribe operation fails.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty or invalid topic is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrShadowTimeout is returned through the shadow update callback when
	// the cloud does not confirm within the deadline.
	ErrShadowTimeout = errors.New("mqtt: shadow update timed out")

	// ErrShadowRejected is returned through the shadow update callback when
	// the cloud rejects the update document.
	ErrShadowRejected = errors.New("mqtt: shadow update rejected")

	// ErrInvalidShadowStatus is returned when a shadow update is requested
	// with a status outside the switch domain (0 or 1).
	ErrInvalidShadowStatus = errors.New("mqtt: shadow status must be 0 or 1")
)
