// Package mqtt provides per-device cloud sessions for Switch Bridge.
//
// This package manages:
//   - One mutual-TLS connection per switch device with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Device shadow updates with client-token correlation
//
// # Architecture
//
// Every bridged switch is registered with the IoT cloud as its own thing
// with its own certificate pair, so the bridge holds one session per
// device rather than one shared connection. Sense events, actuation
// commands, and shadow documents all travel over these sessions.
//
//	Switch Bridge ↔ IoT Cloud Broker (per-device sessions)
//
// # Security Considerations
//
//   - Mutual TLS is required against the cloud broker (port 8883); the
//     root CA verifies the broker, the device pair authenticates the thing
//   - Plain TCP is only for local test brokers without certificates
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Publish latency: broker round-trip, tens of milliseconds to cloud
//   - Reconnect: Exponential backoff 1s-60s
//   - Shadow confirmations: asynchronous, default 5 second deadline
//
// # Usage
//
//	client, err := mqtt.Connect(mqtt.SessionConfig{
//	    Cloud:  cfg.Cloud,
//	    Device: dev,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Publish a sense event
//	client.Publish("iot_device/switch_sense", payload, 0, false)
//
//	// Mirror a desired position into the device shadow
//	shadow := mqtt.NewShadowClient(client)
//	shadow.UpdateDesired(dev.Name, 1, 5*time.Second, func(err error) {
//	    if err != nil {
//	        log.Printf("unconfirmed: %v", err)
//	    }
//	})
package mqtt
