package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// measurementSwitchEvents is the measurement holding one point per
// sense publication, act command, or actuation attempt.
const measurementSwitchEvents = "switch_events"

// WriteSwitchEvent records a single switch event.
//
// This is the primary method for recording bridge telemetry.
// The write is non-blocking; points are batched and sent asynchronously,
// so a slow or absent InfluxDB never stalls the bridge loop.
//
// Parameters:
//   - deviceID: Switch identifier (e.g., "IoT_Device_1")
//   - direction: Event direction ("sense", "act", or "apply")
//   - status: Switch status (0 = off, 1 = on)
//   - at: Event timestamp (observation time, not write time)
//
// Example:
//
//	client.WriteSwitchEvent("IoT_Device_1", "sense", 1, time.Now())
func (c *Client) WriteSwitchEvent(deviceID, direction string, status int, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementSwitchEvents,
		map[string]string{
			"device_id": deviceID,
			"direction": direction,
		},
		map[string]interface{}{
			"status": status,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit WriteSwitchEvent, such as
// ad hoc diagnostics from operator tooling.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("bridge_stats",
//	    map[string]string{"host": "bridge-01"},
//	    map[string]interface{}{"cycle_ms": 104.2, "devices": 2})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
