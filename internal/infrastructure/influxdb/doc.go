// Package influxdb provides InfluxDB connectivity for Switch Bridge.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, switch-event writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series storage for switch events: every sense
// publication, act command, and actuation attempt can be recorded with its
// device, direction, and status for later analysis. Telemetry is optional
// and disabled by default; the bridge runs identically without it.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "switchbridge",
//	    Bucket:  "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Record a switch event
//	client.WriteSwitchEvent("IoT_Device_1", "sense", 1, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback set with SetOnError. Connection and health check errors are
// returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size,
// flush_interval). Batching keeps the bridge loop free of network waits.
package influxdb
