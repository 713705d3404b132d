// Package journal persists switch events for local diagnostics.
//
// Every sense publication and every actuation attempt is recorded as a
// journal entry, giving the bridge a local audit trail even when the
// time-series database is unavailable. The journal is write-mostly: the
// bridge never reads it back at runtime, and a failed write must never
// block switch traffic.
package journal

import (
	"context"
	"time"
)

// Journal entry directions.
const (
	// DirectionSense records a hardware press observed on a device.
	DirectionSense = "sense"

	// DirectionAct records an act command received from the cloud.
	DirectionAct = "act"

	// DirectionApply records an actuation attempt against a device.
	DirectionApply = "apply"
)

// Journal entry outcomes.
const (
	OutcomePublished = "published"
	OutcomeReceived  = "received"
	OutcomeApplied   = "applied"
	OutcomeFailed    = "failed"
)

// Entry represents a single recorded switch event.
type Entry struct {
	// ID is the auto-incremented primary key for the journal row.
	ID int64 `json:"id"`

	// DeviceID is the unique identifier of the switch device.
	DeviceID string `json:"device_id"`

	// Direction identifies the event flow (sense, act, apply).
	Direction string `json:"direction"`

	// Status is the switch position carried by the event (0 or 1).
	Status int `json:"status"`

	// Outcome records how the event concluded (published, received,
	// applied, failed).
	Outcome string `json:"outcome"`

	// CreatedAt is the timestamp of the event (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Recorder stores switch events.
//
// Implementations must be thread-safe and use UTC timestamps.
type Recorder interface {
	// Record persists a single switch event.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - entry: Event to persist (ID and CreatedAt are assigned by the store)
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	Record(ctx context.Context, entry Entry) error
}
