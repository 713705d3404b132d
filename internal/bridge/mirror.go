package bridge

import (
	"sync"
	"time"
)

// SenseEvent is one observed switch transition waiting to be published.
//
// Events are ephemeral: created when a notification is recorded, destroyed
// when the loop drains them. Nothing survives a restart.
type SenseEvent struct {
	// DeviceID is the name of the switch that reported the transition.
	DeviceID string

	// Timestamp is when the transition was observed.
	Timestamp time.Time

	// Status is the new switch position.
	Status SwitchStatus
}

// Mirror tracks the bridge's view of one switch device.
//
// A mirror holds the last observed position, the last position commanded to
// the cloud shadow, and two single-slot pending cells: an unpublished sense
// event and an unapplied actuation. The act cell is written from the MQTT
// dispatch goroutine and drained from the loop goroutine, so all pending
// state is guarded by one mutex.
//
// The cells are last-write-wins. Recording an act twice before a drain
// leaves one pending actuation; duplicate delivery of the same act is
// harmless.
type Mirror struct {
	name string
	mac  string

	mu           sync.Mutex
	observed     SwitchStatus
	desired      SwitchStatus
	pendingSense *SenseEvent
	pendingAct   SwitchStatus
	actPending   bool
}

// NewMirror creates a mirror for the named device. Both positions start off,
// matching the startup reset the bridge writes to the hardware.
func NewMirror(name, mac string) *Mirror {
	return &Mirror{
		name: name,
		mac:  mac,
	}
}

// Name returns the device name the mirror tracks.
func (m *Mirror) Name() string {
	return m.name
}

// MAC returns the physical address of the tracked device.
func (m *Mirror) MAC() string {
	return m.mac
}

// RecordSense records an observed switch transition for publication.
//
// The observed position is updated and a sense event is marked pending.
// If an identical-valued sense is already pending the call is a no-op, so
// a burst of duplicate notifications produces a single published event.
func (m *Mirror) RecordSense(status SwitchStatus, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pendingSense != nil && m.pendingSense.Status == status {
		return
	}

	m.observed = status
	m.pendingSense = &SenseEvent{
		DeviceID:  m.name,
		Timestamp: at,
		Status:    status,
	}
}

// RecordAct stores a requested actuation, overwriting any unapplied one.
//
// Safe to call from MQTT dispatch goroutines while the loop drains.
func (m *Mirror) RecordAct(status SwitchStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pendingAct = status
	m.actPending = true
}

// DrainSense removes and returns the pending sense event.
//
// Returns false when nothing is pending. A second drain without an
// intervening RecordSense always returns false.
func (m *Mirror) DrainSense() (SenseEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pendingSense == nil {
		return SenseEvent{}, false
	}
	ev := *m.pendingSense
	m.pendingSense = nil
	return ev, true
}

// DrainAct removes and returns the pending actuation.
//
// Returns false when nothing is pending.
func (m *Mirror) DrainAct() (SwitchStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.actPending {
		return SwitchOff, false
	}
	status := m.pendingAct
	m.actPending = false
	return status, true
}

// Observed returns the last position reported by the device.
func (m *Mirror) Observed() SwitchStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.observed
}

// Desired returns the last position successfully commanded to the device.
func (m *Mirror) Desired() SwitchStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desired
}

// setDesired updates the desired position after a successful device write.
func (m *Mirror) setDesired(status SwitchStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.desired = status
}

// setObserved updates the observed position from a direct read, without
// creating a sense event.
func (m *Mirror) setObserved(status SwitchStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed = status
}
