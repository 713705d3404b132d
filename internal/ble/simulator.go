package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// notificationBuffer is the queue depth for undelivered notifications.
// When the queue is full new events are discarded, as on a saturated
// radio link.
const notificationBuffer = 16

// SimPeripheral is an in-process switch device.
//
// It holds one byte of switch state. PressButton toggles the state the way
// the physical button would; WriteSwitchStatus sets it the way a connected
// client would. Either path emits a notification only while notifications
// are enabled; changes made while disabled are silent and never queued.
type SimPeripheral struct {
	mac string

	mu        sync.Mutex
	status    byte
	notifying bool
	closed    bool

	notifications chan Notification
	done          chan struct{}
}

// NewSimPeripheral creates a simulated switch at the given MAC address,
// switched off with notifications disabled.
func NewSimPeripheral(mac string) *SimPeripheral {
	return &SimPeripheral{
		mac:           strings.ToLower(mac),
		notifications: make(chan Notification, notificationBuffer),
		done:          make(chan struct{}),
	}
}

// MAC returns the peripheral's address.
func (p *SimPeripheral) MAC() string {
	return p.mac
}

// ReadSwitchStatus returns the current switch byte.
func (p *SimPeripheral) ReadSwitchStatus(_ context.Context) (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrDisconnected
	}
	return p.status, nil
}

// WriteSwitchStatus sets the switch byte. The change is notified only when
// notifications are enabled.
func (p *SimPeripheral) WriteSwitchStatus(_ context.Context, value byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrDisconnected
	}
	p.status = value
	p.emitLocked()
	return nil
}

// PressButton toggles the switch the way the physical button does.
//
// The toggled state is notified only when notifications are enabled; a
// press while they are disabled changes the state silently, exactly like
// the hardware.
func (p *SimPeripheral) PressButton() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	if p.status == 0 {
		p.status = 1
	} else {
		p.status = 0
	}
	p.emitLocked()
}

// EnableNotifications turns on change notifications.
func (p *SimPeripheral) EnableNotifications() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrDisconnected
	}
	p.notifying = true
	return nil
}

// DisableNotifications turns off change notifications.
func (p *SimPeripheral) DisableNotifications() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrDisconnected
	}
	p.notifying = false
	return nil
}

// WaitForNotification blocks for up to timeout for the next notification.
func (p *SimPeripheral) WaitForNotification(ctx context.Context, timeout time.Duration) (Notification, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case n := <-p.notifications:
		return n, true, nil
	case <-timer.C:
		return Notification{}, false, nil
	case <-p.done:
		return Notification{}, false, ErrDisconnected
	case <-ctx.Done():
		return Notification{}, false, ctx.Err()
	}
}

// Disconnect drops the simulated connection. Waiters are released with
// ErrDisconnected and all further operations fail.
func (p *SimPeripheral) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	return nil
}

// emitLocked queues a notification for the current state if notifications
// are enabled. Callers must hold p.mu.
func (p *SimPeripheral) emitLocked() {
	if !p.notifying {
		return
	}
	select {
	case p.notifications <- Notification{
		MAC:   p.mac,
		Value: p.status,
		At:    time.Now().UTC(),
	}:
	default:
		// Queue full; the event is lost, as on a saturated radio link.
	}
}

// SimScanner discovers registered simulated peripherals.
type SimScanner struct {
	mu          sync.Mutex
	peripherals map[string]*SimPeripheral
}

// NewSimScanner creates a scanner over the given peripherals.
func NewSimScanner(peripherals ...*SimPeripheral) *SimScanner {
	byMAC := make(map[string]*SimPeripheral, len(peripherals))
	for _, p := range peripherals {
		byMAC[p.MAC()] = p
	}
	return &SimScanner{peripherals: byMAC}
}

// Add registers another peripheral for discovery.
func (s *SimScanner) Add(p *SimPeripheral) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peripherals[p.MAC()] = p
}

// Scan resolves the requested MAC addresses against the registered
// peripherals. Simulated discovery is immediate; the window only bounds
// how long a real radio would listen. Any missing address fails the whole
// scan with ErrNotFound.
func (s *SimScanner) Scan(ctx context.Context, _ time.Duration, macs []string) ([]Peripheral, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found := make([]Peripheral, 0, len(macs))
	var missing []string
	for _, mac := range macs {
		p, ok := s.peripherals[strings.ToLower(mac)]
		if !ok {
			missing = append(missing, mac)
			continue
		}
		found = append(found, p)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.Join(missing, ", "))
	}
	return found, nil
}
