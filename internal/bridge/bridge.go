package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/switchbridge/internal/ble"
	"github.com/nerrad567/switchbridge/internal/journal"
)

// Bridge operation constants.
const (
	// defaultPollTimeout bounds the per-device notification wait.
	defaultPollTimeout = 50 * time.Millisecond

	// defaultShadowTimeout bounds the wait for a shadow update confirmation.
	defaultShadowTimeout = 5 * time.Second

	// defaultHealthInterval is how often health status is published.
	defaultHealthInterval = 30 * time.Second

	// defaultHealthTopic is where health status is published.
	defaultHealthTopic = "switchbridge/health"

	// applyTimeout is the timeout for device writes and read-backs.
	applyTimeout = 5 * time.Second
)

// Bridge orchestrates bidirectional relay between BLE switches and the cloud.
// It handles:
//   - Polling each switch for press notifications and publishing them as
//     sense messages
//   - Receiving act messages from the cloud and actuating the addressed
//     switch
//   - Shadow desired updates, health reporting, and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg     *Config
	devices []Device
	router  *Router
	health  *HealthReporter

	journal   journal.Recorder // Optional event journal
	telemetry TelemetryWriter  // Optional telemetry writer

	// Fatal loop errors (BLE disconnect) surface here for the caller
	fatal chan error

	// Start guard
	startMu sync.Mutex
	started bool

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx

	// Logger
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// CloudSession is the interface for one device's MQTT connection.
// This allows mocking in tests and flexibility in implementation.
type CloudSession interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// ShadowUpdater initiates cloud shadow desired-state updates.
// This is optional - if nil on a device, shadow updates are skipped.
type ShadowUpdater interface {
	// UpdateDesired publishes a desired switch_status update for the thing
	// and resolves the callback when the broker accepts or rejects it, or
	// when the timeout elapses. Non-blocking.
	UpdateDesired(thing string, status int, timeout time.Duration, callback func(error)) error
}

// TelemetryWriter records switch events in a time-series store.
// This is optional - if nil, the bridge operates without telemetry.
type TelemetryWriter interface {
	// WriteSwitchEvent records one switch event. Implementations buffer
	// writes and must not block the caller.
	WriteSwitchEvent(deviceID, direction string, status int, at time.Time)
}

// Device bundles the per-switch collaborators the bridge drives.
type Device struct {
	// Mirror tracks the bridge's view of the switch.
	Mirror *Mirror

	// Peripheral is the BLE connection to the switch.
	Peripheral ble.Peripheral

	// Session is this device's own cloud connection.
	Session CloudSession

	// Shadow updates the device's cloud shadow. May be nil.
	Shadow ShadowUpdater
}

// Config holds the bridge loop settings.
type Config struct {
	// SenseTopic is where observed presses are published (QoS 0).
	SenseTopic string

	// ActTopic is where actuation commands arrive (QoS 1).
	ActTopic string

	// HealthTopic is where health status is published, retained.
	// Default: switchbridge/health.
	HealthTopic string

	// PollTimeout bounds each per-device notification wait.
	// Default: 50ms.
	PollTimeout time.Duration

	// ShadowTimeout bounds each shadow update confirmation wait.
	// Default: 5s.
	ShadowTimeout time.Duration

	// HealthInterval is how often health status is published.
	// Default: 30s.
	HealthInterval time.Duration

	// ResetOnStart writes OFF to every device and resets the shadow
	// desired state before the loop starts.
	ResetOnStart bool
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the loaded bridge configuration.
	Config *Config

	// Devices are the switches to bridge, in loop polling order.
	Devices []Device

	// Logger is optional structured logger.
	Logger Logger

	// Journal is optional event journal for local diagnostics.
	// If nil, the bridge operates without journalling.
	Journal journal.Recorder

	// Telemetry is optional time-series writer for switch events.
	// If nil, the bridge operates without telemetry.
	Telemetry TelemetryWriter

	// Version is the bridge software version for health messages.
	Version string
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if len(opts.Devices) == 0 {
		return nil, fmt.Errorf("at least one device is required")
	}
	for _, dev := range opts.Devices {
		if dev.Mirror == nil {
			return nil, fmt.Errorf("device mirror is required")
		}
		if dev.Peripheral == nil {
			return nil, fmt.Errorf("device %s: peripheral is required", dev.Mirror.Name())
		}
		if dev.Session == nil {
			return nil, fmt.Errorf("device %s: cloud session is required", dev.Mirror.Name())
		}
	}

	cfg := *opts.Config
	if cfg.SenseTopic == "" {
		return nil, fmt.Errorf("sense topic is required")
	}
	if cfg.ActTopic == "" {
		return nil, fmt.Errorf("act topic is required")
	}
	if cfg.HealthTopic == "" {
		cfg.HealthTopic = defaultHealthTopic
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.ShadowTimeout == 0 {
		cfg.ShadowTimeout = defaultShadowTimeout
	}
	if cfg.HealthInterval == 0 {
		cfg.HealthInterval = defaultHealthInterval
	}

	// Create bridge-level context for cancelling device waits on shutdown
	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:       &cfg,
		devices:   append([]Device(nil), opts.Devices...),
		journal:   opts.Journal,   // May be nil (optional)
		telemetry: opts.Telemetry, // May be nil (optional)
		fatal:     make(chan error, 1),
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}

	mirrors := make([]*Mirror, 0, len(b.devices))
	sessions := make([]HealthPublisher, 0, len(b.devices))
	for _, dev := range b.devices {
		mirrors = append(mirrors, dev.Mirror)
		sessions = append(sessions, dev.Session)
	}
	b.router = NewRouter(mirrors, opts.Logger)

	// Create health reporter; it publishes via the first device's session
	b.health = NewHealthReporter(HealthReporterConfig{
		Version:  opts.Version,
		Interval: cfg.HealthInterval,
		Topic:    cfg.HealthTopic,
		Sessions: sessions,
	})
	b.health.SetDeviceCount(len(b.devices))
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Fatal returns a channel that receives the error that stopped the loop.
// A BLE disconnect surfaces here; the caller should shut down and exit
// non-zero.
func (b *Bridge) Fatal() <-chan error {
	return b.fatal
}

// Start begins bridge operation.
// It resets the devices and their shadows (when configured), subscribes
// every cloud session to the act topic, enables notifications, and starts
// health reporting and the control loop.
func (b *Bridge) Start(ctx context.Context) error {
	b.startMu.Lock()
	if b.started {
		b.startMu.Unlock()
		return ErrAlreadyStarted
	}
	b.started = true
	b.startMu.Unlock()

	// Publish starting status
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	// Drive every device to a known position before notifications are
	// enabled, so the resets themselves never surface as presses
	if b.cfg.ResetOnStart {
		for i := range b.devices {
			if err := b.resetDevice(ctx, &b.devices[i]); err != nil {
				return fmt.Errorf("resetting %s: %w", b.devices[i].Mirror.Name(), err)
			}
		}
	}

	// Subscribe every session to the act topic; duplicate delivery is
	// handled by the router's idempotent recording
	for i := range b.devices {
		dev := &b.devices[i]
		if err := dev.Session.Subscribe(b.cfg.ActTopic, 1, b.handleActMessage); err != nil {
			return fmt.Errorf("subscribing %s to acts: %w", dev.Mirror.Name(), err)
		}
	}
	b.logInfo("subscribed to acts", "topic", b.cfg.ActTopic)

	for i := range b.devices {
		dev := &b.devices[i]
		if err := dev.Peripheral.EnableNotifications(); err != nil {
			return fmt.Errorf("enabling notifications on %s: %w", dev.Mirror.Name(), err)
		}
	}

	// Start health reporting
	b.health.Start(ctx)

	// Publish initial online status
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish health status", err)
	}

	b.wg.Add(1)
	go b.run()

	b.logInfo("bridge started", "devices", len(b.devices))

	return nil
}

// Stop gracefully shuts down the bridge.
// Notifications are disabled before the caller disconnects the devices.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		// Cancel bridge context to abort in-flight device waits
		b.ctxCancel()

		// Stop health reporting (publishes "offline" status)
		b.health.Stop()

		// Wait for the loop to finish
		b.wg.Wait()

		for i := range b.devices {
			dev := &b.devices[i]
			if err := dev.Peripheral.DisableNotifications(); err != nil {
				b.logDebug("disable notifications skipped",
					"device", dev.Mirror.Name(),
					"reason", err.Error())
			}
		}

		b.logInfo("bridge stopped")
	})
}

// resetDevice writes OFF to the device and resets its shadow desired state.
func (b *Bridge) resetDevice(ctx context.Context, dev *Device) error {
	name := dev.Mirror.Name()

	if err := dev.Peripheral.WriteSwitchStatus(ctx, SwitchOff.Byte()); err != nil {
		return fmt.Errorf("writing off: %w", err)
	}
	b.logInfo("device reset", "device", name, "status", SwitchOff.String())

	if dev.Shadow != nil {
		err := dev.Shadow.UpdateDesired(name, int(SwitchOff.Byte()), b.cfg.ShadowTimeout,
			b.shadowCallback(name, SwitchOff))
		if err != nil {
			b.logWarn("shadow reset failed to start", "device", name, "error", err)
		}
	}

	return nil
}

// handleActMessage funnels inbound act payloads into the router.
func (b *Bridge) handleActMessage(topic string, payload []byte) {
	b.router.Route(payload)
}

// run is the control loop. It exits on Stop or on a fatal device error.
func (b *Bridge) run() {
	defer b.wg.Done()

	for {
		select {
		case <-b.done:
			return
		case <-b.ctx.Done():
			return
		default:
		}

		if err := b.iterate(); err != nil {
			b.logError("bridge loop stopped", err)
			b.reportFatal(err)
			return
		}
	}
}

// iterate runs one loop pass: poll every device, publish drained senses,
// apply drained acts. Devices are visited in fixed order so neither switch
// can starve the other.
func (b *Bridge) iterate() error {
	for i := range b.devices {
		if err := b.pollSense(&b.devices[i]); err != nil {
			return err
		}
	}

	for i := range b.devices {
		b.publishSense(&b.devices[i])
	}

	for i := range b.devices {
		if err := b.applyAct(&b.devices[i]); err != nil {
			return err
		}
	}

	return nil
}

// pollSense waits briefly for one notification from the device and records
// it on the mirror. A timeout is a quiet no-op; transient errors are logged
// and retried next pass; a disconnect is fatal.
func (b *Bridge) pollSense(dev *Device) error {
	n, ok, err := dev.Peripheral.WaitForNotification(b.ctx, b.cfg.PollTimeout)
	if err != nil {
		if errors.Is(err, ble.ErrDisconnected) {
			return fmt.Errorf("polling %s: %w", dev.Mirror.Name(), ErrDeviceLost)
		}
		if errors.Is(err, context.Canceled) {
			return nil // Shutting down
		}
		b.logWarn("notification poll failed", "device", dev.Mirror.Name(), "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	status := StatusFromByte(n.Value)
	dev.Mirror.RecordSense(status, n.At)
	b.logDebug("sense recorded", "device", dev.Mirror.Name(), "status", status.String())
	return nil
}

// publishSense drains one pending sense event and publishes it on the sense
// topic via the device's own session.
func (b *Bridge) publishSense(dev *Device) {
	ev, ok := dev.Mirror.DrainSense()
	if !ok {
		return
	}

	msg := SwitchMessage{
		Timestamp: ev.Timestamp,
		DeviceID:  ev.DeviceID,
		Status:    ev.Status,
	}
	payload, err := msg.Encode()
	if err != nil {
		b.logError("failed to encode sense", err)
		b.health.IncErrors()
		return
	}

	if err := dev.Session.Publish(b.cfg.SenseTopic, payload, 0, false); err != nil {
		b.logError("failed to publish sense", err)
		b.health.IncErrors()
		b.recordJournal(ev.DeviceID, journal.DirectionSense, ev.Status, journal.OutcomeFailed)
		return
	}

	b.logInfo("sense published", "device", ev.DeviceID, "status", ev.Status.String())
	b.health.IncSensesPublished()
	b.recordJournal(ev.DeviceID, journal.DirectionSense, ev.Status, journal.OutcomePublished)
	b.writeTelemetry(ev.DeviceID, journal.DirectionSense, ev.Status, ev.Timestamp)
}

// applyAct drains one pending actuation and runs the apply sequence.
// A write failure is reported and not retried; a disconnect is fatal.
func (b *Bridge) applyAct(dev *Device) error {
	status, ok := dev.Mirror.DrainAct()
	if !ok {
		return nil
	}

	name := dev.Mirror.Name()
	b.recordJournal(name, journal.DirectionAct, status, journal.OutcomeReceived)

	if err := b.applySwitch(dev, status); err != nil {
		b.recordJournal(name, journal.DirectionApply, status, journal.OutcomeFailed)
		if errors.Is(err, ble.ErrDisconnected) {
			return fmt.Errorf("applying to %s: %w", name, ErrDeviceLost)
		}
		b.logError("failed to apply act", err)
		b.health.IncErrors()
		return nil
	}

	b.logInfo("act applied", "device", name, "status", status.String())
	b.health.IncActsApplied()
	b.recordJournal(name, journal.DirectionApply, status, journal.OutcomeApplied)
	b.writeTelemetry(name, journal.DirectionApply, status, time.Now().UTC())
	return nil
}

// applySwitch runs the actuation sequence against the device hardware.
//
// Notifications are suspended for the duration of the write so the device's
// own echo of the commanded change is never recorded as a press. They are
// re-enabled before returning regardless of the write outcome. On success
// the mirror's desired position is set, the observed position is refreshed
// with a direct read, and a shadow desired update is initiated.
func (b *Bridge) applySwitch(dev *Device, status SwitchStatus) error {
	ctx, cancel := context.WithTimeout(b.ctx, applyTimeout)
	defer cancel()

	name := dev.Mirror.Name()
	p := dev.Peripheral

	if err := p.DisableNotifications(); err != nil {
		return fmt.Errorf("disabling notifications: %w", err)
	}

	writeErr := p.WriteSwitchStatus(ctx, status.Byte())

	if err := p.EnableNotifications(); err != nil {
		if writeErr == nil {
			writeErr = fmt.Errorf("re-enabling notifications: %w", err)
		} else {
			b.logError("failed to re-enable notifications", err)
		}
	}

	if writeErr != nil {
		if errors.Is(writeErr, ble.ErrDisconnected) {
			return fmt.Errorf("writing switch status: %w", writeErr)
		}
		return fmt.Errorf("%w: %v", ErrActFailed, writeErr)
	}

	dev.Mirror.setDesired(status)

	// Read back so the observed position reflects the hardware. The echo
	// notification was suppressed by the gate above, so this read is the
	// only way the mirror learns the write landed.
	value, err := p.ReadSwitchStatus(ctx)
	if err != nil {
		if errors.Is(err, ble.ErrDisconnected) {
			return fmt.Errorf("reading back switch status: %w", err)
		}
		b.logWarn("read-back failed", "device", name, "error", err)
	} else {
		dev.Mirror.setObserved(StatusFromByte(value))
	}

	if dev.Shadow != nil {
		err := dev.Shadow.UpdateDesired(name, int(status.Byte()), b.cfg.ShadowTimeout,
			b.shadowCallback(name, status))
		if err != nil {
			b.logWarn("shadow update failed to start", "device", name, "error", err)
		}
	}

	return nil
}

// shadowCallback returns the confirmation callback for a shadow update.
// Outcomes are informational only; the loop never waits on them.
func (b *Bridge) shadowCallback(device string, status SwitchStatus) func(error) {
	return func(err error) {
		if err != nil {
			b.logWarn("shadow update unconfirmed",
				"device", device,
				"status", status.String(),
				"error", err)
			return
		}
		b.logDebug("shadow update accepted", "device", device, "status", status.String())
	}
}

// recordJournal persists a journal entry if a recorder is configured.
func (b *Bridge) recordJournal(deviceID, direction string, status SwitchStatus, outcome string) {
	if b.journal == nil {
		return
	}

	entry := journal.Entry{
		DeviceID:  deviceID,
		Direction: direction,
		Status:    int(status.Byte()),
		Outcome:   outcome,
	}
	if err := b.journal.Record(b.ctx, entry); err != nil {
		b.logDebug("journal write skipped", "device", deviceID, "reason", err.Error())
	}
}

// writeTelemetry emits a telemetry point if a writer is configured.
func (b *Bridge) writeTelemetry(deviceID, direction string, status SwitchStatus, at time.Time) {
	if b.telemetry == nil {
		return
	}
	b.telemetry.WriteSwitchEvent(deviceID, direction, int(status.Byte()), at)
}

// reportFatal delivers the loop-fatal error to the Fatal channel.
func (b *Bridge) reportFatal(err error) {
	select {
	case b.fatal <- err:
	default:
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning message if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
