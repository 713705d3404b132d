package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// serviceName identifies the bridge in health messages.
const serviceName = "switchbridge"

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthOnline indicates the bridge is operating normally.
	HealthOnline HealthStatus = "online"

	// HealthDegraded indicates the bridge is operating with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge is not running (shutdown or LWT).
	HealthOffline HealthStatus = "offline"
)

// HealthMessage reports the bridge's operational status.
// Published retained on the health topic at QoS 1.
type HealthMessage struct {
	// Service is the reporting service identifier.
	Service string `json:"service"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// DevicesManaged is the number of bridged switches.
	DevicesManaged int `json:"devices_managed"`

	// Statistics contains operational counters.
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// BridgeStatistics contains operational counters.
type BridgeStatistics struct {
	// SensesPublished is the total number of sense messages published.
	SensesPublished uint64 `json:"senses_published"`

	// ActsApplied is the total number of actuations applied.
	ActsApplied uint64 `json:"acts_applied"`

	// Errors is the total number of errors encountered.
	Errors uint64 `json:"errors"`
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// Version is the bridge software version.
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Topic is where health messages are published.
	// Default: switchbridge/health.
	Topic string

	// Sessions are the cloud sessions whose connectivity determines the
	// reported status. The first session is used as the publisher.
	Sessions []HealthPublisher
}

// HealthReporter manages periodic health status reporting.
// It publishes health messages to MQTT at regular intervals and tracks
// operational counters fed by the bridge loop.
type HealthReporter struct {
	version   string
	startTime time.Time
	interval  time.Duration
	topic     string
	sessions  []HealthPublisher

	// Device count (updated externally)
	deviceCount   int
	deviceCountMu sync.RWMutex

	// Counters (incremented by the loop, read by the report loop)
	statsMu         sync.Mutex
	sensesPublished uint64
	actsApplied     uint64
	errorsTotal     uint64

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter creates a new health reporter.
//
// Parameters:
//   - cfg: Configuration for the health reporter
//
// Returns:
//   - *HealthReporter: Ready to start (call Start to begin reporting)
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultHealthInterval
	}
	topic := cfg.Topic
	if topic == "" {
		topic = defaultHealthTopic
	}

	return &HealthReporter{
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		topic:     topic,
		sessions:  cfg.Sessions,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting.
// Must be called after creation. Call Stop to shut down.
//
// Parameters:
//   - ctx: Context for cancellation (will stop reporting when cancelled)
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop gracefully stops health reporting.
// Publishes a final "offline" status before returning.
// Safe to call multiple times (uses sync.Once).
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		// Signal shutdown
		close(h.done)

		// Wait for report loop to finish
		h.wg.Wait()

		// Publish final offline status (best-effort, ignore errors)
		//nolint:errcheck // Best-effort during shutdown, nothing we can do if it fails
		h.publishStatus(HealthOffline, "shutdown")
	})
}

// SetDeviceCount updates the managed device count.
func (h *HealthReporter) SetDeviceCount(count int) {
	h.deviceCountMu.Lock()
	h.deviceCount = count
	h.deviceCountMu.Unlock()
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// IncSensesPublished increments the published sense counter.
func (h *HealthReporter) IncSensesPublished() {
	h.statsMu.Lock()
	h.sensesPublished++
	h.statsMu.Unlock()
}

// IncActsApplied increments the applied actuation counter.
func (h *HealthReporter) IncActsApplied() {
	h.statsMu.Lock()
	h.actsApplied++
	h.statsMu.Unlock()
}

// IncErrors increments the error counter.
func (h *HealthReporter) IncErrors() {
	h.statsMu.Lock()
	h.errorsTotal++
	h.statsMu.Unlock()
}

// PublishStarting publishes a "starting" status.
// Called during bridge initialization.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
// Useful for forcing an update after a significant event.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// GetLWTPayload returns the Last Will and Testament message payload.
// This should be set as the MQTT will message during connection.
func (h *HealthReporter) GetLWTPayload() ([]byte, error) {
	msg := HealthMessage{
		Service:   serviceName,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
	return json.Marshal(msg)
}

// GetLWTTopic returns the topic for the Last Will and Testament.
func (h *HealthReporter) GetLWTTopic() string {
	return h.topic
}

// reportLoop runs the periodic health reporting.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if len(h.sessions) == 0 {
		return HealthDegraded, "no cloud sessions"
	}

	for _, s := range h.sessions {
		if s == nil || !s.IsConnected() {
			return HealthDegraded, "cloud session disconnected"
		}
	}

	return HealthOnline, ""
}

// publishStatus publishes a health status message.
func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	publisher := h.publisher()
	if publisher == nil {
		return nil // No publisher configured
	}

	// Get device count
	h.deviceCountMu.RLock()
	deviceCount := h.deviceCount
	h.deviceCountMu.RUnlock()

	// Snapshot counters
	h.statsMu.Lock()
	stats := &BridgeStatistics{
		SensesPublished: h.sensesPublished,
		ActsApplied:     h.actsApplied,
		Errors:          h.errorsTotal,
	}
	h.statsMu.Unlock()

	msg := HealthMessage{
		Service:        serviceName,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        h.version,
		UptimeSeconds:  int64(time.Since(h.startTime).Seconds()),
		DevicesManaged: deviceCount,
		Statistics:     stats,
		Reason:         reason,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	// Publish (QoS 1, retained)
	return publisher.Publish(h.topic, payload, 1, true)
}

// publisher returns the first usable session for publishing.
func (h *HealthReporter) publisher() HealthPublisher {
	for _, s := range h.sessions {
		if s != nil {
			return s
		}
	}
	return nil
}

// logError logs an error if logger is set.
func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
