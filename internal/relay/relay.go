// Package relay substitutes device identifiers between the sense and act
// topics, standing in for the cloud function that pairs the two switches.
//
// A sense event from one device is republished as an act command addressed
// to its configured peer: press switch A and switch B toggles. The relay is
// optional and exists for loopback demos and end-to-end runs; in a full
// deployment the swap happens cloud-side.
package relay

import (
	"fmt"
	"sync"

	"github.com/nerrad567/switchbridge/internal/bridge"
)

// Session is the MQTT surface the relay uses: one subscription on the
// sense topic, publishes on the act topic.
type Session interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Config holds the relay settings.
type Config struct {
	// SenseTopic is where sensed presses arrive.
	SenseTopic string

	// ActTopic is where swapped commands are published (QoS 1).
	ActTopic string

	// Peers maps each device name to the peer its presses should drive.
	Peers map[string]string
}

// Relay republishes sense events as act commands addressed to the sensing
// device's peer. Timestamp and status ride through untouched; only the
// identifier changes.
//
// Thread Safety: the sense handler runs on the MQTT dispatch goroutine;
// all methods are safe for concurrent use.
type Relay struct {
	cfg     Config
	session Session
	peers   map[string]string

	logger   Logger
	loggerMu sync.RWMutex
}

// NewRelay creates a relay. Call Start to subscribe it to the sense topic.
func NewRelay(cfg Config, session Session) (*Relay, error) {
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if cfg.SenseTopic == "" {
		return nil, fmt.Errorf("sense topic is required")
	}
	if cfg.ActTopic == "" {
		return nil, fmt.Errorf("act topic is required")
	}
	if len(cfg.Peers) == 0 {
		return nil, fmt.Errorf("at least one peer mapping is required")
	}

	peers := make(map[string]string, len(cfg.Peers))
	for from, to := range cfg.Peers {
		if from == "" || to == "" {
			return nil, fmt.Errorf("peer mapping %q -> %q has an empty device name", from, to)
		}
		if from == to {
			return nil, fmt.Errorf("device %s cannot be its own peer", from)
		}
		peers[from] = to
	}

	return &Relay{
		cfg:     cfg,
		session: session,
		peers:   peers,
	}, nil
}

// Start subscribes the relay to the sense topic.
func (r *Relay) Start() error {
	if err := r.session.Subscribe(r.cfg.SenseTopic, 0, r.handleSense); err != nil {
		return fmt.Errorf("subscribing to senses: %w", err)
	}

	r.logInfo("relay started",
		"sense_topic", r.cfg.SenseTopic,
		"act_topic", r.cfg.ActTopic,
		"peers", len(r.peers))
	return nil
}

// handleSense swaps the sensing device for its peer and republishes.
// Undecodable payloads and devices without a peer mapping are dropped.
func (r *Relay) handleSense(_ string, payload []byte) {
	msg, err := bridge.ParseSwitchMessage(payload)
	if err != nil {
		r.logDebug("relay dropped payload", "reason", err.Error())
		return
	}

	peer, ok := r.peers[msg.DeviceID]
	if !ok {
		r.logDebug("relay dropped sense", "device", msg.DeviceID, "reason", "no peer mapping")
		return
	}

	from := msg.DeviceID
	msg.DeviceID = peer
	out, err := msg.Encode()
	if err != nil {
		r.logError("relay failed to encode act", err)
		return
	}

	if err := r.session.Publish(r.cfg.ActTopic, out, 1, false); err != nil {
		r.logWarn("relay failed to publish act", "device", peer, "error", err)
		return
	}

	r.logInfo("act relayed", "from", from, "to", peer, "status", msg.Status.String())
}

// SetLogger sets the logger for the relay.
func (r *Relay) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

// logInfo logs an info message if logger is set.
func (r *Relay) logInfo(msg string, keysAndValues ...any) {
	r.loggerMu.RLock()
	logger := r.logger
	r.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning message if logger is set.
func (r *Relay) logWarn(msg string, keysAndValues ...any) {
	r.loggerMu.RLock()
	logger := r.logger
	r.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (r *Relay) logError(msg string, err error) {
	r.loggerMu.RLock()
	logger := r.logger
	r.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (r *Relay) logDebug(msg string, keysAndValues ...any) {
	r.loggerMu.RLock()
	logger := r.logger
	r.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
