package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/switchbridge/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// reconnectInitialDelay is the first retry interval after a lost connection.
	reconnectInitialDelay = 1 * time.Second

	// reconnectMaxDelay caps the exponential backoff between retries.
	reconnectMaxDelay = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// SessionConfig describes one device's cloud session.
//
// Every session shares the broker endpoint from the cloud section but
// authenticates with the device's own certificate pair and connects under
// the device name as client ID, matching how the IoT cloud registers each
// switch as a separate thing.
type SessionConfig struct {
	// Cloud is the shared broker endpoint configuration.
	Cloud config.CloudConfig

	// Device supplies the client identity: name and certificate pair.
	Device config.DeviceConfig

	// StatusTopic overrides the default system status topic used for the
	// LWT and online/offline announcements. Empty selects the default.
	StatusTopic string
}

// statusTopic returns the configured system status topic or the default.
func (cfg SessionConfig) statusTopic() string {
	if cfg.StatusTopic != "" {
		return cfg.StatusTopic
	}
	return DefaultStatusTopic
}

// clientID returns the MQTT client identifier for this session.
func (cfg SessionConfig) clientID() string {
	return cfg.Device.Name
}

// useTLS reports whether the session should connect with mutual TLS.
// A certificate pair marks a cloud deployment; without one the session
// falls back to plain TCP, which test brokers use.
func (cfg SessionConfig) useTLS() bool {
	return cfg.Device.CertFile != "" && cfg.Device.KeyFile != ""
}

// buildClientOptions creates paho MQTT options for one device session.
//
// This configures:
//   - Broker URL (ssl:// with mutual TLS, tcp:// otherwise)
//   - Client ID (the device name)
//   - Auto-reconnect with exponential backoff
//   - Mutual TLS from the device certificate pair and the shared root CA
//   - Clean session mode
func buildClientOptions(cfg SessionConfig) (*pahomqtt.ClientOptions, error) {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.useTLS() {
		scheme = "ssl"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, cfg.Cloud.Endpoint, cfg.Cloud.Port)
	opts.AddBroker(brokerURL)

	opts.SetClientID(cfg.clientID())

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)

	// Auto-reconnect with exponential backoff
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(reconnectInitialDelay)
	opts.SetMaxReconnectInterval(reconnectMaxDelay)

	connectTimeout := defaultConnectTimeout
	if cfg.Cloud.ConnectTimeout > 0 {
		connectTimeout = time.Duration(cfg.Cloud.ConnectTimeout) * time.Second
	}
	opts.SetConnectTimeout(connectTimeout)

	// Keepalive - broker sends PINGs to detect dead connections
	keepalive := defaultKeepAlive
	if cfg.Cloud.Keepalive > 0 {
		keepalive = time.Duration(cfg.Cloud.Keepalive) * time.Second
	}
	opts.SetKeepAlive(keepalive)

	if cfg.useTLS() {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts, nil
}

// buildTLSConfig loads the mutual TLS material for a device session.
//
// The root CA verifies the broker; the device certificate pair
// authenticates the session as its registered thing.
func buildTLSConfig(cfg SessionConfig) (*tls.Config, error) {
	pool := x509.NewCertPool()
	caPEM, err := os.ReadFile(cfg.Cloud.RootCA)
	if err != nil {
		return nil, fmt.Errorf("%w: reading root CA: %v", ErrTLSConfig, err)
	}
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("%w: root CA %s contains no certificates", ErrTLSConfig, cfg.Cloud.RootCA)
	}

	cert, err := tls.LoadX509KeyPair(cfg.Device.CertFile, cfg.Device.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: loading certificate for %s: %v", ErrTLSConfig, cfg.Device.Name, err)
	}

	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tlsMinVersion,
	}, nil
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// The LWT message is published by the broker if the session disconnects
// unexpectedly (crash, network failure, etc.). This lets cloud-side
// consumers distinguish a dead bridge from a silent one.
//
// Topic: switchbridge/system/status (configurable)
// QoS: 1 (guaranteed delivery)
// Retained: true (new subscribers see last status)
func configureLWT(opts *pahomqtt.ClientOptions, cfg SessionConfig) {
	willPayload := fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"unexpected_disconnect","timestamp":"%s"}`,
		cfg.clientID(),
		time.Now().UTC().Format(time.RFC3339),
	)

	opts.SetWill(cfg.statusTopic(), willPayload, 1, true)
}

// buildOnlinePayload creates the JSON payload for online status messages.
func buildOnlinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"online","client_id":"%s","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// buildOfflinePayload creates the JSON payload for graceful offline status.
func buildOfflinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"graceful_shutdown","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}
