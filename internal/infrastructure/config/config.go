package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Switch Bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Cloud      CloudConfig      `yaml:"cloud"`
	Devices    []DeviceConfig   `yaml:"devices"`
	Topics     TopicsConfig     `yaml:"topics"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Relay      RelayConfig      `yaml:"relay"`
	Database   DatabaseConfig   `yaml:"database"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// CloudConfig contains the IoT cloud broker connection settings shared by
// every device session. Endpoint is the broker hostname without scheme or
// port; each device authenticates with its own certificate pair.
type CloudConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Port           int    `yaml:"port"`
	RootCA         string `yaml:"root_ca"`
	ConnectTimeout int    `yaml:"connect_timeout"`
	Keepalive      int    `yaml:"keepalive"`
}

// DeviceConfig describes one bridged switch device. Name doubles as the
// cloud thing name and the identifier embedded in sense/act payloads.
type DeviceConfig struct {
	Name     string `yaml:"name"`
	MAC      string `yaml:"mac"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// TopicsConfig contains the MQTT topics the bridge publishes and subscribes on.
type TopicsConfig struct {
	Sense  string `yaml:"sense"`
	Act    string `yaml:"act"`
	Health string `yaml:"health"`
	Status string `yaml:"status"`
}

// BridgeConfig contains timing settings for the bridge loop.
type BridgeConfig struct {
	PollTimeoutMS  int  `yaml:"poll_timeout_ms"`
	ScanWindow     int  `yaml:"scan_window"`
	ShadowTimeout  int  `yaml:"shadow_timeout"`
	HealthInterval int  `yaml:"health_interval"`
	ResetOnStart   bool `yaml:"reset_on_start"`
}

// RelayConfig contains settings for the identifier-swap relay.
// Peers maps a device name to the device whose actuations it should drive.
type RelayConfig struct {
	Enabled bool              `yaml:"enabled"`
	Peers   map[string]string `yaml:"peers"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SimulationConfig controls the simulated BLE layer used when no physical
// switches are attached. PressIntervalMS > 0 makes each simulated switch
// toggle itself periodically, which is useful for end-to-end demos.
type SimulationConfig struct {
	Enabled         bool `yaml:"enabled"`
	PressIntervalMS int  `yaml:"press_interval_ms"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SWITCHBRIDGE_SECTION_KEY
// For example: SWITCHBRIDGE_CLOUD_ENDPOINT, SWITCHBRIDGE_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
//
// Devices are intentionally absent from the defaults: certificates and MAC
// addresses are deployment-specific, so a config file must supply them.
func defaultConfig() *Config {
	return &Config{
		Cloud: CloudConfig{
			Port:           8883,
			ConnectTimeout: 30,
			Keepalive:      60,
		},
		Topics: TopicsConfig{
			Sense:  "iot_device/switch_sense",
			Act:    "iot_device/switch_act",
			Health: "switchbridge/health",
			Status: "switchbridge/system/status",
		},
		Bridge: BridgeConfig{
			PollTimeoutMS:  50,
			ScanWindow:     5,
			ShadowTimeout:  5,
			HealthInterval: 30,
			ResetOnStart:   true,
		},
		Database: DatabaseConfig{
			Path:        "./data/switchbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SWITCHBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Cloud
	if v := os.Getenv("SWITCHBRIDGE_CLOUD_ENDPOINT"); v != "" {
		cfg.Cloud.Endpoint = v
	}
	if v := os.Getenv("SWITCHBRIDGE_CLOUD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Cloud.Port = port
		}
	}
	if v := os.Getenv("SWITCHBRIDGE_CLOUD_ROOT_CA"); v != "" {
		cfg.Cloud.RootCA = v
	}

	// Database
	if v := os.Getenv("SWITCHBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("SWITCHBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("SWITCHBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Cloud validation
	if c.Cloud.Endpoint == "" {
		errs = append(errs, "cloud.endpoint is required (set SWITCHBRIDGE_CLOUD_ENDPOINT environment variable)")
	}
	if c.Cloud.RootCA == "" {
		errs = append(errs, "cloud.root_ca is required")
	}
	if c.Cloud.Port < 1 || c.Cloud.Port > 65535 {
		errs = append(errs, "cloud.port must be between 1 and 65535")
	}

	// Device validation. The bridge pairs exactly two switches; anything
	// else is a deployment mistake, not a degraded mode.
	if len(c.Devices) != 2 {
		errs = append(errs, fmt.Sprintf("devices must list exactly 2 entries, got %d", len(c.Devices)))
	}
	seenNames := make(map[string]bool)
	seenMACs := make(map[string]bool)
	for i, dev := range c.Devices {
		if dev.Name == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].name is required", i))
		} else if seenNames[dev.Name] {
			errs = append(errs, fmt.Sprintf("devices[%d].name %q is duplicated", i, dev.Name))
		}
		seenNames[dev.Name] = true

		if dev.MAC == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].mac is required", i))
		} else if _, err := net.ParseMAC(dev.MAC); err != nil {
			errs = append(errs, fmt.Sprintf("devices[%d].mac %q is not a valid MAC address", i, dev.MAC))
		} else if seenMACs[strings.ToLower(dev.MAC)] {
			errs = append(errs, fmt.Sprintf("devices[%d].mac %q is duplicated", i, dev.MAC))
		}
		seenMACs[strings.ToLower(dev.MAC)] = true

		if dev.CertFile == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].cert_file is required", i))
		}
		if dev.KeyFile == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].key_file is required", i))
		}
	}

	// Topic validation
	if c.Topics.Sense == "" {
		errs = append(errs, "topics.sense is required")
	}
	if c.Topics.Act == "" {
		errs = append(errs, "topics.act is required")
	}

	// Bridge timing validation
	if c.Bridge.PollTimeoutMS < 1 {
		errs = append(errs, "bridge.poll_timeout_ms must be at least 1")
	}
	if c.Bridge.ScanWindow < 1 {
		errs = append(errs, "bridge.scan_window must be at least 1 second")
	}
	if c.Bridge.ShadowTimeout < 1 {
		errs = append(errs, "bridge.shadow_timeout must be at least 1 second")
	}

	// Relay validation: every peer mapping must refer to configured devices.
	if c.Relay.Enabled {
		if len(c.Relay.Peers) == 0 {
			errs = append(errs, "relay.peers is required when relay.enabled is true")
		}
		for from, to := range c.Relay.Peers {
			if !seenNames[from] {
				errs = append(errs, fmt.Sprintf("relay.peers references unknown device %q", from))
			}
			if !seenNames[to] {
				errs = append(errs, fmt.Sprintf("relay.peers maps %q to unknown device %q", from, to))
			}
			if from == to {
				errs = append(errs, fmt.Sprintf("relay.peers maps %q to itself", from))
			}
		}
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Device returns the configuration for the named device, or false if the
// name is not configured.
func (c *Config) Device(name string) (DeviceConfig, bool) {
	for _, dev := range c.Devices {
		if dev.Name == name {
			return dev, true
		}
	}
	return DeviceConfig{}, false
}

// RelayPeer returns the peer device the relay should drive when the named
// device reports a sense, or false if no mapping exists.
func (c *Config) RelayPeer(name string) (string, bool) {
	peer, ok := c.Relay.Peers[name]
	return peer, ok
}

// GetPollTimeout returns the per-device notification wait as a Duration.
func (c *Config) GetPollTimeout() time.Duration {
	return time.Duration(c.Bridge.PollTimeoutMS) * time.Millisecond
}

// GetScanWindow returns the BLE discovery window as a Duration.
func (c *Config) GetScanWindow() time.Duration {
	return time.Duration(c.Bridge.ScanWindow) * time.Second
}

// GetShadowTimeout returns the shadow acknowledgement deadline as a Duration.
func (c *Config) GetShadowTimeout() time.Duration {
	return time.Duration(c.Bridge.ShadowTimeout) * time.Second
}

// GetHealthInterval returns the health publish interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetConnectTimeout returns the cloud connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Cloud.ConnectTimeout) * time.Second
}

// GetKeepalive returns the MQTT keepalive interval as a Duration.
func (c *Config) GetKeepalive() time.Duration {
	return time.Duration(c.Cloud.Keepalive) * time.Second
}

// GetPressInterval returns the simulated auto-press interval as a Duration.
// Zero disables auto-pressing.
func (c *Config) GetPressInterval() time.Duration {
	return time.Duration(c.Simulation.PressIntervalMS) * time.Millisecond
}
