package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validYAML is a minimal configuration that passes validation.
const validYAML = `
cloud:
  endpoint: "example.iot.eu-west-1.amazonaws.com"
  root_ca: "/etc/switchbridge/certs/root-ca.pem"
devices:
  - name: "IoT_Device_1"
    mac: "d1:07:fd:84:30:8c"
    cert_file: "/etc/switchbridge/devices/IoT_Device_1.pem"
    key_file: "/etc/switchbridge/devices/IoT_Device_1.prv"
  - name: "IoT_Device_2"
    mac: "d7:90:95:be:58:7e"
    cert_file: "/etc/switchbridge/devices/IoT_Device_2.pem"
    key_file: "/etc/switchbridge/devices/IoT_Device_2.prv"
database:
  path: "/tmp/switchbridge.db"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Cloud.Endpoint != "example.iot.eu-west-1.amazonaws.com" {
		t.Errorf("Cloud.Endpoint = %q, want example endpoint", cfg.Cloud.Endpoint)
	}
	if cfg.Cloud.Port != 8883 {
		t.Errorf("Cloud.Port = %d, want default 8883", cfg.Cloud.Port)
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("len(Devices) = %d, want 2", len(cfg.Devices))
	}
	if cfg.Devices[0].Name != "IoT_Device_1" {
		t.Errorf("Devices[0].Name = %q, want IoT_Device_1", cfg.Devices[0].Name)
	}
	if cfg.Topics.Sense != "iot_device/switch_sense" {
		t.Errorf("Topics.Sense = %q, want default sense topic", cfg.Topics.Sense)
	}
	if cfg.Bridge.PollTimeoutMS != 50 {
		t.Errorf("Bridge.PollTimeoutMS = %d, want default 50", cfg.Bridge.PollTimeoutMS)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SWITCHBRIDGE_CLOUD_ENDPOINT", "override.iot.example.com")
	t.Setenv("SWITCHBRIDGE_DATABASE_PATH", "/var/override.db")
	t.Setenv("SWITCHBRIDGE_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Cloud.Endpoint != "override.iot.example.com" {
		t.Errorf("Cloud.Endpoint = %q, want env override", cfg.Cloud.Endpoint)
	}
	if cfg.Database.Path != "/var/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		cfg := defaultConfig()
		cfg.Cloud.Endpoint = "example.iot.eu-west-1.amazonaws.com"
		cfg.Cloud.RootCA = "/certs/root-ca.pem"
		cfg.Devices = []DeviceConfig{
			{Name: "IoT_Device_1", MAC: "d1:07:fd:84:30:8c", CertFile: "/d/1.pem", KeyFile: "/d/1.prv"},
			{Name: "IoT_Device_2", MAC: "d7:90:95:be:58:7e", CertFile: "/d/2.pem", KeyFile: "/d/2.prv"},
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.Cloud.Endpoint = "" },
			wantErr: "cloud.endpoint",
		},
		{
			name:    "missing root CA",
			mutate:  func(c *Config) { c.Cloud.RootCA = "" },
			wantErr: "cloud.root_ca",
		},
		{
			name:    "one device only",
			mutate:  func(c *Config) { c.Devices = c.Devices[:1] },
			wantErr: "exactly 2",
		},
		{
			name: "three devices",
			mutate: func(c *Config) {
				c.Devices = append(c.Devices, DeviceConfig{
					Name: "IoT_Device_3", MAC: "aa:bb:cc:dd:ee:ff", CertFile: "/d/3.pem", KeyFile: "/d/3.prv",
				})
			},
			wantErr: "exactly 2",
		},
		{
			name:    "duplicate device name",
			mutate:  func(c *Config) { c.Devices[1].Name = c.Devices[0].Name },
			wantErr: "duplicated",
		},
		{
			name:    "invalid MAC",
			mutate:  func(c *Config) { c.Devices[0].MAC = "not-a-mac" },
			wantErr: "not a valid MAC",
		},
		{
			name:    "missing cert file",
			mutate:  func(c *Config) { c.Devices[0].CertFile = "" },
			wantErr: "cert_file",
		},
		{
			name:    "missing sense topic",
			mutate:  func(c *Config) { c.Topics.Sense = "" },
			wantErr: "topics.sense",
		},
		{
			name:    "zero poll timeout",
			mutate:  func(c *Config) { c.Bridge.PollTimeoutMS = 0 },
			wantErr: "poll_timeout_ms",
		},
		{
			name: "relay enabled without peers",
			mutate: func(c *Config) {
				c.Relay.Enabled = true
			},
			wantErr: "relay.peers is required",
		},
		{
			name: "relay peer unknown device",
			mutate: func(c *Config) {
				c.Relay.Enabled = true
				c.Relay.Peers = map[string]string{"IoT_Device_1": "IoT_Device_9"}
			},
			wantErr: "unknown device",
		},
		{
			name: "relay peer maps to itself",
			mutate: func(c *Config) {
				c.Relay.Enabled = true
				c.Relay.Peers = map[string]string{"IoT_Device_1": "IoT_Device_1"}
			},
			wantErr: "itself",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Device(t *testing.T) {
	cfg := &Config{
		Devices: []DeviceConfig{
			{Name: "IoT_Device_1", MAC: "d1:07:fd:84:30:8c"},
			{Name: "IoT_Device_2", MAC: "d7:90:95:be:58:7e"},
		},
	}

	dev, ok := cfg.Device("IoT_Device_2")
	if !ok {
		t.Fatal("Device(IoT_Device_2) not found")
	}
	if dev.MAC != "d7:90:95:be:58:7e" {
		t.Errorf("MAC = %q, want d7:90:95:be:58:7e", dev.MAC)
	}

	if _, ok := cfg.Device("IoT_Device_9"); ok {
		t.Error("Device(IoT_Device_9) = found, want not found")
	}
}

func TestConfig_RelayPeer(t *testing.T) {
	cfg := &Config{
		Relay: RelayConfig{
			Enabled: true,
			Peers: map[string]string{
				"IoT_Device_1": "IoT_Device_2",
			},
		},
	}

	peer, ok := cfg.RelayPeer("IoT_Device_1")
	if !ok {
		t.Fatal("RelayPeer(IoT_Device_1) not found")
	}
	if peer != "IoT_Device_2" {
		t.Errorf("peer = %q, want IoT_Device_2", peer)
	}

	if _, ok := cfg.RelayPeer("IoT_Device_2"); ok {
		t.Error("RelayPeer(IoT_Device_2) = found, want not found")
	}
}

func TestConfig_DurationGetters(t *testing.T) {
	cfg := &Config{
		Cloud: CloudConfig{ConnectTimeout: 30, Keepalive: 60},
		Bridge: BridgeConfig{
			PollTimeoutMS:  50,
			ScanWindow:     5,
			ShadowTimeout:  5,
			HealthInterval: 30,
		},
		Simulation: SimulationConfig{PressIntervalMS: 1500},
	}

	if got := cfg.GetPollTimeout(); got != 50*time.Millisecond {
		t.Errorf("GetPollTimeout() = %v, want 50ms", got)
	}
	if got := cfg.GetScanWindow(); got != 5*time.Second {
		t.Errorf("GetScanWindow() = %v, want 5s", got)
	}
	if got := cfg.GetShadowTimeout(); got != 5*time.Second {
		t.Errorf("GetShadowTimeout() = %v, want 5s", got)
	}
	if got := cfg.GetHealthInterval(); got != 30*time.Second {
		t.Errorf("GetHealthInterval() = %v, want 30s", got)
	}
	if got := cfg.GetConnectTimeout(); got != 30*time.Second {
		t.Errorf("GetConnectTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetKeepalive(); got != 60*time.Second {
		t.Errorf("GetKeepalive() = %v, want 60s", got)
	}
	if got := cfg.GetPressInterval(); got != 1500*time.Millisecond {
		t.Errorf("GetPressInterval() = %v, want 1.5s", got)
	}
}
