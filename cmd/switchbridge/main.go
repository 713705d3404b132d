// Switch Bridge - BLE Switch to Cloud Shadow Bridge
//
// This is the main entry point for the Switch Bridge application.
// The bridge pairs BLE switch devices with their cloud device shadows:
//   - Button presses are sensed over BLE and published on the sense topic
//   - Actuation commands arriving on the act topic are written back to the
//     switch, with the shadow desired state kept in step
//   - An optional in-process relay swaps device identifiers so the two
//     switches drive each other in loopback demos
//
// BLE peripherals are simulated in-process; no radio hardware is required.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/switchbridge/migrations"

	"github.com/nerrad567/switchbridge/internal/ble"
	"github.com/nerrad567/switchbridge/internal/bridge"
	"github.com/nerrad567/switchbridge/internal/infrastructure/config"
	"github.com/nerrad567/switchbridge/internal/infrastructure/database"
	"github.com/nerrad567/switchbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/switchbridge/internal/infrastructure/logging"
	"github.com/nerrad567/switchbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/switchbridge/internal/journal"
	"github.com/nerrad567/switchbridge/internal/relay"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// Command-line flags
var (
	configFlag  string
	showVersion bool
)

func main() {
	flag.StringVar(&configFlag, "config", "", "path to the YAML configuration file")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("switchbridge %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	// This is the Go pattern for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Switch Bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// The event journal shares the database connection
	recorder := journal.NewSQLiteRecorder(db.DB)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		// Set up InfluxDB error callback
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Discover the BLE peripherals. Only the in-process simulator is built
	// in; physical radios are out of scope.
	if !cfg.Simulation.Enabled {
		return errors.New("simulation disabled: no physical BLE backend is available")
	}
	sims := make([]*ble.SimPeripheral, 0, len(cfg.Devices))
	macs := make([]string, 0, len(cfg.Devices))
	scanner := ble.NewSimScanner()
	for _, devCfg := range cfg.Devices {
		sim := ble.NewSimPeripheral(devCfg.MAC)
		scanner.Add(sim)
		sims = append(sims, sim)
		macs = append(macs, devCfg.MAC)
	}

	// Scan returns peripherals in the order requested, matching cfg.Devices
	peripherals, err := scanner.Scan(ctx, cfg.GetScanWindow(), macs)
	if err != nil {
		return fmt.Errorf("scanning for devices: %w", err)
	}
	log.Info("devices discovered", "count", len(peripherals))

	// One cloud session per device, each with its own client id and
	// certificate pair
	devices := make([]bridge.Device, 0, len(cfg.Devices))
	sessions := make([]*mqtt.Client, 0, len(cfg.Devices))
	adapters := make([]*cloudSessionAdapter, 0, len(cfg.Devices))
	for i, devCfg := range cfg.Devices {
		session, sessErr := mqtt.Connect(mqtt.SessionConfig{
			Cloud:       cfg.Cloud,
			Device:      devCfg,
			StatusTopic: cfg.Topics.Status,
		})
		if sessErr != nil {
			return fmt.Errorf("connecting cloud session for %s: %w", devCfg.Name, sessErr)
		}
		defer func() {
			log.Info("disconnecting cloud session", "device", devCfg.Name)
			if closeErr := session.Close(); closeErr != nil {
				log.Error("error closing cloud session", "error", closeErr)
			}
		}()
		session.SetLogger(log)

		// Set up session logging callbacks
		name := devCfg.Name
		session.SetOnConnect(func() {
			log.Info("cloud session reconnected", "device", name)
		})
		session.SetOnDisconnect(func(err error) {
			log.Warn("cloud session lost", "device", name, "error", err)
		})
		log.Info("cloud session established",
			"device", devCfg.Name,
			"client_id", session.ClientID(),
			"endpoint", fmt.Sprintf("%s:%d", cfg.Cloud.Endpoint, cfg.Cloud.Port),
		)

		shadow := mqtt.NewShadowClient(session)

		adapter := &cloudSessionAdapter{client: session}
		adapters = append(adapters, adapter)
		sessions = append(sessions, session)
		devices = append(devices, bridge.Device{
			Mirror:     bridge.NewMirror(devCfg.Name, devCfg.MAC),
			Peripheral: peripherals[i],
			Session:    adapter,
			Shadow:     shadow,
		})
	}

	// Build and start the bridge
	opts := bridge.BridgeOptions{
		Config: &bridge.Config{
			SenseTopic:     cfg.Topics.Sense,
			ActTopic:       cfg.Topics.Act,
			HealthTopic:    cfg.Topics.Health,
			PollTimeout:    cfg.GetPollTimeout(),
			ShadowTimeout:  cfg.GetShadowTimeout(),
			HealthInterval: cfg.GetHealthInterval(),
			ResetOnStart:   cfg.Bridge.ResetOnStart,
		},
		Devices: devices,
		Logger:  log,
		Journal: recorder,
		Version: version,
	}
	// Assign only when connected; a nil *influxdb.Client inside the
	// interface would defeat the bridge's nil check
	if influxClient != nil {
		opts.Telemetry = influxClient
	}

	br, err := bridge.NewBridge(opts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if startErr := br.Start(ctx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping bridge")
		br.Stop()
	}()
	log.Info("bridge started", "devices", len(devices))

	// Start the identifier-swap relay (optional). It stands in for the
	// cloud function that pairs the switches; publish/subscribe only, so
	// it shares the first device's session.
	if cfg.Relay.Enabled {
		rly, relayErr := relay.NewRelay(relay.Config{
			SenseTopic: cfg.Topics.Sense,
			ActTopic:   cfg.Topics.Act,
			Peers:      cfg.Relay.Peers,
		}, adapters[0])
		if relayErr != nil {
			return fmt.Errorf("creating relay: %w", relayErr)
		}
		rly.SetLogger(log)
		if startErr := rly.Start(); startErr != nil {
			return fmt.Errorf("starting relay: %w", startErr)
		}
	} else {
		log.Info("relay disabled")
	}

	// Simulated button presses for demos
	if interval := cfg.GetPressInterval(); interval > 0 {
		go autoPress(ctx, sims, interval, log)
		log.Info("auto-press enabled", "interval", interval)
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, sessions, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for a shutdown signal or a fatal bridge error (BLE disconnect)
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case err := <-br.Fatal():
		log.Error("bridge failed", "error", err)
		return fmt.Errorf("bridge failed: %w", err)
	}

	// Deferred calls run in reverse order:
	// 1. Bridge stop (disables notifications, publishes offline health)
	// 2. Cloud sessions
	// 3. InfluxDB (if enabled)
	// 4. Database

	log.Info("Switch Bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Precedence: --config flag, SWITCHBRIDGE_CONFIG environment variable, default.
func getConfigPath() string {
	if configFlag != "" {
		return configFlag
	}
	if path := os.Getenv("SWITCHBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - sessions: Cloud sessions to check, one per device
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, sessions []*mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check every cloud session
	for _, session := range sessions {
		if err := session.HealthCheck(ctx); err != nil {
			return fmt.Errorf("cloud session %s: %w", session.ClientID(), err)
		}
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// autoPress toggles the simulated switches on a timer so loopback demos
// generate traffic without manual PressButton calls. Presses alternate
// between devices. A press that lands while notifications are suspended
// still toggles the switch but goes unreported, like the real hardware.
func autoPress(ctx context.Context, sims []*ble.SimPeripheral, interval time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	next := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sim := sims[next%len(sims)]
			sim.PressButton()
			log.Debug("simulated button press", "mac", sim.MAC())
			next++
		}
	}
}

// cloudSessionAdapter adapts the infrastructure MQTT client to the bridge's
// CloudSession interface. The only difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic string, payload []byte) error
// - Bridge expects: func(topic string, payload []byte)
//
// The relay consumes the same adapter through its narrower Session interface.
type cloudSessionAdapter struct {
	client *mqtt.Client
}

// Publish implements bridge.CloudSession.
func (a *cloudSessionAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements bridge.CloudSession.
func (a *cloudSessionAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	// Wrap the void handler to return nil error (bridge handlers don't return errors)
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements bridge.CloudSession.
func (a *cloudSessionAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
