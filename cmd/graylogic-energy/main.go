// Gray Logic Energy - Device Polling Service
//
// This is the main entry point for the Gray Logic Energy poller, a
// standalone service that reads smart plugs and Modbus energy meters on
// a fixed cadence and records every reading in SQLite:
//   - Schema-driven persistence (tables follow the schema file, hot reloadable)
//   - Pluggable protocol adapters (TP-Link Tapo cloud auth, Modbus-TCP)
//   - Optional MQTT and InfluxDB mirrors for dashboards
//   - Offline-first: SQLite is the system of record, mirrors are best effort
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-energy/internal/bridges"
	"github.com/nerrad567/gray-logic-energy/internal/bridges/modbus"
	"github.com/nerrad567/gray-logic-energy/internal/bridges/tapo"
	"github.com/nerrad567/gray-logic-energy/internal/credentials"
	"github.com/nerrad567/gray-logic-energy/internal/device"
	"github.com/nerrad567/gray-logic-energy/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-energy/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-energy/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-energy/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-energy/internal/poller"
	"github.com/nerrad567/gray-logic-energy/internal/schema"
	"github.com/nerrad567/gray-logic-energy/internal/store"
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

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

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
	log.Info("starting Gray Logic Energy",
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
	log.Info("configuration loaded", "path", configPath, "system", cfg.System.ID)

	// Reinitialise logger with config settings
	log, err = logging.New(cfg.Logging, version)
	if err != nil {
		return fmt.Errorf("initialising logger: %w", err)
	}
	defer func() { _ = log.Close() }()
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Load the schema source; the watcher also serves hot reloads
	// between poll cycles.
	watcher, err := schema.NewWatcher(cfg.Schema.File, log)
	if err != nil {
		return fmt.Errorf("loading schema source: %w", err)
	}
	set := watcher.Current()
	log.Info("schema source loaded",
		"path", cfg.Schema.File,
		"device_types", set.Types(),
		"hot_reload", cfg.Schema.HotReload,
	)

	// Load the device inventory
	devices, err := device.LoadFile(cfg.Devices.File)
	if err != nil {
		return fmt.Errorf("loading device inventory: %w", err)
	}
	log.Info("device inventory loaded", "path", cfg.Devices.File, "devices", len(devices))

	// Datastores open lazily per schema-declared file
	st := store.New(store.Options{
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	}, log)
	defer func() {
		log.Info("closing datastores")
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing datastores", "error", closeErr)
		}
	}()

	// Rebuild the device registry table from the inventory
	if set.DevicesDB != nil {
		handle, handleErr := st.Handle(set.DevicesDB.File)
		if handleErr != nil {
			return fmt.Errorf("opening registry datastore: %w", handleErr)
		}
		if rebuildErr := device.NewRegistry(handle).Rebuild(ctx, set.DevicesDB, devices); rebuildErr != nil {
			return fmt.Errorf("rebuilding device registry: %w", rebuildErr)
		}
		log.Info("device registry rebuilt", "table", set.DevicesDB.Table, "devices", len(devices))
	} else {
		log.Warn("schema source has no devices_db entry, registry skipped")
	}

	// Protocol adapters
	tapoBridge := tapo.New(cfg.Cloud.BaseURL, cfg.GetCloudHTTPTimeout(), log)
	modbusBridge := modbus.New(watcher, cfg.GetModbusConnectTimeout(), log)

	// Credential provider for cloud authentication
	creds := credentials.NewProvider(cfg.Cloud.EmailEnv, cfg.Cloud.PasswordEnv, cfg.Cloud.Prompt, nil, log)

	// Optional reading sinks
	var sinks []poller.Sink

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, log)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		sinks = append(sinks, mqtt.NewReadingPublisher(mqttClient))
	} else {
		log.Info("MQTT publisher disabled")
	}

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

		// Batched writes fail asynchronously; surface them in the log
		influxClient.SetOnError(func(err error) {
			log.Warn("influxdb write failed", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		sinks = append(sinks, influxClient)
	} else {
		log.Info("InfluxDB mirror disabled")
	}

	// Verify sink connections are healthy before polling starts
	if err := healthCheck(ctx, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Build the orchestrator
	p, err := poller.New(poller.Options{
		Schemas:         watcher,
		Devices:         devices,
		Bridges:         []bridges.Bridge{tapoBridge, modbusBridge},
		Store:           st,
		Credentials:     creds,
		Sinks:           sinks,
		Interval:        cfg.GetPollInterval(),
		CloudTimeout:    cfg.GetCloudTimeout(),
		MaxAuthAttempts: cfg.Cloud.MaxAuthAttempts,
		HotReload:       cfg.Schema.HotReload,
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("building poller: %w", err)
	}

	log.Info("initialisation complete", "interval", cfg.GetPollInterval())

	// The poll loop is the foreground: it returns on signal-driven
	// cancellation after draining in-flight work.
	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("poll loop: %w", err)
	}

	log.Info("Gray Logic Energy stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_ENERGY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_ENERGY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the enabled sink connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - mqttClient: MQTT client to check (nil when disabled)
//   - influxClient: InfluxDB client to check (nil when disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
