package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Energy.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	System   SystemConfig   `yaml:"system"`
	Polling  PollingConfig  `yaml:"polling"`
	Schema   SchemaConfig   `yaml:"schema"`
	Devices  DevicesConfig  `yaml:"devices"`
	Cloud    CloudConfig    `yaml:"cloud"`
	Modbus   ModbusConfig   `yaml:"modbus"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SystemConfig identifies this polling node.
type SystemConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// PollingConfig contains the poll loop settings.
type PollingConfig struct {
	// IntervalSeconds is the fixed gap between poll cycles.
	IntervalSeconds int `yaml:"interval_seconds"`

	// CloudTimeoutSeconds bounds a single cloud device read within a cycle.
	CloudTimeoutSeconds int `yaml:"cloud_timeout_seconds"`
}

// SchemaConfig locates the device-type schema source.
type SchemaConfig struct {
	File string `yaml:"file"`

	// HotReload re-parses the schema file between poll cycles when its
	// modification time changes. Columns are only ever added, never removed.
	HotReload bool `yaml:"hot_reload"`
}

// DevicesConfig locates the device configuration source.
type DevicesConfig struct {
	File string `yaml:"file"`
}

// CloudConfig contains vendor account settings for smart plug devices.
type CloudConfig struct {
	// BaseURL optionally routes plug traffic through a relay instead of
	// dialling each device directly. Leave empty for direct LAN access.
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds is the HTTP client timeout; per-read deadlines are
	// enforced separately by the poller (polling.cloud_timeout_seconds).
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// EmailEnv and PasswordEnv name the environment variables consulted
	// before falling back to an interactive prompt.
	EmailEnv    string `yaml:"email_env"`
	PasswordEnv string `yaml:"password_env"`

	// Prompt enables the interactive fallback when the environment
	// variables are unset. Disable for fully unattended deployments.
	Prompt bool `yaml:"prompt"`

	// MaxAuthAttempts bounds credential acquisition per recovery session.
	MaxAuthAttempts int `yaml:"max_auth_attempts"`
}

// ModbusConfig contains Modbus-TCP settings shared by all meter devices.
type ModbusConfig struct {
	// ConnectTimeoutSeconds is the TCP connect/IO timeout per device read.
	// Must be between 1 and 5 seconds.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
}

// DatabaseConfig contains SQLite settings applied to every datastore file.
// The files themselves are named by the schema source, not here.
type DatabaseConfig struct {
	WALMode     bool `yaml:"wal_mode"`
	BusyTimeout int  `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings for the optional
// time-series mirror of readings.
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
	File   string `yaml:"file"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_ENERGY_SECTION_KEY
// For example: GRAYLOGIC_ENERGY_SCHEMA_FILE, GRAYLOGIC_ENERGY_MQTT_HOST
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
func defaultConfig() *Config {
	return &Config{
		System: SystemConfig{
			ID:   "energy-001",
			Name: "Gray Logic Energy",
		},
		Polling: PollingConfig{
			IntervalSeconds:     5,
			CloudTimeoutSeconds: 2,
		},
		Schema: SchemaConfig{
			File:      "./config/schema_config.yaml",
			HotReload: true,
		},
		Devices: DevicesConfig{
			File: "./config/device_config.yaml",
		},
		Cloud: CloudConfig{
			TimeoutSeconds:  10,
			EmailEnv:        "TAPO_EMAIL",
			PasswordEnv:     "TAPO_PASSWORD",
			Prompt:          true,
			MaxAuthAttempts: 3,
		},
		Modbus: ModbusConfig{
			ConnectTimeoutSeconds: 3,
		},
		Database: DatabaseConfig{
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-energy",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_ENERGY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Sources
	if v := os.Getenv("GRAYLOGIC_ENERGY_SCHEMA_FILE"); v != "" {
		cfg.Schema.File = v
	}
	if v := os.Getenv("GRAYLOGIC_ENERGY_DEVICES_FILE"); v != "" {
		cfg.Devices.File = v
	}

	// Cloud
	if v := os.Getenv("GRAYLOGIC_ENERGY_CLOUD_BASE_URL"); v != "" {
		cfg.Cloud.BaseURL = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_ENERGY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_ENERGY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_ENERGY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_ENERGY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// All violations are collected so a misconfigured deployment reports
// every problem in one pass rather than one per restart.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// System validation
	if c.System.ID == "" {
		errs = append(errs, "system.id is required")
	}

	// Polling validation
	if c.Polling.IntervalSeconds < 1 {
		errs = append(errs, "polling.interval_seconds must be at least 1")
	}
	if c.Polling.CloudTimeoutSeconds < 1 {
		errs = append(errs, "polling.cloud_timeout_seconds must be at least 1")
	}

	// Source validation
	if c.Schema.File == "" {
		errs = append(errs, "schema.file is required")
	}
	if c.Devices.File == "" {
		errs = append(errs, "devices.file is required")
	}

	// Cloud validation
	if c.Cloud.MaxAuthAttempts < 1 {
		errs = append(errs, "cloud.max_auth_attempts must be at least 1")
	}

	// Modbus validation: the connect timeout guards a raw TCP dial on the
	// metering LAN; anything outside 1-5s either flaps or stalls a cycle.
	if c.Modbus.ConnectTimeoutSeconds < 1 || c.Modbus.ConnectTimeoutSeconds > 5 {
		errs = append(errs, "modbus.connect_timeout_seconds must be between 1 and 5")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set GRAYLOGIC_ENERGY_INFLUXDB_TOKEN environment variable)")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	// Logging validation
	if c.Logging.Output == "file" && c.Logging.File == "" {
		errs = append(errs, "logging.file is required when logging.output is 'file'")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollInterval returns the poll loop interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}

// GetCloudTimeout returns the per-read cloud device timeout as a Duration.
func (c *Config) GetCloudTimeout() time.Duration {
	return time.Duration(c.Polling.CloudTimeoutSeconds) * time.Second
}

// GetCloudHTTPTimeout returns the cloud HTTP client timeout as a Duration.
func (c *Config) GetCloudHTTPTimeout() time.Duration {
	return time.Duration(c.Cloud.TimeoutSeconds) * time.Second
}

// GetModbusConnectTimeout returns the Modbus TCP connect timeout as a Duration.
func (c *Config) GetModbusConnectTimeout() time.Duration {
	return time.Duration(c.Modbus.ConnectTimeoutSeconds) * time.Second
}
