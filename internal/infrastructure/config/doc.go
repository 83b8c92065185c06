// Package config handles loading and validating Gray Logic Energy configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The device-type schema and the device inventory live in separate YAML
// files named here (schema.file, devices.file); parsing those is owned by
// the schema and device packages. This package only configures the process.
//
// Security Considerations:
//   - Sensitive values (MQTT credentials, InfluxDB tokens) should be set
//     via environment variables, never committed in the config file
//   - The config file should have restricted permissions (0600)
//   - Device cloud credentials are not part of this file at all; they are
//     acquired at runtime by the credentials package
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.GetPollInterval())
package config
