package device

import "errors"

// Domain errors for the device package.
var (
	// ErrParse is returned when the inventory file is not valid YAML.
	ErrParse = errors.New("device: parse failed")

	// ErrNoDevices is returned when the inventory declares no devices.
	ErrNoDevices = errors.New("device: no devices declared")

	// ErrInvalidDevice is returned when an inventory entry fails validation.
	ErrInvalidDevice = errors.New("device: invalid device")

	// ErrUnknownConnector is returned when an entry names a connector no
	// adapter implements.
	ErrUnknownConnector = errors.New("device: unknown connector")

	// ErrNoRegistrySchema is returned when a registry rebuild is requested
	// but the schema source declares no registry table.
	ErrNoRegistrySchema = errors.New("device: no registry schema")
)
