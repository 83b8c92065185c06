package device

import "fmt"

// Connector identifies the protocol adapter that reads a device.
type Connector string

// Connector constants.
const (
	// ConnectorTapo reads TP-Link Tapo smart plugs over their local
	// HTTP API using cloud account credentials.
	ConnectorTapo Connector = "tapo"

	// ConnectorModbus reads holding registers over Modbus-TCP.
	ConnectorModbus Connector = "modbus"
)

// AllConnectors returns all valid connector values.
func AllConnectors() []Connector {
	return []Connector{ConnectorTapo, ConnectorModbus}
}

// Default ports per connector.
const (
	defaultTapoPort   = 80
	defaultModbusPort = 502
)

// Device is one entry from the device inventory file.
type Device struct {
	// Name is the inventory key. It becomes the device_name column of
	// every persisted reading.
	Name string

	// Type selects the device's schema entry.
	Type string

	// Connector selects the protocol adapter.
	Connector Connector

	// Host is the device's network address.
	Host string

	// Port is the device's TCP port, defaulted per connector when the
	// inventory omits it.
	Port int

	// UnitID is the Modbus unit identifier. Ignored by other connectors.
	UnitID uint8

	// Attrs is the full inventory entry as declared, for registry
	// publication. It includes the wired fields above plus any
	// free-form metadata the operator added.
	Attrs map[string]any
}

// Endpoint returns the host:port dial target.
func (d Device) Endpoint() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}
