package device

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// rawDevice is the typed YAML shape of one inventory entry. The full
// entry is also decoded as a free-form map for registry publication.
type rawDevice struct {
	Type      string `yaml:"type"`
	Connector string `yaml:"connector"`
	IP        string `yaml:"ip"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	UnitID    *int   `yaml:"unit_id"`
	SlaveID   *int   `yaml:"slave_id"`
}

// rawInventory is the YAML shape of the inventory file.
type rawInventory struct {
	Devices map[string]yaml.Node `yaml:"devices"`
}

// LoadFile reads and validates the device inventory at path.
//
// Entries are validated up front: a misconfigured device is a startup
// failure, not something to discover on the first poll. Devices are
// returned sorted by name so polling and registry order are stable
// across restarts.
//
// Parameters:
//   - path: Inventory file
//
// Returns:
//   - []Device: Validated devices in name order
//   - error: If the file cannot be read or any entry is invalid
func LoadFile(path string) ([]Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading device inventory: %w", err)
	}
	return Parse(data)
}

// Parse builds the device list from inventory text.
func Parse(data []byte) ([]Device, error) {
	var raw rawInventory
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(raw.Devices) == 0 {
		return nil, ErrNoDevices
	}

	names := make([]string, 0, len(raw.Devices))
	for name := range raw.Devices {
		names = append(names, name)
	}
	sort.Strings(names)

	devices := make([]Device, 0, len(names))
	for _, name := range names {
		node := raw.Devices[name]
		dev, err := buildDevice(name, node)
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}

	return devices, nil
}

// buildDevice decodes, defaults, and validates one inventory entry.
func buildDevice(name string, node yaml.Node) (Device, error) {
	if name == "" {
		return Device{}, fmt.Errorf("%w: empty device name", ErrInvalidDevice)
	}

	var entry rawDevice
	if err := node.Decode(&entry); err != nil {
		return Device{}, fmt.Errorf("%w: device %q: %v", ErrParse, name, err)
	}

	var attrs map[string]any
	if err := node.Decode(&attrs); err != nil {
		return Device{}, fmt.Errorf("%w: device %q: %v", ErrParse, name, err)
	}

	if entry.Type == "" {
		return Device{}, fmt.Errorf("%w: device %q has no type", ErrInvalidDevice, name)
	}

	connector := Connector(entry.Connector)
	switch connector {
	case ConnectorTapo, ConnectorModbus:
	case "":
		return Device{}, fmt.Errorf("%w: device %q has no connector", ErrInvalidDevice, name)
	default:
		return Device{}, fmt.Errorf("%w: device %q declares %q", ErrUnknownConnector, name, entry.Connector)
	}

	host := entry.IP
	if host == "" {
		host = entry.Host
	}
	if host == "" {
		return Device{}, fmt.Errorf("%w: device %q has no ip or host", ErrInvalidDevice, name)
	}

	port := entry.Port
	if port == 0 {
		switch connector {
		case ConnectorTapo:
			port = defaultTapoPort
		case ConnectorModbus:
			port = defaultModbusPort
		}
	}
	if port < 1 || port > 65535 {
		return Device{}, fmt.Errorf("%w: device %q port %d", ErrInvalidDevice, name, port)
	}

	unitID, err := resolveUnitID(name, entry)
	if err != nil {
		return Device{}, err
	}

	return Device{
		Name:      name,
		Type:      entry.Type,
		Connector: connector,
		Host:      host,
		Port:      port,
		UnitID:    unitID,
		Attrs:     attrs,
	}, nil
}

// resolveUnitID accepts both unit_id and its older slave_id spelling.
// Declaring both with different values is ambiguous and rejected.
func resolveUnitID(name string, entry rawDevice) (uint8, error) {
	id := entry.UnitID
	if id == nil {
		id = entry.SlaveID
	} else if entry.SlaveID != nil && *entry.SlaveID != *entry.UnitID {
		return 0, fmt.Errorf("%w: device %q declares conflicting unit_id and slave_id",
			ErrInvalidDevice, name)
	}
	if id == nil {
		return 1, nil
	}
	if *id < 0 || *id > 255 {
		return 0, fmt.Errorf("%w: device %q unit_id %d", ErrInvalidDevice, name, *id)
	}
	return uint8(*id), nil
}
