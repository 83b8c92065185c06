package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const validInventory = `
devices:
  office-plug:
    type: plug
    connector: tapo
    ip: 192.168.1.50
    room: office
  meter-1:
    type: em340
    connector: modbus
    host: 192.168.1.60
    unit_id: 2
`

func TestParse_ValidInventory(t *testing.T) {
	devices, err := Parse([]byte(validInventory))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(devices) != 2 {
		t.Fatalf("Parse() returned %d devices, want 2", len(devices))
	}

	// Sorted by name for stable polling order.
	if devices[0].Name != "meter-1" || devices[1].Name != "office-plug" {
		t.Errorf("device order = [%s %s], want [meter-1 office-plug]",
			devices[0].Name, devices[1].Name)
	}

	meter := devices[0]
	if meter.Connector != ConnectorModbus {
		t.Errorf("meter connector = %q, want modbus", meter.Connector)
	}
	if meter.Host != "192.168.1.60" {
		t.Errorf("meter host = %q, want 192.168.1.60", meter.Host)
	}
	if meter.Port != 502 {
		t.Errorf("meter port = %d, want default 502", meter.Port)
	}
	if meter.UnitID != 2 {
		t.Errorf("meter unit id = %d, want 2", meter.UnitID)
	}
	if meter.Endpoint() != "192.168.1.60:502" {
		t.Errorf("meter endpoint = %q, want 192.168.1.60:502", meter.Endpoint())
	}

	plug := devices[1]
	if plug.Type != "plug" {
		t.Errorf("plug type = %q, want plug", plug.Type)
	}
	if plug.Port != 80 {
		t.Errorf("plug port = %d, want default 80", plug.Port)
	}
	if plug.Attrs["room"] != "office" {
		t.Errorf("plug attrs[room] = %v, want office (free-form metadata preserved)", plug.Attrs["room"])
	}
}

func TestParse_SlaveIDAlias(t *testing.T) {
	devices, err := Parse([]byte(`
devices:
  meter-1:
    type: em340
    connector: modbus
    ip: 192.168.1.60
    slave_id: 5
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if devices[0].UnitID != 5 {
		t.Errorf("unit id = %d, want 5 via slave_id", devices[0].UnitID)
	}
}

func TestParse_UnitIDDefault(t *testing.T) {
	devices, err := Parse([]byte(`
devices:
  meter-1:
    type: em340
    connector: modbus
    ip: 192.168.1.60
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if devices[0].UnitID != 1 {
		t.Errorf("unit id = %d, want default 1", devices[0].UnitID)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name      string
		inventory string
		wantErr   error
	}{
		{
			name:      "malformed yaml",
			inventory: "devices: [",
			wantErr:   ErrParse,
		},
		{
			name:      "empty inventory",
			inventory: "",
			wantErr:   ErrNoDevices,
		},
		{
			name:      "no devices key",
			inventory: "other: {}",
			wantErr:   ErrNoDevices,
		},
		{
			name: "missing type",
			inventory: `
devices:
  office-plug:
    connector: tapo
    ip: 192.168.1.50
`,
			wantErr: ErrInvalidDevice,
		},
		{
			name: "missing connector",
			inventory: `
devices:
  office-plug:
    type: plug
    ip: 192.168.1.50
`,
			wantErr: ErrInvalidDevice,
		},
		{
			name: "unknown connector",
			inventory: `
devices:
  office-plug:
    type: plug
    connector: zigbee
    ip: 192.168.1.50
`,
			wantErr: ErrUnknownConnector,
		},
		{
			name: "missing host",
			inventory: `
devices:
  office-plug:
    type: plug
    connector: tapo
`,
			wantErr: ErrInvalidDevice,
		},
		{
			name: "port out of range",
			inventory: `
devices:
  meter-1:
    type: em340
    connector: modbus
    ip: 192.168.1.60
    port: 70000
`,
			wantErr: ErrInvalidDevice,
		},
		{
			name: "conflicting unit and slave ids",
			inventory: `
devices:
  meter-1:
    type: em340
    connector: modbus
    ip: 192.168.1.60
    unit_id: 1
    slave_id: 2
`,
			wantErr: ErrInvalidDevice,
		},
		{
			name: "unit id out of range",
			inventory: `
devices:
  meter-1:
    type: em340
    connector: modbus
    ip: 192.168.1.60
    unit_id: 300
`,
			wantErr: ErrInvalidDevice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.inventory))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device_config.yaml")
	if err := os.WriteFile(path, []byte(validInventory), 0o600); err != nil {
		t.Fatalf("writing inventory: %v", err)
	}

	devices, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(devices) != 2 {
		t.Errorf("LoadFile() returned %d devices, want 2", len(devices))
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("LoadFile() should fail for a missing file")
	}
}
