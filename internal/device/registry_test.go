package device

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-energy/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-energy/internal/schema"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "registry.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})
	return db
}

func registrySchema(t *testing.T) *schema.Schema {
	t.Helper()
	set, err := schema.Parse([]byte(`
plug:
  file: data/energy.db
  table: plug_readings
  schema:
    - name: current_power
      type: REAL
devices_db:
  file: data/energy.db
  table: devices
  schema:
    - name: name
      type: TEXT
    - name: type
      type: TEXT
    - name: connector
      type: TEXT
    - name: room
      type: TEXT
`), nil)
	if err != nil {
		t.Fatalf("parsing registry schema: %v", err)
	}
	return set.DevicesDB
}

func TestRegistry_Rebuild(t *testing.T) {
	db := openTestDB(t)
	sch := registrySchema(t)
	ctx := context.Background()

	devices := []Device{
		{
			Name:      "meter-1",
			Type:      "em340",
			Connector: ConnectorModbus,
			Host:      "192.168.1.60",
			Port:      502,
			Attrs:     map[string]any{"type": "em340", "connector": "modbus", "ip": "192.168.1.60"},
		},
		{
			Name:      "office-plug",
			Type:      "plug",
			Connector: ConnectorTapo,
			Host:      "192.168.1.50",
			Port:      80,
			Attrs:     map[string]any{"type": "plug", "connector": "tapo", "room": "office"},
		},
	}

	reg := NewRegistry(db)
	if err := reg.Rebuild(ctx, sch, devices); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices").Scan(&count); err != nil {
		t.Fatalf("counting registry rows: %v", err)
	}
	if count != 2 {
		t.Errorf("registry has %d rows, want 2", count)
	}

	var devType, room string
	err := db.QueryRowContext(ctx,
		"SELECT type, room FROM devices WHERE name = ?", "office-plug",
	).Scan(&devType, &room)
	if err != nil {
		t.Fatalf("reading registry row: %v", err)
	}
	if devType != "plug" {
		t.Errorf("type = %q, want plug", devType)
	}
	if room != "office" {
		t.Errorf("room = %q, want office", room)
	}

	// Columns with no matching attribute store an empty string.
	err = db.QueryRowContext(ctx,
		"SELECT room FROM devices WHERE name = ?", "meter-1",
	).Scan(&room)
	if err != nil {
		t.Fatalf("reading registry row: %v", err)
	}
	if room != "" {
		t.Errorf("room = %q, want empty string for an absent attribute", room)
	}
}

func TestRegistry_RebuildReplacesExisting(t *testing.T) {
	db := openTestDB(t)
	sch := registrySchema(t)
	ctx := context.Background()

	reg := NewRegistry(db)

	first := []Device{{Name: "old-plug", Attrs: map[string]any{"type": "plug"}}}
	if err := reg.Rebuild(ctx, sch, first); err != nil {
		t.Fatalf("first Rebuild() error = %v", err)
	}

	second := []Device{{Name: "new-plug", Attrs: map[string]any{"type": "plug"}}}
	if err := reg.Rebuild(ctx, sch, second); err != nil {
		t.Fatalf("second Rebuild() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM devices WHERE name = ?", "old-plug",
	).Scan(&count); err != nil {
		t.Fatalf("counting stale rows: %v", err)
	}
	if count != 0 {
		t.Error("stale device should be gone after rebuild")
	}

	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM devices WHERE name = ?", "new-plug",
	).Scan(&count); err != nil {
		t.Fatalf("counting fresh rows: %v", err)
	}
	if count != 1 {
		t.Error("rebuilt registry should hold the current inventory")
	}
}

func TestRegistry_NoSchema(t *testing.T) {
	db := openTestDB(t)
	reg := NewRegistry(db)

	err := reg.Rebuild(context.Background(), nil, nil)
	if !errors.Is(err, ErrNoRegistrySchema) {
		t.Errorf("Rebuild() error = %v, want ErrNoRegistrySchema", err)
	}
}
