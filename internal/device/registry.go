package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-energy/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-energy/internal/schema"
)

// Registry publishes the device inventory to the registry table so
// external consumers can join readings back to device metadata.
type Registry struct {
	db *database.DB
}

// NewRegistry creates a Registry writing through the given handle.
func NewRegistry(db *database.DB) *Registry {
	return &Registry{db: db}
}

// Rebuild drops and recreates the registry table, then writes one row
// per device.
//
// The registry is derived state: the inventory file is the source of
// truth, so the table is rebuilt from scratch on every start rather
// than diffed. Row values come from the inventory entry's attributes by
// column name, the name column from the inventory key, and columns with
// no matching attribute store an empty string.
//
// Table and column names were validated against the identifier
// allow-list at schema load; they are safe to interpolate here.
func (r *Registry) Rebuild(ctx context.Context, sch *schema.Schema, devices []Device) error {
	if sch == nil {
		return ErrNoRegistrySchema
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning registry rebuild: %w", err)
	}
	// No-op after a successful commit.
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", sch.Table)); err != nil {
		return fmt.Errorf("dropping registry table: %w", err)
	}

	defs := make([]string, 0, len(sch.Columns)+1)
	defs = append(defs, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, col := range sch.Columns {
		defs = append(defs, col.Name+" "+col.Type)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", sch.Table, strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("creating registry table: %w", err)
	}

	cols := sch.ColumnNames()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	insert := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		sch.Table, strings.Join(cols, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("preparing registry insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // Statement cleanup

	for _, dev := range devices {
		args := make([]any, len(sch.Columns))
		for i, col := range sch.Columns {
			if col.Name == "name" {
				args[i] = dev.Name
				continue
			}
			if v, ok := dev.Attrs[col.Name]; ok {
				args[i] = v
			} else {
				args[i] = ""
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting registry row for %q: %w", dev.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing registry rebuild: %w", err)
	}

	return nil
}
