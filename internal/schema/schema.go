package schema

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Reserved top-level keys in the schema source that are not device types.
const (
	// devicesDBKey describes the device registry table.
	devicesDBKey = "devices_db"

	// legacyDatabaseKey is the single-device entry from early deployments.
	// It is ignored; per-type entries supersede it.
	legacyDatabaseKey = "database"
)

// identPattern is the allow-list for table and column names. Everything
// that reaches runtime DDL must have matched it at load time.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// storageClasses are the accepted SQLite column types.
var storageClasses = map[string]bool{
	"TEXT":    true,
	"INTEGER": true,
	"REAL":    true,
	"NUMERIC": true,
	"BLOB":    true,
}

// Logger defines the logging interface for schema loading.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// WireFormat identifies how a two-register Modbus value is reinterpreted
// once the registers are packed into a 32-bit word.
type WireFormat string

// Accepted wire formats. The schema source may also use the struct-style
// spellings ">f" and ">I", which normalise to these.
const (
	WireFloat32 WireFormat = "float32"
	WireUint32  WireFormat = "uint32"
)

// ModbusField carries the register addressing for one register-backed column.
type ModbusField struct {
	// Address is the holding register address of the field.
	Address uint16

	// RegisterCount is how many consecutive registers the field spans.
	RegisterCount uint16

	// Scale divides the decoded value when greater than 1.
	Scale float64

	// Format is the 32-bit reinterpretation for two-register fields.
	// Unknown spellings are preserved verbatim so the bridge can report
	// them per column instead of failing the whole schema.
	Format WireFormat
}

// ColumnSpec describes one persisted column of a device-type table.
type ColumnSpec struct {
	// Name is the column identifier, unique within its Schema.
	Name string

	// Type is the SQLite storage class, normalised to upper case.
	Type string

	// Source names the reading field this column draws from.
	// Defaults to Name. The values "timestamp" and "device_name" are
	// filled by projection rather than looked up in the reading.
	Source string

	// Modbus is nil for columns that are not register-backed.
	Modbus *ModbusField
}

// Schema describes the persistence shape for one device type.
type Schema struct {
	// DeviceType is the schema source key this entry was parsed from.
	DeviceType string

	// File is the SQLite datastore the table lives in.
	File string

	// Table is the table readings are inserted into.
	Table string

	// Columns is the ordered column list. For pollable device types it
	// always contains device_name and timestamp; they are injected at
	// parse time when the source omits them.
	Columns []ColumnSpec
}

// Column returns the ColumnSpec with the given name.
func (s *Schema) Column(name string) (ColumnSpec, bool) {
	for _, col := range s.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnSpec{}, false
}

// ColumnNames returns the column names in declaration order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// Set is the parsed schema source: one Schema per pollable device type,
// plus the registry-table descriptor when the source declares one.
//
// A Set is immutable after Parse. Hot reload replaces the whole Set
// rather than mutating it, so a Set captured at the start of a poll
// cycle stays coherent for that cycle.
type Set struct {
	// DevicesDB describes the device registry table, nil when the
	// source has no devices_db entry.
	DevicesDB *Schema

	schemas map[string]*Schema
}

// Schema returns the Schema for a device type.
func (s *Set) Schema(deviceType string) (*Schema, bool) {
	sch, ok := s.schemas[deviceType]
	return sch, ok
}

// Types returns the declared device types in sorted order.
func (s *Set) Types() []string {
	types := make([]string, 0, len(s.schemas))
	for t := range s.schemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// rawEntry is the YAML shape of one schema source entry.
type rawEntry struct {
	File   string      `yaml:"file"`
	Table  string      `yaml:"table"`
	Schema []rawColumn `yaml:"schema"`
}

// rawColumn is the YAML shape of one column entry.
type rawColumn struct {
	Name    string  `yaml:"name"`
	Type    string  `yaml:"type"`
	Source  string  `yaml:"source"`
	Address *int    `yaml:"address"`
	Length  int     `yaml:"length"`
	Scale   float64 `yaml:"scale"`
	Format  string  `yaml:"format"`
}

// LoadFile reads and parses the schema source at path.
//
// Parameters:
//   - path: Schema source file
//   - log: Destination for drop warnings; nil for silent parsing
//
// Returns:
//   - *Set: Parsed schema set
//   - error: If the file cannot be read or the source is invalid
func LoadFile(path string, log Logger) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema source: %w", err)
	}
	return Parse(data, log)
}

// Parse builds a Set from schema source text.
//
// Entries missing a table or file, nameless columns, identifiers outside
// the allow-list, unknown storage classes, and duplicate column names are
// all fatal: schema files are hand-edited and a half-loaded schema would
// silently misroute readings. The one tolerated defect is a column
// without a type, which is dropped with a warning so a partially drafted
// column does not take the whole poller down.
//
// Parameters:
//   - data: Schema source text
//   - log: Destination for drop warnings; nil for silent parsing
//
// Returns:
//   - *Set: Parsed schema set
//   - error: If the source is invalid
func Parse(data []byte, log Logger) (*Set, error) {
	if log == nil {
		log = noopLogger{}
	}

	var raw map[string]rawEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	set := &Set{schemas: make(map[string]*Schema)}

	// Deterministic error reporting regardless of map order.
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch key {
		case legacyDatabaseKey:
			log.Debug("ignoring legacy database entry in schema source")
			continue
		case devicesDBKey:
			sch, err := buildSchema(key, raw[key], log, false)
			if err != nil {
				return nil, err
			}
			set.DevicesDB = sch
		default:
			sch, err := buildSchema(key, raw[key], log, true)
			if err != nil {
				return nil, err
			}
			set.schemas[key] = sch
		}
	}

	if len(set.schemas) == 0 {
		return nil, ErrNoDeviceTypes
	}

	return set, nil
}

// buildSchema validates and normalises one schema source entry.
// Pollable device types get device_name and timestamp columns injected
// when absent; the registry descriptor is taken exactly as declared.
func buildSchema(deviceType string, entry rawEntry, log Logger, pollable bool) (*Schema, error) {
	if entry.Table == "" {
		return nil, fmt.Errorf("%w: entry %q", ErrMissingTable, deviceType)
	}
	if entry.File == "" {
		return nil, fmt.Errorf("%w: entry %q", ErrMissingFile, deviceType)
	}
	if !identPattern.MatchString(entry.Table) {
		return nil, fmt.Errorf("%w: table %q in entry %q", ErrBadIdentifier, entry.Table, deviceType)
	}

	sch := &Schema{
		DeviceType: deviceType,
		File:       entry.File,
		Table:      entry.Table,
	}

	seen := make(map[string]bool)
	for _, col := range entry.Schema {
		if col.Name == "" {
			return nil, fmt.Errorf("%w: entry %q", ErrColumnName, deviceType)
		}
		if !identPattern.MatchString(col.Name) {
			return nil, fmt.Errorf("%w: column %q in entry %q", ErrBadIdentifier, col.Name, deviceType)
		}
		if strings.EqualFold(col.Name, "id") {
			return nil, fmt.Errorf("%w: %q in entry %q", ErrReservedColumn, col.Name, deviceType)
		}
		if col.Type == "" {
			log.Warn("dropping column without type",
				"entry", deviceType,
				"column", col.Name,
			)
			continue
		}
		colType := strings.ToUpper(strings.TrimSpace(col.Type))
		if !storageClasses[colType] {
			return nil, fmt.Errorf("%w: column %q declares %q in entry %q",
				ErrBadColumnType, col.Name, col.Type, deviceType)
		}
		if seen[col.Name] {
			return nil, fmt.Errorf("%w: %q in entry %q", ErrDuplicateColumn, col.Name, deviceType)
		}
		seen[col.Name] = true

		spec := ColumnSpec{
			Name:   col.Name,
			Type:   colType,
			Source: col.Source,
		}
		if spec.Source == "" {
			spec.Source = col.Name
		}
		if col.Address != nil {
			field, err := buildModbusField(deviceType, col)
			if err != nil {
				return nil, err
			}
			spec.Modbus = field
		}

		sch.Columns = append(sch.Columns, spec)
	}

	if pollable {
		injectStandardColumns(sch, seen)
	}

	return sch, nil
}

// buildModbusField normalises the register metadata of one column.
func buildModbusField(deviceType string, col rawColumn) (*ModbusField, error) {
	if *col.Address < 0 || *col.Address > 0xFFFF {
		return nil, fmt.Errorf("%w: column %q address %d in entry %q",
			ErrBadRegister, col.Name, *col.Address, deviceType)
	}

	field := &ModbusField{
		Address:       uint16(*col.Address),
		RegisterCount: 1,
		Scale:         col.Scale,
		Format:        normaliseFormat(col.Format),
	}
	if col.Length > 0 {
		if col.Length > 0xFFFF {
			return nil, fmt.Errorf("%w: column %q length %d in entry %q",
				ErrBadRegister, col.Name, col.Length, deviceType)
		}
		field.RegisterCount = uint16(col.Length)
	}
	if field.Scale == 0 {
		field.Scale = 1
	}
	return field, nil
}

// normaliseFormat maps the struct-style format spellings used by older
// schema files onto their canonical names. Unknown spellings pass
// through so the bridge can reject them per column.
func normaliseFormat(format string) WireFormat {
	switch format {
	case ">f", "float32":
		return WireFloat32
	case ">I", "uint32":
		return WireUint32
	default:
		return WireFormat(format)
	}
}

// injectStandardColumns guarantees device_name and timestamp columns on
// pollable device types. Tables are shared by every device of a type, so
// rows must be attributable; readings must always be datable.
func injectStandardColumns(sch *Schema, seen map[string]bool) {
	if !seen["device_name"] {
		sch.Columns = append([]ColumnSpec{{
			Name:   "device_name",
			Type:   "TEXT",
			Source: "device_name",
		}}, sch.Columns...)
	}
	if !seen["timestamp"] {
		sch.Columns = append(sch.Columns, ColumnSpec{
			Name:   "timestamp",
			Type:   "TEXT",
			Source: "timestamp",
		})
	}
}
