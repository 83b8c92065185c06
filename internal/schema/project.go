package schema

import (
	"time"
)

// TimestampFormat is the wire and storage format for reading timestamps.
const TimestampFormat = time.RFC3339

// Source is one named group of fields within a Reading, typically one
// upstream payload such as a status response or an energy report.
type Source struct {
	// Name identifies the payload for logging.
	Name string

	// Fields holds the payload's values keyed by field name.
	Fields map[string]any
}

// Reading is the adapter-native result of one device read. Sources are
// ordered: when two payloads carry the same field name, the earlier
// source wins.
type Reading struct {
	Sources []Source
}

// Lookup returns the first value for a field across the reading's
// sources in priority order.
func (r Reading) Lookup(field string) (any, bool) {
	for _, src := range r.Sources {
		if v, ok := src.Fields[field]; ok {
			return v, true
		}
	}
	return nil, false
}

// Field is one column value within a Record. A nil Value persists as
// NULL.
type Field struct {
	Column string
	Value  any
}

// Record is a schema-projected, persistence-ready row. Its columns are
// always a subset of the Schema it was projected against, in schema
// declaration order.
type Record struct {
	Fields []Field
}

// Value returns the value recorded for a column.
func (r Record) Value(column string) (any, bool) {
	for _, f := range r.Fields {
		if f.Column == column {
			return f.Value, true
		}
	}
	return nil, false
}

// Columns returns the record's column names in order.
func (r Record) Columns() []string {
	cols := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		cols[i] = f.Column
	}
	return cols
}

// Map returns the record as a column-to-value map, for payloads that do
// not care about column order.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.Fields))
	for _, f := range r.Fields {
		m[f.Column] = f.Value
	}
	return m
}

// Project maps a Reading onto a Schema's column list, producing a
// Record ready for persistence.
//
// Each column resolves its source field across the reading's sources in
// priority order; fields absent from every source record NULL, so a
// partial reading still produces a complete row shape. Two sources are
// special: device_name is filled from the polled device's name, and
// timestamp prefers a value stamped by the adapter, falling back to the
// projection time so every row is datable even when the adapter stamps
// nothing.
//
// Project is pure apart from the timestamp fallback: it never touches
// the network or the datastore.
func Project(reading Reading, sch *Schema, deviceName string) Record {
	rec := Record{Fields: make([]Field, 0, len(sch.Columns))}
	for _, col := range sch.Columns {
		switch col.Source {
		case "device_name":
			rec.Fields = append(rec.Fields, Field{col.Name, deviceName})
		case "timestamp":
			if v, ok := reading.Lookup(col.Source); ok {
				rec.Fields = append(rec.Fields, Field{col.Name, v})
				continue
			}
			stamp := time.Now().UTC().Format(TimestampFormat)
			rec.Fields = append(rec.Fields, Field{col.Name, stamp})
		default:
			v, _ := reading.Lookup(col.Source)
			rec.Fields = append(rec.Fields, Field{col.Name, v})
		}
	}
	return rec
}
