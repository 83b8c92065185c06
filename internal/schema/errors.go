package schema

import "errors"

// Domain errors for the schema package.
var (
	// ErrParse is returned when the schema source is not valid YAML or is
	// not shaped as a map of device-type entries.
	ErrParse = errors.New("schema: parse failed")

	// ErrMissingTable is returned when a device-type entry lacks a table name.
	ErrMissingTable = errors.New("schema: missing table")

	// ErrMissingFile is returned when a device-type entry lacks a datastore file.
	ErrMissingFile = errors.New("schema: missing datastore file")

	// ErrColumnName is returned when a column entry lacks a name.
	ErrColumnName = errors.New("schema: column without name")

	// ErrBadIdentifier is returned when a table or column name is not a
	// valid SQL identifier. Identifiers gate all runtime DDL, so anything
	// outside the allow-list is rejected at load, never quoted around.
	ErrBadIdentifier = errors.New("schema: invalid identifier")

	// ErrBadColumnType is returned when a column's declared type is not an
	// accepted SQLite storage class.
	ErrBadColumnType = errors.New("schema: invalid column type")

	// ErrBadRegister is returned when a column's register address or span
	// does not fit the Modbus address space.
	ErrBadRegister = errors.New("schema: invalid register range")

	// ErrDuplicateColumn is returned when two columns in one entry share a name.
	ErrDuplicateColumn = errors.New("schema: duplicate column")

	// ErrReservedColumn is returned when an entry declares the id column.
	// id is the store's surrogate primary key on every table it creates.
	ErrReservedColumn = errors.New("schema: reserved column name")

	// ErrNoDeviceTypes is returned when the source declares no pollable
	// device types at all.
	ErrNoDeviceTypes = errors.New("schema: no device types declared")

	// ErrUnknownType is returned when a device references a type the
	// schema source does not declare.
	ErrUnknownType = errors.New("schema: unknown device type")
)
