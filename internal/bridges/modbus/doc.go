// Package modbus implements the bridge for Modbus-TCP energy meters.
//
// Meters are polled by walking the register-backed columns of their
// device type's schema: each column names a holding register address, a
// span of one or two registers, an optional fixed-point scale, and a
// wire format for 32-bit values. The schema is consulted on every read,
// so register maps follow hot reloads.
//
// # Decoding
//
// Single registers carry their raw 16-bit value. Two-register values
// are packed big-endian into a 32-bit word and reinterpreted as either
// an IEEE-754 float32 or an unsigned integer. A scale greater than 1
// divides the result; meters publish fixed-point quantities that way.
// Wider spans and unknown formats are rejected per column.
//
// # Failure handling
//
// A connect failure aborts the device's read and surfaces as a
// transient fault. A single field failing to read or decode does not:
// it is recorded in the reading as a <column>_error marker and the walk
// continues. Declaring a matching <column>_error TEXT column in the
// schema persists those markers alongside the values.
package modbus
