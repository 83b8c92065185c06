// Package bridges defines the protocol adapter contract and its fault
// taxonomy.
//
// A bridge owns everything protocol-specific about reading a device:
// transport, session handling, and payload decoding. It hands back a
// schema.Reading of named sources and classifies every failure as
// authentication or transient, so the poller can route faults without
// knowing any protocol details.
//
// Concrete adapters live in subpackages: tapo for TP-Link smart plugs,
// modbus for Modbus-TCP energy meters.
package bridges
