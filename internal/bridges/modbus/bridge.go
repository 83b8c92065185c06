package modbus

import (
	"context"
	"fmt"
	"time"

	"github.com/goburrow/modbus"

	"github.com/nerrad567/gray-logic-energy/internal/bridges"
	"github.com/nerrad567/gray-logic-energy/internal/device"
	"github.com/nerrad567/gray-logic-energy/internal/schema"
)

// Logger defines the logging interface for the modbus bridge.
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

// SchemaProvider supplies the current schema set. The schema watcher
// satisfies it, so register layouts follow hot reloads without the
// bridge holding a stale copy.
type SchemaProvider interface {
	Current() *schema.Set
}

// RegisterReader is the slice of the Modbus client the read loop uses.
type RegisterReader interface {
	ReadHoldingRegisters(address, quantity uint16) (results []byte, err error)
}

// dialFunc opens a connection to a device. The returned close function
// must always be called, including after read errors.
type dialFunc func(dev device.Device) (RegisterReader, func() error, error)

// Bridge reads energy meters over Modbus-TCP.
//
// Each read opens a fresh connection, walks the device type's
// register-backed columns in schema order, and closes the connection.
// Connections are not reused across reads: the underlying client is not
// safe for concurrent use, and metering intervals are long enough that
// reconnecting costs nothing measurable.
//
// A field that fails to read or decode becomes a <column>_error marker
// in the reading and the walk continues; only a connect failure aborts
// the whole read. The reading's timestamp is stamped when the walk
// completes.
type Bridge struct {
	schemas SchemaProvider
	dialer  dialFunc
	log     Logger
}

// New creates a Bridge dialling real devices.
//
// Parameters:
//   - schemas: Source of current register layouts
//   - connectTimeout: TCP connect and per-request timeout
//   - log: Destination for per-field failure warnings; nil for silence
func New(schemas SchemaProvider, connectTimeout time.Duration, log Logger) *Bridge {
	return newWithDialer(schemas, goburrowDialer(connectTimeout), log)
}

// newWithDialer is the constructor tests use to substitute transport.
func newWithDialer(schemas SchemaProvider, dialer dialFunc, log Logger) *Bridge {
	if log == nil {
		log = noopLogger{}
	}
	return &Bridge{
		schemas: schemas,
		dialer:  dialer,
		log:     log,
	}
}

// goburrowDialer opens TCP client handlers with the configured timeout
// and the device's unit identifier.
func goburrowDialer(timeout time.Duration) dialFunc {
	return func(dev device.Device) (RegisterReader, func() error, error) {
		handler := modbus.NewTCPClientHandler(dev.Endpoint())
		handler.Timeout = timeout
		handler.SlaveId = dev.UnitID
		if err := handler.Connect(); err != nil {
			return nil, nil, err
		}
		return modbus.NewClient(handler), handler.Close, nil
	}
}

// Connector reports the inventory connector this bridge serves.
func (b *Bridge) Connector() device.Connector {
	return device.ConnectorModbus
}

// Read walks the device's register map and returns one reading.
//
// The context is checked between register reads; individual requests
// are bounded by the connect timeout, so cancellation takes effect
// within one request's worth of latency.
func (b *Bridge) Read(ctx context.Context, dev device.Device) (schema.Reading, error) {
	sch, ok := b.schemas.Current().Schema(dev.Type)
	if !ok {
		return schema.Reading{}, fmt.Errorf("%w: %w %q for device %q",
			bridges.ErrTransient, schema.ErrUnknownType, dev.Type, dev.Name)
	}

	reader, closeConn, err := b.dialer(dev)
	if err != nil {
		return schema.Reading{}, fmt.Errorf("%w: connecting to %q at %s: %v",
			bridges.ErrTransient, dev.Name, dev.Endpoint(), err)
	}
	defer closeConn() //nolint:errcheck // Best effort close after the read

	fields := make(map[string]any)
	for _, col := range sch.Columns {
		if col.Modbus == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return schema.Reading{}, fmt.Errorf("%w: read of %q interrupted: %v",
				bridges.ErrTransient, dev.Name, err)
		}

		value, err := b.readField(reader, col)
		if err != nil {
			// Record the fault against the column and keep going;
			// partial readings persist with markers.
			fields[col.Name+"_error"] = err.Error()
			b.log.Warn("register field failed",
				"device", dev.Name,
				"column", col.Name,
				"error", err,
			)
			continue
		}
		fields[col.Source] = value
	}

	fields["timestamp"] = time.Now().UTC().Format(schema.TimestampFormat)

	return schema.Reading{Sources: []schema.Source{
		{Name: "registers", Fields: fields},
	}}, nil
}

// readField fetches and decodes one register-backed column.
func (b *Bridge) readField(reader RegisterReader, col schema.ColumnSpec) (any, error) {
	if err := validateField(col.Modbus); err != nil {
		return nil, err
	}

	payload, err := reader.ReadHoldingRegisters(col.Modbus.Address, col.Modbus.RegisterCount)
	if err != nil {
		return nil, fmt.Errorf("reading registers %d+%d: %w",
			col.Modbus.Address, col.Modbus.RegisterCount, err)
	}

	return decodeRegisters(payload, col.Modbus)
}
