package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-energy/internal/device"
	"github.com/nerrad567/gray-logic-energy/internal/schema"
)

// Name identifies this sink in orchestrator logs.
func (c *Client) Name() string {
	return "influxdb"
}

// Publish mirrors one persisted record as a single InfluxDB point.
//
// The point carries the record's numeric fields, is tagged with the
// device name and type, uses the device type as its measurement, and is
// stamped with the record's reading timestamp. Records with no numeric
// fields are skipped: a fieldless point is a protocol error, and text
// columns have nothing to graph.
//
// The write is a non-blocking enqueue into the batch buffer, so a slow
// or absent server never stalls the caller. Failures surface through
// the async error callback, not here.
//
// Parameters:
//   - ctx: Unused; the enqueue never blocks
//   - dev: The polled device, source of the point's tags
//   - sch: The schema the record was projected against
//   - rec: The persisted record to mirror
//
// Returns:
//   - error: ErrNotConnected after Close, nil otherwise
func (c *Client) Publish(ctx context.Context, dev device.Device, sch *schema.Schema, rec schema.Record) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	fields := numericFields(rec)
	if len(fields) == 0 {
		return nil
	}

	point := write.NewPoint(
		dev.Type,
		map[string]string{
			"device": dev.Name,
			"type":   dev.Type,
		},
		fields,
		readingTime(sch, rec),
	)

	c.writeAPI.WritePoint(point)
	return nil
}

// numericFields extracts the values worth graphing from a record.
//
// Numbers and booleans pass through; text columns drop out, which also
// excludes the device_name and timestamp identity columns and any
// error-marker text without naming them.
func numericFields(rec schema.Record) map[string]interface{} {
	fields := make(map[string]interface{}, len(rec.Fields))
	for _, f := range rec.Fields {
		switch v := f.Value.(type) {
		case float64, float32,
			int, int64, int32, int16, int8,
			uint, uint64, uint32, uint16, uint8,
			bool:
			fields[f.Column] = v
		}
	}
	return fields
}

// readingTime resolves the point timestamp from the record's timestamp
// column, falling back to the write time when the column is absent or
// unparseable. The fallback keeps a malformed stamp from discarding the
// whole point.
func readingTime(sch *schema.Schema, rec schema.Record) time.Time {
	for _, col := range sch.Columns {
		if col.Source != "timestamp" {
			continue
		}
		raw, ok := rec.Value(col.Name)
		if !ok {
			break
		}
		stamp, ok := raw.(string)
		if !ok {
			break
		}
		if ts, err := time.Parse(schema.TimestampFormat, stamp); err == nil {
			return ts
		}
		break
	}
	return time.Now()
}
