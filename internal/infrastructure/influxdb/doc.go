// Package influxdb mirrors persisted readings into InfluxDB.
//
// It wraps the official influxdb-client-go v2 library as an optional
// sink: SQLite stays the system of record, and this package feeds the
// same numeric reading fields to dashboards as time-series points.
//
// # Purpose
//
// One point per persisted reading:
//   - Measurement: the device type (e.g. "plug")
//   - Tags: device name and type
//   - Fields: the record's numeric and boolean columns
//   - Timestamp: the reading's own stamp, not the write time
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "graylogic",
//	    Bucket:  "energy",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// *Client satisfies the orchestrator's sink interface.
//	client.Publish(ctx, dev, sch, rec)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Writes are non-blocking enqueues; batch failures are delivered
// through the SetOnError callback. Connection and health check errors
// are returned directly. When the mirror is disabled in config,
// Connect returns ErrDisabled and the caller runs without it.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size,
// flush_interval). A reading is at most a handful of fields every few
// seconds per device, so batches stay small and flushes cheap.
package influxdb
