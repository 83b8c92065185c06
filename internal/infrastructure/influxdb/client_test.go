package influxdb_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-energy/internal/device"
	"github.com/nerrad567/gray-logic-energy/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-energy/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-energy/internal/schema"
)

// =============================================================================
// Test Infrastructure
// =============================================================================

// writeCapture collects the line-protocol bodies a fake server receives.
type writeCapture struct {
	mu     sync.Mutex
	bodies []string
}

func (c *writeCapture) record(body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bodies = append(c.bodies, body)
}

func (c *writeCapture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func (c *writeCapture) joined() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.bodies, "\n")
}

// fakeInflux stands in for an InfluxDB v2 server: it answers the ping
// used during Connect and captures every write body.
func fakeInflux(t *testing.T) (*httptest.Server, *writeCapture) {
	t.Helper()

	capture := &writeCapture{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v2/write", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		capture.record(string(body))
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, capture
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "graylogic",
		Bucket:        "energy",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func plugSchema() *schema.Schema {
	return &schema.Schema{
		DeviceType: "plug",
		File:       "plug.db",
		Table:      "plug_data",
		Columns: []schema.ColumnSpec{
			{Name: "device_name", Type: "TEXT", Source: "device_name"},
			{Name: "timestamp", Type: "TEXT", Source: "timestamp"},
			{Name: "device_on", Type: "INTEGER", Source: "device_on"},
			{Name: "current_power", Type: "REAL", Source: "current_power"},
		},
	}
}

func plugDevice() device.Device {
	return device.Device{Name: "plug-lounge", Type: "plug", Connector: device.ConnectorTapo, Host: "192.168.1.50"}
}

func plugRecord(stamp string) schema.Record {
	return schema.Record{Fields: []schema.Field{
		{Column: "device_name", Value: "plug-lounge"},
		{Column: "timestamp", Value: stamp},
		{Column: "device_on", Value: int64(1)},
		{Column: "current_power", Value: 42.5},
	}}
}

// waitFor polls until cond holds, failing the test after a deadline.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Fatalf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect(t *testing.T) {
	srv, _ := fakeInflux(t)

	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}

func TestConnect_PingFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := influxdb.Connect(testConfig(srv.URL))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_BatchFallbacks(t *testing.T) {
	srv, _ := fakeInflux(t)

	cfg := testConfig(srv.URL)
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false with fallback batch settings")
	}
}

func TestHealthCheck(t *testing.T) {
	srv, _ := fakeInflux(t)

	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.Close()
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Publish Tests
// =============================================================================

func TestPublish_MirrorsReading(t *testing.T) {
	srv, capture := fakeInflux(t)

	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	stamp := "2026-02-11T10:30:00Z"
	if err := client.Publish(context.Background(), plugDevice(), plugSchema(), plugRecord(stamp)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	client.Flush()

	waitFor(t, "write to arrive", func() bool { return capture.count() > 0 })
	line := strings.TrimSpace(capture.joined())

	// Tags are encoded in lexical order, so the series key is stable.
	if !strings.HasPrefix(line, "plug,device=plug-lounge,type=plug ") {
		t.Errorf("line = %q, want measurement plug tagged device/type", line)
	}
	if !strings.Contains(line, "current_power=42.5") {
		t.Errorf("line = %q, missing current_power field", line)
	}
	if !strings.Contains(line, "device_on=1i") {
		t.Errorf("line = %q, missing device_on field", line)
	}
	if strings.Contains(line, "device_name") || strings.Contains(line, "timestamp=") {
		t.Errorf("line = %q, identity columns should not be fields", line)
	}

	ts, err := time.Parse(schema.TimestampFormat, stamp)
	if err != nil {
		t.Fatalf("parsing test stamp: %v", err)
	}
	if !strings.Contains(line, fmt.Sprintf(" %d", ts.UnixNano())) {
		t.Errorf("line = %q, want reading timestamp %d", line, ts.UnixNano())
	}
}

func TestPublish_SkipsTextOnlyRecord(t *testing.T) {
	srv, capture := fakeInflux(t)

	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	rec := schema.Record{Fields: []schema.Field{
		{Column: "device_name", Value: "plug-lounge"},
		{Column: "timestamp", Value: "2026-02-11T10:30:00Z"},
		{Column: "current_power_error", Value: "decode: short payload"},
	}}
	if err := client.Publish(context.Background(), plugDevice(), plugSchema(), rec); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	client.Flush()

	if got := capture.count(); got != 0 {
		t.Errorf("writes = %d, want 0 for a record with no numeric fields", got)
	}
}

func TestPublish_UnparseableTimestampStillWrites(t *testing.T) {
	srv, capture := fakeInflux(t)

	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	start := time.Now()
	if err := client.Publish(context.Background(), plugDevice(), plugSchema(), plugRecord("not-a-time")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	client.Flush()

	waitFor(t, "write to arrive", func() bool { return capture.count() > 0 })
	line := strings.TrimSpace(capture.joined())

	parts := strings.Fields(line)
	nanos, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		t.Fatalf("parsing point timestamp from %q: %v", line, err)
	}
	if nanos < start.UnixNano() {
		t.Errorf("point timestamp %d predates the write, fallback should stamp now", nanos)
	}
}

func TestPublish_AfterClose(t *testing.T) {
	srv, _ := fakeInflux(t)

	client, err := influxdb.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()

	err = client.Publish(context.Background(), plugDevice(), plugSchema(), plugRecord("2026-02-11T10:30:00Z"))
	if !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("Publish() after Close error = %v, want ErrNotConnected", err)
	}
}
