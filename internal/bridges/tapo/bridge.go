package tapo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-energy/internal/bridges"
	"github.com/nerrad567/gray-logic-energy/internal/device"
	"github.com/nerrad567/gray-logic-energy/internal/schema"
)

// Logger defines the logging interface for the tapo bridge.
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

// Bridge reads TP-Link Tapo smart plugs over their local HTTP API using
// cloud account credentials.
//
// One reading is a session handshake followed by two calls:
// get_device_info for switch state and signal quality, get_energy_usage
// for power and energy counters. Both payloads go into the reading
// verbatim so the schema decides which fields persist; the bridge never
// interprets values.
//
// Session tokens are request-scoped: each read performs its own
// handshake and the token is discarded afterwards, never cached across
// reads. A token the device drops between the two data calls is
// re-established once within the same read.
//
// Thread Safety: all methods are safe for concurrent use.
type Bridge struct {
	client  *Client
	baseURL string
	log     Logger

	mu       sync.RWMutex
	username string
	password string
}

// New creates a Bridge.
//
// Parameters:
//   - baseURL: Optional relay endpoint. When set, every device call goes
//     through it instead of dialling the device directly
//   - timeout: Overall HTTP timeout backstop for vendor calls
//   - log: Destination for session lifecycle events; nil for silence
func New(baseURL string, timeout time.Duration, log Logger) *Bridge {
	if log == nil {
		log = noopLogger{}
	}
	return &Bridge{
		client:  NewClient(timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// Connector reports the inventory connector this bridge serves.
func (b *Bridge) Connector() device.Connector {
	return device.ConnectorTapo
}

// SetCredentials replaces the account credentials used by subsequent
// handshakes.
func (b *Bridge) SetCredentials(username, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.username = username
	b.password = password
}

// Authenticate verifies the current credentials with one session
// handshake against the device. The token is discarded; every read
// performs its own handshake.
//
// Returns an authentication fault when no credentials are configured or
// the device rejects them, a transient fault for anything else.
func (b *Bridge) Authenticate(ctx context.Context, dev device.Device) error {
	username, password := b.credentials()
	if username == "" || password == "" {
		return fmt.Errorf("%w: no credentials configured", bridges.ErrAuthentication)
	}

	if _, err := b.client.Login(ctx, b.endpointFor(dev), username, password); err != nil {
		return fmt.Errorf("authenticating %q: %w", dev.Name, err)
	}

	b.log.Debug("credentials verified", "device", dev.Name)
	return nil
}

// Read performs one full reading of the device: handshake, then status,
// then the energy report. Either data call failing fails the read;
// partial smart-plug readings are not meaningful the way partial
// register maps are.
func (b *Bridge) Read(ctx context.Context, dev device.Device) (schema.Reading, error) {
	username, password := b.credentials()
	if username == "" || password == "" {
		return schema.Reading{}, fmt.Errorf("%w: no credentials configured", bridges.ErrAuthentication)
	}

	endpoint := b.endpointFor(dev)

	token, err := b.client.Login(ctx, endpoint, username, password)
	if err != nil {
		return schema.Reading{}, fmt.Errorf("authenticating %q: %w", dev.Name, err)
	}

	reading, err := b.readWith(ctx, dev, endpoint, token)
	if errors.Is(err, errSessionExpired) {
		// The device dropped the session between the data calls: one
		// fresh handshake, then leave any failure for the next cycle.
		b.log.Debug("session expired mid-read, re-establishing", "device", dev.Name)
		token, err = b.client.Login(ctx, endpoint, username, password)
		if err != nil {
			return schema.Reading{}, fmt.Errorf("authenticating %q: %w", dev.Name, err)
		}
		reading, err = b.readWith(ctx, dev, endpoint, token)
	}
	return reading, err
}

// readWith performs the two data calls with an established session.
func (b *Bridge) readWith(ctx context.Context, dev device.Device, endpoint, token string) (schema.Reading, error) {
	info, err := b.client.DeviceInfo(ctx, endpoint, token)
	if err != nil {
		return schema.Reading{}, fmt.Errorf("reading status of %q: %w", dev.Name, err)
	}

	usage, err := b.client.EnergyUsage(ctx, endpoint, token)
	if err != nil {
		return schema.Reading{}, fmt.Errorf("reading energy usage of %q: %w", dev.Name, err)
	}

	return schema.Reading{Sources: []schema.Source{
		{Name: "status", Fields: info},
		{Name: "usage", Fields: usage},
	}}, nil
}

// credentials returns the current account credentials.
func (b *Bridge) credentials() (string, string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.username, b.password
}

// endpointFor resolves a device's /app endpoint, honouring the relay
// override when configured.
func (b *Bridge) endpointFor(dev device.Device) string {
	if b.baseURL != "" {
		return b.baseURL + "/app"
	}
	return fmt.Sprintf("http://%s/app", dev.Endpoint())
}
