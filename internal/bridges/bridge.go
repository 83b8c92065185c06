package bridges

import (
	"context"

	"github.com/nerrad567/gray-logic-energy/internal/device"
	"github.com/nerrad567/gray-logic-energy/internal/schema"
)

// Bridge reads one device over its native protocol.
//
// A Read either returns a complete reading, a partial reading with
// per-field error markers, or an error classified against the sentinels
// in this package. Implementations must honour ctx cancellation: the
// poller enforces per-device timeouts by cancelling the context, and an
// abandoned read must not leave connections behind.
//
// Thread Safety: Read may be called concurrently for different devices.
// The poller never issues two concurrent reads for the same device.
type Bridge interface {
	// Connector reports which inventory connector this bridge serves.
	Connector() device.Connector

	// Read performs one full reading of the device.
	Read(ctx context.Context, dev device.Device) (schema.Reading, error)
}

// Authenticator is implemented by bridges that must establish a session
// with upstream credentials before reads can succeed.
type Authenticator interface {
	// Authenticate establishes or refreshes the device's session using
	// the bridge's current credentials.
	Authenticate(ctx context.Context, dev device.Device) error

	// SetCredentials replaces the bridge's credentials and invalidates
	// any sessions established with the old ones.
	SetCredentials(username, password string)
}
