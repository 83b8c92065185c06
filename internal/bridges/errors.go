package bridges

import "errors"

// Fault classification for bridge reads. The poller routes on these
// with errors.Is, so every error a Read returns must wrap exactly one
// of them.
var (
	// ErrAuthentication is returned when the upstream rejected the
	// configured credentials. The device is suspended until new
	// credentials verify; retrying without them cannot succeed.
	ErrAuthentication = errors.New("bridges: authentication rejected")

	// ErrTransient is returned for failures worth retrying unchanged on
	// the next cycle: timeouts, refused connections, malformed or
	// unclassified upstream errors.
	ErrTransient = errors.New("bridges: transient read failure")

	// ErrDecode is returned when a register payload cannot be decoded
	// against its column's declared layout. Field-level decode failures
	// are recorded as markers inside the reading instead; ErrDecode
	// surfaces only when a whole read is undecodable.
	ErrDecode = errors.New("bridges: decode failed")
)
