package poller

import "errors"

var (
	// ErrNoSchemas indicates no schema source was configured.
	ErrNoSchemas = errors.New("poller: schema source is required")

	// ErrNoDatastore indicates no datastore was configured.
	ErrNoDatastore = errors.New("poller: datastore is required")

	// ErrNoBridge indicates a device references a connector with no
	// registered bridge.
	ErrNoBridge = errors.New("poller: no bridge for device connector")

	// ErrDuplicateBridge indicates two bridges claim the same connector.
	ErrDuplicateBridge = errors.New("poller: duplicate bridge for connector")

	// ErrNoCredentialProvider indicates an authenticated bridge is in
	// use with no way to acquire credentials.
	ErrNoCredentialProvider = errors.New("poller: credential provider required for authenticated bridges")
)
