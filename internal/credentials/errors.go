package credentials

import "errors"

// Domain errors for the credentials package.
var (
	// ErrNoCredentials is returned when the environment provides no
	// credentials and interactive prompting is disabled.
	ErrNoCredentials = errors.New("credentials: none available")

	// ErrExhausted is returned when a recovery session has spent its
	// attempt budget without a successful verification.
	ErrExhausted = errors.New("credentials: attempts exhausted")
)
