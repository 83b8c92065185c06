package store

import "errors"

// Domain errors for the store package.
var (
	// ErrNoColumns is returned when none of a record's columns exist in
	// the target table. The write is skipped rather than failed halfway;
	// a record with nothing persistable almost always means the schema
	// and the table have diverged badly enough that an operator needs to
	// look.
	ErrNoColumns = errors.New("store: no persistable columns")

	// ErrClosed is returned for operations on a closed store.
	ErrClosed = errors.New("store: closed")
)
