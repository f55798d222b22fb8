package core

import "github.com/cockroachdb/errors"

// Sentinel errors for the core package.
var (
	// ErrRevisionOrder is the invariant failure for a request whose revision
	// is not strictly newer than the current one.
	ErrRevisionOrder = errors.New("revision not strictly increasing")

	// ErrStopped is returned when running a core that already stopped.
	ErrStopped = errors.New("core stopped")
)
