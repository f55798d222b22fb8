package lua

import "github.com/cockroachdb/errors"

// Sentinel errors for the lua package.
var (
	// ErrStateClosed is returned when using a closed State.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNotFunction is returned when a global is missing or not a function.
	ErrNotFunction = errors.New("not a lua function")
)
