package bus

import "github.com/cockroachdb/errors"

// Sentinel errors for the bus package.
var (
	// ErrDisconnected is returned when sending or receiving on a closed bus.
	ErrDisconnected = errors.New("bus disconnected")

	// ErrNotExecuted is returned to a UI round trip the host dropped without running.
	ErrNotExecuted = errors.New("ui closure was not executed")
)
