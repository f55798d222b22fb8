package completion

import "github.com/cockroachdb/errors"

// Errors for completion data model operations.
var (
	// ErrInvalidRange is returned when a highlight range is not a valid
	// byte range of the item text.
	ErrInvalidRange = errors.New("highlight range out of bounds")

	// ErrNoUIThread is returned when a document has no UI executor attached.
	ErrNoUIThread = errors.New("document has no ui thread executor")

	// ErrNoBuffer is returned when a document has no buffer.
	ErrNoBuffer = errors.New("document has no buffer")
)
