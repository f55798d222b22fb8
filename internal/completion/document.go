package completion

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/dshills/stormcomplete/internal/revision"
)

// Buffer gives read access to the text of a document.
// Implementations belong to the host and are only safe on the UI thread.
type Buffer interface {
	Lines() []string
}

// UIExecutor runs closures on the host's UI thread and waits for the result.
type UIExecutor interface {
	ExecuteOnUI(ctx context.Context, fn func() (any, error)) (any, error)
}

// Document is the core's model of an open, attachable text resource.
type Document struct {
	// ID uniquely identifies the document for the lifetime of the process.
	ID uuid.UUID

	// Path is the file path (empty for scratch buffers).
	Path string

	// Handle is the host's opaque handle for the buffer.
	Handle int

	buffer Buffer
	ui     UIExecutor
}

// NewDocument creates a document with a fresh ID.
// buffer and ui may be nil for documents that never need UI-thread data.
func NewDocument(path string, handle int, buffer Buffer, ui UIExecutor) *Document {
	return &Document{
		ID:     uuid.New(),
		Path:   path,
		Handle: handle,
		buffer: buffer,
		ui:     ui,
	}
}

// String implements fmt.Stringer.
func (d *Document) String() string {
	if d.Path == "" {
		return fmt.Sprintf("#%d", d.Handle)
	}
	return fmt.Sprintf("%s#%d", d.Path, d.Handle)
}

// Buffer returns the document buffer. Only call on the UI thread.
func (d *Document) Buffer() Buffer {
	return d.buffer
}

// OnUI runs fn on the UI thread and returns its result.
func (d *Document) OnUI(ctx context.Context, fn func() (any, error)) (any, error) {
	if d.ui == nil {
		return nil, ErrNoUIThread
	}
	return d.ui.ExecuteOnUI(ctx, fn)
}

// RunOnUI is a typed wrapper around Document.OnUI.
func RunOnUI[T any](ctx context.Context, d *Document, fn func() (T, error)) (T, error) {
	var zero T
	v, err := d.OnUI(ctx, func() (any, error) {
		return fn()
	})
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok && v != nil {
		return zero, errors.AssertionFailedf("ui result has type %T, want %T", v, zero)
	}
	return out, nil
}

// ReadLines fetches the buffer lines through the UI thread.
func (d *Document) ReadLines(ctx context.Context) ([]string, error) {
	if d.buffer == nil {
		return nil, ErrNoBuffer
	}
	return RunOnUI(ctx, d, func() ([]string, error) {
		return d.buffer.Lines(), nil
	})
}

// Position is a cursor position plus a snapshot of the cursor line.
type Position struct {
	// Row is the zero-based line number.
	Row int

	// Col is the zero-based byte column.
	Col int

	// Line is the text of line Row at the time of the request.
	Line string
}

// BeforeCursor returns the part of Line before Col, clamped to Line. A Col
// inside a multi-byte rune is moved back to the rune's first byte.
func (p Position) BeforeCursor() string {
	col := p.Col
	if col < 0 {
		col = 0
	}
	if col > len(p.Line) {
		col = len(p.Line)
	}
	for col > 0 && col < len(p.Line) && !utf8.RuneStart(p.Line[col]) {
		col--
	}
	return p.Line[:col]
}

// Kind describes how a request was triggered.
type Kind int

const (
	// KindAutomatic requests are triggered by typing.
	KindAutomatic Kind = iota
	// KindManual requests are triggered explicitly by the user.
	KindManual
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k == KindManual {
		return "manual"
	}
	return "automatic"
}

// Request is one completion cycle for a document.
// It is immutable and shared by every source dispatched for it.
type Request struct {
	Revision revision.Revision
	Document *Document
	Position Position
	Kind     Kind
}
