package app

import (
	"github.com/cockroachdb/errors"
)

// Application errors.
var (
	// ErrAlreadyRunning indicates the core has already been started.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrNotRunning indicates the core has not been started.
	ErrNotRunning = errors.New("application not running")

	// ErrNotServed indicates that no source accepted a document.
	ErrNotServed = errors.New("no source serves the document")

	// ErrDocumentNotFound indicates an unknown document handle.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDocumentAlreadyOpen indicates a handle is already in use.
	ErrDocumentAlreadyOpen = errors.New("document already open")

	// ErrBadMessage indicates a malformed stdio message.
	ErrBadMessage = errors.New("bad message")
)

// InitError reports which component failed to start.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// FileError is a file operation failure.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	if e.Err == nil {
		return e.Op + " " + e.Path
	}
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *FileError) Unwrap() error {
	return e.Err
}
