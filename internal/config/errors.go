package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Errors returned by configuration operations.
var (
	// ErrBadConfig matches every *BadConfigError and *BadConfigErrors.
	ErrBadConfig = errors.New("bad config")

	// ErrUnknownFormat indicates a config file extension we cannot parse.
	ErrUnknownFormat = errors.New("unknown config format")
)

// BadConfigError is a validation failure at a specific config path.
type BadConfigError struct {
	// Path is the dot-separated path to the invalid value.
	Path string

	// Message describes what's wrong.
	Message string

	// Value is the invalid value (may be nil).
	Value any
}

// Error implements the error interface.
func (e *BadConfigError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Is implements error matching against ErrBadConfig.
func (e *BadConfigError) Is(target error) bool {
	return target == ErrBadConfig
}

// BadConfigErrors collects multiple validation failures.
type BadConfigErrors struct {
	Errors []*BadConfigError
}

// Error implements the error interface.
func (e *BadConfigErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no config errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d config errors:\n  - %s", len(e.Errors), strings.Join(msgs, "\n  - "))
}

// Is implements error matching against ErrBadConfig.
func (e *BadConfigErrors) Is(target error) bool {
	return target == ErrBadConfig
}

// Add adds a validation error.
func (e *BadConfigErrors) Add(path, message string) {
	e.Errors = append(e.Errors, &BadConfigError{
		Path:    path,
		Message: message,
	})
}

// AddWithValue adds a validation error with the invalid value.
func (e *BadConfigErrors) AddWithValue(path, message string, value any) {
	e.Errors = append(e.Errors, &BadConfigError{
		Path:    path,
		Message: message,
		Value:   value,
	})
}

// Merge adds every error wrapped by err.
// A *BadConfigErrors is flattened; any other error is recorded at path.
func (e *BadConfigErrors) Merge(path string, err error) {
	if err == nil {
		return
	}
	var many *BadConfigErrors
	if errors.As(err, &many) {
		e.Errors = append(e.Errors, many.Errors...)
		return
	}
	var one *BadConfigError
	if errors.As(err, &one) {
		e.Errors = append(e.Errors, one)
		return
	}
	e.Add(path, err.Error())
}

// HasErrors returns true if there are any errors.
func (e *BadConfigErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Paths returns the sorted paths of all collected errors.
func (e *BadConfigErrors) Paths() []string {
	paths := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		paths = append(paths, err.Path)
	}
	sort.Strings(paths)
	return paths
}

// AsError returns nil if no errors, otherwise returns self.
func (e *BadConfigErrors) AsError() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	// Path is the file path that failed to parse.
	Path string
	// Line is the line number where the error occurred (if available).
	Line int
	// Column is the column number where the error occurred (if available).
	Column int
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %v", e.Path, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("parse error in %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// JoinPath joins non-empty path segments with dots.
func JoinPath(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ".")
}
