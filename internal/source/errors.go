package source

import "github.com/cockroachdb/errors"

// Errors returned by the source package.
var (
	// ErrDuplicateSource indicates a second source registered under a taken name.
	ErrDuplicateSource = errors.New("source already registered")

	// ErrIncompatible indicates a source that requires another core version.
	ErrIncompatible = errors.New("source incompatible with core version")

	// ErrNoPredicates indicates a predicate policy without a resolver.
	ErrNoPredicates = errors.New("no predicate resolver configured")

	// ErrPredicateNotFound is returned by resolvers for unknown predicate names.
	ErrPredicateNotFound = errors.New("predicate not found")
)
