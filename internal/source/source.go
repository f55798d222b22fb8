// Package source defines the completion source contract and the registry
// that turns registered sources plus their config sections into bundles.
//
// A source is generic over its configuration type C. Registration captures
// the type once, so the rest of the core only sees *Bundle values whose
// Enable and Complete closures already hold the decoded, immutable config.
package source

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/stormcomplete/internal/completion"
)

// Source is a pluggable provider of completion candidates.
//
// Enable and Complete run on core goroutines and must honor ctx. Work that
// needs host state goes through the document's UI round trip.
type Source[C any] interface {
	// Name is the stable, unique identifier and config section name.
	Name() string

	// Enable decides once per document whether the source serves it.
	Enable(ctx context.Context, doc *completion.Document, cfg *C) (bool, error)

	// Complete returns the candidates for a request.
	Complete(ctx context.Context, req *completion.Request, cfg *C) (completion.List, error)
}

// Scriptable is implemented by sources that expose functions to Lua.
// The functions are installed as the table sources.<name>.
type Scriptable interface {
	ScriptAPI() map[string]lua.LGFunction
}

// Versioned is implemented by sources that require a core API version.
type Versioned interface {
	// CoreVersion returns a semver constraint, e.g. ">= 1.0, < 2".
	CoreVersion() string
}
