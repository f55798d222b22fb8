package source

import (
	"context"

	"github.com/cockroachdb/errors"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/stormcomplete/internal/completion"
)

// Bundle is one configured source: the source, its decoded config and its
// enable policy. Bundles are immutable once built and safe to share.
type Bundle struct {
	id        int
	name      string
	policy    EnablePolicy
	predicate PredicateFunc
	config    any
	api       map[string]lua.LGFunction

	enable   func(ctx context.Context, doc *completion.Document) (bool, error)
	complete func(ctx context.Context, req *completion.Request) (completion.List, error)
}

// NewBundle wraps src with its config. id is the registration index and
// defines result ordering. pred is required for PolicyPredicate.
func NewBundle[C any](id int, src Source[C], cfg C, policy EnablePolicy, pred PredicateFunc) *Bundle {
	c := &cfg
	b := &Bundle{
		id:        id,
		name:      src.Name(),
		policy:    policy,
		predicate: pred,
		config:    c,
		enable: func(ctx context.Context, doc *completion.Document) (bool, error) {
			return src.Enable(ctx, doc, c)
		},
		complete: func(ctx context.Context, req *completion.Request) (completion.List, error) {
			return src.Complete(ctx, req, c)
		},
	}
	if s, ok := any(src).(Scriptable); ok {
		b.api = s.ScriptAPI()
	}
	return b
}

// ID returns the registration index.
func (b *Bundle) ID() int { return b.id }

// Name returns the source name.
func (b *Bundle) Name() string { return b.name }

// Policy returns the enable policy.
func (b *Bundle) Policy() EnablePolicy { return b.policy }

// Config returns a pointer to the decoded config. Callers must not modify it.
func (b *Bundle) Config() any { return b.config }

// ScriptAPI returns the functions the source exposes to Lua, or nil.
func (b *Bundle) ScriptAPI() map[string]lua.LGFunction { return b.api }

// Enable applies the policy and then asks the source.
func (b *Bundle) Enable(ctx context.Context, doc *completion.Document) (bool, error) {
	switch b.policy.kind {
	case PolicyNever:
		return false, nil
	case PolicyPredicate:
		if b.predicate == nil {
			return false, errors.Wrapf(ErrNoPredicates, "predicate %q", b.policy.predicate)
		}
		ok, err := b.predicate(ctx, doc)
		if err != nil {
			return false, errors.Wrapf(err, "predicate %q", b.policy.predicate)
		}
		if !ok {
			return false, nil
		}
	}
	return b.enable(ctx, doc)
}

// Complete asks the source for candidates.
func (b *Bundle) Complete(ctx context.Context, req *completion.Request) (completion.List, error) {
	return b.complete(ctx, req)
}
