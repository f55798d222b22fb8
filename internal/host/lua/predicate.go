package lua

import (
	"context"

	"github.com/cockroachdb/errors"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/stormcomplete/internal/completion"
	"github.com/dshills/stormcomplete/internal/source"
)

// SourcesTable is the global table holding source script APIs.
const SourcesTable = "sources"

// Resolve implements source.PredicateResolver. The predicate must already
// be defined, typically by the init file. The returned function runs the
// Lua call on the UI thread through the document's round trip.
func (s *State) Resolve(name string) (source.PredicateFunc, error) {
	if !s.HasFunction(name) {
		return nil, errors.Wrapf(source.ErrPredicateNotFound, "lua function %q", name)
	}
	return func(ctx context.Context, doc *completion.Document) (bool, error) {
		return completion.RunOnUI(ctx, doc, func() (bool, error) {
			return s.Predicate(name, doc)
		})
	}, nil
}

// Predicate calls the Lua function name with a table describing doc and
// returns its result as a boolean. Only call on the UI thread.
func (s *State) Predicate(name string, doc *completion.Document) (bool, error) {
	results, err := s.Call(name, s.docTable(doc))
	if err != nil {
		return false, errors.Wrapf(err, "calling %s", name)
	}
	if len(results) == 0 {
		return false, nil
	}
	return lua.LVAsBool(results[0]), nil
}

// docTable builds {path=..., handle=..., id=...} for doc.
func (s *State) docTable(doc *completion.Document) *lua.LTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.L.NewTable()
	t.RawSetString("path", lua.LString(doc.Path))
	t.RawSetString("handle", lua.LNumber(doc.Handle))
	t.RawSetString("id", lua.LString(doc.ID.String()))
	return t
}

// RegisterSources installs sources.<name> for every bundle with a script API.
func (s *State) RegisterSources(bundles []*source.Bundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	tbl, ok := s.L.GetGlobal(SourcesTable).(*lua.LTable)
	if !ok {
		tbl = s.L.NewTable()
		s.L.SetGlobal(SourcesTable, tbl)
	}
	for _, b := range bundles {
		api := b.ScriptAPI()
		if len(api) == 0 {
			continue
		}
		tbl.RawSetString(b.Name(), s.L.SetFuncs(s.L.NewTable(), api))
		s.log.Debugw("registered script api", "source", b.Name(), "functions", len(api))
	}
}
