// Package lua runs user Lua code for the host: enable predicates and the
// scripting tables that sources expose.
//
// A State is owned by the UI thread. Core goroutines never touch it
// directly; predicates resolved from a State hop to the UI thread through
// the document's round trip before calling into Lua.
package lua

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/dshills/stormcomplete/internal/guard"
	"github.com/dshills/stormcomplete/internal/logging"
)

// DefaultCallTimeout bounds a single call into Lua.
const DefaultCallTimeout = time.Second

// State wraps a sandboxed gopher-lua state.
type State struct {
	L *lua.LState

	mu      sync.Mutex
	closed  bool
	timeout time.Duration
	log     *zap.SugaredLogger
}

// Option configures a State.
type Option func(*State)

// WithCallTimeout sets the timeout for each call into Lua. 0 disables it.
func WithCallTimeout(d time.Duration) Option {
	return func(s *State) {
		s.timeout = d
	}
}

// WithLogger sets the logger used by the Lua print function.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *State) {
		s.log = log
	}
}

// NewState creates a sandboxed Lua state.
func NewState(opts ...Option) *State {
	s := &State{
		timeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrNop(s.log).Named("lua")

	s.L = lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	openSafeLibraries(s.L)
	installSandbox(s.L, s.log)
	return s
}

// openSafeLibraries opens only libraries without file or process access.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// DoFile executes a Lua file.
func (s *State) DoFile(path string) error {
	return s.exec(func(L *lua.LState) error {
		return L.DoFile(path)
	})
}

// DoString executes a Lua chunk.
func (s *State) DoString(code string) error {
	return s.exec(func(L *lua.LState) error {
		return L.DoString(code)
	})
}

// Call calls a global Lua function and returns its results.
// Returns an empty slice (not nil) if the function returns no values.
func (s *State) Call(fn string, args ...lua.LValue) ([]lua.LValue, error) {
	var results []lua.LValue
	err := s.exec(func(L *lua.LState) error {
		fnVal := L.GetGlobal(fn)
		if fnVal.Type() != lua.LTFunction {
			return errors.Wrapf(ErrNotFunction, "%q is %s", fn, fnVal.Type())
		}

		top := L.GetTop()
		L.Push(fnVal)
		for _, arg := range args {
			L.Push(arg)
		}
		if err := L.PCall(len(args), lua.MultRet, nil); err != nil {
			return err
		}

		n := L.GetTop() - top
		results = make([]lua.LValue, 0, n)
		for i := 1; i <= n; i++ {
			results = append(results, L.Get(top+i))
		}
		L.Pop(n)
		return nil
	})
	return results, err
}

// HasFunction reports whether name is a global function.
func (s *State) HasFunction(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.L.GetGlobal(name).Type() == lua.LTFunction
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// RegisterModule installs funcs as the global table name.
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.L.SetGlobal(name, s.L.SetFuncs(s.L.NewTable(), funcs))
}

// exec runs fn under the lock with the call timeout and panic recovery.
func (s *State) exec(fn func(L *lua.LState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStateClosed
	}

	if s.timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.L.SetContext(ctx)
		defer s.L.RemoveContext()
	}

	return guard.Run(func() error {
		return fn(s.L)
	})
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. Later calls return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
