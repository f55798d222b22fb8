package lua

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// unsafeGlobals load code from disk or strings and bypass the sandbox.
var unsafeGlobals = []string{
	"dofile",
	"loadfile",
	"load",
	"loadstring",
}

// installSandbox removes unsafe globals and routes print to the logger.
func installSandbox(L *lua.LState, log *zap.SugaredLogger) {
	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		log.Infow(strings.Join(parts, "\t"))
		return 0
	}))
}
