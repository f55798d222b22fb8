// Package bus connects the completion core to the single-threaded UI host.
//
// # Architecture
//
//	┌──────────────┐   Inbound (QueryAttach, CompletionRequest, ...)   ┌──────────────┐
//	│   UI host    │ ────────────────────────────────────────────────▶ │     Core     │
//	│ (one thread) │ ◀──────────────────────────────────────────────── │ (goroutines) │
//	└──────────────┘   Outbound (Completions, ...) + Waker.Wake()      └──────────────┘
//
// Both directions are unbounded FIFO queues: a send never blocks, so the
// core can publish from any goroutine and the UI is never blocked waiting
// on the core.
//
// # Wake-ups
//
// Every outbound send calls Waker.Wake. The host's event loop reacts to a
// wake by calling DrainUI once and processing every queued message in that
// single pass. Wakes coalesce: many sends may produce one drain.
//
// # UI round trips
//
// Some work may only run where the host's non-thread-safe state lives
// (for example evaluating a Lua predicate). ExecuteOnUI packages a closure
// as an ExecuteOnUIThread message and waits for its one-shot reply:
//
//	v, err := b.ExecuteOnUI(ctx, func() (any, error) {
//	    return luaState.Call("is_enabled", arg)
//	})
//
// # Disconnection
//
// Close disconnects both directions. Sends on a closed bus return
// ErrDisconnected; the peer is presumed gone and callers treat it as fatal.
package bus
