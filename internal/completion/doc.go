// Package completion defines the data model shared by the completion core,
// its sources and the UI host.
//
// # Ownership
//
// Items are immutable once constructed and are shared by pointer between
// source goroutines, scorer workers and the UI. A Request is likewise
// immutable and is handed by pointer to every source dispatched for it.
// Scored result sets are built fresh for each delivery and are never patched.
//
// # UI-thread data
//
// A Document's Buffer belongs to the host and may only be read on the UI
// thread. Sources that need buffer content go through Document.OnUI, which
// routes the closure to the UI thread and waits for its result:
//
//	lines, err := completion.RunOnUI(ctx, doc, func() ([]string, error) {
//	    return doc.Buffer().Lines(), nil
//	})
package completion
