// Package core implements the completion dispatcher.
//
// The core runs on one background goroutine and owns the document registry
// and the current revision. It receives messages from the host over the
// bus, fans completion requests out to every bundle attached to the
// document, scores partial results as they arrive and sends ranked
// Completions back. A newer request or a CancelRequest for the current
// revision stops all delivery for the older revision.
package core

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/dshills/stormcomplete/internal/bus"
	"github.com/dshills/stormcomplete/internal/completion"
	"github.com/dshills/stormcomplete/internal/fuzzy"
	"github.com/dshills/stormcomplete/internal/guard"
	"github.com/dshills/stormcomplete/internal/logging"
	"github.com/dshills/stormcomplete/internal/revision"
	"github.com/dshills/stormcomplete/internal/source"
)

// Options configures a Core.
type Options struct {
	// Match configures the fuzzy matcher.
	Match fuzzy.Options

	// Sort configures ranking and the scoring worker pool.
	Sort fuzzy.SortOptions

	// BoundaryChars end the completion prefix.
	// Empty uses fuzzy.DefaultBoundaryChars.
	BoundaryChars string

	// Logger receives diagnostics. Nil disables logging.
	Logger *zap.SugaredLogger
}

// DefaultOptions returns the default core options.
func DefaultOptions() Options {
	return Options{
		Match:         fuzzy.DefaultOptions(),
		Sort:          fuzzy.DefaultSortOptions(),
		BoundaryChars: fuzzy.DefaultBoundaryChars,
	}
}

// Core is the request dispatcher.
type Core struct {
	bus      *bus.Bus
	bundles  []*source.Bundle
	sorter   *fuzzy.Sorter
	boundary string
	log      *zap.SugaredLogger
	docs     *Documents

	// mu guards the revision state. It is never held across a bus send
	// or a call into a source.
	mu        sync.Mutex
	current   revision.Revision
	accepting bool
	active    *run
	started   bool

	tasks    sync.WaitGroup
	stopLoop context.CancelFunc

	failMu  sync.Mutex
	failErr error

	done chan struct{}
	err  error
}

// New creates a core serving bundles over b.
// Bundles must be in registration order; see source.Registry.Build.
func New(b *bus.Bus, bundles []*source.Bundle, opts Options) *Core {
	if opts.BoundaryChars == "" {
		opts.BoundaryChars = fuzzy.DefaultBoundaryChars
	}
	return &Core{
		bus:      b,
		bundles:  bundles,
		sorter:   fuzzy.NewSorter(fuzzy.NewMatcher(opts.Match), opts.Sort),
		boundary: opts.BoundaryChars,
		log:      logging.OrNop(opts.Logger).Named("core"),
		docs:     NewDocuments(),
		done:     make(chan struct{}),
	}
}

// Documents returns the document registry.
func (c *Core) Documents() *Documents {
	return c.docs
}

// Start runs the event loop on a background goroutine.
func (c *Core) Start(ctx context.Context) {
	go func() {
		_ = c.Run(ctx)
	}()
}

// Done is closed when the event loop has exited and every task finished.
func (c *Core) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that stopped the core, after Done is closed.
func (c *Core) Err() error {
	<-c.done
	return c.err
}

// Run processes messages until ctx is cancelled or a fatal error occurs.
// A fatal error is reported to the host as one CoreFailed message and
// returned. Cancelling ctx stops the core cleanly and returns nil.
func (c *Core) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrStopped
	}
	c.started = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.stopLoop = cancel

	err := c.loop(ctx)
	if err != nil {
		c.log.Errorw("core failed", "error", err)
		_ = c.bus.SendToUI(bus.CoreFailed{Err: err})
	}

	c.shutdown()
	cancel()
	c.err = err
	close(c.done)
	return err
}

func (c *Core) loop(ctx context.Context) error {
	for {
		msg, err := c.bus.RecvCore(ctx)
		if err != nil {
			if ferr := c.fatalErr(); ferr != nil {
				return ferr
			}
			if errors.Is(err, bus.ErrDisconnected) {
				return errors.Wrap(err, "receiving from host")
			}
			return nil
		}
		if err := c.handle(ctx, msg); err != nil {
			return err
		}
		if ferr := c.fatalErr(); ferr != nil {
			return ferr
		}
	}
}

func (c *Core) handle(ctx context.Context, msg bus.Inbound) error {
	switch m := msg.(type) {
	case bus.QueryAttach:
		c.queryAttach(ctx, m.Document)
	case bus.CompletionRequest:
		return c.recompute(ctx, m.Request)
	case bus.CancelRequest:
		c.stopSending(m.Revision)
	case bus.DetachDocument:
		c.detach(m.Document)
	default:
		return errors.AssertionFailedf("unknown inbound message %T", msg)
	}
	return nil
}

// queryAttach asks every bundle whether it serves doc.
func (c *Core) queryAttach(ctx context.Context, doc *completion.Document) {
	actx, cancel := context.WithCancel(ctx)
	if !c.docs.begin(doc, cancel) {
		cancel()
		c.log.Debugw("document already attached", "document", doc)
		return
	}

	var wg sync.WaitGroup
	for _, b := range c.bundles {
		wg.Add(1)
		c.tasks.Add(1)
		go func() {
			defer c.tasks.Done()
			defer wg.Done()
			c.enable(actx, b, doc)
		}()
	}

	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		wg.Wait()
		c.docs.seal(doc)
		cancel()
		c.log.Debugw("attach finished", "document", doc, "attached", c.docs.Sealed(doc.ID))
	}()
}

func (c *Core) enable(ctx context.Context, b *source.Bundle, doc *completion.Document) {
	ok, err := guard.Do(func() (bool, error) {
		return b.Enable(ctx, doc)
	})
	if err != nil {
		if pe, isPanic := guard.AsPanic(err); isPanic {
			c.reportPanic("enable:"+b.Name(), pe)
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.log.Warnw("source enable failed", "source", b.Name(), "document", doc, "error", err)
		c.send(bus.SourceEnableFailed{Source: b.Name(), Document: doc, Err: err})
		return
	}
	if !ok {
		return
	}
	if c.docs.accept(doc, b) {
		c.log.Debugw("document attached", "document", doc, "source", b.Name())
		c.send(bus.AttachDocument{Document: doc})
	}
}

// recompute starts a new completion cycle, superseding the previous one.
func (c *Core) recompute(ctx context.Context, req *completion.Request) error {
	if req == nil || req.Document == nil {
		return errors.AssertionFailedf("completion request without document")
	}

	c.mu.Lock()
	if !req.Revision.Newer(c.current) {
		current := c.current
		c.mu.Unlock()
		return errors.Wrapf(ErrRevisionOrder, "request %s after %s", req.Revision, current)
	}
	prev := c.active
	c.current = req.Revision
	c.accepting = false
	c.active = nil
	c.mu.Unlock()

	if prev != nil {
		prev.stop()
	}

	if !c.docs.observe(req.Document.ID, req.Revision) {
		return errors.Wrapf(ErrRevisionOrder, "request %s for %s", req.Revision, req.Document)
	}

	bundles, ok := c.docs.Bundles(req.Document.ID)
	if !ok {
		c.log.Debugw("request for unattached document", "document", req.Document, "revision", req.Revision)
		return nil
	}

	r := newRun(ctx, req, bundles, fuzzy.Prefix(req.Position, c.boundary))

	c.mu.Lock()
	c.active = r
	c.accepting = true
	c.mu.Unlock()

	c.log.Debugw("dispatch", "revision", req.Revision, "document", req.Document,
		"sources", len(bundles), "prefix", r.prefix, "kind", req.Kind)

	for _, b := range bundles {
		c.tasks.Add(1)
		go func() {
			defer c.tasks.Done()
			c.complete(r, b)
		}()
	}
	return nil
}

// complete runs one source for r and delivers the merged result.
func (c *Core) complete(r *run, b *source.Bundle) {
	list, err := guard.Do(func() (completion.List, error) {
		return b.Complete(r.ctx, r.req)
	})
	failed := err != nil
	if failed {
		switch pe, isPanic := guard.AsPanic(err); {
		case isPanic:
			c.reportPanic("source:"+b.Name(), pe)
		case r.ctx.Err() != nil:
			return
		default:
			c.log.Warnw("source complete failed", "source", b.Name(), "revision", r.revision(), "error", err)
			c.send(bus.SourceCompleteFailed{Source: b.Name(), Revision: r.revision(), Err: err})
		}
	}

	snap, ok := r.record(b, list, failed)
	if !ok {
		return
	}

	scored, err := guard.Do(func() ([]completion.Scored, error) {
		return c.sorter.Sort(r.ctx, r.prefix, snap.items)
	})
	if err != nil {
		if pe, isPanic := guard.AsPanic(err); isPanic {
			c.reportPanic("scorer", pe)
			return
		}
		if r.ctx.Err() == nil {
			c.log.Errorw("scoring failed", "revision", r.revision(), "error", err)
		}
		return
	}

	r.deliver(snap, func(timings revision.Timings) {
		c.send(bus.Completions{
			Document: r.req.Document,
			Items:    scored,
			Revision: r.revision(),
			Position: r.req.Position,
			Timings:  timings,
		})
	})
}

// stopSending stops delivery for rev if it is the current revision.
func (c *Core) stopSending(rev revision.Revision) {
	c.mu.Lock()
	if rev != c.current || !c.accepting {
		c.mu.Unlock()
		c.log.Debugw("ignoring cancel", "revision", rev, "current", c.current)
		return
	}
	r := c.active
	c.accepting = false
	c.active = nil
	c.mu.Unlock()

	if r != nil {
		r.stop()
	}
	c.log.Debugw("cancelled", "revision", rev)
}

// detach forgets doc and aborts work targeting it.
func (c *Core) detach(doc *completion.Document) {
	if !c.docs.remove(doc.ID) {
		return
	}

	c.mu.Lock()
	r := c.active
	if r != nil && r.req.Document.ID == doc.ID {
		c.active = nil
		c.accepting = false
	} else {
		r = nil
	}
	c.mu.Unlock()

	if r != nil {
		r.stop()
	}
	c.log.Debugw("document detached", "document", doc)
}

// Accepting reports whether results for rev may still be delivered.
func (c *Core) Accepting(rev revision.Revision) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accepting && rev == c.current
}

// send delivers msg to the host. A closed bus is fatal.
func (c *Core) send(msg bus.Outbound) {
	if err := c.bus.SendToUI(msg); err != nil {
		c.fatal(errors.Wrap(err, "sending to host"))
	}
}

func (c *Core) reportPanic(thread string, pe *guard.PanicError) {
	c.log.Errorw("recovered panic", "thread", thread, "panic", pe.Message(),
		"location", pe.Location, "stack", string(pe.Stack))
	c.send(bus.PanickedFrom(thread, pe))
}

// fatal records err and stops the event loop.
func (c *Core) fatal(err error) {
	c.failMu.Lock()
	if c.failErr == nil {
		c.failErr = err
	}
	c.failMu.Unlock()
	if c.stopLoop != nil {
		c.stopLoop()
	}
}

func (c *Core) fatalErr() error {
	c.failMu.Lock()
	defer c.failMu.Unlock()
	return c.failErr
}

// shutdown aborts the active run and waits for every task.
func (c *Core) shutdown() {
	c.mu.Lock()
	r := c.active
	c.active = nil
	c.accepting = false
	c.mu.Unlock()

	if r != nil {
		r.stop()
	}
	if c.stopLoop != nil {
		c.stopLoop()
	}
	c.tasks.Wait()
}
