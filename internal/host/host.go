// Package host is the UI side of the bus: the single-threaded consumer
// that issues revisions, drains core messages in batches and runs UI
// closures.
//
// All Host methods must be called from the host's UI thread. The core
// signals pending messages through the waker; the host then calls Drain,
// which handles everything queued so far in one pass.
package host

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/stormcomplete/internal/bus"
	"github.com/dshills/stormcomplete/internal/completion"
	"github.com/dshills/stormcomplete/internal/logging"
	"github.com/dshills/stormcomplete/internal/revision"
)

// Handler receives the outcome of core messages. Nil fields are ignored.
type Handler struct {
	// Attached is called once per document when a source first accepts it.
	Attached func(doc *completion.Document)

	// Completions is called with every fresh result set.
	Completions func(c bus.Completions)

	// SourceFailed reports a recoverable source error.
	SourceFailed func(source string, err error)

	// Panicked reports a panic recovered in the core.
	Panicked func(p bus.CorePanicked)

	// Fatal is called exactly once when the core stops for good.
	Fatal func(err error)
}

// Host is the UI-side endpoint of the bus.
type Host struct {
	bus     *bus.Bus
	waker   *bus.ChanWaker
	clock   *revision.Clock
	handler Handler
	log     *zap.SugaredLogger

	attached map[uuid.UUID]*completion.Document
	latest   *bus.Completions
	fatal    error

	// cancelled is the last revision passed to Cancel.
	cancelled revision.Revision
}

// New creates a host with its own bus and waker.
func New(handler Handler, log *zap.SugaredLogger) *Host {
	w := bus.NewChanWaker()
	return &Host{
		bus:      bus.New(w),
		waker:    w,
		clock:    revision.NewClock(),
		handler:  handler,
		log:      logging.OrNop(log).Named("host"),
		attached: make(map[uuid.UUID]*completion.Document),
	}
}

// Bus returns the bus shared with the core.
func (h *Host) Bus() *bus.Bus {
	return h.bus
}

// Wake returns the channel signalled when core messages are pending.
func (h *Host) Wake() <-chan struct{} {
	return h.waker.C()
}

// NewDocument creates a document whose UI round trips go through this host.
func (h *Host) NewDocument(path string, handle int, buffer completion.Buffer) *completion.Document {
	return completion.NewDocument(path, handle, buffer, h.bus)
}

// Attach asks the core which sources serve doc.
func (h *Host) Attach(doc *completion.Document) error {
	return h.sendToCore(bus.QueryAttach{Document: doc})
}

// Detach forgets doc.
func (h *Host) Detach(doc *completion.Document) error {
	delete(h.attached, doc.ID)
	if h.latest != nil && h.latest.Document != nil && h.latest.Document.ID == doc.ID {
		h.latest = nil
	}
	return h.sendToCore(bus.DetachDocument{Document: doc})
}

// Attached reports whether any source serves doc.
func (h *Host) Attached(doc *completion.Document) bool {
	_, ok := h.attached[doc.ID]
	return ok
}

// Request advances the revision and asks for completions at pos.
// Every call supersedes all earlier requests.
func (h *Host) Request(doc *completion.Document, pos completion.Position, kind completion.Kind) (revision.Revision, error) {
	rev := h.clock.Advance()
	req := &completion.Request{
		Revision: rev,
		Document: doc,
		Position: pos,
		Kind:     kind,
	}
	h.latest = nil
	return rev, h.sendToCore(bus.CompletionRequest{Request: req})
}

// Cancel stops delivery for the current revision, e.g. on leaving insert
// mode. The revision does not advance.
func (h *Host) Cancel() error {
	rev := h.clock.Current()
	h.latest = nil
	h.cancelled = rev
	return h.sendToCore(bus.CancelRequest{Revision: rev})
}

// Revision returns the current revision.
func (h *Host) Revision() revision.Revision {
	return h.clock.Current()
}

// Latest returns the most recent fresh result set.
func (h *Host) Latest() (bus.Completions, bool) {
	if h.latest == nil {
		return bus.Completions{}, false
	}
	return *h.latest, true
}

// Err returns the fatal error, if the core has stopped.
func (h *Host) Err() error {
	return h.fatal
}

// Drain handles every pending core message in one batch and returns how
// many were handled. Completions for anything but the current revision
// are dropped, as are those for a cancelled revision.
func (h *Host) Drain() int {
	msgs := h.bus.DrainUI()
	for _, msg := range msgs {
		h.handle(msg)
	}
	return len(msgs)
}

func (h *Host) handle(msg bus.Outbound) {
	switch m := msg.(type) {
	case *bus.ExecuteOnUIThread:
		m.Run()

	case bus.AttachDocument:
		if _, ok := h.attached[m.Document.ID]; ok {
			return
		}
		h.attached[m.Document.ID] = m.Document
		h.log.Debugw("attached", "document", m.Document)
		if h.handler.Attached != nil {
			h.handler.Attached(m.Document)
		}

	case bus.Completions:
		if !h.clock.IsCurrent(m.Revision) {
			h.log.Debugw("dropping stale completions", "revision", m.Revision, "current", h.clock.Current())
			return
		}
		if m.Revision == h.cancelled {
			h.log.Debugw("dropping cancelled completions", "revision", m.Revision)
			return
		}
		m.Timings.Mark(revision.StageUIUpdated, time.Now())
		h.latest = &m
		if h.handler.Completions != nil {
			h.handler.Completions(m)
		}

	case bus.SourceEnableFailed:
		h.sourceFailed(m.Source, m.Err)

	case bus.SourceCompleteFailed:
		h.sourceFailed(m.Source, m.Err)

	case bus.CorePanicked:
		h.log.Errorw("core panicked", "thread", m.Thread, "panic", m.Message, "location", m.Location)
		if h.handler.Panicked != nil {
			h.handler.Panicked(m)
		}

	case bus.CoreFailed:
		h.fail(m.Err)
	}
}

func (h *Host) sourceFailed(name string, err error) {
	h.log.Warnw("source failed", "source", name, "error", err)
	if h.handler.SourceFailed != nil {
		h.handler.SourceFailed(name, err)
	}
}

// fail records the first fatal error and reports it once.
func (h *Host) fail(err error) {
	if h.fatal != nil {
		return
	}
	if err == nil {
		err = errors.New("core stopped")
	}
	h.fatal = err
	h.log.Errorw("core failed", "error", err)
	if h.handler.Fatal != nil {
		h.handler.Fatal(err)
	}
}

func (h *Host) sendToCore(msg bus.Inbound) error {
	if h.fatal != nil {
		return h.fatal
	}
	if err := h.bus.SendToCore(msg); err != nil {
		h.fail(err)
		return err
	}
	return nil
}

// Run drains messages on every wake until ctx is done. It is the event
// loop for hosts without one of their own.
func (h *Host) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.Drain()
			return ctx.Err()
		case <-h.waker.C():
			h.Drain()
		}
	}
}

// Close disconnects the bus.
func (h *Host) Close() {
	h.bus.Close()
}
