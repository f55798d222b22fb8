package bus

import (
	"sync"

	"github.com/dshills/stormcomplete/internal/completion"
	"github.com/dshills/stormcomplete/internal/guard"
	"github.com/dshills/stormcomplete/internal/revision"
)

// Inbound is a message from the UI to the core.
type Inbound interface {
	inbound()
}

// QueryAttach asks the core to decide which sources serve a document.
type QueryAttach struct {
	Document *completion.Document
}

// CompletionRequest starts a new completion cycle.
type CompletionRequest struct {
	Request *completion.Request
}

// CancelRequest stops delivery for a revision, if it is still current.
type CancelRequest struct {
	Revision revision.Revision
}

// DetachDocument forgets a document and aborts work targeting it.
type DetachDocument struct {
	Document *completion.Document
}

func (QueryAttach) inbound()       {}
func (CompletionRequest) inbound() {}
func (CancelRequest) inbound()     {}
func (DetachDocument) inbound()    {}

// Outbound is a message from the core to the UI.
type Outbound interface {
	outbound()
}

// AttachDocument tells the UI that at least one source serves a document.
type AttachDocument struct {
	Document *completion.Document
}

// Completions is a ranked result set for one revision.
// Within a revision every Completions message supersedes the previous one.
type Completions struct {
	Document *completion.Document
	Items    []completion.Scored
	Revision revision.Revision
	Position completion.Position
	Timings  revision.Timings
}

// SourceEnableFailed reports a source whose enable check failed.
type SourceEnableFailed struct {
	Source   string
	Document *completion.Document
	Err      error
}

// SourceCompleteFailed reports a source whose completion call failed.
type SourceCompleteFailed struct {
	Source   string
	Revision revision.Revision
	Err      error
}

// CoreFailed reports that the core stopped permanently.
type CoreFailed struct {
	Err error
}

// CorePanicked reports a panic recovered on a core goroutine.
type CorePanicked struct {
	Thread   string
	Message  string
	Location string
}

// PanickedFrom converts a recovered panic into a CorePanicked message.
func PanickedFrom(thread string, pe *guard.PanicError) CorePanicked {
	return CorePanicked{
		Thread:   thread,
		Message:  pe.Message(),
		Location: pe.Location,
	}
}

// ExecuteOnUIThread carries a closure that must run on the UI thread.
// The host calls Run exactly once; the waiting goroutine receives the result.
type ExecuteOnUIThread struct {
	fn    func() (any, error)
	reply chan uiReply
	once  sync.Once
}

type uiReply struct {
	value any
	err   error
}

// Run executes the closure with panic recovery and sends the reply.
// Calls after the first are no-ops.
func (m *ExecuteOnUIThread) Run() {
	m.once.Do(func() {
		v, err := guard.Do(m.fn)
		m.reply <- uiReply{value: v, err: err}
	})
}

// Reject replies with err without running the closure.
func (m *ExecuteOnUIThread) Reject(err error) {
	m.once.Do(func() {
		m.reply <- uiReply{err: err}
	})
}

func (AttachDocument) outbound()       {}
func (Completions) outbound()          {}
func (SourceEnableFailed) outbound()   {}
func (SourceCompleteFailed) outbound() {}
func (CoreFailed) outbound()           {}
func (CorePanicked) outbound()         {}
func (*ExecuteOnUIThread) outbound()   {}
