package host

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/stormcomplete/internal/bus"
	"github.com/dshills/stormcomplete/internal/completion"
	"github.com/dshills/stormcomplete/internal/core"
	"github.com/dshills/stormcomplete/internal/revision"
	"github.com/dshills/stormcomplete/internal/source"
)

type noConfig struct{}

type bufferSource struct {
	gate chan struct{}
}

func (s *bufferSource) Name() string { return "buffer" }

func (s *bufferSource) Enable(_ context.Context, doc *completion.Document, _ *noConfig) (bool, error) {
	return doc.Path != "skip.txt", nil
}

// Complete reads the buffer through the UI thread, then waits for gate
// on the first revision only.
func (s *bufferSource) Complete(ctx context.Context, req *completion.Request, _ *noConfig) (completion.List, error) {
	lines, err := req.Document.ReadLines(ctx)
	if err != nil {
		return nil, err
	}
	if req.Revision == 1 && s.gate != nil {
		<-s.gate
	}
	return completion.ListOf(lines...), nil
}

type lines []string

func (l lines) Lines() []string { return l }

type recorder struct {
	attached    []*completion.Document
	completions []bus.Completions
	failures    []string
	fatal       []error
}

func (r *recorder) handler() Handler {
	return Handler{
		Attached:     func(doc *completion.Document) { r.attached = append(r.attached, doc) },
		Completions:  func(c bus.Completions) { r.completions = append(r.completions, c) },
		SourceFailed: func(name string, _ error) { r.failures = append(r.failures, name) },
		Fatal:        func(err error) { r.fatal = append(r.fatal, err) },
	}
}

func startCore(t *testing.T, h *Host, src *bufferSource) *core.Core {
	t.Helper()
	bs := []*source.Bundle{source.NewBundle[noConfig](0, src, noConfig{}, source.Always(), nil)}
	opts := core.DefaultOptions()
	opts.Logger = zaptest.NewLogger(t).Sugar()
	c := core.New(h.Bus(), bs, opts)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})
	return c
}

// pump drains on wake until cond holds.
func pump(t *testing.T, h *Host, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-h.Wake():
			h.Drain()
		case <-deadline:
			t.Fatal("condition not reached")
		}
	}
}

func TestHostAttachAndComplete(t *testing.T) {
	rec := &recorder{}
	h := New(rec.handler(), zaptest.NewLogger(t).Sugar())
	startCore(t, h, &bufferSource{})

	doc := h.NewDocument("main.go", 1, lines{"alpha", "beta", "alpine"})
	require.NoError(t, h.Attach(doc))
	pump(t, h, func() bool { return h.Attached(doc) })
	require.Len(t, rec.attached, 1)

	rev, err := h.Request(doc, completion.Position{Line: "al", Col: 2}, completion.KindManual)
	require.NoError(t, err)
	assert.Equal(t, revision.Revision(1), rev)

	pump(t, h, func() bool { return len(rec.completions) > 0 })
	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, rev, latest.Revision)
	assert.ElementsMatch(t, []string{"alpha", "alpine"}, completion.ScoredTexts(latest.Items))

	_, issued := latest.Timings.At(revision.StageIssued)
	_, updated := latest.Timings.At(revision.StageUIUpdated)
	assert.True(t, issued)
	assert.True(t, updated)
	assert.GreaterOrEqual(t, latest.Timings.Between(revision.StageIssued, revision.StageUIUpdated), time.Duration(0))
}

func TestHostUnservedDocument(t *testing.T) {
	h := New(Handler{}, nil)
	startCore(t, h, &bufferSource{})

	doc := h.NewDocument("skip.txt", 1, lines{"x"})
	require.NoError(t, h.Attach(doc))

	time.Sleep(30 * time.Millisecond)
	h.Drain()
	assert.False(t, h.Attached(doc))
}

func TestHostDropsStaleCompletions(t *testing.T) {
	rec := &recorder{}
	h := New(rec.handler(), zaptest.NewLogger(t).Sugar())
	src := &bufferSource{gate: make(chan struct{})}
	startCore(t, h, src)

	doc := h.NewDocument("main.go", 1, lines{"abc"})
	require.NoError(t, h.Attach(doc))
	pump(t, h, func() bool { return h.Attached(doc) })

	_, err := h.Request(doc, completion.Position{Line: "a", Col: 1}, completion.KindAutomatic)
	require.NoError(t, err)
	rev2, err := h.Request(doc, completion.Position{Line: "ab", Col: 2}, completion.KindAutomatic)
	require.NoError(t, err)

	pump(t, h, func() bool { return len(rec.completions) > 0 })
	close(src.gate)
	time.Sleep(20 * time.Millisecond)
	h.Drain()

	for _, c := range rec.completions {
		assert.Equal(t, rev2, c.Revision)
	}
}

func TestHostHandlesStaleMessagesWithoutCore(t *testing.T) {
	rec := &recorder{}
	h := New(rec.handler(), nil)
	doc := h.NewDocument("main.go", 1, nil)

	_, err := h.Request(doc, completion.Position{}, completion.KindAutomatic)
	require.NoError(t, err)
	_, err = h.Request(doc, completion.Position{}, completion.KindAutomatic)
	require.NoError(t, err)

	require.NoError(t, h.Bus().SendToUI(bus.Completions{Document: doc, Revision: 1}))
	require.NoError(t, h.Bus().SendToUI(bus.Completions{Document: doc, Revision: 2}))
	require.NoError(t, h.Bus().SendToUI(bus.SourceCompleteFailed{Source: "lsp", Revision: 2, Err: errors.New("x")}))
	assert.Equal(t, 3, h.Drain())

	require.Len(t, rec.completions, 1)
	assert.Equal(t, revision.Revision(2), rec.completions[0].Revision)
	assert.Equal(t, []string{"lsp"}, rec.failures)

	require.NoError(t, h.Cancel())
	_, ok := h.Latest()
	assert.False(t, ok)
	assert.Equal(t, revision.Revision(2), h.Revision(), "cancel does not advance")
}

func TestHostDropsCompletionsQueuedBeforeCancel(t *testing.T) {
	rec := &recorder{}
	h := New(rec.handler(), nil)
	doc := h.NewDocument("main.go", 1, nil)

	rev, err := h.Request(doc, completion.Position{}, completion.KindAutomatic)
	require.NoError(t, err)
	require.NoError(t, h.Bus().SendToUI(bus.Completions{Document: doc, Revision: rev}))
	require.NoError(t, h.Cancel())
	h.Drain()

	_, ok := h.Latest()
	assert.False(t, ok)
	assert.Empty(t, rec.completions)

	next, err := h.Request(doc, completion.Position{}, completion.KindAutomatic)
	require.NoError(t, err)
	require.NoError(t, h.Bus().SendToUI(bus.Completions{Document: doc, Revision: next}))
	h.Drain()

	latest, ok := h.Latest()
	require.True(t, ok, "the next revision is shown again")
	assert.Equal(t, next, latest.Revision)
}

func TestHostFatalReportedOnce(t *testing.T) {
	rec := &recorder{}
	h := New(rec.handler(), nil)

	require.NoError(t, h.Bus().SendToUI(bus.CoreFailed{Err: errors.New("first")}))
	require.NoError(t, h.Bus().SendToUI(bus.CoreFailed{Err: errors.New("second")}))
	h.Drain()

	require.Len(t, rec.fatal, 1)
	assert.EqualError(t, rec.fatal[0], "first")
	assert.EqualError(t, h.Err(), "first")

	doc := h.NewDocument("a", 1, nil)
	assert.Error(t, h.Attach(doc), "requests after a fatal error fail")
	assert.Len(t, rec.fatal, 1)
}

func TestHostDisconnectIsFatal(t *testing.T) {
	rec := &recorder{}
	h := New(rec.handler(), nil)
	h.Close()

	err := h.Attach(h.NewDocument("a", 1, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, bus.ErrDisconnected))
	_ = h.Detach(h.NewDocument("b", 2, nil))
	assert.Len(t, rec.fatal, 1)
}

func TestHostRunStopsOnContext(t *testing.T) {
	h := New(Handler{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.True(t, errors.Is(h.Run(ctx), context.DeadlineExceeded))
}
