package app

import (
	"io"

	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/dshills/stormcomplete/internal/bus"
	"github.com/dshills/stormcomplete/internal/completion"
	"github.com/dshills/stormcomplete/internal/revision"
)

// event builds one JSON protocol event.
type event struct {
	json string
	err  error
}

func newEvent(typ string) *event {
	return (&event{json: `{}`}).set("type", typ)
}

func (e *event) set(path string, value any) *event {
	if e.err != nil {
		return e
	}
	e.json, e.err = sjson.Set(e.json, path, value)
	return e
}

func (e *event) setRaw(path, raw string) *event {
	if e.err != nil {
		return e
	}
	e.json, e.err = sjson.SetRaw(e.json, path, raw)
	return e
}

// emitter writes events to the protocol output. A nil emitter discards
// events, so the application can report unconditionally.
type emitter struct {
	w   io.Writer
	log *zap.SugaredLogger
}

func newEmitter(w io.Writer, log *zap.SugaredLogger) *emitter {
	return &emitter{w: w, log: log}
}

func (m *emitter) emit(e *event) {
	if m == nil {
		return
	}
	if e.err != nil {
		m.log.Errorw("encoding event", "error", e.err)
		return
	}
	if _, err := io.WriteString(m.w, e.json+"\n"); err != nil {
		m.log.Warnw("writing event", "error", err)
	}
}

func (m *emitter) attached(doc *completion.Document) {
	m.emit(newEvent("attached").
		set("handle", doc.Handle).
		set("path", doc.Path))
}

func (m *emitter) requested(doc *completion.Document, rev revision.Revision) {
	m.emit(newEvent("requested").
		set("handle", doc.Handle).
		set("revision", uint64(rev)))
}

func (m *emitter) completions(c bus.Completions) {
	if m == nil {
		return
	}
	e := newEvent("completions").
		set("revision", uint64(c.Revision)).
		setRaw("items", "[]")
	if c.Document != nil {
		e.set("handle", c.Document.Handle)
	}
	for _, s := range c.Items {
		e.set("items.-1", newItemJSON(s))
	}
	if _, done := c.Timings.At(revision.StageSourceDone); done {
		e.set("complete", true)
	}
	e.set("elapsed_ms", c.Timings.Between(revision.StageIssued, revision.StageUIUpdated).Milliseconds())
	m.emit(e)
}

func (m *emitter) sourceFailed(name string, err error) {
	m.emit(newEvent("source_failed").
		set("source", name).
		set("error", err.Error()))
}

func (m *emitter) panicked(p bus.CorePanicked) {
	m.emit(newEvent("panic").
		set("thread", p.Thread).
		set("message", p.Message).
		set("location", p.Location))
}

func (m *emitter) fatal(err error) {
	m.emit(newEvent("fatal").set("error", err.Error()))
}

func (m *emitter) error(err error) {
	m.emit(newEvent("error").set("error", err.Error()))
}

// itemJSON is the wire form of a scored item.
type itemJSON struct {
	Text    string   `json:"text"`
	Icon    string   `json:"icon,omitempty"`
	Score   int      `json:"score"`
	Matches [][2]int `json:"matches"`
}

func newItemJSON(s completion.Scored) itemJSON {
	icon, _ := s.Item.Icon()
	matches := make([][2]int, len(s.Matches))
	for i, r := range s.Matches {
		matches[i] = [2]int{r.Start, r.End}
	}
	return itemJSON{
		Text:    s.Item.Text(),
		Icon:    icon,
		Score:   s.Score,
		Matches: matches,
	}
}
