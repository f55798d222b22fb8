package app

import (
	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"

	"github.com/dshills/stormcomplete/internal/completion"
)

// Inbound message types.
const (
	msgOpen     = "open"
	msgChange   = "change"
	msgClose    = "close"
	msgComplete = "complete"
	msgCancel   = "cancel"
)

// handleLine routes one protocol message by its "type" field.
func (app *Application) handleLine(line []byte) error {
	if !gjson.ValidBytes(line) {
		return errors.Wrap(ErrBadMessage, "invalid json")
	}
	msg := gjson.ParseBytes(line)

	switch typ := msg.Get("type").String(); typ {
	case msgOpen:
		return app.handleOpen(msg)
	case msgChange:
		return app.handleChange(msg)
	case msgClose:
		return app.handleClose(msg)
	case msgComplete:
		return app.handleComplete(msg)
	case msgCancel:
		return app.host.Cancel()
	case "":
		return errors.Wrap(ErrBadMessage, "missing type")
	default:
		return errors.Wrapf(ErrBadMessage, "unknown type %q", typ)
	}
}

// handleOpen registers a buffer and asks the core which sources serve it.
//
//	{"type":"open","handle":1,"path":"main.go","lines":["package main"]}
func (app *Application) handleOpen(msg gjson.Result) error {
	handle, err := requireHandle(msg)
	if err != nil {
		return err
	}
	doc, err := app.docs.Open(handle, msg.Get("path").String(), messageLines(msg))
	if err != nil {
		return err
	}
	return app.host.Attach(doc.Document)
}

// handleChange replaces a buffer's content.
//
//	{"type":"change","handle":1,"lines":["package main",""]}
func (app *Application) handleChange(msg gjson.Result) error {
	handle, err := requireHandle(msg)
	if err != nil {
		return err
	}
	doc, err := app.docs.Get(handle)
	if err != nil {
		return err
	}
	doc.Buffer.SetLines(messageLines(msg))
	return nil
}

// handleClose detaches a buffer.
//
//	{"type":"close","handle":1}
func (app *Application) handleClose(msg gjson.Result) error {
	handle, err := requireHandle(msg)
	if err != nil {
		return err
	}
	doc, err := app.docs.Close(handle)
	if err != nil {
		return err
	}
	return app.host.Detach(doc.Document)
}

// handleComplete issues a new revision for the cursor position.
//
//	{"type":"complete","handle":1,"row":0,"col":4,"manual":true}
func (app *Application) handleComplete(msg gjson.Result) error {
	handle, err := requireHandle(msg)
	if err != nil {
		return err
	}
	doc, err := app.docs.Get(handle)
	if err != nil {
		return err
	}

	row := int(msg.Get("row").Int())
	pos := completion.Position{
		Row:  row,
		Col:  int(msg.Get("col").Int()),
		Line: doc.Buffer.Line(row),
	}
	kind := completion.KindAutomatic
	if msg.Get("manual").Bool() {
		kind = completion.KindManual
	}

	rev, err := app.host.Request(doc.Document, pos, kind)
	if err != nil {
		return err
	}
	app.out.requested(doc.Document, rev)
	return nil
}

func requireHandle(msg gjson.Result) (int, error) {
	h := msg.Get("handle")
	if h.Type != gjson.Number {
		return 0, errors.Wrap(ErrBadMessage, "handle must be a number")
	}
	return int(h.Int()), nil
}

// messageLines reads "lines" as an array of strings, or splits "text".
func messageLines(msg gjson.Result) []string {
	if text := msg.Get("text"); text.Exists() {
		return SplitLines(text.String())
	}
	arr := msg.Get("lines").Array()
	lines := make([]string, len(arr))
	for i, l := range arr {
		lines[i] = l.String()
	}
	return lines
}
