package core

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/stormcomplete/internal/completion"
	"github.com/dshills/stormcomplete/internal/revision"
	"github.com/dshills/stormcomplete/internal/source"
)

// attachment is the registry entry for one document.
type attachment struct {
	doc     *completion.Document
	bundles []*source.Bundle
	sealed  bool
	last    revision.Revision

	// cancel aborts the attach query if the document is detached first.
	cancel context.CancelFunc
}

// Documents maps attached documents to the bundles that serve them.
// An entry exists from the start of the attach query; it is visible to
// requests once the first source accepts and its bundle list is sealed
// when every enable check has finished.
type Documents struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*attachment
}

// NewDocuments creates an empty registry.
func NewDocuments() *Documents {
	return &Documents{
		byID: make(map[uuid.UUID]*attachment),
	}
}

// begin starts an attach query. Returns false if doc is already attached
// or being attached.
func (d *Documents) begin(doc *completion.Document, cancel context.CancelFunc) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byID[doc.ID]; exists {
		return false
	}
	d.byID[doc.ID] = &attachment{doc: doc, cancel: cancel}
	return true
}

// accept appends b to the document's bundles, keeping registration order.
// Returns true for the first accepting bundle.
func (d *Documents) accept(doc *completion.Document, b *source.Bundle) (first bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.byID[doc.ID]
	if !ok || a.sealed {
		return false
	}
	first = len(a.bundles) == 0
	a.bundles = append(a.bundles, b)
	sort.SliceStable(a.bundles, func(i, j int) bool {
		return a.bundles[i].ID() < a.bundles[j].ID()
	})
	return first
}

// seal freezes the bundle list. A document no source accepted is dropped.
func (d *Documents) seal(doc *completion.Document) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.byID[doc.ID]
	if !ok {
		return
	}
	if len(a.bundles) == 0 {
		delete(d.byID, doc.ID)
		return
	}
	a.sealed = true
	a.cancel = nil
}

// remove forgets doc and aborts a running attach query.
func (d *Documents) remove(id uuid.UUID) bool {
	d.mu.Lock()
	a, ok := d.byID[id]
	delete(d.byID, id)
	d.mu.Unlock()

	if ok && a.cancel != nil {
		a.cancel()
	}
	return ok
}

// Bundles returns a copy of the bundles serving the document.
// ok is false if no source has accepted it.
func (d *Documents) Bundles(id uuid.UUID) (bundles []*source.Bundle, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, exists := d.byID[id]
	if !exists || len(a.bundles) == 0 {
		return nil, false
	}
	return append([]*source.Bundle(nil), a.bundles...), true
}

// Sealed reports whether the document's attach query has finished.
func (d *Documents) Sealed(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.byID[id]
	return ok && a.sealed
}

// observe records rev for the document. Returns false if rev is not
// strictly newer than the last revision seen for it.
func (d *Documents) observe(id uuid.UUID, rev revision.Revision) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.byID[id]
	if !ok {
		return true
	}
	if !rev.Newer(a.last) {
		return false
	}
	a.last = rev
	return true
}

// Len returns the number of attached or attaching documents.
func (d *Documents) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byID)
}
