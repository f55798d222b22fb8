package app

import (
	"os"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/dshills/stormcomplete/internal/completion"
	"github.com/dshills/stormcomplete/internal/host"
)

// Buffer holds the text of an open document. It is owned by the UI
// thread, which is also the only reader through completion.Buffer.
type Buffer struct {
	lines []string
}

// NewBuffer creates a buffer from lines.
func NewBuffer(lines []string) *Buffer {
	return &Buffer{lines: append([]string(nil), lines...)}
}

// SplitLines splits text into lines without their terminators.
func SplitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Lines implements completion.Buffer.
func (b *Buffer) Lines() []string {
	return b.lines
}

// Line returns line row, or "" when out of range.
func (b *Buffer) Line(row int) string {
	if row < 0 || row >= len(b.lines) {
		return ""
	}
	return b.lines[row]
}

// SetLines replaces the buffer content.
func (b *Buffer) SetLines(lines []string) {
	b.lines = append([]string(nil), lines...)
}

// Document pairs a completion document with its buffer.
type Document struct {
	*completion.Document
	Buffer *Buffer
}

// DocumentManager tracks open documents by host handle.
// Only use on the UI thread.
type DocumentManager struct {
	host     *host.Host
	byHandle map[int]*Document
	next     int
}

// NewDocumentManager creates a manager creating documents on h.
func NewDocumentManager(h *host.Host) *DocumentManager {
	return &DocumentManager{
		host:     h,
		byHandle: make(map[int]*Document),
		next:     1,
	}
}

// Open registers a document under handle.
func (m *DocumentManager) Open(handle int, path string, lines []string) (*Document, error) {
	if _, ok := m.byHandle[handle]; ok {
		return nil, errors.Wrapf(ErrDocumentAlreadyOpen, "handle %d", handle)
	}
	buf := NewBuffer(lines)
	doc := &Document{
		Document: m.host.NewDocument(path, handle, buf),
		Buffer:   buf,
	}
	m.byHandle[handle] = doc
	if handle >= m.next {
		m.next = handle + 1
	}
	return doc, nil
}

// OpenFile reads path from disk and opens it under a fresh handle.
func (m *DocumentManager) OpenFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Op: "open", Path: path, Err: err}
	}
	return m.Open(m.next, path, SplitLines(string(data)))
}

// Get returns the document for handle.
func (m *DocumentManager) Get(handle int) (*Document, error) {
	doc, ok := m.byHandle[handle]
	if !ok {
		return nil, errors.Wrapf(ErrDocumentNotFound, "handle %d", handle)
	}
	return doc, nil
}

// Close forgets handle and returns its document.
func (m *DocumentManager) Close(handle int) (*Document, error) {
	doc, err := m.Get(handle)
	if err != nil {
		return nil, err
	}
	delete(m.byHandle, handle)
	return doc, nil
}

// Handles returns the open handles in ascending order.
func (m *DocumentManager) Handles() []int {
	handles := make([]int, 0, len(m.byHandle))
	for h := range m.byHandle {
		handles = append(handles, h)
	}
	sort.Ints(handles)
	return handles
}

// Count returns the number of open documents.
func (m *DocumentManager) Count() int {
	return len(m.byHandle)
}
