package completion

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Range is a half-open byte range [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of bytes covered.
func (r Range) Len() int {
	return r.End - r.Start
}

// ValidIn reports whether r is a valid byte range of text.
func (r Range) ValidIn(text string) bool {
	return r.Start >= 0 && r.Start <= r.End && r.End <= len(text)
}

// String implements fmt.Stringer.
func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Item is a single completion candidate.
// Items are immutable; the accessors never expose internal slices.
type Item struct {
	text       string
	icon       string
	hasIcon    bool
	highlights []Range
}

// ItemOption configures an Item at construction.
type ItemOption func(*Item)

// WithIcon sets the item icon.
func WithIcon(icon string) ItemOption {
	return func(i *Item) {
		i.icon = icon
		i.hasIcon = true
	}
}

// WithHighlights sets byte ranges of text to highlight.
func WithHighlights(ranges ...Range) ItemOption {
	return func(i *Item) {
		i.highlights = append(i.highlights[:0:0], ranges...)
	}
}

// NewItem creates an item. It fails if any highlight range is not a valid
// byte range of text.
func NewItem(text string, opts ...ItemOption) (*Item, error) {
	item := &Item{text: text}
	for _, opt := range opts {
		opt(item)
	}
	for _, r := range item.highlights {
		if !r.ValidIn(text) {
			return nil, errors.Wrapf(ErrInvalidRange, "range %s in %q", r, text)
		}
	}
	return item, nil
}

// MustItem is like NewItem but panics on invalid ranges.
// Intended for literals in sources and tests.
func MustItem(text string, opts ...ItemOption) *Item {
	item, err := NewItem(text, opts...)
	if err != nil {
		panic(err)
	}
	return item
}

// Text returns the completion text.
func (i *Item) Text() string {
	return i.text
}

// Icon returns the icon and whether one was set.
func (i *Item) Icon() (string, bool) {
	return i.icon, i.hasIcon
}

// Highlights returns a copy of the highlight ranges.
func (i *Item) Highlights() []Range {
	if len(i.highlights) == 0 {
		return nil
	}
	out := make([]Range, len(i.highlights))
	copy(out, i.highlights)
	return out
}

// List is what a source returns for one request.
type List []*Item

// Texts returns the text of every item, in order.
func (l List) Texts() []string {
	out := make([]string, len(l))
	for i, item := range l {
		out[i] = item.Text()
	}
	return out
}

// ListOf builds a List from plain strings.
func ListOf(texts ...string) List {
	l := make(List, len(texts))
	for i, t := range texts {
		l[i] = &Item{text: t}
	}
	return l
}

// Scored is an item ranked against the current prefix.
type Scored struct {
	// Item is the shared, immutable candidate.
	Item *Item

	// Score is the match score (higher is better).
	Score int

	// Matches are the byte ranges of Item.Text() matched by the prefix.
	Matches []Range
}

// ScoredTexts returns the text of every scored item, in order.
func ScoredTexts(items []Scored) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = s.Item.Text()
	}
	return out
}
