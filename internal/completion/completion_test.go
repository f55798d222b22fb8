package completion

import (
	"context"
	"testing"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inlineUI struct{ calls int }

func (u *inlineUI) ExecuteOnUI(_ context.Context, fn func() (any, error)) (any, error) {
	u.calls++
	return fn()
}

type staticBuffer []string

func (b staticBuffer) Lines() []string { return b }

func TestNewItemValidatesHighlights(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		ranges  []Range
		wantErr bool
	}{
		{"no ranges", "hello", nil, false},
		{"full range", "hello", []Range{{0, 5}}, false},
		{"empty range at end", "hello", []Range{{5, 5}}, false},
		{"past end", "hello", []Range{{2, 6}}, true},
		{"negative start", "hello", []Range{{-1, 2}}, true},
		{"inverted", "hello", []Range{{3, 2}}, true},
		{"multibyte ok", "héllo", []Range{{1, 3}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := NewItem(tt.text, WithHighlights(tt.ranges...))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRange))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.text, item.Text())
		})
	}
}

func TestItemAccessorsDoNotExposeState(t *testing.T) {
	item := MustItem("foo", WithIcon("ƒ"), WithHighlights(Range{0, 1}))

	icon, ok := item.Icon()
	assert.True(t, ok)
	assert.Equal(t, "ƒ", icon)

	hl := item.Highlights()
	hl[0] = Range{2, 3}
	assert.Equal(t, []Range{{0, 1}}, item.Highlights())

	_, ok = MustItem("bar").Icon()
	assert.False(t, ok)
}

func TestMustItemPanicsOnInvalidRange(t *testing.T) {
	assert.Panics(t, func() {
		MustItem("ab", WithHighlights(Range{0, 9}))
	})
}

func TestPositionBeforeCursor(t *testing.T) {
	tests := []struct {
		pos  Position
		want string
	}{
		{Position{Line: "foo.bar", Col: 4}, "foo."},
		{Position{Line: "foo", Col: 10}, "foo"},
		{Position{Line: "foo", Col: -2}, ""},
		{Position{Line: "", Col: 0}, ""},
		{Position{Line: "naïve", Col: 3}, "na"},
		{Position{Line: "naïve", Col: 4}, "naï"},
		{Position{Line: "日本", Col: 4}, "日"},
	}
	for _, tt := range tests {
		got := tt.pos.BeforeCursor()
		assert.Equal(t, tt.want, got)
		assert.True(t, utf8.ValidString(got), "col %d of %q", tt.pos.Col, tt.pos.Line)
	}
}

func TestDocumentReadLinesGoesThroughUI(t *testing.T) {
	ui := &inlineUI{}
	doc := NewDocument("/tmp/a.go", 3, staticBuffer{"package a", "func f()"}, ui)

	lines, err := doc.ReadLines(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"package a", "func f()"}, lines)
	assert.Equal(t, 1, ui.calls)
}

func TestDocumentWithoutUI(t *testing.T) {
	doc := NewDocument("", 1, staticBuffer{"x"}, nil)
	_, err := doc.ReadLines(context.Background())
	assert.True(t, errors.Is(err, ErrNoUIThread))

	doc = NewDocument("", 1, nil, &inlineUI{})
	_, err = doc.ReadLines(context.Background())
	assert.True(t, errors.Is(err, ErrNoBuffer))
}

func TestDocumentIdentity(t *testing.T) {
	a := NewDocument("/a", 1, nil, nil)
	b := NewDocument("/a", 1, nil, nil)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "/a#1", a.String())
	assert.Equal(t, "#7", NewDocument("", 7, nil, nil).String())
}

func TestListHelpers(t *testing.T) {
	l := ListOf("a", "b")
	assert.Equal(t, []string{"a", "b"}, l.Texts())

	scored := []Scored{{Item: l[1], Score: 3}, {Item: l[0], Score: 1}}
	assert.Equal(t, []string{"b", "a"}, ScoredTexts(scored))
}
