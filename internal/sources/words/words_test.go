package words

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/stormcomplete/internal/completion"
	"github.com/dshills/stormcomplete/internal/config"
	"github.com/dshills/stormcomplete/internal/source"
)

type inlineUI struct{ calls int }

func (u *inlineUI) ExecuteOnUI(_ context.Context, fn func() (any, error)) (any, error) {
	u.calls++
	return fn()
}

type buffer []string

func (b buffer) Lines() []string { return b }

func request(lines []string, pos completion.Position) (*completion.Request, *inlineUI) {
	ui := &inlineUI{}
	return &completion.Request{
		Revision: 1,
		Document: completion.NewDocument("a.txt", 1, buffer(lines), ui),
		Position: pos,
	}, ui
}

func TestSplit(t *testing.T) {
	tests := []struct {
		text string
		min  int
		want []string
	}{
		{"foo bar_baz(qux)", 1, []string{"foo", "bar_baz", "qux"}},
		{"a bb ccc", 2, []string{"bb", "ccc"}},
		{"x = 1234 + y2", 1, []string{"x", "y2"}},
		{"héllo wörld", 5, []string{"héllo", "wörld"}},
		{"", 1, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Split(tt.text, tt.min), tt.text)
	}
}

func TestCurrentWord(t *testing.T) {
	assert.Equal(t, "ba", CurrentWord(completion.Position{Line: "foo.ba", Col: 6}))
	assert.Equal(t, "", CurrentWord(completion.Position{Line: "foo ", Col: 4}))
	assert.Equal(t, "fo", CurrentWord(completion.Position{Line: "foo", Col: 2}))
}

func TestCompleteCollectsDistinctWords(t *testing.T) {
	req, ui := request([]string{
		"alpha beta alpha",
		"gamma be",
		"beta delta",
	}, completion.Position{Row: 1, Col: 8, Line: "gamma be"})

	cfg := DefaultConfig()
	list, err := New().Complete(context.Background(), req, &cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma", "delta"}, list.Texts())
	assert.Equal(t, 1, ui.calls)

	icon, ok := list[0].Icon()
	assert.True(t, ok)
	assert.Equal(t, "w", icon)
}

func TestCompleteSkipsWordUnderCursor(t *testing.T) {
	req, _ := request([]string{"hello help"}, completion.Position{Line: "hel", Col: 3})
	cfg := Config{MinLength: 3}

	list, err := New().Complete(context.Background(), req, &cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "help"}, list.Texts())

	req, _ = request([]string{"hello help"}, completion.Position{Line: "help", Col: 4})
	list, err = New().Complete(context.Background(), req, &cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, list.Texts())
}

func TestCompleteMaxWords(t *testing.T) {
	req, _ := request([]string{"one two three four"}, completion.Position{})
	cfg := Config{MinLength: 1, MaxWords: 2}

	list, err := New().Complete(context.Background(), req, &cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, list.Texts())
}

func TestCompleteHonorsContext(t *testing.T) {
	req, _ := request([]string{"one"}, completion.Position{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultConfig()
	_, err := New().Complete(ctx, req, &cfg)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCompleteWithoutBuffer(t *testing.T) {
	req := &completion.Request{Document: completion.NewDocument("", 1, nil, &inlineUI{})}
	cfg := DefaultConfig()
	_, err := New().Complete(context.Background(), req, &cfg)
	assert.True(t, errors.Is(err, completion.ErrNoBuffer))
}

func TestConfigThroughRegistry(t *testing.T) {
	r := source.NewRegistry(source.APIVersion)
	require.NoError(t, source.Register[Config](r, New(), DefaultConfig))

	bundles, err := r.Build(map[string]map[string]any{
		Name: {"min_length": int64(4)},
	}, nil)
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, &Config{MinLength: 4}, bundles[0].Config())

	_, err = r.Build(map[string]map[string]any{
		Name: {"min_length": int64(0), "max_words": int64(-1)},
	}, nil)
	require.Error(t, err)
	var bad *config.BadConfigErrors
	require.True(t, errors.As(err, &bad))
	assert.Equal(t, []string{"sources.words.max_words", "sources.words.min_length"}, bad.Paths())
}

func TestScriptAPISplit(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	L.SetGlobal("words", L.SetFuncs(L.NewTable(), New().ScriptAPI()))

	require.NoError(t, L.DoString(`result = #words.split("a bb ccc", 2)`))
	assert.Equal(t, glua.LNumber(2), L.GetGlobal("result"))
}
