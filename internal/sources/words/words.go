// Package words provides a completion source that offers the words of the
// document buffer.
package words

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/stormcomplete/internal/completion"
	"github.com/dshills/stormcomplete/internal/config"
)

// Name is the source name and config section.
const Name = "words"

// icon marks items produced by this source.
const icon = "w"

// checkEvery is how many lines are scanned between context checks.
const checkEvery = 256

// Config is the [sources.words] section.
type Config struct {
	// MinLength is the shortest word offered.
	MinLength int `toml:"min_length"`

	// MaxWords caps the number of distinct words returned (0 = unlimited).
	MaxWords int `toml:"max_words"`
}

// DefaultConfig returns the defaults for Config.
func DefaultConfig() Config {
	return Config{MinLength: 3}
}

// Validate implements source.Validator.
func (c *Config) Validate(path string) error {
	var errs config.BadConfigErrors
	if c.MinLength < 1 {
		errs.AddWithValue(config.JoinPath(path, "min_length"), "must be at least 1", c.MinLength)
	}
	if c.MaxWords < 0 {
		errs.AddWithValue(config.JoinPath(path, "max_words"), "must not be negative", c.MaxWords)
	}
	return errs.AsError()
}

// Source offers buffer words.
type Source struct{}

// New creates the words source.
func New() *Source {
	return &Source{}
}

// Name implements source.Source.
func (*Source) Name() string {
	return Name
}

// Enable serves every document with a buffer.
func (*Source) Enable(_ context.Context, _ *completion.Document, _ *Config) (bool, error) {
	return true, nil
}

// Complete reads the buffer on the UI thread and returns its distinct
// words in order of first appearance. The word under the cursor is left
// out.
func (*Source) Complete(ctx context.Context, req *completion.Request, cfg *Config) (completion.List, error) {
	lines, err := req.Document.ReadLines(ctx)
	if err != nil {
		return nil, err
	}

	skip := CurrentWord(req.Position)
	seen := make(map[string]struct{})
	var out completion.List
	for i, line := range lines {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for _, w := range Split(line, cfg.MinLength) {
			if w == skip {
				continue
			}
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			out = append(out, completion.MustItem(w, completion.WithIcon(icon)))
			if cfg.MaxWords > 0 && len(out) >= cfg.MaxWords {
				return out, nil
			}
		}
	}
	return out, nil
}

// ScriptAPI exposes sources.words.split(text [, min_length]) to Lua.
func (*Source) ScriptAPI() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"split": func(L *lua.LState) int {
			text := L.CheckString(1)
			minLen := L.OptInt(2, 1)
			tbl := L.NewTable()
			for _, w := range Split(text, minLen) {
				tbl.Append(lua.LString(w))
			}
			L.Push(tbl)
			return 1
		},
	}
}

// IsWordRune reports whether r can be part of a word.
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Split returns the words of text with at least minLen runes, in order.
// Words made only of digits are skipped.
func Split(text string, minLen int) []string {
	var words []string
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		w := text[start:end]
		start = -1
		if utf8.RuneCountInString(w) < minLen || isNumber(w) {
			return
		}
		words = append(words, w)
	}
	for i, r := range text {
		if IsWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return words
}

// CurrentWord returns the word fragment ending at the cursor.
func CurrentWord(pos completion.Position) string {
	before := pos.BeforeCursor()
	idx := strings.LastIndexFunc(before, func(r rune) bool { return !IsWordRune(r) })
	if idx < 0 {
		return before
	}
	_, width := utf8.DecodeRuneInString(before[idx:])
	return before[idx+width:]
}

func isNumber(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
