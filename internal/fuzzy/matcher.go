package fuzzy

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/stormcomplete/internal/completion"
)

// DefaultBoundaryChars are the characters that end a completion prefix.
const DefaultBoundaryChars = " \t()[]{}<>,.;:\"'`=+-*/\\|&!?#"

// Options configures the matcher behavior.
type Options struct {
	// CaseSensitive enables case-sensitive matching.
	CaseSensitive bool

	// SmartCase switches to case-sensitive matching when the prefix
	// contains an upper-case rune. Ignored when CaseSensitive is set.
	SmartCase bool

	// MinScore is the minimum score for a match to be kept.
	// Matches score at least 1, so 0 keeps every match.
	MinScore int

	// Scorer overrides the scoring algorithm. Nil uses DefaultWeights.
	Scorer Scorer
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{
		SmartCase: true,
	}
}

// Matcher performs subsequence fuzzy matching.
type Matcher struct {
	opts   Options
	scorer Scorer
}

// NewMatcher creates a new fuzzy matcher with the given options.
func NewMatcher(opts Options) *Matcher {
	scorer := opts.Scorer
	if scorer == nil {
		scorer = DefaultWeights()
	}
	return &Matcher{
		opts:   opts,
		scorer: scorer,
	}
}

// query is a prefix normalized once per sort.
type query struct {
	runes         []rune
	caseSensitive bool
}

func (m *Matcher) compile(prefix string) query {
	cs := m.opts.CaseSensitive
	if !cs && m.opts.SmartCase {
		cs = strings.IndexFunc(prefix, unicode.IsUpper) >= 0
	}
	if !cs {
		prefix = strings.ToLower(prefix)
	}
	return query{
		runes:         []rune(prefix),
		caseSensitive: cs,
	}
}

// Match scores text against prefix. ok is false when text does not match.
func (m *Matcher) Match(prefix, text string) (score int, matches []completion.Range, ok bool) {
	return m.matchItem(m.compile(prefix), text)
}

// matchItem scores a single candidate against a compiled query.
// Returns the score and the matched byte ranges of text.
func (m *Matcher) matchItem(q query, text string) (int, []completion.Range, bool) {
	if len(q.runes) == 0 {
		return 0, nil, true
	}
	if text == "" {
		return 0, nil, false
	}

	// Runes keep original case for boundary detection; offsets map rune
	// indices back to byte offsets, with a sentinel for the end of text.
	originalRunes := make([]rune, 0, len(text))
	offsets := make([]int, 0, len(text)+1)
	for b, r := range text {
		originalRunes = append(originalRunes, r)
		offsets = append(offsets, b)
	}
	offsets = append(offsets, len(text))

	textRunes := originalRunes
	if !q.caseSensitive {
		textRunes = make([]rune, len(originalRunes))
		for i, r := range originalRunes {
			textRunes[i] = unicode.ToLower(r)
		}
	}

	// Greedy left-to-right scan.
	matches := make([]int, 0, len(q.runes))
	queryIdx := 0
	for i := 0; i < len(textRunes) && queryIdx < len(q.runes); i++ {
		if textRunes[i] == q.runes[queryIdx] {
			matches = append(matches, i)
			queryIdx++
		}
	}
	if queryIdx != len(q.runes) {
		return 0, nil, false
	}

	score := m.scorer.Score(q.runes, originalRunes, textRunes, matches)
	if score <= m.opts.MinScore {
		return 0, nil, false
	}
	return score, byteRanges(matches, offsets), true
}

// byteRanges converts matched rune indices to merged byte ranges.
func byteRanges(matches []int, offsets []int) []completion.Range {
	var ranges []completion.Range
	for _, idx := range matches {
		start, end := offsets[idx], offsets[idx+1]
		if n := len(ranges); n > 0 && ranges[n-1].End == start {
			ranges[n-1].End = end
			continue
		}
		ranges = append(ranges, completion.Range{Start: start, End: end})
	}
	return ranges
}

// Prefix returns the text immediately before the cursor, back to the
// nearest boundary character.
func Prefix(pos completion.Position, boundaryChars string) string {
	before := pos.BeforeCursor()
	idx := strings.LastIndexAny(before, boundaryChars)
	if idx < 0 {
		return before
	}
	_, width := utf8.DecodeRuneInString(before[idx:])
	return before[idx+width:]
}
