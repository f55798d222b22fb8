// Package fuzzy scores and ranks completion candidates against the prefix
// typed before the cursor.
//
// # Matching
//
// A candidate matches when every rune of the prefix appears in its text in
// order (subsequence match). Matching is case-insensitive by default; with
// SmartCase enabled, a prefix containing an upper-case rune switches to
// case-sensitive matching. Matched positions are reported as byte ranges of
// the candidate text, ready for highlighting.
//
// # Scoring Algorithm
//
// The scorer favors matches based on several factors:
//   - Consecutive character matches (bonus)
//   - Word boundary matches (start of word, camelCase transitions)
//   - Prefix matches (query at start of text)
//   - Shorter text (more specific matches)
//   - Minimal gaps between matched characters
//
// # Sorting
//
// A Sorter ranks a merged candidate set. Small sets are scored inline. Sets
// above the parallel threshold are split into fixed-size chunks scored on a
// bounded pool of worker goroutines, separate from the goroutines running
// completion sources. Results are sorted by descending score; ties keep the
// original candidate order, so sorting the same input twice is deterministic.
//
// # Usage
//
//	sorter := fuzzy.NewSorter(fuzzy.NewMatcher(fuzzy.DefaultOptions()), fuzzy.DefaultSortOptions())
//	prefix := fuzzy.Prefix(req.Position, fuzzy.DefaultBoundaryChars)
//	ranked, err := sorter.Sort(ctx, prefix, candidates)
//
// # Thread Safety
//
// Matcher and Sorter are immutable after construction and safe for
// concurrent use.
package fuzzy
