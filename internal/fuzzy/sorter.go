package fuzzy

import (
	"context"
	"runtime"
	"sort"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/stormcomplete/internal/completion"
	"github.com/dshills/stormcomplete/internal/guard"
)

// cancelCheckInterval is how many candidates are scored between context checks.
const cancelCheckInterval = 256

// SortOptions configures how candidate sets are ranked.
type SortOptions struct {
	// ParallelThreshold is the candidate count above which scoring is
	// split across workers.
	ParallelThreshold int

	// ChunkSize is the number of candidates per worker chunk.
	ChunkSize int

	// Workers bounds the number of concurrently scored chunks.
	// 0 uses GOMAXPROCS.
	Workers int

	// MaxItems truncates the ranked result. 0 keeps everything.
	MaxItems int
}

// DefaultSortOptions returns sensible defaults.
func DefaultSortOptions() SortOptions {
	return SortOptions{
		ParallelThreshold: 2048,
		ChunkSize:         512,
	}
}

// Sorter ranks merged candidate sets.
type Sorter struct {
	matcher *Matcher
	opts    SortOptions
}

// NewSorter creates a sorter. Panics if matcher is nil.
func NewSorter(matcher *Matcher, opts SortOptions) *Sorter {
	if matcher == nil {
		panic("fuzzy: NewSorter called with nil matcher")
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultSortOptions().ChunkSize
	}
	if opts.ParallelThreshold <= 0 {
		opts.ParallelThreshold = DefaultSortOptions().ParallelThreshold
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Sorter{
		matcher: matcher,
		opts:    opts,
	}
}

// Options returns the effective sort options.
func (s *Sorter) Options() SortOptions {
	return s.opts
}

// ranked carries the original index for the stable tie-break.
type ranked struct {
	completion.Scored
	index int
}

// Sort scores candidates against prefix and returns matches ordered by
// descending score, ties in candidate order. The result is never nil, so an
// empty set can still be delivered to clear a stale menu.
//
// A panic in a worker is returned as a *guard.PanicError.
func (s *Sorter) Sort(ctx context.Context, prefix string, candidates []*completion.Item) ([]completion.Scored, error) {
	if len(candidates) == 0 {
		return []completion.Scored{}, nil
	}

	q := s.matcher.compile(prefix)

	var all []ranked
	var err error
	if len(candidates) <= s.opts.ParallelThreshold {
		all, err = s.scoreChunk(ctx, q, candidates, 0)
	} else {
		all, err = s.scoreParallel(ctx, q, candidates)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].index < all[j].index
	})

	if s.opts.MaxItems > 0 && len(all) > s.opts.MaxItems {
		all = all[:s.opts.MaxItems]
	}

	out := make([]completion.Scored, len(all))
	for i, r := range all {
		out[i] = r.Scored
	}
	return out, nil
}

// scoreParallel partitions candidates into chunks scored on the worker pool.
func (s *Sorter) scoreParallel(ctx context.Context, q query, candidates []*completion.Item) ([]ranked, error) {
	chunkSize := s.opts.ChunkSize
	numChunks := (len(candidates) + chunkSize - 1) / chunkSize
	parts := make([][]ranked, numChunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for c := 0; c < numChunks; c++ {
		start := c * chunkSize
		end := start + chunkSize
		if end > len(candidates) {
			end = len(candidates)
		}
		g.Go(func() error {
			return guard.Run(func() error {
				part, err := s.scoreChunk(gctx, q, candidates[start:end], start)
				parts[c] = part
				return err
			})
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "scoring candidates")
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	all := make([]ranked, 0, total)
	for _, p := range parts {
		all = append(all, p...)
	}
	return all, nil
}

// scoreChunk scores a contiguous slice of candidates starting at offset.
func (s *Sorter) scoreChunk(ctx context.Context, q query, chunk []*completion.Item, offset int) ([]ranked, error) {
	results := make([]ranked, 0, len(chunk))
	for i, item := range chunk {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		score, matches, ok := s.matcher.matchItem(q, item.Text())
		if !ok {
			continue
		}
		results = append(results, ranked{
			Scored: completion.Scored{
				Item:    item,
				Score:   score,
				Matches: matches,
			},
			index: offset + i,
		})
	}
	return results, nil
}
