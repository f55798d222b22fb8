package core

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/stormcomplete/internal/completion"
	"github.com/dshills/stormcomplete/internal/revision"
	"github.com/dshills/stormcomplete/internal/source"
)

// run is the in-flight work for one revision.
//
// mu orders delivery against cancellation: Completions are only sent while
// holding mu with cancelled unset, so once stop returns no further
// Completions for the revision can be emitted.
type run struct {
	req     *completion.Request
	prefix  string
	bundles []*source.Bundle
	ctx     context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	cancelled bool
	results   map[int]completion.List
	replies   int
	seq       uint64
	delivered uint64
	timings   revision.Timings
}

func newRun(parent context.Context, req *completion.Request, bundles []*source.Bundle, prefix string) *run {
	ctx, cancel := context.WithCancel(parent)
	r := &run{
		req:     req,
		prefix:  prefix,
		bundles: bundles,
		ctx:     ctx,
		cancel:  cancel,
		results: make(map[int]completion.List, len(bundles)),
	}
	r.timings.Mark(revision.StageIssued, time.Now())
	return r
}

func (r *run) revision() revision.Revision {
	return r.req.Revision
}

// stop marks the run cancelled and aborts its source tasks.
func (r *run) stop() {
	r.mu.Lock()
	r.cancelled = true
	r.mu.Unlock()
	r.cancel()
}

// snapshot is every candidate known after one source reply.
type snapshot struct {
	items   []*completion.Item
	seq     uint64
	timings revision.Timings
}

// record stores a source reply and returns a snapshot of every known
// candidate in bundle order. The snapshot's timings carry StageSourceDone
// only if this reply was the last one. ok is false once the run is
// cancelled.
func (r *run) record(b *source.Bundle, list completion.List, failed bool) (snap snapshot, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled {
		return snapshot{}, false
	}
	if !failed {
		r.results[b.ID()] = list
	}
	r.replies++
	if r.replies == len(r.bundles) {
		r.timings.Mark(revision.StageSourceDone, time.Now())
	}
	r.seq++

	snap.seq = r.seq
	snap.timings = r.timings
	for _, bb := range r.bundles {
		snap.items = append(snap.items, r.results[bb.ID()]...)
	}
	return snap, true
}

// deliver calls send with snap's timings if snap is the newest snapshot
// scored so far. Older snapshots are discarded.
func (r *run) deliver(snap snapshot, send func(revision.Timings)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled || snap.seq <= r.delivered {
		return false
	}
	r.delivered = snap.seq
	timings := snap.timings
	timings.Mark(revision.StageSorted, time.Now())
	send(timings)
	return true
}
