// Package revision provides the logical clock that orders completion cycles.
//
// Every edit in the host advances the clock. A completion result is only
// meaningful while its revision is still the current one; anything tagged
// with an older revision is stale and must be discarded.
package revision

import (
	"strconv"
	"sync"
	"time"
)

// Revision identifies one edit-triggered completion cycle.
// Revisions are only compared for equality and ordering.
type Revision uint64

// Zero is the revision before any edit happened.
const Zero Revision = 0

// String implements fmt.Stringer.
func (r Revision) String() string {
	return "r" + strconv.FormatUint(uint64(r), 10)
}

// Newer reports whether r is strictly newer than other.
func (r Revision) Newer(other Revision) bool {
	return r > other
}

// Clock hands out strictly increasing revisions.
// It is safe for concurrent use.
type Clock struct {
	mu   sync.Mutex
	last Revision
}

// NewClock creates a clock whose first Advance returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Advance returns a revision strictly greater than every previous one.
func (c *Clock) Advance() Revision {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last++
	return c.last
}

// Current returns the last revision handed out.
func (c *Clock) Current() Revision {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// IsCurrent reports whether r equals the last revision handed out.
func (c *Clock) IsCurrent(r Revision) bool {
	return c.Current() == r
}

// Stage is a pipeline stage recorded in Timings.
type Stage int

// Pipeline stages in the order a request passes through them.
const (
	StageIssued Stage = iota
	StageSourceDone
	StageSorted
	StageUIUpdated

	numStages
)

// String implements fmt.Stringer.
func (s Stage) String() string {
	switch s {
	case StageIssued:
		return "issued"
	case StageSourceDone:
		return "source-done"
	case StageSorted:
		return "sorted"
	case StageUIUpdated:
		return "ui-updated"
	default:
		return "unknown"
	}
}

// Timings records one write-once timestamp per stage.
// It is used for diagnostics only and is copied by value into messages.
type Timings struct {
	at [numStages]time.Time
}

// Mark records t for stage unless the stage is already set.
// Returns false if the stage was already marked or is out of range.
func (t *Timings) Mark(stage Stage, at time.Time) bool {
	if stage < 0 || stage >= numStages {
		return false
	}
	if !t.at[stage].IsZero() {
		return false
	}
	t.at[stage] = at
	return true
}

// At returns the timestamp of stage and whether it was set.
func (t Timings) At(stage Stage) (time.Time, bool) {
	if stage < 0 || stage >= numStages {
		return time.Time{}, false
	}
	return t.at[stage], !t.at[stage].IsZero()
}

// Between returns the elapsed time from one stage to another.
// Returns 0 if either stage is unset.
func (t Timings) Between(from, to Stage) time.Duration {
	a, okA := t.At(from)
	b, okB := t.At(to)
	if !okA || !okB {
		return 0
	}
	return b.Sub(a)
}
