package scload

import "github.com/nasa/SC-sub000/scnum"

type timeEntry struct {
	timeTag uint32
	cmdNum  scnum.CmdNum
}

// TimeIndexBuilder builds an ATS time_index: command numbers sorted by
// ascending absolute time tag, ties broken by order of insertion (which
// the loader always performs in ascending command-number order, giving
// command-number order among equal times).
type TimeIndexBuilder struct {
	r *ring[timeEntry]
}

// NewTimeIndexBuilder constructs an empty builder.
func NewTimeIndexBuilder() *TimeIndexBuilder {
	return &TimeIndexBuilder{r: newRing[timeEntry](8)}
}

// Insert adds (cn, timeTag), maintaining sort order: a binary search
// finds the position just after the last entry whose time is
// less-than-or-equal, so the new entry lands after every equal time.
func (b *TimeIndexBuilder) Insert(cn scnum.CmdNum, timeTag uint32) {
	e := timeEntry{timeTag: timeTag, cmdNum: cn}
	idx := b.r.upperBound(func(existing timeEntry) bool {
		return existing.timeTag <= timeTag
	})
	b.r.Insert(idx, e)
}

// Len returns the number of entries inserted so far.
func (b *TimeIndexBuilder) Len() int { return b.r.Len() }

// CmdNums returns the command numbers in time_index order.
func (b *TimeIndexBuilder) CmdNums() []scnum.CmdNum {
	s := b.r.Slice()
	out := make([]scnum.CmdNum, len(s))
	for i, e := range s {
		out[i] = e.cmdNum
	}
	return out
}

// TimeTagAt returns the time tag of the i'th entry (0-based), used by the
// Jump operation to find entries due at or before a target.
func (b *TimeIndexBuilder) TimeTagAt(i int) uint32 {
	return b.r.Get(i).timeTag
}

// Reset empties the builder for reuse.
func (b *TimeIndexBuilder) Reset() { b.r.Reset() }
