// Package scload turns a validated ATS/Append word buffer into the
// per-ATS auxiliary state: the command-number to offset map, the
// per-command status vector, and the time-sorted time_index. Every
// function here assumes its input already passed scvalidate — the
// loader never re-checks what the validator already guaranteed.
package scload

import (
	"fmt"

	"github.com/nasa/SC-sub000/scnum"
	"github.com/nasa/SC-sub000/sctable"
	"github.com/nasa/SC-sub000/scvalidate"
)

// LoadErrorKind enumerates the loader's own failure kinds. These only
// arise from internal inconsistency (a buffer that claims to be
// validated but isn't), since the validator is the real gate.
type LoadErrorKind int

const (
	loadOK LoadErrorKind = iota
	// Corrupt indicates the aux table's MaxCmds doesn't match a
	// validated entry's command-number range.
	Corrupt
)

// LoadError is returned by LoadAts on internal inconsistency.
type LoadError struct {
	Kind LoadErrorKind
	Cmd scnum.CmdNum
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("scload: internal inconsistency at cmd %d", e.Cmd)
}

// Ats bundles the auxiliary state and the time_index builder for one ATS
// slot, the per-slot state the engine owns exclusively.
type Ats struct {
	Aux *sctable.AtsAux
	index *TimeIndexBuilder
}

// NewAts allocates an empty Ats sized for maxCmds command numbers.
func NewAts(maxCmds int) *Ats {
	return &Ats{
		Aux: sctable.NewAtsAux(maxCmds),
		index: NewTimeIndexBuilder(),
	}
}

// LoadAts implements the ATS loader: clears the slot's auxiliaries, then
// walks the already-validated entries, recording cmd_offset/cmd_status
// and incrementing number_of_commands, before building time_index.
// Loading the same validated result twice is idempotent, since Reset
// always starts from empty.
func (a *Ats) LoadAts(words []uint32, result scvalidate.AtsResult) error {
	useCounter := a.Aux.Summary.UseCounter
	a.Aux.Reset()
	a.index.Reset()

	for _, e := range result.Entries {
		if !e.CmdNum.Valid(a.Aux.MaxCmds) {
			a.Aux.Reset()
			a.index.Reset()
			return &LoadError{Kind: Corrupt, Cmd: e.CmdNum}
		}
		a.Aux.CmdOffset[e.CmdNum.Index()] = e.Offset
		a.Aux.CmdStatus[e.CmdNum.Index()] = sctable.Loaded
		a.Aux.Summary.NumberCommands++
	}

	// Insert in ascending command-number order so equal time tags keep
	// command-number order in time_index.
	for n := 0; n < a.Aux.MaxCmds; n++ {
		if a.Aux.CmdStatus[n] != sctable.Loaded {
			continue
		}
		hdr, ok := sctable.DecodeAtsHeader(words, int(a.Aux.CmdOffset[n].Uint32()))
		if !ok {
			continue
		}
		a.index.Insert(scnum.CmdNumFromUint16(uint16(n+1)), hdr.TimeTag)
	}

	a.Aux.Summary.SizeWords = result.WordsUsed
	a.Aux.Summary.UseCounter = useCounter + 1
	a.rebuildTimeIndex()
	return nil
}

// rebuildTimeIndex copies the builder's current order into Aux.TimeIndex,
// the form the rest of the engine (ATP) reads.
func (a *Ats) rebuildTimeIndex() {
	a.Aux.TimeIndex = a.index.CmdNums()
}

// TimeTagAt returns the absolute time tag of the time_index entry at
// position i, used by ATP dispatch and Jump.
func (a *Ats) TimeTagAt(i int) uint32 { return a.index.TimeTagAt(i) }

// AppendErrorKind enumerates Append's own precondition failures,
// APPEND_* kinds.
type AppendErrorKind int

const (
	AppendOK AppendErrorKind = iota
	AppendSourceEmpty
	AppendTargetEmpty
	AppendNoRoom
)

func (k AppendErrorKind) String() string {
	switch k {
	case AppendSourceEmpty:
		return "APPEND_SOURCE_EMPTY"
	case AppendTargetEmpty:
		return "APPEND_TARGET_EMPTY"
	case AppendNoRoom:
		return "APPEND_NO_ROOM"
	default:
		return "OK"
	}
}

// AppendError is returned by Append on a failed precondition.
type AppendError struct{ Kind AppendErrorKind }

func (e *AppendError) Error() string { return "scload: " + e.Kind.String() }

// Append merges a validated Append buffer into the tail of target's live
// ATS buffer. target holds the current word contents
// of the ATS (shared with the table service); the returned new word
// slice is target with source's words copied to its tail — callers
// write it back through the table service. atsBufferSize is the
// configured maximum so Append can check room.
//
// cmd_offset entries are rewritten to point at the new, appended copy
// for any command number source redefines; an entry previously EMPTY
// increments number_of_commands, one already LOADED/EXECUTED/SKIPPED is
// simply repointed (replaced). time_index is always rebuilt from
// scratch afterward.
func (a *Ats) Append(target []uint32, source []uint32, sourceResult scvalidate.AtsResult, atsBufferSize int) ([]uint32, error) {
	if len(sourceResult.Entries) == 0 {
		return nil, &AppendError{Kind: AppendSourceEmpty}
	}
	if a.Aux.Summary.NumberCommands == 0 {
		return nil, &AppendError{Kind: AppendTargetEmpty}
	}
	if len(target)+sourceResult.WordsUsed > atsBufferSize {
		return nil, &AppendError{Kind: AppendNoRoom}
	}

	tailOffset := len(target)
	merged := make([]uint32, len(target), len(target)+sourceResult.WordsUsed)
	copy(merged, target)
	merged = append(merged, source[:sourceResult.WordsUsed]...)

	a.index.Reset()

	for _, e := range sourceResult.Entries {
		idx := e.CmdNum.Index()
		if a.Aux.CmdStatus[idx] == sctable.Empty {
			a.Aux.Summary.NumberCommands++
		}
		a.Aux.CmdOffset[idx] = scnum.EntryOffsetFromUint32(uint32(tailOffset) + e.Offset.Uint32())
		a.Aux.CmdStatus[idx] = sctable.Loaded
	}

	for n := 0; n < a.Aux.MaxCmds; n++ {
		if a.Aux.CmdStatus[n] != sctable.Loaded && a.Aux.CmdStatus[n] != sctable.Executed {
			continue
		}
		off := a.Aux.CmdOffset[n]
		if off == scnum.NoneOffset {
			continue
		}
		hdr, ok := sctable.DecodeAtsHeader(merged, int(off.Uint32()))
		if !ok {
			continue
		}
		a.index.Insert(scnum.CmdNumFromUint16(uint16(n+1)), hdr.TimeTag)
	}
	a.rebuildTimeIndex()
	a.Aux.Summary.SizeWords = len(merged)

	return merged, nil
}
