package sctable

import "github.com/nasa/SC-sub000/scnum"

// Summary is the per-ATS size/use summary published in housekeeping.
type Summary struct {
	SizeWords int
	NumberCommands int
	UseCounter uint32
}

// AtsAux is the per-ATS auxiliary state the engine owns exclusively: the
// command-number to offset map, the per-command status vector, the
// time-sorted dispatch list, and the summary.
type AtsAux struct {
	MaxCmds int
	CmdOffset []scnum.EntryOffset
	CmdStatus []CmdStatus
	TimeIndex []scnum.CmdNum
	Summary Summary
}

// NewAtsAux allocates an AtsAux sized for maxCmds command numbers, with
// every entry EMPTY/NONE, satisfying invariant I1 trivially.
func NewAtsAux(maxCmds int) *AtsAux {
	a := &AtsAux{
		MaxCmds: maxCmds,
		CmdOffset: make([]scnum.EntryOffset, maxCmds),
		CmdStatus: make([]CmdStatus, maxCmds),
	}
	a.Reset()
	return a
}

// Reset clears the auxiliary state back to empty, preserving UseCounter
// semantics is the caller's responsibility (loaders bump it explicitly).
func (a *AtsAux) Reset() {
	for i := range a.CmdOffset {
		a.CmdOffset[i] = scnum.NoneOffset
		a.CmdStatus[i] = Empty
	}
	a.TimeIndex = a.TimeIndex[:0]
	a.Summary = Summary{}
}

// Offset returns the word offset recorded for cn, or NoneOffset.
func (a *AtsAux) Offset(cn scnum.CmdNum) scnum.EntryOffset {
	if !cn.Valid(a.MaxCmds) {
		return scnum.NoneOffset
	}
	return a.CmdOffset[cn.Index()]
}

// Status returns the recorded status for cn.
func (a *AtsAux) Status(cn scnum.CmdNum) CmdStatus {
	if !cn.Valid(a.MaxCmds) {
		return Empty
	}
	return a.CmdStatus[cn.Index()]
}

// SetStatus records a new status for cn.
func (a *AtsAux) SetStatus(cn scnum.CmdNum, s CmdStatus) {
	if cn.Valid(a.MaxCmds) {
		a.CmdStatus[cn.Index()] = s
	}
}

// CheckInvariant1 reports whether I1 holds: LOADED iff offset present.
// Exported for use by property tests.
func (a *AtsAux) CheckInvariant1() bool {
	for i := 0; i < a.MaxCmds; i++ {
		loaded := a.CmdStatus[i] == Loaded
		present := a.CmdOffset[i] != scnum.NoneOffset
		if loaded != present {
			return false
		}
	}
	return true
}
