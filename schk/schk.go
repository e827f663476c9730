// Package schk defines the housekeeping snapshot: a
// read-only copy of engine state assembled for the external telemetry
// serializer. Nothing here mutates engine state; Snapshot is a plain
// value type the caller may hold onto after the call returns.
package schk

import (
	"github.com/nasa/SC-sub000/scatp"
	"github.com/nasa/SC-sub000/scnum"
	"github.com/nasa/SC-sub000/scrtp"
	"github.com/nasa/SC-sub000/sctable"
)

// AtsSummary mirrors sctable.Summary plus the command-status vector, for
// one ATS slot.
type AtsSummary struct {
	ID scnum.AtsID
	Size sctable.Summary
	Status []sctable.CmdStatus
}

// AtpSnapshot mirrors the ATP control block.
type AtpSnapshot struct {
	State scatp.State
	CurrentAtsID scnum.AtsID
	CurrentCmd scnum.CmdNum
	LastErrSeq scnum.AtsID
}

// RtsSlotSnapshot mirrors one RTS slot's Per-RTS info.
type RtsSlotSnapshot struct {
	ID scnum.RtsID
	Status scrtp.Status
	Disabled bool
}

// RtpSnapshot mirrors the RTP control block.
type RtpSnapshot struct {
	NumActive int
	Slots []RtsSlotSnapshot
}

// Snapshot is the full housekeeping telemetry image.
type Snapshot struct {
	Atp AtpSnapshot
	Rtp RtpSnapshot
	Ats []AtsSummary
	// CmdsThisSecond is the dispatch count for the tick most recently
	// completed, for diagnostic readback only.
	CmdsThisSecond int
	// ErrorCounters mirrors the per-kind error counts the housekeeping
	// packet carries; keyed by the Kind.String value.
	ErrorCounters map[string]uint32
}
