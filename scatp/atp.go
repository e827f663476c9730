// Package scatp implements the ATS processor: a
// single-slot state machine that walks the time-sorted dispatch list of
// whichever ATS is currently selected, publishing due command packets
// one at a time, and the two-buffer switch protocol between the engine's
// two ATS slots.
package scatp

import (
	"fmt"

	"github.com/nasa/SC-sub000/scbus"
	"github.com/nasa/SC-sub000/scload"
	"github.com/nasa/SC-sub000/scnum"
	"github.com/nasa/SC-sub000/sctable"
	"github.com/nasa/SC-sub000/sctime"
)

// State is the ATP state machine's state.
type State int

const (
	Idle State = iota
	Executing
	starting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Executing:
		return "EXECUTING"
	case starting:
		return "STARTING"
	default:
		return "UNKNOWN"
	}
}

// Infinity is the next-command-time sentinel meaning "no work pending".
const Infinity = ^sctime.Seconds(0)

// ErrorKind enumerates the ATP-surfaced error kinds that pertain to the
// ATS processor.
type ErrorKind int

const (
	errOK ErrorKind = iota
	InvalidAtsID
	AtsNotLoaded
	AtpNotIdle
	ChecksumFailed
	CmdNumberMismatch
	CmdStatusInvalid
	PublishFailed
	AllCmdsSkipped
	JumpPastEnd
	SwitchUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidAtsID:
		return "INVALID_ATS_ID"
	case AtsNotLoaded:
		return "ATS_NOT_LOADED"
	case AtpNotIdle:
		return "ATP_NOT_IDLE"
	case ChecksumFailed:
		return "ATS_CHECKSUM_FAILED"
	case CmdNumberMismatch:
		return "ATS_CMD_NUMBER_MISMATCH"
	case CmdStatusInvalid:
		return "ATS_CMD_STATUS_INVALID"
	case PublishFailed:
		return "ATS_PUBLISH_FAILED"
	case AllCmdsSkipped:
		return "ALL_CMDS_SKIPPED"
	case JumpPastEnd:
		return "JUMP_PAST_END"
	case SwitchUnavailable:
		return "SWITCH_UNAVAILABLE"
	default:
		return "OK"
	}
}

// Error is the error type returned by the rejecting ATP operations
// (Start, Switch, Jump). Dispatch-time faults never reject the caller;
// they are reported only through the event sink.
type Error struct {
	Kind ErrorKind
	ID scnum.AtsID
}

func (e *Error) Error() string {
	return fmt.Sprintf("scatp: %s (ats %d)", e.Kind, e.ID)
}

// Slots provides the processor access to both ATS buffers by id.
type Slots interface {
	Ats(id scnum.AtsID) *scload.Ats
	Words(id scnum.AtsID) []uint32
}

// ChecksumSource supplies the pre-computed checksum for a stored entry,
// when the deployment wants the packet re-verified before dispatch. A
// deployment that always trusts the table-service-validated buffer need
// not provide one.
type ChecksumSource interface {
	Checksum(id scnum.AtsID, cn scnum.CmdNum) (sum uint32, ok bool)
}

// Processor is the ATP control block plus its dependencies.
type Processor struct {
	slots Slots
	codec scbus.PacketCodec
	pub scbus.Publisher
	sink scbus.EventSink
	continueOnFailure bool
	checksums ChecksumSource

	state State
	currentID scnum.AtsID
	pos int
	switchPending bool
	nextTime sctime.Seconds
	lastErrSeq scnum.AtsID
}

// New constructs an idle Processor.
func New(slots Slots, codec scbus.PacketCodec, pub scbus.Publisher, sink scbus.EventSink) *Processor {
	return &Processor{
		slots: slots,
		codec: codec,
		pub: pub,
		sink: sink,
		state: Idle,
		currentID: scnum.NullAtsID,
		nextTime: Infinity,
	}
}

// SetContinueOnFailure sets the "continue on failure" flag, scoped to
// checksum failures only, never publish failures.
func (p *Processor) SetContinueOnFailure(v bool) { p.continueOnFailure = v }

// SetChecksumSource installs an optional checksum verifier; pass nil to
// disable verification (the default).
func (p *Processor) SetChecksumSource(src ChecksumSource) { p.checksums = src }

// State returns the current ATP state.
func (p *Processor) State() State { return p.state }

// CurrentAtsID returns the id of the ATS currently selected, or
// scnum.NullAtsID when idle.
func (p *Processor) CurrentAtsID() scnum.AtsID { return p.currentID }

// LastErrSeq returns the ATS id recorded against the last dispatch-time
// publish failure.
func (p *Processor) LastErrSeq() scnum.AtsID { return p.lastErrSeq }

// CurrentCmdNum returns the command number at the current time_index
// position, or scnum.NullCmdNum when idle.
func (p *Processor) CurrentCmdNum() scnum.CmdNum {
	if p.state != Executing {
		return scnum.NullCmdNum
	}
	return p.currentCmdNum()
}

// NextTime returns the absolute time of ATP's next due dispatch and
// whether any is pending; used by sctick to choose between ATP and RTP.
func (p *Processor) NextTime() (sctime.Seconds, bool) {
	if p.state != Executing {
		return 0, false
	}
	return p.nextTime, true
}

func (p *Processor) other(id scnum.AtsID) scnum.AtsID {
	if id == 1 {
		return 2
	}
	return 1
}

func (p *Processor) event(kind ErrorKind, fields ...scbus.Field) {
	p.sink.Event(kind.String(), fields...)
}

// Start begins execution of ats id.
func (p *Processor) Start(id scnum.AtsID, now sctime.Seconds) error {
	if p.state != Idle {
		p.event(AtpNotIdle, scbus.F("ats_id", id))
		return &Error{Kind: AtpNotIdle, ID: id}
	}
	if !id.Valid(2) {
		p.event(InvalidAtsID, scbus.F("ats_id", id))
		return &Error{Kind: InvalidAtsID, ID: id}
	}
	ats := p.slots.Ats(id)
	if ats == nil || ats.Aux.Summary.NumberCommands == 0 {
		p.event(AtsNotLoaded, scbus.F("ats_id", id))
		return &Error{Kind: AtsNotLoaded, ID: id}
	}

	p.currentID = id
	p.pos = 0
	p.state = Executing
	p.recomputeNextTime(now)
	return nil
}

// Stop halts ATP unconditionally, returning it to IDLE.
func (p *Processor) Stop() {
	p.state = Idle
	p.currentID = scnum.NullAtsID
	p.switchPending = false
	p.nextTime = Infinity
}

// canSwitch reports whether a switch (ground or inline) is currently
// legal: EXECUTING, and the other ATS has at least one loaded command.
func (p *Processor) canSwitch() bool {
	if p.state != Executing {
		return false
	}
	otherAts := p.slots.Ats(p.other(p.currentID))
	return otherAts != nil && otherAts.Aux.Summary.NumberCommands > 0
}

// RequestSwitch sets the ground-switch pending flag, serviced at the top
// of the next tick by ServicePendingSwitch.
func (p *Processor) RequestSwitch() error {
	if !p.canSwitch() {
		p.event(SwitchUnavailable, scbus.F("ats_id", p.currentID))
		return &Error{Kind: SwitchUnavailable, ID: p.currentID}
	}
	p.switchPending = true
	return nil
}

// ServicePendingSwitch performs a ground switch if one is pending. Called
// by the tick loop strictly before any dispatch in the tick it becomes
// due.
func (p *Processor) ServicePendingSwitch(now sctime.Seconds) {
	if !p.switchPending {
		return
	}
	p.switchPending = false
	p.swap(now)
}

// swap performs the two-buffer switch's common body: select the other
// ATS, skip its past-due entries, and resume in time order.
func (p *Processor) swap(now sctime.Seconds) {
	newID := p.other(p.currentID)
	p.currentID = newID
	p.state = starting

	ats := p.slots.Ats(newID)
	idx := ats.Aux.TimeIndex
	pos := 0
	for pos < len(idx) && ats.TimeTagAt(pos) <= uint32(now) {
		// Only LOADED entries are skipped; an entry already
		// EXECUTED/SKIPPED from a prior run of this ATS keeps its
		// history.
		if ats.Aux.Status(idx[pos]) == sctable.Loaded {
			ats.Aux.SetStatus(idx[pos], sctable.Skipped)
		}
		pos++
	}
	p.pos = pos

	if pos >= len(idx) {
		p.event(AllCmdsSkipped, scbus.F("ats_id", newID))
		p.Stop()
		return
	}

	p.state = Executing
	p.recomputeNextTime(now)
}

// recomputeNextTime sets p.nextTime from the entry at p.pos, or Infinity
// past the end (triggering completion the next time it's observed).
func (p *Processor) recomputeNextTime(now sctime.Seconds) {
	ats := p.slots.Ats(p.currentID)
	if ats == nil || p.pos >= len(ats.Aux.TimeIndex) {
		p.nextTime = Infinity
		return
	}
	p.nextTime = sctime.Seconds(ats.TimeTagAt(p.pos))
}

// currentCmdNum returns the command number at the current time_index
// position.
func (p *Processor) currentCmdNum() scnum.CmdNum {
	ats := p.slots.Ats(p.currentID)
	return ats.Aux.TimeIndex[p.pos]
}

// Dispatch performs one tick-triggered dispatch step. Callers must only
// invoke this when State == Executing and NextTime is due; Dispatch does
// not itself check the clock. published reports whether a bus publish
// (including an inline switch's redirection) actually occurred.
func (p *Processor) Dispatch(now sctime.Seconds) (published bool) {
	ats := p.slots.Ats(p.currentID)
	cn := p.currentCmdNum()
	off := ats.Aux.Offset(cn)

	if ats.Aux.Status(cn) != sctable.Loaded {
		// A prior Jump or switch may already have resolved this entry;
		// this is not fatal, just skip it without aborting.
		p.event(CmdStatusInvalid, scbus.F("ats_id", p.currentID), scbus.F("cmd_num", cn))
		p.advance(now)
		return false
	}

	words := p.slots.Words(p.currentID)
	hdr, ok := sctable.DecodeAtsHeader(words, int(off.Uint32()))
	if !ok || hdr.CmdNum != cn {
		p.event(CmdNumberMismatch, scbus.F("ats_id", p.currentID), scbus.F("cmd_num", cn))
		ats.Aux.SetStatus(cn, sctable.Skipped)
		p.abort(now)
		return false
	}

	headerWords := sctable.AtsHeaderWords()
	remaining := len(words) - (int(off.Uint32()) + headerWords)
	probe := sctable.PacketBytes(words, int(off.Uint32()), headerWords, remaining)
	if n, ok := p.codec.PacketLen(probe); ok && n <= len(probe) {
		probe = probe[:n]
	}

	if p.checksums != nil {
		if want, ok := p.checksums.Checksum(p.currentID, cn); ok && want != p.codec.Checksum(probe) {
			ats.Aux.SetStatus(cn, sctable.FailedChecksum)
			p.event(ChecksumFailed, scbus.F("ats_id", p.currentID), scbus.F("cmd_num", cn))
			if !p.continueOnFailure {
				p.abort(now)
				return false
			}
			p.advance(now)
			return false
		}
	}

	if target, ok := p.codec.IsSwitchATS(probe); ok {
		if target == p.other(p.currentID) && p.canSwitch() {
			ats.Aux.SetStatus(cn, sctable.Executed)
			p.swap(now)
			return true
		}
		ats.Aux.SetStatus(cn, sctable.FailedDistrib)
		p.event(PublishFailed, scbus.F("ats_id", p.currentID), scbus.F("cmd_num", cn))
		p.lastErrSeq = p.currentID
		p.abort(now)
		return false
	}

	if err := p.pub.Publish(scbus.Packet(probe)); err != nil {
		ats.Aux.SetStatus(cn, sctable.FailedDistrib)
		p.event(PublishFailed, scbus.F("ats_id", p.currentID), scbus.F("cmd_num", cn), scbus.F("err", err))
		p.lastErrSeq = p.currentID
		p.abort(now)
		return false
	}

	ats.Aux.SetStatus(cn, sctable.Executed)
	p.advance(now)
	return true
}

// advance moves the time_index position forward and recomputes the next
// due time, triggering completion if the sequence is exhausted.
func (p *Processor) advance(now sctime.Seconds) {
	p.pos++
	p.recomputeNextTime(now)
	if p.nextTime == Infinity {
		p.sink.Event("ATS_COMPLETE", scbus.F("ats_id", p.currentID))
		p.Stop()
	}
}

// abort stops the ATS on an unrecoverable dispatch fault (mismatch,
// publish failure, or a checksum failure with continue-on-failure off).
func (p *Processor) abort(now sctime.Seconds) {
	p.Stop()
}

// Resync re-walks the currently EXECUTING ATS's time_index from the
// start, skipping LOADED entries whose time has already passed and
// resuming at the first future one, without switching ATS. Called by
// Append after merging into the currently-executing ATS, since the merge
// may have inserted or replaced entries anywhere in time.
func (p *Processor) Resync(now sctime.Seconds) {
	if p.state != Executing {
		return
	}
	ats := p.slots.Ats(p.currentID)
	idx := ats.Aux.TimeIndex
	pos := 0
	for pos < len(idx) && ats.TimeTagAt(pos) <= uint32(now) {
		if ats.Aux.Status(idx[pos]) == sctable.Loaded {
			ats.Aux.SetStatus(idx[pos], sctable.Skipped)
		}
		pos++
	}
	p.pos = pos

	if pos >= len(idx) {
		p.event(AllCmdsSkipped, scbus.F("ats_id", p.currentID))
		p.Stop()
		return
	}
	p.recomputeNextTime(now)
}

// Jump implements the jump operation: every loaded entry with
// time_tag <= t is marked SKIPPED; the time_index position advances to
// the first entry with time_tag > t, or the ATS stops with JUMP_PAST_END
// if none exists.
func (p *Processor) Jump(t sctime.Seconds, now sctime.Seconds) error {
	if p.state != Executing {
		p.event(AtpNotIdle, scbus.F("ats_id", p.currentID))
		return &Error{Kind: AtpNotIdle, ID: p.currentID}
	}
	ats := p.slots.Ats(p.currentID)
	idx := ats.Aux.TimeIndex
	pos := p.pos
	for pos < len(idx) && ats.TimeTagAt(pos) <= uint32(t) {
		if ats.Aux.Status(idx[pos]) == sctable.Loaded {
			ats.Aux.SetStatus(idx[pos], sctable.Skipped)
		}
		pos++
	}
	p.pos = pos

	if pos >= len(idx) {
		p.event(JumpPastEnd, scbus.F("ats_id", p.currentID))
		p.Stop()
		return &Error{Kind: JumpPastEnd, ID: p.currentID}
	}

	p.recomputeNextTime(now)
	return nil
}
