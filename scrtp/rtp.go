// Package scrtp implements the RTS processor: N parallel
// slots, each a small state machine {EMPTY, LOADED, EXECUTING} plus a
// separate disabled flag, with priority-by-index scheduling (the lowest-index due slot dispatches
// first) and group operations over inclusive id ranges.
package scrtp

import (
	"fmt"

	"github.com/nasa/SC-sub000/scbus"
	"github.com/nasa/SC-sub000/scnum"
	"github.com/nasa/SC-sub000/sctable"
	"github.com/nasa/SC-sub000/sctime"
)

// Status is a single RTS slot's state, Per-RTS info.
type Status int

const (
	Empty Status = iota
	Loaded
	Executing
)

func (s Status) String() string {
	switch s {
	case Loaded:
		return "LOADED"
	case Executing:
		return "EXECUTING"
	default:
		return "EMPTY"
	}
}

// Infinity is the next-command-time sentinel meaning "not scheduled".
const Infinity = ^sctime.Seconds(0)

// ErrorKind enumerates the RTP-surfaced error kinds.
type ErrorKind int

const (
	errOK ErrorKind = iota
	InvalidRtsID
	NotLoadedOrInUse
	RtsDisabled
	FirstCmdLengthInvalid
	ChecksumFailed
	PublishFailed
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidRtsID:
		return "INVALID_RTS_ID"
	case NotLoadedOrInUse:
		return "RTS_NOT_LOADED_OR_IN_USE"
	case RtsDisabled:
		return "RTS_DISABLED"
	case FirstCmdLengthInvalid:
		return "RTS_FIRST_CMD_LEN_INVALID"
	case ChecksumFailed:
		return "RTS_CHECKSUM_FAILED"
	case PublishFailed:
		return "RTS_PUBLISH_FAILED"
	default:
		return "OK"
	}
}

// Error is returned by the rejecting RTP operations.
type Error struct {
	Kind ErrorKind
	ID scnum.RtsID
}

func (e *Error) Error() string { return fmt.Sprintf("scrtp: %s (rts %d)", e.Kind, e.ID) }

// slot is one RTS's control state.
type slot struct {
	words []uint32
	status Status
	disabled bool
	useCounter uint32
	cmdCounter uint32
	errCounter uint32
	nextOffset int
	nextTime sctime.Seconds
}

// Processor is the RTP control block plus its N slots.
type Processor struct {
	codec scbus.PacketCodec
	pub scbus.Publisher
	sink scbus.EventSink

	slots []slot
	numActive int
	currentID scnum.RtsID
	autostartID scnum.RtsID

	checksums ChecksumSource
}

// ChecksumSource supplies a pre-computed checksum for a stored RTS
// entry, mirroring scatp.ChecksumSource.
type ChecksumSource interface {
	Checksum(id scnum.RtsID, offset scnum.EntryOffset) (sum uint32, ok bool)
}

// New constructs a Processor with n empty slots.
func New(n int, codec scbus.PacketCodec, pub scbus.Publisher, sink scbus.EventSink) *Processor {
	return &Processor{
		codec: codec,
		pub: pub,
		sink: sink,
		slots: make([]slot, n),
	}
}

// SetChecksumSource installs an optional checksum verifier.
func (p *Processor) SetChecksumSource(src ChecksumSource) { p.checksums = src }

func (p *Processor) event(kind ErrorKind, id scnum.RtsID) {
	p.sink.Event(kind.String(), scbus.F("rts_id", id))
}

func (p *Processor) idx(id scnum.RtsID) (int, bool) {
	if !id.Valid(len(p.slots)) {
		return 0, false
	}
	return id.Index(), true
}

// Load installs words as the buffer for slot id, transitioning it to
// LOADED. Loading always clears any prior EXECUTING state and its
// counters, "destroyed by reload" lifecycle.
func (p *Processor) Load(id scnum.RtsID, words []uint32) error {
	i, ok := p.idx(id)
	if !ok {
		p.event(InvalidRtsID, id)
		return &Error{Kind: InvalidRtsID, ID: id}
	}
	if p.slots[i].status == Executing {
		p.numActive--
	}
	p.slots[i] = slot{words: words, status: Loaded, disabled: p.slots[i].disabled, nextTime: Infinity}
	return nil
}

// Status returns the status of slot id.
func (p *Processor) Status(id scnum.RtsID) Status {
	i, ok := p.idx(id)
	if !ok {
		return Empty
	}
	return p.slots[i].status
}

// NumActive returns the count of slots in EXECUTING state.
func (p *Processor) NumActive() int { return p.numActive }

// Start begins execution of RTS id at now.
func (p *Processor) Start(id scnum.RtsID, now sctime.Seconds) error {
	i, ok := p.idx(id)
	if !ok {
		p.event(InvalidRtsID, id)
		return &Error{Kind: InvalidRtsID, ID: id}
	}
	s := &p.slots[i]
	if s.disabled {
		p.event(RtsDisabled, id)
		return &Error{Kind: RtsDisabled, ID: id}
	}
	if s.status != Loaded {
		p.event(NotLoadedOrInUse, id)
		return &Error{Kind: NotLoadedOrInUse, ID: id}
	}

	hdr, ok := sctable.DecodeRtsHeader(s.words, 0)
	if !ok {
		p.event(FirstCmdLengthInvalid, id)
		return &Error{Kind: FirstCmdLengthInvalid, ID: id}
	}
	headerWords := sctable.RtsHeaderWords()
	probe := sctable.PacketBytes(s.words, 0, headerWords, len(s.words)-headerWords)
	if _, ok := p.codec.PacketLen(probe); !ok {
		p.event(FirstCmdLengthInvalid, id)
		return &Error{Kind: FirstCmdLengthInvalid, ID: id}
	}

	s.status = Executing
	s.useCounter++
	s.cmdCounter = 0
	s.errCounter = 0
	s.nextOffset = 0
	s.nextTime = now + sctime.Seconds(hdr.RelativeTag)
	p.numActive++
	return nil
}

// stopLocked transitions slot i from EXECUTING to LOADED, saturating
// num_active at zero.
func (p *Processor) stopLocked(i int) {
	s := &p.slots[i]
	if s.status == Executing {
		if p.numActive > 0 {
			p.numActive--
		}
		s.status = Loaded
	}
	s.nextTime = Infinity
}

// Stop halts RTS id, preserving its diagnostic counters until next
// Start.
func (p *Processor) Stop(id scnum.RtsID) error {
	i, ok := p.idx(id)
	if !ok {
		p.event(InvalidRtsID, id)
		return &Error{Kind: InvalidRtsID, ID: id}
	}
	p.stopLocked(i)
	return nil
}

// Kill is an alias for Stop.
func (p *Processor) Kill(id scnum.RtsID) error { return p.Stop(id) }

// Enable clears the disabled flag on slot id.
func (p *Processor) Enable(id scnum.RtsID) error {
	i, ok := p.idx(id)
	if !ok {
		p.event(InvalidRtsID, id)
		return &Error{Kind: InvalidRtsID, ID: id}
	}
	p.slots[i].disabled = false
	return nil
}

// Disable sets the disabled flag on slot id. A disabled EXECUTING slot
// keeps running; disable only prevents future Start/autostart.
func (p *Processor) Disable(id scnum.RtsID) error {
	i, ok := p.idx(id)
	if !ok {
		p.event(InvalidRtsID, id)
		return &Error{Kind: InvalidRtsID, ID: id}
	}
	p.slots[i].disabled = true
	return nil
}

// GroupResult is the summary event payload for a group operation: a
// single summary event with the count of actually-affected slots.
type GroupResult struct {
	Modified int
	Rejected int
}

// groupRange validates [first,last] is within range and first <= last.
func (p *Processor) groupRange(first, last scnum.RtsID) error {
	if !first.Valid(len(p.slots)) || !last.Valid(len(p.slots)) || first > last {
		return &Error{Kind: InvalidRtsID, ID: first}
	}
	return nil
}

// StartGroup runs Start over [first,last]; per-slot rejections do not
// abort the batch.
func (p *Processor) StartGroup(first, last scnum.RtsID, now sctime.Seconds) (GroupResult, error) {
	if err := p.groupRange(first, last); err != nil {
		return GroupResult{}, err
	}
	var r GroupResult
	for id := first; id <= last; id++ {
		if err := p.Start(id, now); err != nil {
			r.Rejected++
			continue
		}
		r.Modified++
	}
	p.sink.Event("RTS_GRP_START", scbus.F("first", first), scbus.F("last", last), scbus.F("modified", r.Modified), scbus.F("rejected", r.Rejected))
	return r, nil
}

// StopGroup runs Stop over [first,last].
func (p *Processor) StopGroup(first, last scnum.RtsID) (GroupResult, error) {
	if err := p.groupRange(first, last); err != nil {
		return GroupResult{}, err
	}
	var r GroupResult
	for id := first; id <= last; id++ {
		wasExecuting := p.Status(id) == Executing
		if err := p.Stop(id); err != nil {
			r.Rejected++
			continue
		}
		if wasExecuting {
			r.Modified++
		}
	}
	p.sink.Event("RTS_GRP_STOP", scbus.F("first", first), scbus.F("last", last), scbus.F("modified", r.Modified), scbus.F("rejected", r.Rejected))
	return r, nil
}

// EnableGroup runs Enable over [first,last].
func (p *Processor) EnableGroup(first, last scnum.RtsID) (GroupResult, error) {
	if err := p.groupRange(first, last); err != nil {
		return GroupResult{}, err
	}
	var r GroupResult
	for id := first; id <= last; id++ {
		wasDisabled := p.slots[id.Index()].disabled
		if err := p.Enable(id); err != nil {
			r.Rejected++
			continue
		}
		if wasDisabled {
			r.Modified++
		}
	}
	p.sink.Event("RTS_GRP_ENABLE", scbus.F("first", first), scbus.F("last", last), scbus.F("modified", r.Modified), scbus.F("rejected", r.Rejected))
	return r, nil
}

// DisableGroup runs Disable over [first,last].
func (p *Processor) DisableGroup(first, last scnum.RtsID) (GroupResult, error) {
	if err := p.groupRange(first, last); err != nil {
		return GroupResult{}, err
	}
	var r GroupResult
	for id := first; id <= last; id++ {
		wasDisabled := p.slots[id.Index()].disabled
		if err := p.Disable(id); err != nil {
			r.Rejected++
			continue
		}
		if !wasDisabled {
			r.Modified++
		}
	}
	p.sink.Event("RTS_GRP_DISABLE", scbus.F("first", first), scbus.F("last", last), scbus.F("modified", r.Modified), scbus.F("rejected", r.Rejected))
	return r, nil
}

// SetAutostart records the single autostart RTS id, selected by reset
// type at init. Pass scnum.NullRtsID for none.
func (p *Processor) SetAutostart(id scnum.RtsID) { p.autostartID = id }

// Autostart fires the recorded autostart RTS exactly once, on the first
// housekeeping request after init.
func (p *Processor) Autostart(now sctime.Seconds) {
	id := p.autostartID
	if id == scnum.NullRtsID {
		return
	}
	p.autostartID = scnum.NullRtsID
	i, ok := p.idx(id)
	if !ok || p.slots[i].status != Loaded {
		return
	}
	p.slots[i].disabled = false
	_ = p.Start(id, now)
}

// NextDue returns the lowest-index slot whose status is EXECUTING and
// whose next_command_time has arrived, and its due time; used by
// sctick to decide whether RTP has work and to compare against ATP.
func (p *Processor) NextDue(now sctime.Seconds) (id scnum.RtsID, due bool) {
	for i := range p.slots {
		s := &p.slots[i]
		if s.status == Executing && s.nextTime <= now {
			return scnum.RtsIDFromUint16(uint16(i + 1)), true
		}
	}
	return 0, false
}

// NextTime returns the minimum next_command_time across EXECUTING
// slots, and whether any slot is scheduled at all.
func (p *Processor) NextTime() (sctime.Seconds, bool) {
	best := Infinity
	found := false
	for i := range p.slots {
		if p.slots[i].status != Executing {
			continue
		}
		if p.slots[i].nextTime < best {
			best = p.slots[i].nextTime
			found = true
		}
	}
	return best, found
}

// Dispatch performs one tick-triggered dispatch step for the given
// already-selected slot.
func (p *Processor) Dispatch(id scnum.RtsID, now sctime.Seconds) (published bool) {
	i, ok := p.idx(id)
	if !ok {
		return false
	}
	s := &p.slots[i]
	headerWords := sctable.RtsHeaderWords()
	remaining := len(s.words) - s.nextOffset - headerWords
	probe := sctable.PacketBytes(s.words, s.nextOffset, headerWords, remaining)
	if n, ok := p.codec.PacketLen(probe); ok && n <= len(probe) {
		probe = probe[:n]
	}

	if p.checksums != nil {
		if want, ok := p.checksums.Checksum(id, scnum.EntryOffsetFromUint32(uint32(s.nextOffset))); ok && want != p.codec.Checksum(probe) {
			s.errCounter++
			p.event(ChecksumFailed, id)
			p.stopLocked(i)
			return false
		}
	}

	if err := p.pub.Publish(scbus.Packet(probe)); err != nil {
		s.errCounter++
		p.event(PublishFailed, id)
		p.stopLocked(i)
		return false
	}
	s.cmdCounter++

	plen, _ := p.codec.PacketLen(probe)
	packetWords := sctable.WordsForBytes(plen)
	nextOffset := s.nextOffset + headerWords + packetWords

	// A zero relative-time tag past the first entry is the RTS
	// terminator; running off the buffer end is equivalent.
	nextHdr, ok := sctable.DecodeRtsHeader(s.words, nextOffset)
	if !ok || nextHdr.RelativeTag == 0 {
		p.stopLocked(i)
		return true
	}

	s.nextOffset = nextOffset
	s.nextTime = now + sctime.Seconds(nextHdr.RelativeTag)
	return true
}
