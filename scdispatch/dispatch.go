// Package scdispatch implements the thin command router: it demultiplexes
// an already length-checked command packet by (message-id, command-code)
// onto the core's public ATP/RTP/table operations. It never interprets
// packet bodies beyond the fixed argument fields each command code
// carries.
package scdispatch

import (
	"encoding/binary"

	"github.com/nasa/SC-sub000/scbus"
	"github.com/nasa/SC-sub000/scnum"
)

// Command codes.
type Code uint16

const (
	Noop Code = iota
	ResetCounters
	StartAts
	StopAts
	StartRts
	StopRts
	EnableRts
	DisableRts
	SwitchAts
	JumpAts
	ContinueAtsOnFailure
	AppendAts
	ManageTable
	StartRtsGrp
	StopRtsGrp
	EnableRtsGrp
	DisableRtsGrp
)

// Engine is the subset of scengine.Engine's public surface the
// dispatcher drives. Kept as an interface so the dispatcher can be
// tested without constructing a full Engine.
type Engine interface {
	ResetCounters()
	StartAts(id scnum.AtsID) error
	StopAts() error
	StartRts(id scnum.RtsID) error
	StopRts(id scnum.RtsID) error
	EnableRts(id scnum.RtsID) error
	DisableRts(id scnum.RtsID) error
	RequestSwitchAts() error
	JumpAts(target uint32) error
	SetContinueOnFailure(flag bool)
	AppendAts(id scnum.AtsID) error
	ManageTable(id scnum.TableID) error
	StartRtsGroup(first, last scnum.RtsID) error
	StopRtsGroup(first, last scnum.RtsID) error
	EnableRtsGroup(first, last scnum.RtsID) error
	DisableRtsGroup(first, last scnum.RtsID) error
}

// Dispatcher routes inbound command packets to Engine operations.
type Dispatcher struct {
	engine Engine
	sink scbus.EventSink
	selfID uint16
}

// New constructs a Dispatcher bound to engine, reporting unknown
// ids/codes through sink.
func New(engine Engine, sink scbus.EventSink, selfMessageID uint16) *Dispatcher {
	return &Dispatcher{engine: engine, sink: sink, selfID: selfMessageID}
}

// Dispatch routes one command packet. body is the packet payload
// following whatever header the bus already stripped/validated; the
// dispatcher only reads the fixed argument words lists per
// code, big-endian.
func (d *Dispatcher) Dispatch(msgID uint16, code Code, body []byte) {
	if msgID != d.selfID {
		d.sink.Event("UNKNOWN_MID", scbus.F("msg_id", msgID))
		return
	}

	switch code {
	case Noop:
		return
	case ResetCounters:
		d.engine.ResetCounters()
	case StartAts:
		d.engine.StartAts(scnum.AtsIDFromUint16(u16(body, 0)))
	case StopAts:
		d.engine.StopAts()
	case StartRts:
		d.engine.StartRts(scnum.RtsIDFromUint16(u16(body, 0)))
	case StopRts:
		d.engine.StopRts(scnum.RtsIDFromUint16(u16(body, 0)))
	case EnableRts:
		d.engine.EnableRts(scnum.RtsIDFromUint16(u16(body, 0)))
	case DisableRts:
		d.engine.DisableRts(scnum.RtsIDFromUint16(u16(body, 0)))
	case SwitchAts:
		d.engine.RequestSwitchAts()
	case JumpAts:
		d.engine.JumpAts(u32(body, 0))
	case ContinueAtsOnFailure:
		d.engine.SetContinueOnFailure(u16(body, 0) != 0)
	case AppendAts:
		d.engine.AppendAts(scnum.AtsIDFromUint16(u16(body, 0)))
	case ManageTable:
		d.engine.ManageTable(scnum.TableIDFromInt32(int32(u32(body, 0))))
	case StartRtsGrp:
		d.engine.StartRtsGroup(scnum.RtsIDFromUint16(u16(body, 0)), scnum.RtsIDFromUint16(u16(body, 2)))
	case StopRtsGrp:
		d.engine.StopRtsGroup(scnum.RtsIDFromUint16(u16(body, 0)), scnum.RtsIDFromUint16(u16(body, 2)))
	case EnableRtsGrp:
		d.engine.EnableRtsGroup(scnum.RtsIDFromUint16(u16(body, 0)), scnum.RtsIDFromUint16(u16(body, 2)))
	case DisableRtsGrp:
		d.engine.DisableRtsGroup(scnum.RtsIDFromUint16(u16(body, 0)), scnum.RtsIDFromUint16(u16(body, 2)))
	default:
		d.sink.Event("UNKNOWN_CC", scbus.F("code", uint16(code)))
	}
}

func u16(b []byte, off int) uint16 {
	if off+2 > len(b) {
		return 0
	}
	return binary.BigEndian.Uint16(b[off : off+2])
}

func u32(b []byte, off int) uint32 {
	if off+4 > len(b) {
		return 0
	}
	return binary.BigEndian.Uint32(b[off : off+4])
}
