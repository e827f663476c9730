// Package scbus declares the interfaces the engine's core consumes from,
// and exposes to, its external collaborators: the message-bus transport,
// the event/log sink, and the persistent table-services layer. None of
// these are implemented here — they are deliberately out of scope — but
// the core is written entirely against these interfaces.
package scbus

import (
	"github.com/nasa/SC-sub000/scnum"
)

// Packet is an opaque, pre-formed command packet as stored in an ATS/RTS
// buffer entry. The engine never interprets its contents beyond reading
// the embedded length via PacketCodec.
type Packet []byte

// PacketCodec reads the self-describing length from a stored command
// packet's own header, and recognizes the engine's own "switch ATS"
// command so ATP can special-case inline switches.
//
// The engine never hardcodes a packet length; it always asks the codec.
type PacketCodec interface {
	// PacketLen returns the byte length of the packet starting at b,
	// reading only its embedded header. ok is false if b is too short to
	// contain a header.
	PacketLen(b []byte) (n int, ok bool)
	// IsSwitchATS reports whether the packet addresses the engine's own
	// message id with the "switch ATS" command code, and if so, which ATS
	// id it names.
	IsSwitchATS(b []byte) (target scnum.AtsID, ok bool)
	// Checksum computes a verification checksum of the stored packet. It
	// is compared against a pre-computed value carried by the table
	// service; the algorithm is implementation-defined.
	Checksum(b []byte) uint32
	// MessageID returns the bus message id embedded in the packet's own
	// header, used by the RTS validator to check INVALID_MSG_ID.
	MessageID(b []byte) (id uint16, ok bool)
}

// MessageIDValidator reports whether a message id is one the bus will
// accept a publish for. Supplied by the deployment, since the set of
// legal ids is a bus/runtime configuration concern, not something the
// core can know.
type MessageIDValidator interface {
	ValidMessageID(id uint16) bool
}

// Publisher is the message-bus send primitive. A publish failure for an
// ATS entry marks it FAILED_DISTRIB and aborts the sequence; for an RTS
// entry it raises RTS_PUBLISH_FAILED and stops the sequence.
type Publisher interface {
	Publish(pkt Packet) error
}

// EventSink receives diagnostic events. Every recognized error kind and
// every notable state transition is reported here; the core never
// panics on a recoverable condition.
type EventSink interface {
	Event(kind string, fields ...Field)
}

// Field is a single structured log field, deliberately transport-agnostic
// so EventSink implementations may translate it into whatever logging
// library fields they need (see package sclog for the logiface binding).
type Field struct {
	Key string
	Val any
}

// F constructs a Field, for terse call sites.
func F(key string, val any) Field { return Field{Key: key, Val: val} }

// TableHandle is a scoped acquisition of a raw word buffer shared with the
// table service under the release/manage/reacquire protocol. The engine
// releases it before calling TableService.Manage and reacquires
// afterward; Words reflects whatever the table service wrote, if Updated
// is true.
type TableHandle struct {
	Words []uint32
	Updated bool
}

// TableService is the persistent table-services layer: registration,
// load, dump, and manage. The core calls Manage, bracketed by the
// release/acquire dance the methods below describe, and Store after an
// Append.
type TableService interface {
	// Release gives up the engine's handle on the named table prior to a
	// manage cycle.
	Release(table scnum.TableID) error
	// Manage invokes the table service's load/dump protocol for table,
	// returning whether the underlying buffer was updated.
	Manage(table scnum.TableID) (updated bool, err error)
	// Acquire reacquires the engine's handle after a manage cycle,
	// returning the current contents.
	Acquire(table scnum.TableID) (TableHandle, error)
	// Store pushes engine-produced words back to the service for a table
	// the core itself owns the content of (the Append-merged ATS buffer),
	// notifying the service that the target table was modified so it can
	// publish or persist it.
	Store(table scnum.TableID, words []uint32) error
}
