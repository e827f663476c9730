// Package scnum defines the typed identifiers used throughout the stored
// command engine. Each is a distinct type over a primitive integer so that
// an ATS id can never be passed where a command number or word offset is
// expected; conversion to and from the primitive is always explicit,
// mirroring the source application's IDNUM macros.
package scnum

// AtsID identifies an ATS slot. It is 1-based; NullAtsID is the reserved
// "no ATS" value.
type AtsID uint16

// NullAtsID is the reserved zero value meaning "no ATS selected".
const NullAtsID AtsID = 0

// Uint16 returns the raw value of id.
func (id AtsID) Uint16() uint16 { return uint16(id) }

// AtsIDFromUint16 constructs an AtsID from a raw protocol value.
func AtsIDFromUint16(v uint16) AtsID { return AtsID(v) }

// Valid reports whether id is in [1, n].
func (id AtsID) Valid(n int) bool { return id >= 1 && int(id) <= n }

// Index returns the 0-based slot index for id. Callers must check Valid first.
func (id AtsID) Index() int { return int(id) - 1 }

// RtsID identifies an RTS slot. It is 1-based; NullRtsID is reserved.
type RtsID uint16

// NullRtsID is the reserved zero value meaning "no RTS selected".
const NullRtsID RtsID = 0

func (id RtsID) Uint16() uint16              { return uint16(id) }
func RtsIDFromUint16(v uint16) RtsID         { return RtsID(v) }
func (id RtsID) Valid(n int) bool            { return id >= 1 && int(id) <= n }
func (id RtsID) Index() int                  { return int(id) - 1 }

// CmdNum is a 1-based command number within an ATS, in [1, MaxAtsCmds].
// Zero is the entry terminator, never a valid command number.
type CmdNum uint16

// NullCmdNum is the terminator / "no command" sentinel.
const NullCmdNum CmdNum = 0

func (n CmdNum) Uint16() uint16            { return uint16(n) }
func CmdNumFromUint16(v uint16) CmdNum     { return CmdNum(v) }
func (n CmdNum) Valid(max int) bool        { return n >= 1 && int(n) <= max }

// Index returns the 0-based index into a [1..max] sized array for n.
// Callers must check Valid first.
func (n CmdNum) Index() int { return int(n) - 1 }

// EntryOffset is a 0-based word offset into an ATS/Append/RTS buffer.
type EntryOffset uint32

// NoneOffset marks "not present" in cmd_offset.
const NoneOffset EntryOffset = ^EntryOffset(0)

func (o EntryOffset) Uint32() uint32                  { return uint32(o) }
func EntryOffsetFromUint32(v uint32) EntryOffset      { return EntryOffset(v) }

// Bytes converts a word offset to a byte offset (4x).
func (o EntryOffset) Bytes() uint32 { return uint32(o) * 4 }

// TableID identifies a table in the dense MANAGE_TABLE id space: the two
// ATS slots, the RTS slots, the ATS_CMD_STATUS mirrors, plus singletons.
type TableID int32

func (id TableID) Int32() int32              { return int32(id) }
func TableIDFromInt32(v int32) TableID       { return TableID(v) }
