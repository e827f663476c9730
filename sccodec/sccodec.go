// Package sccodec provides a reference implementation of scbus.PacketCodec
// and scbus.MessageIDValidator. The engine leaves the exact packet header
// format and the legal message-id space to the deployment; this package
// supplies a concrete, all-big-endian layout suitable for tests, examples,
// and cmd/scd.
//
// Header layout (bytes):
//
//	[0:2] message id (uint16, big-endian)
//	[2:4] command code (uint16, big-endian)
//	[4:6] total length (uint16, big-endian, header+body, in bytes)
//	[6:8] argument (uint16, big-endian; target ATS id for SwitchATS)
package sccodec

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/nasa/SC-sub000/scnum"
)

// HeaderBytes is the fixed byte length of a packet header.
const HeaderBytes = 8

// Codec is the default scbus.PacketCodec implementation.
type Codec struct {
	// SelfMessageID is the engine's own message id, which SWITCH_ATS
	// packets embedded inline in an ATS entry must address.
	SelfMessageID uint16
	// SwitchATSCode is the command code that means "switch ATS" when
	// addressed to SelfMessageID.
	SwitchATSCode uint16
}

// NewCodec constructs a Codec with the given self message id and switch
// command code.
func NewCodec(selfMsgID, switchCode uint16) *Codec {
	return &Codec{SelfMessageID: selfMsgID, SwitchATSCode: switchCode}
}

// PacketLen implements scbus.PacketCodec.
func (c *Codec) PacketLen(b []byte) (int, bool) {
	if len(b) < HeaderBytes {
		return 0, false
	}
	return int(binary.BigEndian.Uint16(b[4:6])), true
}

// MessageID implements scbus.PacketCodec.
func (c *Codec) MessageID(b []byte) (uint16, bool) {
	if len(b) < 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(b[0:2]), true
}

// CommandCode returns the command code embedded in b.
func (c *Codec) CommandCode(b []byte) (uint16, bool) {
	if len(b) < 4 {
		return 0, false
	}
	return binary.BigEndian.Uint16(b[2:4]), true
}

// IsSwitchATS implements scbus.PacketCodec.
func (c *Codec) IsSwitchATS(b []byte) (scnum.AtsID, bool) {
	if len(b) < HeaderBytes {
		return 0, false
	}
	msgID := binary.BigEndian.Uint16(b[0:2])
	code := binary.BigEndian.Uint16(b[2:4])
	if msgID != c.SelfMessageID || code != c.SwitchATSCode {
		return 0, false
	}
	return scnum.AtsIDFromUint16(binary.BigEndian.Uint16(b[6:8])), true
}

// Checksum implements scbus.PacketCodec using CRC-32 (IEEE) over the
// whole packet. The algorithm is implementation-defined.
func (c *Codec) Checksum(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

// EncodeHeader writes a packet header into b[:HeaderBytes]; b must be at
// least HeaderBytes long.
func EncodeHeader(b []byte, msgID, cmdCode uint16, totalLen int, arg uint16) {
	binary.BigEndian.PutUint16(b[0:2], msgID)
	binary.BigEndian.PutUint16(b[2:4], cmdCode)
	binary.BigEndian.PutUint16(b[4:6], uint16(totalLen))
	binary.BigEndian.PutUint16(b[6:8], arg)
}

// StaticValidator implements scbus.MessageIDValidator over a fixed set.
type StaticValidator map[uint16]bool

func (v StaticValidator) ValidMessageID(id uint16) bool { return v[id] }
