// Package sctable holds the fixed-size binary table layouts of:
// the ATS/Append word buffers and their header encoding, the RTS word
// buffer, and the per-ATS auxiliary tables the engine owns.
package sctable

import (
	"github.com/nasa/SC-sub000/scnum"
)

// atsHeaderWords is the word length of an ATS/Append entry header: 2 pad
// bytes + 2-byte command number (word 0), then the 4-byte absolute time
// tag (word 1).
const atsHeaderWords = 2

// rtsHeaderWords is the word length of an RTS entry header: the 4-byte
// relative-time tag.
const rtsHeaderWords = 1

// AtsHeader is a decoded ATS/Append entry header.
type AtsHeader struct {
	CmdNum scnum.CmdNum
	TimeTag uint32
}

// WordsForBytes rounds a packet byte length up to the next multiple of
// four and returns it in words.
func WordsForBytes(n int) int {
	return (n + 3) / 4
}

// DecodeAtsHeader reads an ATS/Append entry header starting at word
// offset off in words. ok is false if off leaves fewer than
// atsHeaderWords words in the buffer.
func DecodeAtsHeader(words []uint32, off int) (AtsHeader, bool) {
	if off < 0 || off+atsHeaderWords > len(words) {
		return AtsHeader{}, false
	}
	return AtsHeader{
		CmdNum: scnum.CmdNumFromUint16(uint16(words[off] & 0xFFFF)),
		TimeTag: words[off+1],
	}, true
}

// EncodeAtsHeader writes an ATS/Append entry header at word offset off.
func EncodeAtsHeader(words []uint32, off int, h AtsHeader) {
	words[off] = uint32(h.CmdNum.Uint16())
	words[off+1] = h.TimeTag
}

// AtsHeaderWords is the fixed word length of an ATS/Append entry header.
func AtsHeaderWords() int { return atsHeaderWords }

// RtsHeader is a decoded RTS entry header.
type RtsHeader struct {
	// RelativeTag is the wakeup-count delta from the previous entry (0
	// for the first entry in the sequence).
	RelativeTag uint32
}

// DecodeRtsHeader reads an RTS entry header starting at word offset off.
func DecodeRtsHeader(words []uint32, off int) (RtsHeader, bool) {
	if off < 0 || off+rtsHeaderWords > len(words) {
		return RtsHeader{}, false
	}
	return RtsHeader{RelativeTag: words[off]}, true
}

// EncodeRtsHeader writes an RTS entry header at word offset off.
func EncodeRtsHeader(words []uint32, off int, h RtsHeader) {
	words[off] = h.RelativeTag
}

// RtsHeaderWords is the fixed word length of an RTS entry header.
func RtsHeaderWords() int { return rtsHeaderWords }

// PacketBytes returns the []byte view of the packet following a header
// that starts at word offset off and has the given header word length,
// for packetWords words.
func PacketBytes(words []uint32, off, headerWords, packetWords int) []byte {
	b := make([]byte, packetWords*4)
	for i := 0; i < packetWords; i++ {
		w := words[off+headerWords+i]
		b[i*4+0] = byte(w >> 24)
		b[i*4+1] = byte(w >> 16)
		b[i*4+2] = byte(w >> 8)
		b[i*4+3] = byte(w)
	}
	return b
}

// WritePacketBytes packs b (padded with zero bytes to a word boundary)
// into words starting at word offset off+headerWords.
func WritePacketBytes(words []uint32, off, headerWords int, b []byte) {
	n := WordsForBytes(len(b))
	for i := 0; i < n; i++ {
		var w uint32
		for j := 0; j < 4; j++ {
			idx := i*4 + j
			if idx < len(b) {
				w = w<<8 | uint32(b[idx])
			} else {
				w <<= 8
			}
		}
		words[off+headerWords+i] = w
	}
}

// Buffer is a contiguous word array shared with the table service.
type Buffer struct {
	Words []uint32
}

// NewBuffer allocates a zeroed buffer of the given word capacity.
func NewBuffer(words int) Buffer {
	return Buffer{Words: make([]uint32, words)}
}
