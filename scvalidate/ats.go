// Package scvalidate implements the pure-function table load validators.
// Validators never mutate their input and never touch engine state; a
// load only becomes visible after validation succeeds, so every
// downstream component may assume a validated buffer already satisfies
// the loader's invariants.
package scvalidate

import (
	"fmt"

	"github.com/nasa/SC-sub000/scbus"
	"github.com/nasa/SC-sub000/scnum"
	"github.com/nasa/SC-sub000/sctable"
	"github.com/nasa/SC-sub000/scseq"
)

// AtsFailKind enumerates the ATS/Append validator failure kinds.
type AtsFailKind int

const (
	AtsOK AtsFailKind = iota
	EmptyTable
	InvalidCmdNumber
	PacketLengthInvalid
	PacketOverrunsBuffer
	DuplicateCmdNumber
	BufferFullBeforeMinEntry
)

func (k AtsFailKind) String() string {
	switch k {
	case AtsOK:
		return "OK"
	case EmptyTable:
		return "VERIFY_ATS_EMPTY"
	case InvalidCmdNumber:
		return "VERIFY_ATS_NUM"
	case PacketLengthInvalid:
		return "VERIFY_ATS_PKT"
	case PacketOverrunsBuffer:
		return "VERIFY_ATS_BUF"
	case DuplicateCmdNumber:
		return "VERIFY_ATS_DUP"
	case BufferFullBeforeMinEntry:
		return "VERIFY_ATS_END"
	default:
		return "UNKNOWN"
	}
}

// AtsError is returned by ValidateAts/ValidateAppend on failure.
type AtsError struct {
	Kind AtsFailKind
	Offset scnum.EntryOffset
	CmdNum scnum.CmdNum
}

func (e *AtsError) Error() string {
	return fmt.Sprintf("scvalidate: %s at word offset %d (cmd %d)", e.Kind, e.Offset, e.CmdNum)
}

// AtsEntry describes one successfully parsed entry.
type AtsEntry struct {
	CmdNum scnum.CmdNum
	Offset scnum.EntryOffset
	TimeTag uint32
	PacketWords int
}

// AtsResult is the outcome of a successful ATS/Append validation.
type AtsResult struct {
	Entries []AtsEntry
	WordsUsed int
}

// ValidateAts implements the ATS/Append validator algorithm.
// limits.MaxAtsCmds bounds legal command numbers; words is the candidate
// buffer (any length — callers pass AtsBufferSize or AppendBufferSize).
func ValidateAts(words []uint32, limits scseq.Limits, codec scbus.PacketCodec) (AtsResult, error) {
	seen := make([]bool, limits.MaxAtsCmds)
	var res AtsResult

	off := 0
	headerWords := sctable.AtsHeaderWords()

	for {
		// Reaching the buffer end exactly is a valid terminator.
		if off == len(words) {
			break
		}
		// The next header would not fit: the command-number field (the
		// low 16 bits of words[off]) is still readable on its own, and a
		// zero there is a valid terminator even with the time tag word
		// missing. Only a nonzero command number here is a real failure —
		// the table ran out of room before a minimal (terminated) entry.
		if off+headerWords > len(words) {
			if scnum.CmdNumFromUint16(uint16(words[off]&0xFFFF)) == scnum.NullCmdNum {
				break
			}
			return AtsResult{}, &AtsError{Kind: BufferFullBeforeMinEntry, Offset: scnum.EntryOffsetFromUint32(uint32(off))}
		}
		hdr, _ := sctable.DecodeAtsHeader(words, off)
		if hdr.CmdNum == scnum.NullCmdNum {
			// command-number-zero entry: explicit terminator.
			break
		}

		if !hdr.CmdNum.Valid(limits.MaxAtsCmds) {
			return AtsResult{}, &AtsError{Kind: InvalidCmdNumber, Offset: scnum.EntryOffsetFromUint32(uint32(off)), CmdNum: hdr.CmdNum}
		}

		// Need at least the header plus enough buffer to read the
		// packet's own embedded length.
		packetStart := off + headerWords
		if packetStart > len(words) {
			return AtsResult{}, &AtsError{Kind: PacketOverrunsBuffer, Offset: scnum.EntryOffsetFromUint32(uint32(off)), CmdNum: hdr.CmdNum}
		}
		remainingWords := len(words) - packetStart
		probe := sctable.PacketBytes(words, off, headerWords, remainingWords)
		plen, ok := codec.PacketLen(probe)
		if !ok {
			// Too few words left to hold the packet's own header.
			return AtsResult{}, &AtsError{Kind: PacketOverrunsBuffer, Offset: scnum.EntryOffsetFromUint32(uint32(off)), CmdNum: hdr.CmdNum}
		}
		if plen < limits.PacketMinSize || plen > limits.PacketMaxSize {
			return AtsResult{}, &AtsError{Kind: PacketLengthInvalid, Offset: scnum.EntryOffsetFromUint32(uint32(off)), CmdNum: hdr.CmdNum}
		}
		packetWords := sctable.WordsForBytes(plen)
		if packetWords > remainingWords {
			return AtsResult{}, &AtsError{Kind: PacketOverrunsBuffer, Offset: scnum.EntryOffsetFromUint32(uint32(off)), CmdNum: hdr.CmdNum}
		}

		if seen[hdr.CmdNum.Index()] {
			return AtsResult{}, &AtsError{Kind: DuplicateCmdNumber, Offset: scnum.EntryOffsetFromUint32(uint32(off)), CmdNum: hdr.CmdNum}
		}
		seen[hdr.CmdNum.Index()] = true

		res.Entries = append(res.Entries, AtsEntry{
			CmdNum: hdr.CmdNum,
			Offset: scnum.EntryOffsetFromUint32(uint32(off)),
			TimeTag: hdr.TimeTag,
			PacketWords: packetWords,
		})

		off += headerWords + packetWords
	}

	if len(res.Entries) == 0 {
		return AtsResult{}, &AtsError{Kind: EmptyTable}
	}

	res.WordsUsed = off
	return res, nil
}

// ValidateAppend is ValidateAts applied to an Append buffer; the entry
// layout is identical, only the size differs.
func ValidateAppend(words []uint32, limits scseq.Limits, codec scbus.PacketCodec) (AtsResult, error) {
	return ValidateAts(words, limits, codec)
}
