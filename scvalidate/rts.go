package scvalidate

import (
	"fmt"

	"github.com/nasa/SC-sub000/scbus"
	"github.com/nasa/SC-sub000/scnum"
	"github.com/nasa/SC-sub000/sctable"
	"github.com/nasa/SC-sub000/scseq"
)

// RtsFailKind enumerates the RTS validator failure kinds.
type RtsFailKind int

const (
	RtsOK RtsFailKind = iota
	InvalidMsgID
	CmdLengthInvalid
	CmdOverrunsBuffer
	TrailingNonzeroData
)

func (k RtsFailKind) String() string {
	switch k {
	case RtsOK:
		return "OK"
	case InvalidMsgID:
		return "VERIFY_RTS_MID"
	case CmdLengthInvalid:
		return "VERIFY_RTS_LEN"
	case CmdOverrunsBuffer:
		return "VERIFY_RTS_BUF_OVERRUN"
	case TrailingNonzeroData:
		return "VERIFY_RTS_TRAILING"
	default:
		return "UNKNOWN"
	}
}

// RtsError is returned by ValidateRts on failure.
type RtsError struct {
	Kind RtsFailKind
	Offset scnum.EntryOffset
}

func (e *RtsError) Error() string {
	return fmt.Sprintf("scvalidate: %s at word offset %d", e.Kind, e.Offset)
}

// RtsEntry describes one successfully parsed RTS entry.
type RtsEntry struct {
	Offset scnum.EntryOffset
	RelativeTag uint32
	PacketWords int
}

// RtsResult is the outcome of a successful RTS validation.
type RtsResult struct {
	Entries []RtsEntry
}

// ValidateRts implements the RTS validator algorithm.
func ValidateRts(words []uint32, limits scseq.Limits, codec scbus.PacketCodec, mids scbus.MessageIDValidator) (RtsResult, error) {
	var res RtsResult
	off := 0
	headerWords := sctable.RtsHeaderWords()
	minEntryWords := headerWords + sctable.WordsForBytes(limits.PacketMinSize)

	for {
		if off == len(words) {
			break
		}
		remaining := len(words) - off
		if remaining < minEntryWords {
			for i := off; i < len(words); i++ {
				if words[i] != 0 {
					return RtsResult{}, &RtsError{Kind: TrailingNonzeroData, Offset: scnum.EntryOffsetFromUint32(uint32(off))}
				}
			}
			break
		}

		hdr, _ := sctable.DecodeRtsHeader(words, off)
		probe := sctable.PacketBytes(words, off, headerWords, remaining-headerWords)

		msgID, haveMid := codec.MessageID(probe)
		validMid := haveMid && mids.ValidMessageID(msgID)
		if !validMid {
			if hdr.RelativeTag == 0 {
				// A zero time tag paired with an invalid message id is
				// the RTS end-of-sequence marker, not a failure.
				break
			}
			return RtsResult{}, &RtsError{Kind: InvalidMsgID, Offset: scnum.EntryOffsetFromUint32(uint32(off))}
		}

		plen, ok := codec.PacketLen(probe)
		if !ok || plen < limits.PacketMinSize || plen > limits.PacketMaxSize {
			return RtsResult{}, &RtsError{Kind: CmdLengthInvalid, Offset: scnum.EntryOffsetFromUint32(uint32(off))}
		}
		packetWords := sctable.WordsForBytes(plen)
		if headerWords+packetWords > remaining {
			return RtsResult{}, &RtsError{Kind: CmdOverrunsBuffer, Offset: scnum.EntryOffsetFromUint32(uint32(off))}
		}

		res.Entries = append(res.Entries, RtsEntry{
			Offset: scnum.EntryOffsetFromUint32(uint32(off)),
			RelativeTag: hdr.RelativeTag,
			PacketWords: packetWords,
		})

		off += headerWords + packetWords
	}

	return res, nil
}
