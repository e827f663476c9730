package scengine

import "github.com/nasa/SC-sub000/scnum"

// TableLayout is the dense MANAGE_TABLE id space: reserved
// ranges for the two ATS slots, the RTS slots, and the ATS_CMD_STATUS
// mirrors, plus singletons for append, ats-info, rts-info, and the two
// control blocks. Values are implementation-chosen but fixed per
// deployment; DefaultTableLayout packs them contiguously.
type TableLayout struct {
	AtsBase int32
	RtsBase int32
	AtsCmdStatusBase int32
	AppendID int32
	AtsInfoID int32
	RtsInfoID int32
	AtpCtrlID int32
	RtpCtrlID int32
	NumRts int
}

// DefaultTableLayout packs the table id space contiguously, starting at
// zero, sized for a NumRts-slot deployment.
func DefaultTableLayout(numRts int) TableLayout {
	l := TableLayout{NumRts: numRts}
	l.AtsBase = 0
	l.RtsBase = l.AtsBase + 2
	l.AtsCmdStatusBase = l.RtsBase + int32(numRts)
	l.AppendID = l.AtsCmdStatusBase + 2
	l.AtsInfoID = l.AppendID + 1
	l.RtsInfoID = l.AtsInfoID + 1
	l.AtpCtrlID = l.RtsInfoID + 1
	l.RtpCtrlID = l.AtpCtrlID + 1
	return l
}

// tableClass identifies which kind of table an id names.
type tableClass int

const (
	classUnknown tableClass = iota
	classAts
	classRts
	classAtsCmdStatus
	classAppend
	classDumpOnlySingleton
)

// classify resolves a TableID to its class and, for the per-slot
// classes, a zero-based slot index.
func (l TableLayout) classify(id scnum.TableID) (tableClass, int) {
	v := id.Int32()
	switch {
	case v >= l.AtsBase && v < l.AtsBase+2:
		return classAts, int(v - l.AtsBase)
	case v >= l.RtsBase && v < l.RtsBase+int32(l.NumRts):
		return classRts, int(v - l.RtsBase)
	case v >= l.AtsCmdStatusBase && v < l.AtsCmdStatusBase+2:
		return classAtsCmdStatus, int(v - l.AtsCmdStatusBase)
	case v == l.AppendID:
		return classAppend, 0
	case v == l.AtsInfoID, v == l.RtsInfoID, v == l.AtpCtrlID, v == l.RtpCtrlID:
		return classDumpOnlySingleton, 0
	default:
		return classUnknown, 0
	}
}
