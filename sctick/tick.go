// Package sctick implements the one-hertz tick loop: on
// each wakeup, service a pending ATS switch, then dispatch one command at
// a time (ATP's whenever it has one due, otherwise the lowest-index due
// RTS) until neither has due work or the per-second dispatch cap is
// reached. ATP and RTP due times are not compared with each other: a due
// ATP command goes first even when an RTS command came due earlier.
package sctick

import (
	"github.com/nasa/SC-sub000/scatp"
	"github.com/nasa/SC-sub000/scnum"
	"github.com/nasa/SC-sub000/scseq"
	"github.com/nasa/SC-sub000/sctime"
)

// Atp is the subset of scatp.Processor the tick loop drives.
type Atp interface {
	State() scatp.State
	NextTime() (sctime.Seconds, bool)
	ServicePendingSwitch(now sctime.Seconds)
	Dispatch(now sctime.Seconds) (published bool)
}

// Rtp is the subset of scrtp.Processor the tick loop drives.
type Rtp interface {
	NextDue(now sctime.Seconds) (id scnum.RtsID, due bool)
	Dispatch(id scnum.RtsID, now sctime.Seconds) (published bool)
}

// Loop is the tick-loop driver. It holds no state of its own beyond the
// per-second counter, which it resets at the start of every tick — the
// engine is cooperative and single-threaded, so Tick always runs to
// completion before returning.
type Loop struct {
	atp Atp
	rtp Rtp
	limit int
	dispatched int
}

// Option configures a Loop, following the functional-options idiom used
// throughout this module.
type Option interface{ apply(*Loop) }

type optionFunc func(*Loop)

func (f optionFunc) apply(l *Loop) { f(l) }

// WithMaxCmdsPerSecond overrides the dispatch cap taken from
// scseq.Limits.MaxCmdsPerSecond at New.
func WithMaxCmdsPerSecond(n int) Option {
	return optionFunc(func(l *Loop) { l.limit = n })
}

// New constructs a Loop from the two processors and a Limits, which
// supplies the default per-second dispatch cap.
func New(atp Atp, rtp Rtp, limits scseq.Limits, opts ...Option) *Loop {
	l := &Loop{atp: atp, rtp: rtp, limit: limits.MaxCmdsPerSecond}
	for _, o := range opts {
		o.apply(l)
	}
	return l
}

// process identifies which processor the scheduler picked.
type process int

const (
	none process = iota
	atpProc
	rtpProc
)

// Tick runs one full one-hertz wakeup: service any pending switch, then
// dispatch due commands up to the configured per-second cap.
func (l *Loop) Tick(now sctime.Seconds) {
	l.dispatched = 0
	l.atp.ServicePendingSwitch(now)

	for l.dispatched < l.limit {
		proc, rtsID := l.schedule(now)
		switch proc {
		case atpProc:
			l.atp.Dispatch(now)
		case rtpProc:
			l.rtp.Dispatch(rtsID, now)
		default:
			return
		}
		l.dispatched++
	}
}

// LastDispatched returns the number of commands dispatched during the
// most recently completed Tick, for housekeeping readback.
func (l *Loop) LastDispatched() int { return l.dispatched }

// schedule picks the due processor for this step: ATP if it has work due
// now, else RTP if it has work due now, ATP winning ties; if neither is
// due this instant, none.
func (l *Loop) schedule(now sctime.Seconds) (process, scnum.RtsID) {
	atpTime, atpPending := l.atp.NextTime()
	rtsID, rtpDue := l.rtp.NextDue(now)

	atpDue := atpPending && atpTime <= now
	switch {
	case atpDue:
		return atpProc, 0
	case rtpDue:
		return rtpProc, rtsID
	default:
		return none, 0
	}
}
