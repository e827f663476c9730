// Package scengine wires the stored command engine's subsystems into a
// single value: the two sprawling global control blocks described by the
// reference application become fields of one Engine; New constructs it,
// and every public method is a method on that value rather than a free
// function over package state.
package scengine

import (
	"fmt"

	"github.com/nasa/SC-sub000/scatp"
	"github.com/nasa/SC-sub000/scbus"
	"github.com/nasa/SC-sub000/schk"
	"github.com/nasa/SC-sub000/scload"
	"github.com/nasa/SC-sub000/scnum"
	"github.com/nasa/SC-sub000/scrtp"
	"github.com/nasa/SC-sub000/scseq"
	"github.com/nasa/SC-sub000/sctable"
	"github.com/nasa/SC-sub000/sctick"
	"github.com/nasa/SC-sub000/sctime"
	"github.com/nasa/SC-sub000/scvalidate"
)

// Engine owns every piece of state the core is responsible for: the two
// ATS slots, the append staging buffer, the RTS slots (inside rtp), and
// the ATP/RTP control blocks. The raw word buffers are logically shared
// with the table service; Engine holds the engine's own copy, refreshed
// only through ManageTable.
type Engine struct {
	clock  sctime.Clock
	codec  scbus.PacketCodec
	mids   scbus.MessageIDValidator
	pub    scbus.Publisher
	sink   scbus.EventSink
	tables scbus.TableService
	limits scseq.Limits
	layout TableLayout

	atsWords [2][]uint32
	ats      [2]*scload.Ats

	appendWords  []uint32
	appendResult scvalidate.AtsResult
	appendValid  bool

	atp  *scatp.Processor
	rtp  *scrtp.Processor
	tick *sctick.Loop

	errorCounters map[string]uint32
}

// Option configures an Engine at construction, the functional-options
// idiom used throughout this module.
type Option interface{ apply(*config) }

type config struct {
	clock  sctime.Clock
	codec  scbus.PacketCodec
	mids   scbus.MessageIDValidator
	pub    scbus.Publisher
	sink   scbus.EventSink
	tables scbus.TableService
	limits scseq.Limits
	layout TableLayout
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

func WithClock(c sctime.Clock) Option { return optionFunc(func(cfg *config) { cfg.clock = c }) }
func WithCodec(c scbus.PacketCodec) Option {
	return optionFunc(func(cfg *config) { cfg.codec = c })
}
func WithMessageIDValidator(v scbus.MessageIDValidator) Option {
	return optionFunc(func(cfg *config) { cfg.mids = v })
}
func WithPublisher(p scbus.Publisher) Option { return optionFunc(func(cfg *config) { cfg.pub = p }) }
func WithEventSink(s scbus.EventSink) Option { return optionFunc(func(cfg *config) { cfg.sink = s }) }
func WithTableService(t scbus.TableService) Option {
	return optionFunc(func(cfg *config) { cfg.tables = t })
}
func WithLimits(l scseq.Limits) Option { return optionFunc(func(cfg *config) { cfg.limits = l }) }
func WithTableLayout(l TableLayout) Option {
	return optionFunc(func(cfg *config) { cfg.layout = l })
}

// New constructs an idle Engine. Every collaborator option is mandatory;
// New panics if one is missing rather than returning a half-wired Engine.
func New(opts ...Option) *Engine {
	cfg := config{limits: scseq.Defaults()}
	for _, o := range opts {
		o.apply(&cfg)
	}
	if cfg.layout.NumRts == 0 {
		cfg.layout = DefaultTableLayout(cfg.limits.NumRts)
	}
	if err := cfg.limits.Validate(); err != nil {
		panic(err)
	}
	if cfg.clock == nil || cfg.codec == nil || cfg.mids == nil || cfg.pub == nil || cfg.sink == nil || cfg.tables == nil {
		panic("scengine: missing required option")
	}

	e := &Engine{
		clock:         cfg.clock,
		codec:         cfg.codec,
		mids:          cfg.mids,
		pub:           cfg.pub,
		sink:          cfg.sink,
		tables:        cfg.tables,
		limits:        cfg.limits,
		layout:        cfg.layout,
		errorCounters: make(map[string]uint32),
	}
	e.ats[0] = scload.NewAts(cfg.limits.MaxAtsCmds)
	e.ats[1] = scload.NewAts(cfg.limits.MaxAtsCmds)

	e.atp = scatp.New(e, cfg.codec, cfg.pub, e.countingSink())
	e.rtp = scrtp.New(cfg.limits.NumRts, cfg.codec, cfg.pub, e.countingSink())
	e.tick = sctick.New(e.atp, e.rtp, cfg.limits)

	return e
}

// countingSink wraps the configured EventSink so every event also bumps
// the in-memory error counter used by housekeeping, without coupling
// ATP/RTP to Engine's internal bookkeeping.
func (e *Engine) countingSink() scbus.EventSink { return countingSink{e} }

type countingSink struct{ e *Engine }

func (c countingSink) Event(kind string, fields ...scbus.Field) {
	c.e.errorCounters[kind]++
	c.e.sink.Event(kind, fields...)
}

// Ats implements scatp.Slots.
func (e *Engine) Ats(id scnum.AtsID) *scload.Ats {
	if !id.Valid(2) {
		return nil
	}
	return e.ats[id.Index()]
}

// Words implements scatp.Slots.
func (e *Engine) Words(id scnum.AtsID) []uint32 {
	if !id.Valid(2) {
		return nil
	}
	return e.atsWords[id.Index()]
}

func (e *Engine) now() sctime.Seconds { return e.clock.Now() }

// ResetCounters clears the housekeeping error counters only; per the
// source's SC_ResetCountersCmd it never touches ATP/RTP state or any
// cmd_status table.
func (e *Engine) ResetCounters() {
	for k := range e.errorCounters {
		delete(e.errorCounters, k)
	}
}

func (e *Engine) StartAts(id scnum.AtsID) error  { return e.atp.Start(id, e.now()) }
func (e *Engine) StopAts() error                 { e.atp.Stop(); return nil }
func (e *Engine) StartRts(id scnum.RtsID) error  { return e.rtp.Start(id, e.now()) }
func (e *Engine) StopRts(id scnum.RtsID) error   { return e.rtp.Stop(id) }
func (e *Engine) EnableRts(id scnum.RtsID) error { return e.rtp.Enable(id) }
func (e *Engine) DisableRts(id scnum.RtsID) error { return e.rtp.Disable(id) }
func (e *Engine) RequestSwitchAts() error        { return e.atp.RequestSwitch() }
func (e *Engine) JumpAts(target uint32) error {
	return e.atp.Jump(sctime.Seconds(target), e.now())
}
func (e *Engine) SetContinueOnFailure(flag bool) { e.atp.SetContinueOnFailure(flag) }

func (e *Engine) StartRtsGroup(first, last scnum.RtsID) error {
	_, err := e.rtp.StartGroup(first, last, e.now())
	return err
}
func (e *Engine) StopRtsGroup(first, last scnum.RtsID) error {
	_, err := e.rtp.StopGroup(first, last)
	return err
}
func (e *Engine) EnableRtsGroup(first, last scnum.RtsID) error {
	_, err := e.rtp.EnableGroup(first, last)
	return err
}
func (e *Engine) DisableRtsGroup(first, last scnum.RtsID) error {
	_, err := e.rtp.DisableGroup(first, last)
	return err
}

// AppendAts merges the most recently managed Append buffer into ats id,
// restarting ATP's time_index walk in place if id is the currently
// executing ATS.
func (e *Engine) AppendAts(id scnum.AtsID) error {
	if !e.appendValid {
		e.sink.Event("APPEND_SOURCE_EMPTY", scbus.F("ats_id", id))
		return fmt.Errorf("scengine: no valid append buffer staged")
	}
	target := e.Ats(id)
	if target == nil {
		e.sink.Event("APPEND_INVALID_ARG", scbus.F("ats_id", id))
		return fmt.Errorf("scengine: invalid ats id %d", id)
	}

	merged, err := target.Append(e.Words(id), e.appendWords, e.appendResult, e.limits.AtsBufferSize)
	if err != nil {
		e.sink.Event("APPEND_FAILED", scbus.F("ats_id", id), scbus.F("err", err))
		return err
	}
	e.atsWords[id.Index()] = merged

	if err := e.tables.Store(scnum.TableIDFromInt32(e.layout.AtsBase+int32(id.Index())), merged); err != nil {
		e.sink.Event("APPEND_STORE_FAILED", scbus.F("ats_id", id), scbus.F("err", err))
	}

	if e.atp.CurrentAtsID() == id && e.atp.State() == scatp.Executing {
		e.atp.Resync(e.now())
	}
	return nil
}

// ManageTable implements the MANAGE_TABLE command: resolves the table id
// to a class, runs the release/manage/reacquire protocol, and for load
// classes rebuilds the engine's auxiliaries from the reacquired buffer
// when the service reports it updated.
func (e *Engine) ManageTable(id scnum.TableID) error {
	class, slot := e.layout.classify(id)
	if class == classUnknown {
		e.sink.Event("MANAGE_UNKNOWN_TBL", scbus.F("table_id", id.Int32()))
		return fmt.Errorf("scengine: unknown table id %d", id.Int32())
	}

	if err := e.tables.Release(id); err != nil {
		return err
	}
	if _, err := e.tables.Manage(id); err != nil {
		return err
	}
	handle, err := e.tables.Acquire(id)
	if err != nil {
		return err
	}
	if !handle.Updated {
		return nil
	}

	switch class {
	case classAts:
		result, verr := scvalidate.ValidateAts(handle.Words, e.limits, e.codec)
		if verr != nil {
			e.sink.Event("VERIFY_ATS_FAILED", scbus.F("table_id", id.Int32()), scbus.F("err", verr))
			return verr
		}
		e.atsWords[slot] = handle.Words
		return e.ats[slot].LoadAts(handle.Words, result)

	case classRts:
		result, verr := scvalidate.ValidateRts(handle.Words, e.limits, e.codec, e.mids)
		if verr != nil {
			e.sink.Event("VERIFY_RTS_FAILED", scbus.F("table_id", id.Int32()), scbus.F("err", verr))
			return verr
		}
		_ = result
		return e.rtp.Load(scnum.RtsIDFromUint16(uint16(slot+1)), handle.Words)

	case classAppend:
		result, verr := scvalidate.ValidateAppend(handle.Words, e.limits, e.codec)
		if verr != nil {
			e.appendValid = false
			e.sink.Event("VERIFY_ATS_FAILED", scbus.F("table_id", id.Int32()), scbus.F("err", verr))
			return verr
		}
		e.appendWords = handle.Words
		e.appendResult = result
		e.appendValid = true
		return nil

	case classAtsCmdStatus, classDumpOnlySingleton:
		// Dump-only: accepted, but the mirror is produced by the engine,
		// never consumed back into engine state.
		return nil
	}

	return nil
}

// Housekeeping assembles a read-only snapshot of engine state, firing the
// one-shot autostart RTS on first call.
func (e *Engine) Housekeeping() schk.Snapshot {
	e.rtp.Autostart(e.now())

	snap := schk.Snapshot{
		Atp: schk.AtpSnapshot{
			State:        e.atp.State(),
			CurrentAtsID: e.atp.CurrentAtsID(),
			CurrentCmd:   e.atp.CurrentCmdNum(),
			LastErrSeq:   e.atp.LastErrSeq(),
		},
		Rtp: schk.RtpSnapshot{
			NumActive: e.rtp.NumActive(),
		},
		CmdsThisSecond: e.tick.LastDispatched(),
		ErrorCounters:  make(map[string]uint32, len(e.errorCounters)),
	}
	for k, v := range e.errorCounters {
		snap.ErrorCounters[k] = v
	}
	for i := range e.ats {
		id := scnum.AtsIDFromUint16(uint16(i + 1))
		snap.Ats = append(snap.Ats, schk.AtsSummary{
			ID:     id,
			Size:   e.ats[i].Aux.Summary,
			Status: append([]sctable.CmdStatus(nil), e.ats[i].Aux.CmdStatus...),
		})
	}
	for i := 1; i <= e.limits.NumRts; i++ {
		id := scnum.RtsIDFromUint16(uint16(i))
		snap.Rtp.Slots = append(snap.Rtp.Slots, schk.RtsSlotSnapshot{
			ID:     id,
			Status: e.rtp.Status(id),
		})
	}
	return snap
}

// SetAutostartRts records the RTS id to start once on the first
// housekeeping request.
func (e *Engine) SetAutostartRts(id scnum.RtsID) { e.rtp.SetAutostart(id) }

// Tick drives one one-hertz wakeup.
func (e *Engine) Tick() { e.tick.Tick(e.now()) }
