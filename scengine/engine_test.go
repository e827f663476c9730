package scengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa/SC-sub000/sccodec"
	"github.com/nasa/SC-sub000/scbus"
	"github.com/nasa/SC-sub000/scnum"
	"github.com/nasa/SC-sub000/scrtp"
	"github.com/nasa/SC-sub000/scseq"
	"github.com/nasa/SC-sub000/sctable"
	"github.com/nasa/SC-sub000/sctime"
)

const testMsgID = 0x1000
const testCmdCode = 0x0002

func testLimits() scseq.Limits {
	return scseq.Limits{
		MaxAtsCmds: 16,
		AtsBufferSize: 256,
		AppendBufferSize: 64,
		RtsBufferSize: 64,
		NumRts: 4,
		MaxCmdsPerSecond: 8,
		PacketMinSize: sccodec.HeaderBytes,
		PacketMaxSize: 64,
	}
}

// fakeClock is a settable sctime.Clock for deterministic tests.
type fakeClock struct {
	now sctime.Seconds
}

func (c *fakeClock) Now() sctime.Seconds { return c.now }
func (c *fakeClock) Source() sctime.Source { return sctime.Mission }

type fakePublisher struct {
	published [][]byte
}

func (p *fakePublisher) Publish(pkt scbus.Packet) error {
	p.published = append(p.published, append([]byte(nil), pkt...))
	return nil
}

type fakeSink struct {
	events []string
}

func (s *fakeSink) Event(kind string, fields ...scbus.Field) { s.events = append(s.events, kind) }

type tableEntry struct {
	words   []uint32
	updated bool
}

// fakeTableService implements scbus.TableService over an in-memory map,
// recording every Store call for assertions.
type fakeTableService struct {
	tables map[int32]tableEntry
	stored map[int32][]uint32
}

func newFakeTableService() *fakeTableService {
	return &fakeTableService{tables: make(map[int32]tableEntry), stored: make(map[int32][]uint32)}
}

func (f *fakeTableService) Release(id scnum.TableID) error { return nil }

func (f *fakeTableService) Manage(id scnum.TableID) (bool, error) {
	return f.tables[id.Int32()].updated, nil
}

func (f *fakeTableService) Acquire(id scnum.TableID) (scbus.TableHandle, error) {
	e := f.tables[id.Int32()]
	return scbus.TableHandle{Words: e.words, Updated: e.updated}, nil
}

func (f *fakeTableService) Store(id scnum.TableID, words []uint32) error {
	f.stored[id.Int32()] = words
	return nil
}

func buildAtsWords(startCmd, n int) []uint32 {
	words := make([]uint32, 0, n*4)
	for i := 0; i < n; i++ {
		off := len(words)
		cmd := startCmd + i
		words = append(words, 0, 0, 0, 0)
		sctable.EncodeAtsHeader(words, off, sctable.AtsHeader{CmdNum: scnum.CmdNum(cmd), TimeTag: uint32(cmd * 100)})
		body := make([]byte, sccodec.HeaderBytes)
		sccodec.EncodeHeader(body, testMsgID, testCmdCode, sccodec.HeaderBytes, 0)
		sctable.WritePacketBytes(words, off, sctable.AtsHeaderWords(), body)
	}
	return words
}

func buildRtsWords(n int) []uint32 {
	words := make([]uint32, 0, n*3)
	for i := 0; i < n; i++ {
		off := len(words)
		tag := uint32(0)
		if i > 0 {
			tag = 10
		}
		words = append(words, 0, 0, 0)
		sctable.EncodeRtsHeader(words, off, sctable.RtsHeader{RelativeTag: tag})
		body := make([]byte, sccodec.HeaderBytes)
		sccodec.EncodeHeader(body, testMsgID, testCmdCode, sccodec.HeaderBytes, 0)
		sctable.WritePacketBytes(words, off, sctable.RtsHeaderWords(), body)
	}
	return words
}

func newTestEngine(t *testing.T, tables *fakeTableService) (*Engine, *fakeClock, *fakeSink) {
	t.Helper()
	clk := &fakeClock{now: 0}
	sink := &fakeSink{}
	codec := sccodec.NewCodec(testMsgID, 0x0001)
	mids := sccodec.StaticValidator{testMsgID: true}
	eng := New(
		WithClock(clk),
		WithCodec(codec),
		WithMessageIDValidator(mids),
		WithPublisher(&fakePublisher{}),
		WithEventSink(sink),
		WithTableService(tables),
		WithLimits(testLimits()),
	)
	return eng, clk, sink
}

func TestNew_PanicsOnMissingOption(t *testing.T) {
	defer func() {
		assert.NotNil(t, recover())
	}()
	New(WithLimits(testLimits()))
}

func TestEngine_ManageTable_UnknownID_Reported(t *testing.T) {
	tables := newFakeTableService()
	eng, _, sink := newTestEngine(t, tables)

	err := eng.ManageTable(scnum.TableIDFromInt32(999))

	require.Error(t, err)
	assert.Contains(t, sink.events, "MANAGE_UNKNOWN_TBL")
}

func TestEngine_ManageTable_LoadsAtsSlot(t *testing.T) {
	tables := newFakeTableService()
	layout := DefaultTableLayout(testLimits().NumRts)
	words := buildAtsWords(1, 3)
	tables.tables[layout.AtsBase] = tableEntry{words: words, updated: true}

	eng, _, _ := newTestEngine(t, tables)
	require.NoError(t, eng.ManageTable(scnum.TableIDFromInt32(layout.AtsBase)))

	snap := eng.Housekeeping()
	require.Len(t, snap.Ats, 2)
	assert.Equal(t, 3, snap.Ats[0].Size.NumberCommands)
	assert.Equal(t, sctable.Loaded, snap.Ats[0].Status[0])
}

func TestEngine_ManageTable_NotUpdated_LeavesStateUntouched(t *testing.T) {
	tables := newFakeTableService()
	layout := DefaultTableLayout(testLimits().NumRts)
	tables.tables[layout.AtsBase] = tableEntry{words: buildAtsWords(1, 1), updated: false}

	eng, _, _ := newTestEngine(t, tables)
	require.NoError(t, eng.ManageTable(scnum.TableIDFromInt32(layout.AtsBase)))

	snap := eng.Housekeeping()
	assert.Equal(t, 0, snap.Ats[0].Size.NumberCommands)
}

func TestEngine_ManageTable_LoadsRtsSlot(t *testing.T) {
	tables := newFakeTableService()
	layout := DefaultTableLayout(testLimits().NumRts)
	tables.tables[layout.RtsBase] = tableEntry{words: buildRtsWords(2), updated: true}

	eng, _, _ := newTestEngine(t, tables)
	require.NoError(t, eng.ManageTable(scnum.TableIDFromInt32(layout.RtsBase)))

	require.NoError(t, eng.StartRts(1))
	snap := eng.Housekeeping()
	require.NotEmpty(t, snap.Rtp.Slots)
	assert.Equal(t, scrtp.Executing, snap.Rtp.Slots[0].Status)
}

func TestEngine_ManageTable_DumpOnlySingleton_Noop(t *testing.T) {
	tables := newFakeTableService()
	layout := DefaultTableLayout(testLimits().NumRts)
	tables.tables[layout.AtsInfoID] = tableEntry{words: []uint32{1, 2, 3}, updated: true}

	eng, _, _ := newTestEngine(t, tables)
	assert.NoError(t, eng.ManageTable(scnum.TableIDFromInt32(layout.AtsInfoID)))
}

func TestEngine_AppendAts_NoStagedBuffer_ReturnsError(t *testing.T) {
	tables := newFakeTableService()
	eng, _, sink := newTestEngine(t, tables)

	err := eng.AppendAts(1)

	require.Error(t, err)
	assert.Contains(t, sink.events, "APPEND_SOURCE_EMPTY")
}

func TestEngine_AppendAts_MergesStagedBufferIntoTarget(t *testing.T) {
	tables := newFakeTableService()
	layout := DefaultTableLayout(testLimits().NumRts)
	tables.tables[layout.AtsBase] = tableEntry{words: buildAtsWords(1, 1), updated: true}
	tables.tables[layout.AppendID] = tableEntry{words: buildAtsWords(2, 1), updated: true}

	eng, _, _ := newTestEngine(t, tables)
	require.NoError(t, eng.ManageTable(scnum.TableIDFromInt32(layout.AtsBase)))
	require.NoError(t, eng.ManageTable(scnum.TableIDFromInt32(layout.AppendID)))

	require.NoError(t, eng.AppendAts(1))

	snap := eng.Housekeeping()
	assert.Equal(t, 2, snap.Ats[0].Size.NumberCommands)
	assert.NotNil(t, tables.stored[layout.AtsBase])
}

func TestEngine_AppendAts_InvalidTargetID_Reported(t *testing.T) {
	tables := newFakeTableService()
	layout := DefaultTableLayout(testLimits().NumRts)
	tables.tables[layout.AppendID] = tableEntry{words: buildAtsWords(1, 1), updated: true}

	eng, _, sink := newTestEngine(t, tables)
	require.NoError(t, eng.ManageTable(scnum.TableIDFromInt32(layout.AppendID)))

	err := eng.AppendAts(scnum.AtsIDFromUint16(9))

	require.Error(t, err)
	assert.Contains(t, sink.events, "APPEND_INVALID_ARG")
}

func TestEngine_AppendAts_ResyncsCurrentlyExecutingAts(t *testing.T) {
	tables := newFakeTableService()
	layout := DefaultTableLayout(testLimits().NumRts)
	tables.tables[layout.AtsBase] = tableEntry{words: buildAtsWords(1, 1), updated: true}
	tables.tables[layout.AppendID] = tableEntry{words: buildAtsWords(2, 1), updated: true}

	eng, clk, _ := newTestEngine(t, tables)
	require.NoError(t, eng.ManageTable(scnum.TableIDFromInt32(layout.AtsBase)))
	require.NoError(t, eng.StartAts(1))

	require.NoError(t, eng.ManageTable(scnum.TableIDFromInt32(layout.AppendID)))
	require.NoError(t, eng.AppendAts(1))

	clk.now = 300
	snap := eng.Housekeeping()
	assert.Equal(t, scnum.AtsID(1), snap.Atp.CurrentAtsID)
}

func TestEngine_ResetCounters_OnlyClearsErrorCounters(t *testing.T) {
	tables := newFakeTableService()
	layout := DefaultTableLayout(testLimits().NumRts)
	tables.tables[layout.AtsBase] = tableEntry{words: buildAtsWords(1, 1), updated: true}

	eng, _, _ := newTestEngine(t, tables)
	require.NoError(t, eng.ManageTable(scnum.TableIDFromInt32(layout.AtsBase)))
	require.NoError(t, eng.StartAts(1))

	// An unknown table id bumps an error counter without touching ATP state.
	require.Error(t, eng.ManageTable(scnum.TableIDFromInt32(999)))
	require.NotEmpty(t, eng.Housekeeping().ErrorCounters)

	eng.ResetCounters()

	snap := eng.Housekeeping()
	assert.Empty(t, snap.ErrorCounters)
	assert.Equal(t, scnum.AtsID(1), snap.Atp.CurrentAtsID, "ResetCounters must not touch ATP state")
}

func TestEngine_StartAts_DispatchesOnTick(t *testing.T) {
	tables := newFakeTableService()
	layout := DefaultTableLayout(testLimits().NumRts)
	tables.tables[layout.AtsBase] = tableEntry{words: buildAtsWords(1, 1), updated: true}

	eng, clk, _ := newTestEngine(t, tables)
	require.NoError(t, eng.ManageTable(scnum.TableIDFromInt32(layout.AtsBase)))
	require.NoError(t, eng.StartAts(1))

	clk.now = 100
	eng.Tick()

	snap := eng.Housekeeping()
	assert.Equal(t, 1, snap.CmdsThisSecond)
}

func TestEngine_StopAts_Delegates(t *testing.T) {
	tables := newFakeTableService()
	layout := DefaultTableLayout(testLimits().NumRts)
	tables.tables[layout.AtsBase] = tableEntry{words: buildAtsWords(1, 1), updated: true}

	eng, _, _ := newTestEngine(t, tables)
	require.NoError(t, eng.ManageTable(scnum.TableIDFromInt32(layout.AtsBase)))
	require.NoError(t, eng.StartAts(1))
	require.NoError(t, eng.StopAts())
}

func TestEngine_Housekeeping_FiresAutostartOnce(t *testing.T) {
	tables := newFakeTableService()
	layout := DefaultTableLayout(testLimits().NumRts)
	tables.tables[layout.RtsBase] = tableEntry{words: buildRtsWords(1), updated: true}

	eng, _, _ := newTestEngine(t, tables)
	require.NoError(t, eng.ManageTable(scnum.TableIDFromInt32(layout.RtsBase)))
	eng.SetAutostartRts(1)

	snap := eng.Housekeeping()
	assert.Equal(t, 1, snap.Rtp.NumActive)

	require.NoError(t, eng.StopRts(1))
	snap = eng.Housekeeping()
	assert.Equal(t, 0, snap.Rtp.NumActive, "autostart only fires once")
}

func TestEngine_RtsGroupDelegation(t *testing.T) {
	tables := newFakeTableService()
	layout := DefaultTableLayout(testLimits().NumRts)
	tables.tables[layout.RtsBase] = tableEntry{words: buildRtsWords(1), updated: true}
	tables.tables[layout.RtsBase+1] = tableEntry{words: buildRtsWords(1), updated: true}

	eng, _, _ := newTestEngine(t, tables)
	require.NoError(t, eng.ManageTable(scnum.TableIDFromInt32(layout.RtsBase)))
	require.NoError(t, eng.ManageTable(scnum.TableIDFromInt32(layout.RtsBase+1)))

	require.NoError(t, eng.StartRtsGroup(1, 2))
	snap := eng.Housekeeping()
	assert.Equal(t, 2, snap.Rtp.NumActive)

	require.NoError(t, eng.DisableRtsGroup(1, 2))
	require.NoError(t, eng.StopRtsGroup(1, 2))
	snap = eng.Housekeeping()
	assert.Equal(t, 0, snap.Rtp.NumActive)
}
