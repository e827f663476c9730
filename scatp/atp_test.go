package scatp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa/SC-sub000/sccodec"
	"github.com/nasa/SC-sub000/scbus"
	"github.com/nasa/SC-sub000/scload"
	"github.com/nasa/SC-sub000/scnum"
	"github.com/nasa/SC-sub000/scseq"
	"github.com/nasa/SC-sub000/sctable"
	"github.com/nasa/SC-sub000/sctime"
	"github.com/nasa/SC-sub000/scvalidate"
)

const testMsgID = 0x1000
const testSwitchCode = 0x0001
const testCmdCode = 0x0002

type fakeSlots struct {
	ats   [2]*scload.Ats
	words [2][]uint32
}

func newFakeSlots() *fakeSlots {
	return &fakeSlots{ats: [2]*scload.Ats{scload.NewAts(16), scload.NewAts(16)}}
}

func (f *fakeSlots) Ats(id scnum.AtsID) *scload.Ats {
	if !id.Valid(2) {
		return nil
	}
	return f.ats[id.Index()]
}

func (f *fakeSlots) Words(id scnum.AtsID) []uint32 {
	if !id.Valid(2) {
		return nil
	}
	return f.words[id.Index()]
}

// load builds a single-slot ATS of n entries with sequential time tags
// 100, 200, ... and loads it into slot id.
func (f *fakeSlots) load(t *testing.T, codec *sccodec.Codec, id scnum.AtsID, n int) {
	t.Helper()
	words := make([]uint32, 0, n*4)
	for i := 1; i <= n; i++ {
		off := len(words)
		words = append(words, 0, 0, 0, 0)
		sctable.EncodeAtsHeader(words, off, sctable.AtsHeader{CmdNum: scnum.CmdNum(i), TimeTag: uint32(i * 100)})
		body := make([]byte, sccodec.HeaderBytes)
		sccodec.EncodeHeader(body, testMsgID, testCmdCode, sccodec.HeaderBytes, 0)
		sctable.WritePacketBytes(words, off, sctable.AtsHeaderWords(), body)
	}
	result, err := scvalidate.ValidateAts(words, testLimits(), codec)
	require.NoError(t, err)
	require.NoError(t, f.ats[id.Index()].LoadAts(words, result))
	f.words[id.Index()] = words
}

func testLimits() scseq.Limits {
	l := scseq.Defaults()
	l.MaxAtsCmds = 16
	l.PacketMinSize = sccodec.HeaderBytes
	l.PacketMaxSize = 64
	return l
}

type fakePublisher struct {
	published [][]byte
	failNext  bool
}

func (p *fakePublisher) Publish(pkt scbus.Packet) error {
	if p.failNext {
		p.failNext = false
		return errors.New("publish failed")
	}
	p.published = append(p.published, append([]byte(nil), pkt...))
	return nil
}

type fakeSink struct {
	events []string
}

func (s *fakeSink) Event(kind string, fields ...scbus.Field) { s.events = append(s.events, kind) }

func TestProcessor_Start_RejectsUnloadedAts(t *testing.T) {
	slots := newFakeSlots()
	codec := sccodec.NewCodec(testMsgID, testSwitchCode)
	p := New(slots, codec, &fakePublisher{}, &fakeSink{})

	err := p.Start(1, 0)
	require.Error(t, err)
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AtsNotLoaded, aerr.Kind)
}

func TestProcessor_Start_RejectsWhenNotIdle(t *testing.T) {
	slots := newFakeSlots()
	codec := sccodec.NewCodec(testMsgID, testSwitchCode)
	slots.load(t, codec, 1, 1)
	p := New(slots, codec, &fakePublisher{}, &fakeSink{})
	require.NoError(t, p.Start(1, 0))

	err := p.Start(1, 0)
	require.Error(t, err)
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AtpNotIdle, aerr.Kind)
}

func TestProcessor_DispatchPublishesInTimeOrder(t *testing.T) {
	slots := newFakeSlots()
	codec := sccodec.NewCodec(testMsgID, testSwitchCode)
	slots.load(t, codec, 1, 3)
	pub := &fakePublisher{}
	p := New(slots, codec, pub, &fakeSink{})
	require.NoError(t, p.Start(1, 0))

	for i := 0; i < 3; i++ {
		nt, pending := p.NextTime()
		require.True(t, pending)
		p.Dispatch(nt)
	}

	assert.Len(t, pub.published, 3)
	assert.Equal(t, sctable.Executed, slots.ats[0].Aux.Status(1))
	assert.Equal(t, sctable.Executed, slots.ats[0].Aux.Status(2))
	assert.Equal(t, sctable.Executed, slots.ats[0].Aux.Status(3))
	assert.Equal(t, Idle, p.State())
}

func TestProcessor_DispatchAbortsOnPublishFailure(t *testing.T) {
	slots := newFakeSlots()
	codec := sccodec.NewCodec(testMsgID, testSwitchCode)
	slots.load(t, codec, 1, 2)
	pub := &fakePublisher{failNext: true}
	sink := &fakeSink{}
	p := New(slots, codec, pub, sink)
	require.NoError(t, p.Start(1, 0))

	nt, _ := p.NextTime()
	p.Dispatch(nt)

	assert.Equal(t, Idle, p.State())
	assert.Equal(t, sctable.FailedDistrib, slots.ats[0].Aux.Status(1))
	assert.Contains(t, sink.events, "ATS_PUBLISH_FAILED")
}

func TestProcessor_RequestSwitch_RejectedWhenOtherAtsEmpty(t *testing.T) {
	slots := newFakeSlots()
	codec := sccodec.NewCodec(testMsgID, testSwitchCode)
	slots.load(t, codec, 1, 1)
	p := New(slots, codec, &fakePublisher{}, &fakeSink{})
	require.NoError(t, p.Start(1, 0))

	err := p.RequestSwitch()
	require.Error(t, err)
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, SwitchUnavailable, aerr.Kind)
}

func TestProcessor_GroundSwitch_SkipsPastDueEntriesInOther(t *testing.T) {
	slots := newFakeSlots()
	codec := sccodec.NewCodec(testMsgID, testSwitchCode)
	slots.load(t, codec, 1, 1)
	slots.load(t, codec, 2, 3) // time tags 100, 200, 300

	pub := &fakePublisher{}
	p := New(slots, codec, pub, &fakeSink{})
	require.NoError(t, p.Start(1, 0))
	require.NoError(t, p.RequestSwitch())

	// now=250: cmd 1 (100) and cmd 2 (200) of ATS 2 are already past due.
	p.ServicePendingSwitch(250)

	assert.Equal(t, scnum.AtsID(2), p.CurrentAtsID())
	assert.Equal(t, sctable.Skipped, slots.ats[1].Aux.Status(1))
	assert.Equal(t, sctable.Skipped, slots.ats[1].Aux.Status(2))
	assert.Equal(t, sctable.Loaded, slots.ats[1].Aux.Status(3))
	nt, pending := p.NextTime()
	require.True(t, pending)
	assert.Equal(t, sctime.Seconds(300), nt)
}

func TestProcessor_Jump_MarksPastEntriesSkipped(t *testing.T) {
	slots := newFakeSlots()
	codec := sccodec.NewCodec(testMsgID, testSwitchCode)
	slots.load(t, codec, 1, 3)
	p := New(slots, codec, &fakePublisher{}, &fakeSink{})
	require.NoError(t, p.Start(1, 0))

	require.NoError(t, p.Jump(250, 250))

	assert.Equal(t, sctable.Skipped, slots.ats[0].Aux.Status(1))
	assert.Equal(t, sctable.Skipped, slots.ats[0].Aux.Status(2))
	assert.Equal(t, sctable.Loaded, slots.ats[0].Aux.Status(3))
}

func TestProcessor_Jump_PastEndStopsAts(t *testing.T) {
	slots := newFakeSlots()
	codec := sccodec.NewCodec(testMsgID, testSwitchCode)
	slots.load(t, codec, 1, 2)
	p := New(slots, codec, &fakePublisher{}, &fakeSink{})
	require.NoError(t, p.Start(1, 0))

	err := p.Jump(1000, 1000)
	require.Error(t, err)
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, JumpPastEnd, aerr.Kind)
	assert.Equal(t, Idle, p.State())
}

func TestProcessor_InlineSwitch_RedirectsToOtherAts(t *testing.T) {
	slots := newFakeSlots()
	codec := sccodec.NewCodec(testMsgID, testSwitchCode)

	// ATS 1: a single entry that is itself a switch-to-2 command.
	words := make([]uint32, 4)
	sctable.EncodeAtsHeader(words, 0, sctable.AtsHeader{CmdNum: 1, TimeTag: 100})
	body := make([]byte, sccodec.HeaderBytes)
	sccodec.EncodeHeader(body, testMsgID, testSwitchCode, sccodec.HeaderBytes, 2)
	sctable.WritePacketBytes(words, 0, sctable.AtsHeaderWords(), body)
	result, err := scvalidate.ValidateAts(words, testLimits(), codec)
	require.NoError(t, err)
	require.NoError(t, slots.ats[0].LoadAts(words, result))
	slots.words[0] = words

	// ATS 2: entries at 100 and 200. The switch lands at t=100, so cmd 1
	// is skipped as past due and cmd 2 keeps ATS 2 executing.
	slots.load(t, codec, 2, 2)

	pub := &fakePublisher{}
	p := New(slots, codec, pub, &fakeSink{})
	require.NoError(t, p.Start(1, 0))

	nt, _ := p.NextTime()
	published := p.Dispatch(nt)

	assert.True(t, published)
	assert.Equal(t, scnum.AtsID(2), p.CurrentAtsID())
	assert.Equal(t, sctable.Executed, slots.ats[0].Aux.Status(1))
	assert.Empty(t, pub.published, "an inline switch must not itself be published to the bus")
}
