// Command scd runs the stored command engine as a daemon: construct,
// then once a second tick and take a housekeeping snapshot, until
// SIGINT or SIGTERM. There is no broader CLI surface — one flag selects
// which wall-clock source backs the engine's Clock, and one sets the
// engine's own message id for inline ATS switches.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nasa/SC-sub000/scbus"
	"github.com/nasa/SC-sub000/sccodec"
	"github.com/nasa/SC-sub000/scengine"
	"github.com/nasa/SC-sub000/sclog"
	"github.com/nasa/SC-sub000/scnum"
	"github.com/nasa/SC-sub000/scseq"
	"github.com/nasa/SC-sub000/sctime"
)

func main() {
	source := flag.String("clock", "mission", "wall clock source: mission, tai, or utc")
	selfMsgID := flag.Uint("self-msg-id", 0x1234, "the engine's own bus message id, for inline ATS switches")
	flag.Parse()

	src, err := parseSource(*source)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	z := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger := sclog.L.New(sclog.L.WithZerolog(z))
	sink := sclog.NewSink(logger)

	codec := sccodec.NewCodec(uint16(*selfMsgID), switchAtsCode)
	mids := sccodec.StaticValidator{uint16(*selfMsgID): true}

	limits := scseq.Defaults()
	eng := scengine.New(
		scengine.WithClock(sctime.New(src, time.Unix(0, 0))),
		scengine.WithCodec(codec),
		scengine.WithMessageIDValidator(mids),
		scengine.WithPublisher(noopPublisher{}),
		scengine.WithEventSink(sink),
		scengine.WithTableService(noopTableService{}),
		scengine.WithLimits(limits),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sink.Event("SCD_STARTED", scbus.F("clock", src.String()))
	run(ctx, eng, ticker.C)
	sink.Event("SCD_STOPPED")
}

// noopPublisher and noopTableService stand in for the message bus and
// table-services layer, both explicitly external collaborators this module never implements. A real deployment supplies its
// own.
type noopPublisher struct{}

func (noopPublisher) Publish(scbus.Packet) error { return nil }

type noopTableService struct{}

func (noopTableService) Release(scnum.TableID) error { return nil }
func (noopTableService) Manage(scnum.TableID) (bool, error) {
	return false, nil
}
func (noopTableService) Acquire(scnum.TableID) (scbus.TableHandle, error) {
	return scbus.TableHandle{}, nil
}
func (noopTableService) Store(scnum.TableID, []uint32) error { return nil }

func run(ctx context.Context, eng *scengine.Engine, tick <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			eng.Tick()
			eng.Housekeeping()
		}
	}
}

// switchAtsCode is the command code the reference sccodec.Codec treats as
// an inline ATS switch; see scatp.Dispatch.
const switchAtsCode = 0x0001

func parseSource(s string) (sctime.Source, error) {
	switch s {
	case "mission":
		return sctime.Mission, nil
	case "tai":
		return sctime.TAI, nil
	case "utc":
		return sctime.UTC, nil
	default:
		return 0, fmt.Errorf("scd: unknown clock source %q", s)
	}
}
