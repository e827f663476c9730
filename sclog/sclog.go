// Package sclog adapts the engine's EventSink (scbus.EventSink) onto
// github.com/joeycumines/logiface, using the teacher's own
// github.com/joeycumines/izerolog binding to front
// github.com/rs/zerolog: construction goes through izerolog.WithZerolog
// exactly as the teacher's own services configure a logiface.Logger, and
// this package supplies only the Sink adapter translating the engine's
// (kind, fields) event shape into logiface builder calls.
package sclog

import (
	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"

	"github.com/nasa/SC-sub000/scbus"
)

// L re-exports izerolog's LoggerFactory, mirroring the teacher's own
// exported "L" convention for configuring a *logiface.Logger[*izerolog.Event].
var L = izerolog.L

// WithZerolog is an alias of izerolog.WithZerolog, kept local so callers
// need only import this package to construct a logger.
func WithZerolog(z zerolog.Logger) logiface.Option[*izerolog.Event] {
	return izerolog.WithZerolog(z)
}

// Sink adapts a configured *logiface.Logger[*izerolog.Event] to
// scbus.EventSink, translating the engine's (kind, fields) shape into the
// field-vocabulary builder calls logiface expects.
type Sink struct {
	logger *logiface.Logger[*izerolog.Event]
}

// NewSink wraps logger as a scbus.EventSink.
func NewSink(logger *logiface.Logger[*izerolog.Event]) *Sink { return &Sink{logger: logger} }

var _ scbus.EventSink = (*Sink)(nil)

// Event implements scbus.EventSink, emitting kind as the log message and
// each field by its dynamic type, falling back to Interface for anything
// without a dedicated builder method.
func (s *Sink) Event(kind string, fields ...scbus.Field) {
	b := s.logger.Notice()
	if b == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Val.(type) {
		case string:
			b = b.Str(f.Key, v)
		case int:
			b = b.Int(f.Key, v)
		case bool:
			b = b.Bool(f.Key, v)
		case error:
			b = b.Err(v)
		case uint16:
			b = b.Uint64(f.Key, uint64(v))
		case uint32:
			b = b.Uint64(f.Key, uint64(v))
		default:
			b = b.Interface(f.Key, v)
		}
	}
	b.Log(kind)
}
