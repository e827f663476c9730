// Package scseq holds the build-time sizing constants shared by every
// subpackage of the stored command engine. Sizes are fixed at compile
// time; nothing in this module allocates a table dynamically.
package scseq

// Limits collects the compile-time sizing of the engine's fixed tables.
// A zero Limits is invalid; use Defaults or construct explicitly and call
// Validate before passing it to scengine.New.
type Limits struct {
	// MaxAtsCmds is the highest legal command number within an ATS.
	MaxAtsCmds int
	// AtsBufferSize is the word (4-byte) capacity of a single ATS buffer.
	AtsBufferSize int
	// AppendBufferSize is the word capacity of the Append buffer.
	AppendBufferSize int
	// RtsBufferSize is the word capacity of a single RTS buffer.
	RtsBufferSize int
	// NumRts is the number of concurrent RTS slots.
	NumRts int
	// MaxCmdsPerSecond caps dispatch across ATP+RTP combined, per tick.
	MaxCmdsPerSecond int
	// PacketMinSize and PacketMaxSize bound a command packet's byte length.
	PacketMinSize int
	PacketMaxSize int
}

// Defaults returns sizing modeled on the reference cFS Stored Command
// application's typical build-time configuration.
func Defaults() Limits {
	return Limits{
		MaxAtsCmds: 1000,
		AtsBufferSize: 8000,
		AppendBufferSize: 4000,
		RtsBufferSize: 1000,
		NumRts: 32,
		MaxCmdsPerSecond: 8,
		PacketMinSize: 8,
		PacketMaxSize: 512,
	}
}

// Validate reports whether l is internally consistent.
func (l Limits) Validate() error {
	switch {
	case l.MaxAtsCmds <= 0:
		return errLimits("MaxAtsCmds must be positive")
	case l.AtsBufferSize <= 0:
		return errLimits("AtsBufferSize must be positive")
	case l.AppendBufferSize <= 0 || l.AppendBufferSize > l.AtsBufferSize:
		return errLimits("AppendBufferSize must be positive and <= AtsBufferSize")
	case l.RtsBufferSize <= 0:
		return errLimits("RtsBufferSize must be positive")
	case l.NumRts <= 0:
		return errLimits("NumRts must be positive")
	case l.MaxCmdsPerSecond <= 0:
		return errLimits("MaxCmdsPerSecond must be positive")
	case l.PacketMinSize <= 0 || l.PacketMaxSize < l.PacketMinSize:
		return errLimits("PacketMinSize/PacketMaxSize out of range")
	}
	return nil
}

type errLimits string

func (e errLimits) Error() string { return "scseq: " + string(e) }
