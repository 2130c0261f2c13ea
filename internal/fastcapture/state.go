package fastcapture

import (
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/controlblock"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/fastthread"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
)

const (
	// Read a period from the source.
	CommandRead = fastthread.CommandSubclassBase

	// Write the period to every sink.
	CommandWrite = fastthread.CommandSubclassBase << 1

	CommandReadWrite = CommandRead | CommandWrite
)

const MaxSinks = 8

// A Sink is one consumer of the captured data.
type Sink struct {
	Sink audiodevice.AudioSinkDevice

	// Advanced by the frames written to Sink after every write. Optional.
	Cblk *controlblock.ControlBlock

	Generation uint32
}

// State is what the control side pushes to a FastCapture.
type State struct {
	fastthread.ThreadState

	Source audiodevice.AudioSourceDevice

	// Changed whenever Source changes.
	SourceGen uint32

	Sinks [MaxSinks]Sink

	// Bit i set means Sinks[i] is active.
	SinkMask uint32

	// Changed whenever SinkMask or any Sink changes.
	SinksGen uint32

	FrameCount int

	// Deliver silence instead of the captured data. Reads continue.
	Silenced bool

	Dump *DumpState
}

func (s *State) ThreadDump() *fastthread.DumpState {
	if s.Dump == nil {
		return nil
	}
	return &s.Dump.DumpState
}
