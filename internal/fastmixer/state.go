package fastmixer

import (
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/fastthread"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
)

const (
	// Read and mix the active tracks.
	CommandMix = fastthread.CommandSubclassBase

	// Write the mix to the sink.
	CommandWrite = fastthread.CommandSubclassBase << 1

	CommandMixWrite = CommandMix | CommandWrite
)

// Number of track slots in a State. Track masks are uint32.
const MaxTracks = 32

// VolumeProvider supplies a track volume that can change without a new state,
// e.g. a user-facing volume control.
// Called from the fast thread, so must not block.
type VolumeProvider interface {
	GetVolumeAdjustMagnitude() float32
}

// A Track is one source mixed into the sink.
type Track struct {
	Source audiodevice.AudioSourceDevice

	// Linear gain applied to every sample. 0.0 is muted.
	Gain float32

	// Optional. Multiplied with Gain every cycle.
	Volume VolumeProvider

	// Changed by the control side whenever anything in the slot changes.
	Generation uint32
}

// State is what the control side pushes to a FastMixer.
type State struct {
	fastthread.ThreadState

	Tracks [MaxTracks]Track

	// Bit i set means Tracks[i] is active.
	TrackMask uint32

	// Changed whenever TrackMask or any Track changes.
	TracksGen uint32

	Sink audiodevice.AudioSinkDevice

	// Changed whenever Sink changes.
	SinkGen uint32

	// Frames mixed and written per cycle.
	FrameCount int

	// Owned by the control side. Optional.
	Dump *DumpState
}

func (s *State) ThreadDump() *fastthread.DumpState {
	if s.Dump == nil {
		return nil
	}
	return &s.Dump.DumpState
}
