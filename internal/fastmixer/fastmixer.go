// Package fastmixer is the fast thread worker mixing up to MaxTracks sources into one sink.
package fastmixer

import (
	"fmt"
	"math/bits"

	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/fastthread"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/internal/statequeue"
	"github.com/Honorable-Knights-of-the-Roundtable/fastpath/pkg/audiodevice"
)

// Track buffers are sized for the widest encoding, so a track's encoding may
// differ from the sink's.
const maxBytesPerSample = 4

type mixState int

const (
	mixUndefined mixState = iota
	mixMixed
	mixZeroed
)

// FastMixer is the fastthread.Worker of a mixer thread.
//
// All of its fields are owned by the fast thread. What it has bound (sink, tracks,
// and the generations they were bound at) is recorded here rather than read back
// from the previous state, so a state is only ever compared against what was
// actually applied.
type FastMixer struct {
	sink    audiodevice.AudioSinkDevice
	sinkGen uint32

	format     audiodevice.DeviceProperties
	frameCount int

	tracks    [MaxTracks]audiodevice.AudioSourceDevice
	trackGens [MaxTracks]uint32
	trackMask uint32
	tracksGen uint32

	// Scratch, sized for the current format and frame count.
	mix          []float32
	trackSamples []float32
	trackBuf     []byte
	sinkBuf      []byte
	mixState     mixState

	dummyDump DumpState
}

// The thread running a FastMixer.
type Thread = fastthread.Thread[State, *State]

func New() *FastMixer {
	return &FastMixer{}
}

// Create a mixer thread reading states from queue.
func NewThread(queue *statequeue.StateQueue[State], opts ...fastthread.Option[State, *State]) *Thread {
	return fastthread.New(queue, New(), opts...)
}

func (m *FastMixer) IsSubClassCommand(command fastthread.Command) bool {
	switch command {
	case CommandMix, CommandWrite, CommandMixWrite:
		return true
	default:
		return false
	}
}

// Scratch buffers are kept across idle.
func (m *FastMixer) OnIdle() {
}

func (m *FastMixer) OnExit() {
	for mask := m.trackMask; mask != 0; mask &= mask - 1 {
		m.unbindTrack(bits.TrailingZeros32(mask))
	}
	if m.sink != nil {
		audiodevice.DetachDevice(m.sink)
		m.sink = nil
	}
}

func (m *FastMixer) dump(current *State) *DumpState {
	if current.Dump != nil {
		return current.Dump
	}
	return &m.dummyDump
}

func (m *FastMixer) OnStateChange(previous, current *State, c *fastthread.Cycle) {
	dump := m.dump(current)
	format := m.format

	if current.SinkGen != m.sinkGen {
		if m.sink != nil {
			audiodevice.DetachDevice(m.sink)
		}
		m.sink = current.Sink
		m.sinkGen = current.SinkGen
		format = audiodevice.DeviceProperties{}
		if m.sink != nil {
			audiodevice.AttachDevice(m.sink)
			format = m.sink.GetDeviceProperties()
		}
		c.Logger.Debug("mixer sink bound", "sinkGen", m.sinkGen, "format", format)
	}

	reconfigureTracks := current.TracksGen != m.tracksGen
	formatChanged := format != m.format
	if formatChanged || current.FrameCount != m.frameCount {
		m.format = format
		m.frameCount = current.FrameCount
		m.reallocate()

		if m.sinkBuf != nil {
			*c.Timing = fastthread.NewTiming(m.frameCount, m.format.SampleRate)
		} else {
			*c.Timing = fastthread.Timing{}
		}
		dump.SampleRate.Store(uint32(m.format.SampleRate))
		dump.FrameCount.Store(uint32(m.frameCount))

		if formatChanged {
			// Every track is checked against the new format.
			for mask := m.trackMask; mask != 0; mask &= mask - 1 {
				m.unbindTrack(bits.TrailingZeros32(mask))
			}
			reconfigureTracks = true
		}
		c.Logger.Debug("mixer reconfigured", "format", m.format, "frameCount", m.frameCount, "periodNs", c.Timing.PeriodNs)
	}

	if reconfigureTracks {
		m.applyTracks(current)
		m.tracksGen = current.TracksGen
		dump.NumTracks.Store(uint32(bits.OnesCount32(m.trackMask)))
		dump.TrackMask.Store(m.trackMask)
	}
}

// Release and reacquire scratch for the current format and frame count.
func (m *FastMixer) reallocate() {
	m.mix = nil
	m.trackSamples = nil
	m.trackBuf = nil
	m.sinkBuf = nil
	m.mixState = mixUndefined

	if m.frameCount <= 0 || !m.format.IsValid() {
		return
	}
	samples := m.frameCount * m.format.NumChannels
	m.mix = make([]float32, samples)
	m.trackSamples = make([]float32, samples)
	m.trackBuf = make([]byte, samples*maxBytesPerSample)
	m.sinkBuf = make([]byte, m.frameCount*m.format.FrameSize())
}

// Bring the bound tracks in line with current: removed first, then added, then modified.
func (m *FastMixer) applyTracks(current *State) {
	bound := m.trackMask

	for removed := bound &^ current.TrackMask; removed != 0; removed &= removed - 1 {
		m.unbindTrack(bits.TrailingZeros32(removed))
	}
	for added := current.TrackMask &^ bound; added != 0; added &= added - 1 {
		i := bits.TrailingZeros32(added)
		m.bindTrack(i, &current.Tracks[i])
	}
	for kept := current.TrackMask & bound; kept != 0; kept &= kept - 1 {
		i := bits.TrailingZeros32(kept)
		if current.Tracks[i].Generation != m.trackGens[i] {
			m.unbindTrack(i)
			m.bindTrack(i, &current.Tracks[i])
		}
	}
}

func (m *FastMixer) bindTrack(i int, track *Track) {
	if track.Source == nil {
		panic(fmt.Sprintf("fastmixer: track %d is active without a source", i))
	}
	if m.format.IsValid() {
		props := track.Source.GetDeviceProperties()
		if props.SampleRate != m.format.SampleRate || props.NumChannels != m.format.NumChannels {
			panic(fmt.Sprintf("fastmixer: track %d format %s does not match sink format %s", i, props, m.format))
		}
		if props.Encoding.BytesPerSample() == 0 {
			panic(fmt.Sprintf("fastmixer: track %d has invalid encoding", i))
		}
	}
	audiodevice.AttachDevice(track.Source)
	m.tracks[i] = track.Source
	m.trackGens[i] = track.Generation
	m.trackMask |= 1 << i
}

func (m *FastMixer) unbindTrack(i int) {
	audiodevice.DetachDevice(m.tracks[i])
	m.tracks[i] = nil
	m.trackMask &^= 1 << i
}

func (m *FastMixer) OnWork(current *State, c *fastthread.Cycle) {
	dump := m.dump(current)
	command := current.Command

	if command&CommandMix != 0 && m.sink != nil && m.mix != nil && c.IsWarm {
		clear(m.mix)
		for mask := m.trackMask; mask != 0; mask &= mask - 1 {
			i := bits.TrailingZeros32(mask)
			m.mixTrack(i, &current.Tracks[i], dump)
		}
		m.mixState = mixMixed
	} else if m.mixState == mixMixed {
		// Nothing new mixed; never write the last cycle's mix twice.
		clear(m.mix)
		m.mixState = mixZeroed
	}

	if command&CommandWrite != 0 && m.sink != nil && m.sinkBuf != nil {
		if m.mixState == mixUndefined {
			clear(m.mix)
			m.mixState = mixZeroed
		}
		audiodevice.EncodeFloat32(m.sinkBuf, m.mix, m.format.Encoding)

		n, err := m.sink.Write(m.sinkBuf, m.frameCount)
		dump.WriteSequence.Add(1)
		c.AttemptedIO = true
		if err != nil {
			dump.WriteErrors.Add(1)
		} else {
			dump.FramesWritten.Add(uint64(n))
		}
	}
}

// Read one track and accumulate it into the mix. A short read leaves the rest silent.
func (m *FastMixer) mixTrack(i int, track *Track, dump *DumpState) {
	td := &dump.Tracks[i]
	source := m.tracks[i]
	props := source.GetDeviceProperties()

	n, err := source.Read(m.trackBuf[:m.frameCount*props.FrameSize()], m.frameCount, 0)
	if err != nil {
		td.ReadErrors.Add(1)
		return
	}
	n = max(0, min(n, m.frameCount))
	td.FramesRead.Add(uint64(n))
	if n < m.frameCount {
		td.Underruns.Add(1)
	}
	if n <= 0 {
		return
	}

	gain := track.Gain
	if track.Volume != nil {
		gain *= track.Volume.GetVolumeAdjustMagnitude()
	}
	samples := audiodevice.DecodeFloat32(m.trackSamples[:n*props.NumChannels], m.trackBuf, props.Encoding)
	for j, s := range m.trackSamples[:samples] {
		m.mix[j] += s * gain
	}
}
